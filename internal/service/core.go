package service

import "fairdice/internal/presence"

// Core bundles the wired services handed to transport layers (bot, web
// frontend, admin tooling). The engine itself stays transport-agnostic.
type Core struct {
	Accounts      *AccountService
	Vault         *SeedVault
	Settlement    *SettlementPipeline
	Withdrawals   *WithdrawalService
	Deposits      *DepositService
	Notifications *NotificationBus
	Presence      *presence.Tracker
}
