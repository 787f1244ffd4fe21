package service

import "errors"

// Errors surfaced by the wagering and seed services.
var (
	// ErrInvalidStake rejects a malformed stake structure before any mutation.
	ErrInvalidStake = errors.New("invalid stake")

	// ErrInsufficientFunds rejects a wager or withdrawal the balance cannot cover.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUserBanned rejects operations for banned accounts.
	ErrUserBanned = errors.New("user is banned")

	// ErrAlreadyCommitted signals an attempt to commit a new server seed
	// while an unrevealed commitment exists.
	ErrAlreadyCommitted = errors.New("server seed already committed")

	// ErrClientSeed rejects an empty or oversized client seed.
	ErrClientSeed = errors.New("invalid client seed")

	// ErrSettlementIntegrity signals a failure after the debit step of a
	// settlement. The transaction is rolled back, but the condition is
	// surfaced for reconciliation rather than retried blindly.
	ErrSettlementIntegrity = errors.New("settlement integrity failure")

	// ErrWithdrawalState rejects a status transition the withdrawal's
	// current state does not allow.
	ErrWithdrawalState = errors.New("invalid withdrawal state transition")
)
