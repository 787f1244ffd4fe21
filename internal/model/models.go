// Package model defines the data models for the dice wagering engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a player account.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	SiteID     string    `db:"site_id"`
	Banned     bool      `db:"banned"`
	Premium    bool      `db:"premium"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Balance holds a user's funds in dual representation: the exact decimal
// value used for accounting and an integer cache used only for display.
// Display is always trunc(raw), recomputed on every mutation; it has no
// setter of its own.
type Balance struct {
	UserID    int64           `db:"user_id"`
	Raw       decimal.Decimal `db:"balance_raw"`
	Display   int64           `db:"balance_display"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// SeedPair holds a user's commit-reveal seed state. ServerSeed stays
// concealed until RevealAndRotate discloses it; Commitment is published
// beforehand and must always equal sha256(ServerSeed). Nonce counts wagers
// drawn against the current pair.
type SeedPair struct {
	UserID     int64     `db:"user_id"`
	ClientSeed string    `db:"client_seed"`
	ServerSeed string    `db:"server_seed"`
	Commitment string    `db:"server_seed_hash"`
	Nonce      int64     `db:"nonce"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Wager is one placed bet across the selectable die sides. Immutable once
// created; the outcome lives in WagerResult.
type Wager struct {
	ID         int64                   `db:"id"`
	Ref        string                  `db:"ref"`
	UserID     int64                   `db:"user_id"`
	TotalStake decimal.Decimal         `db:"total_stake"`
	SideStakes map[int]decimal.Decimal `db:"-"`
	ClientSeed string                  `db:"client_seed"`
	ServerSeed string                  `db:"server_seed"`
	Nonce      int64                   `db:"nonce"`
	CreatedAt  time.Time               `db:"created_at"`
}

// WagerResult is the append-only audit record of a settled wager.
type WagerResult struct {
	ID        int64           `db:"id"`
	WagerID   int64           `db:"wager_id"`
	Rolled    int             `db:"rolled_value"`
	IsWin     bool            `db:"is_win"`
	Payout    decimal.Decimal `db:"payout"`
	CreatedAt time.Time       `db:"created_at"`
}

// Deposit records confirmed inbound funds. Confirmation arrives from the
// external payment transport; by the time a row exists the amount is
// already credited to the ledger.
type Deposit struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	PaymentSystem string          `db:"payment_system"`
	CreatedAt     time.Time       `db:"created_at"`
}

// Withdrawal represents a pending cash-out request. Status transitions emit
// notifications; the payout transport itself is external.
type Withdrawal struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	PaymentSystem string          `db:"payment_system"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Withdrawal statuses.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalCanceled = "canceled"
	WithdrawalLocked   = "locked"
)

// Notification is one user-facing event in the durable log. Append-only;
// only the read flag may change afterwards.
type Notification struct {
	ID        int64          `db:"id"`
	UserID    int64          `db:"user_id"`
	Key       string         `db:"message_key"`
	Params    map[string]any `db:"message_params"`
	Category  string         `db:"category"`
	IsRead    bool           `db:"is_read"`
	Priority  bool           `db:"priority"`
	CreatedAt time.Time      `db:"created_at"`
}

// Notification categories.
const (
	CategoryInfo        = "info"
	CategorySuccess     = "success"
	CategoryDestructive = "destructive"
)

// Notification message keys. Rendering keys into localized text belongs to
// the presentation layer.
const (
	KeyGameWin            = "game_win"
	KeyGameLoss           = "game_loss"
	KeyBan                = "ban"
	KeyDepositSuccess     = "deposit_success"
	KeyWithdrawalApproved = "withdrawal_approved"
	KeyWithdrawalRejected = "withdrawal_rejected"
	KeyWithdrawalInfo     = "withdrawal_info"
	KeyWithdrawalCancel   = "withdrawal_cancel"
	KeyAdminNotification  = "admin_notification"
)
