package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fairdice/internal/model"
)

// BalanceRepository is the only legal mutation path for user funds. Every
// update recomputes balance_display from balance_raw in the same statement,
// so the display cache can never drift from the exact value.
type BalanceRepository struct {
	db DB
}

// NewBalanceRepository creates a new BalanceRepository instance.
func NewBalanceRepository(db DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BalanceRepository) WithTx(tx pgx.Tx) *BalanceRepository {
	return &BalanceRepository{db: tx}
}

func scanBalance(row pgx.Row) (*model.Balance, error) {
	var (
		b   model.Balance
		raw string
	)
	err := row.Scan(&b.UserID, &raw, &b.Display, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	b.Raw, err = decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid balance value %q: %w", raw, err)
	}
	return &b, nil
}

// Create initializes a zero balance row for a user.
func (r *BalanceRepository) Create(ctx context.Context, userID int64) (*model.Balance, error) {
	const query = `
		INSERT INTO balances (user_id, balance_raw, balance_display, updated_at)
		VALUES ($1, 0, 0, NOW())
		RETURNING user_id, balance_raw::text, balance_display, updated_at
	`

	bal, err := scanBalance(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to create balance: %w", err)
	}
	return bal, nil
}

// Get retrieves a user's balance.
func (r *BalanceRepository) Get(ctx context.Context, userID int64) (*model.Balance, error) {
	const query = `
		SELECT user_id, balance_raw::text, balance_display, updated_at
		FROM balances
		WHERE user_id = $1
	`

	bal, err := scanBalance(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// Credit adds a positive amount to the balance.
func (r *BalanceRepository) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.Balance, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("credit amount must be positive, got %s", amount)
	}

	const query = `
		UPDATE balances
		SET balance_raw = balance_raw + $2::numeric,
		    balance_display = TRUNC(balance_raw + $2::numeric),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING user_id, balance_raw::text, balance_display, updated_at
	`

	bal, err := scanBalance(r.db.QueryRow(ctx, query, userID, amount.String()))
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}
	return bal, nil
}

// Debit subtracts a positive amount from the balance. Fails with
// ErrInsufficientFunds instead of letting the raw value go negative.
func (r *BalanceRepository) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.Balance, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("debit amount must be positive, got %s", amount)
	}

	const query = `
		UPDATE balances
		SET balance_raw = balance_raw - $2::numeric,
		    balance_display = TRUNC(balance_raw - $2::numeric),
		    updated_at = NOW()
		WHERE user_id = $1 AND balance_raw >= $2::numeric
		RETURNING user_id, balance_raw::text, balance_display, updated_at
	`

	bal, err := scanBalance(r.db.QueryRow(ctx, query, userID, amount.String()))
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			// Distinguish a missing row from a guarded update.
			if _, getErr := r.Get(ctx, userID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}
	return bal, nil
}
