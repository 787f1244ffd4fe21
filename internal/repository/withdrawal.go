package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fairdice/internal/model"
)

const withdrawalColumns = "id, user_id, amount::text, payment_system, status, created_at, updated_at"

// WithdrawalRepository persists cash-out requests and their status history.
type WithdrawalRepository struct {
	db DB
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(db DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *WithdrawalRepository) WithTx(tx pgx.Tx) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var (
		w      model.Withdrawal
		amount string
	)
	err := row.Scan(&w.ID, &w.UserID, &amount, &w.PaymentSystem, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid withdrawal amount %q: %w", amount, err)
	}
	return &w, nil
}

// Create inserts a new pending withdrawal.
func (r *WithdrawalRepository) Create(ctx context.Context, userID int64, amount decimal.Decimal, paymentSystem string) (*model.Withdrawal, error) {
	query := fmt.Sprintf(`
		INSERT INTO withdrawals (user_id, amount, payment_system, status, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, '%s', NOW(), NOW())
		RETURNING %s
	`, model.WithdrawalPending, withdrawalColumns)

	w, err := scanWithdrawal(r.db.QueryRow(ctx, query, userID, amount.String(), paymentSystem))
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return w, nil
}

// GetByID retrieves a withdrawal by ID.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*model.Withdrawal, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawals WHERE id = $1`, withdrawalColumns)

	w, err := scanWithdrawal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrWithdrawalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// UpdateStatus moves a withdrawal from one status to another. The expected
// current status guards against double transitions.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id int64, from, to string) (*model.Withdrawal, error) {
	query := fmt.Sprintf(`
		UPDATE withdrawals
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, withdrawalColumns)

	w, err := scanWithdrawal(r.db.QueryRow(ctx, query, id, from, to))
	if err != nil {
		if errors.Is(err, ErrWithdrawalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	return w, nil
}

// ListByUser retrieves a user's withdrawals, newest first.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Withdrawal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, withdrawalColumns)

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}
	return withdrawals, nil
}
