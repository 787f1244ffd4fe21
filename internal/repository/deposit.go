package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fairdice/internal/model"
)

const depositColumns = "id, user_id, amount::text, payment_system, created_at"

// DepositRepository persists confirmed inbound funding records. Rows are
// append-only; a deposit that reaches the table is final.
type DepositRepository struct {
	db DB
}

// NewDepositRepository creates a new DepositRepository instance.
func NewDepositRepository(db DB) *DepositRepository {
	return &DepositRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *DepositRepository) WithTx(tx pgx.Tx) *DepositRepository {
	return &DepositRepository{db: tx}
}

func scanDeposit(row pgx.Row) (*model.Deposit, error) {
	var (
		d      model.Deposit
		amount string
	)
	err := row.Scan(&d.ID, &d.UserID, &amount, &d.PaymentSystem, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, err
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid deposit amount %q: %w", amount, err)
	}
	return &d, nil
}

// Create inserts a confirmed deposit record.
func (r *DepositRepository) Create(ctx context.Context, userID int64, amount decimal.Decimal, paymentSystem string) (*model.Deposit, error) {
	query := fmt.Sprintf(`
		INSERT INTO deposits (user_id, amount, payment_system, created_at)
		VALUES ($1, $2::numeric, $3, NOW())
		RETURNING %s
	`, depositColumns)

	d, err := scanDeposit(r.db.QueryRow(ctx, query, userID, amount.String(), paymentSystem))
	if err != nil {
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}
	return d, nil
}

// GetByID retrieves a deposit by ID.
func (r *DepositRepository) GetByID(ctx context.Context, id int64) (*model.Deposit, error) {
	query := fmt.Sprintf(`SELECT %s FROM deposits WHERE id = $1`, depositColumns)

	d, err := scanDeposit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrDepositNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return d, nil
}

// ListByUser retrieves a user's deposits, newest first.
func (r *DepositRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Deposit, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM deposits
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, depositColumns)

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}
	return deposits, nil
}
