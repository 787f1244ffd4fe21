package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fairdice/internal/model"
)

// WagerRepository persists wagers and their append-only results.
type WagerRepository struct {
	db DB
}

// NewWagerRepository creates a new WagerRepository instance.
func NewWagerRepository(db DB) *WagerRepository {
	return &WagerRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *WagerRepository) WithTx(tx pgx.Tx) *WagerRepository {
	return &WagerRepository{db: tx}
}

// encodeSideStakes serializes a side->stake mapping for the JSONB column.
func encodeSideStakes(stakes map[int]decimal.Decimal) ([]byte, error) {
	m := make(map[string]string, len(stakes))
	for side, stake := range stakes {
		m[strconv.Itoa(side)] = stake.String()
	}
	return json.Marshal(m)
}

// decodeSideStakes parses the JSONB column back into a side->stake mapping.
func decodeSideStakes(data []byte) (map[int]decimal.Decimal, error) {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	stakes := make(map[int]decimal.Decimal, len(m))
	for k, v := range m {
		side, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid side key %q: %w", k, err)
		}
		stake, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid stake for side %s: %w", k, err)
		}
		stakes[side] = stake
	}
	return stakes, nil
}

func scanWager(row pgx.Row) (*model.Wager, error) {
	var (
		w      model.Wager
		total  string
		stakes []byte
	)
	err := row.Scan(
		&w.ID,
		&w.Ref,
		&w.UserID,
		&total,
		&stakes,
		&w.ClientSeed,
		&w.ServerSeed,
		&w.Nonce,
		&w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWagerNotFound
		}
		return nil, err
	}
	if w.TotalStake, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid total stake %q: %w", total, err)
	}
	if w.SideStakes, err = decodeSideStakes(stakes); err != nil {
		return nil, fmt.Errorf("invalid side stakes: %w", err)
	}
	return &w, nil
}

const wagerColumns = "id, ref, user_id, total_stake::text, side_stakes, client_seed, server_seed, nonce, created_at"

// CreateWager inserts a new wager record. The seeds written here are the
// ones the draw actually used, so the record is verifiable once the server
// seed is revealed.
func (r *WagerRepository) CreateWager(ctx context.Context, w *model.Wager) (*model.Wager, error) {
	stakes, err := encodeSideStakes(w.SideStakes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode side stakes: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO wagers (ref, user_id, total_stake, side_stakes, client_seed, server_seed, nonce, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, NOW())
		RETURNING %s
	`, wagerColumns)

	created, err := scanWager(r.db.QueryRow(ctx, query,
		w.Ref, w.UserID, w.TotalStake.String(), stakes, w.ClientSeed, w.ServerSeed, w.Nonce))
	if err != nil {
		return nil, fmt.Errorf("failed to create wager: %w", err)
	}
	return created, nil
}

// GetWagerByID retrieves a wager by ID.
func (r *WagerRepository) GetWagerByID(ctx context.Context, id int64) (*model.Wager, error) {
	query := fmt.Sprintf(`SELECT %s FROM wagers WHERE id = $1`, wagerColumns)

	w, err := scanWager(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrWagerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	return w, nil
}

// ListByUser retrieves a user's wagers, newest first.
func (r *WagerRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Wager, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM wagers
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, wagerColumns)

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*model.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wagers: %w", err)
	}
	return wagers, nil
}

func scanResult(row pgx.Row) (*model.WagerResult, error) {
	var (
		res    model.WagerResult
		payout string
	)
	err := row.Scan(&res.ID, &res.WagerID, &res.Rolled, &res.IsWin, &payout, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWagerNotFound
		}
		return nil, err
	}
	if res.Payout, err = decimal.NewFromString(payout); err != nil {
		return nil, fmt.Errorf("invalid payout %q: %w", payout, err)
	}
	return &res, nil
}

// CreateResult inserts the result record for a wager. Results are written
// exactly once, immediately after the draw, and never mutated.
func (r *WagerRepository) CreateResult(ctx context.Context, res *model.WagerResult) (*model.WagerResult, error) {
	const query = `
		INSERT INTO wager_results (wager_id, rolled_value, is_win, payout, created_at)
		VALUES ($1, $2, $3, $4::numeric, NOW())
		RETURNING id, wager_id, rolled_value, is_win, payout::text, created_at
	`

	created, err := scanResult(r.db.QueryRow(ctx, query,
		res.WagerID, res.Rolled, res.IsWin, res.Payout.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to create wager result: %w", err)
	}
	return created, nil
}

// GetResultByWagerID retrieves the result for a wager.
func (r *WagerRepository) GetResultByWagerID(ctx context.Context, wagerID int64) (*model.WagerResult, error) {
	const query = `
		SELECT id, wager_id, rolled_value, is_win, payout::text, created_at
		FROM wager_results
		WHERE wager_id = $1
	`

	res, err := scanResult(r.db.QueryRow(ctx, query, wagerID))
	if err != nil {
		if errors.Is(err, ErrWagerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get wager result: %w", err)
	}
	return res, nil
}
