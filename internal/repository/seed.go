package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fairdice/internal/model"
)

const seedColumns = "user_id, client_seed, server_seed, server_seed_hash, nonce, created_at, updated_at"

// SeedRepository persists per-user commit-reveal seed pairs.
type SeedRepository struct {
	db DB
}

// NewSeedRepository creates a new SeedRepository instance.
func NewSeedRepository(db DB) *SeedRepository {
	return &SeedRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SeedRepository) WithTx(tx pgx.Tx) *SeedRepository {
	return &SeedRepository{db: tx}
}

func scanSeedPair(row pgx.Row) (*model.SeedPair, error) {
	var p model.SeedPair
	err := row.Scan(
		&p.UserID,
		&p.ClientSeed,
		&p.ServerSeed,
		&p.Commitment,
		&p.Nonce,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSeedPairNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Get retrieves the seed pair for a user.
func (r *SeedRepository) Get(ctx context.Context, userID int64) (*model.SeedPair, error) {
	query := fmt.Sprintf(`SELECT %s FROM seed_pairs WHERE user_id = $1`, seedColumns)

	pair, err := scanSeedPair(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, ErrSeedPairNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get seed pair: %w", err)
	}
	return pair, nil
}

// Create stores the initial seed pair for a user. Fails on conflict, which
// the vault maps to its already-committed error.
func (r *SeedRepository) Create(ctx context.Context, userID int64, clientSeed, serverSeed, commitment string) (*model.SeedPair, error) {
	query := fmt.Sprintf(`
		INSERT INTO seed_pairs (user_id, client_seed, server_seed, server_seed_hash, nonce, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		RETURNING %s
	`, seedColumns)

	pair, err := scanSeedPair(r.db.QueryRow(ctx, query, userID, clientSeed, serverSeed, commitment))
	if err != nil {
		return nil, fmt.Errorf("failed to create seed pair: %w", err)
	}
	return pair, nil
}

// Replace swaps in a new concealed server seed and commitment and resets
// the nonce. Called only as the second half of reveal-and-rotate.
func (r *SeedRepository) Replace(ctx context.Context, userID int64, serverSeed, commitment string) (*model.SeedPair, error) {
	query := fmt.Sprintf(`
		UPDATE seed_pairs
		SET server_seed = $2, server_seed_hash = $3, nonce = 0, updated_at = NOW()
		WHERE user_id = $1
		RETURNING %s
	`, seedColumns)

	pair, err := scanSeedPair(r.db.QueryRow(ctx, query, userID, serverSeed, commitment))
	if err != nil {
		if errors.Is(err, ErrSeedPairNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to replace server seed: %w", err)
	}
	return pair, nil
}

// SetClientSeed stores user-supplied entropy for subsequent draws.
func (r *SeedRepository) SetClientSeed(ctx context.Context, userID int64, clientSeed string) (*model.SeedPair, error) {
	query := fmt.Sprintf(`
		UPDATE seed_pairs
		SET client_seed = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING %s
	`, seedColumns)

	pair, err := scanSeedPair(r.db.QueryRow(ctx, query, userID, clientSeed))
	if err != nil {
		if errors.Is(err, ErrSeedPairNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to set client seed: %w", err)
	}
	return pair, nil
}

// NextNonce increments and returns the per-wager nonce for a user's current
// seed pair.
func (r *SeedRepository) NextNonce(ctx context.Context, userID int64) (int64, error) {
	const query = `
		UPDATE seed_pairs
		SET nonce = nonce + 1, updated_at = NOW()
		WHERE user_id = $1
		RETURNING nonce
	`

	var nonce int64
	err := r.db.QueryRow(ctx, query, userID).Scan(&nonce)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSeedPairNotFound
		}
		return 0, fmt.Errorf("failed to advance nonce: %w", err)
	}
	return nonce, nil
}
