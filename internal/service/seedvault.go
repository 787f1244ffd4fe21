// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fairdice/internal/fair"
	"fairdice/internal/pkg/lock"
	"fairdice/internal/repository"
)

const seedLockTimeout = 5 * time.Second

// SeedVault owns the per-user commit-reveal seed pair. A commitment is
// published before any wager uses the seed; the raw seed is disclosed only
// by reveal-and-rotate, so a disclosed seed can never be drawn against again.
type SeedVault struct {
	seeds            *repository.SeedRepository
	locks            *lock.UserLock
	maxClientSeedLen int
}

// NewSeedVault creates a new SeedVault instance.
func NewSeedVault(seeds *repository.SeedRepository, locks *lock.UserLock, maxClientSeedLen int) *SeedVault {
	if maxClientSeedLen <= 0 {
		maxClientSeedLen = 64
	}
	return &SeedVault{
		seeds:            seeds,
		locks:            locks,
		maxClientSeedLen: maxClientSeedLen,
	}
}

// CommitNewServerSeed generates a concealed server seed for a user who has
// none and publishes its commitment. Fails with ErrAlreadyCommitted when an
// unrevealed commitment exists: a user must reveal-and-rotate first, which
// prevents silent reseeding mid-sequence.
func (v *SeedVault) CommitNewServerSeed(ctx context.Context, userID int64) (string, error) {
	var commitment string
	err := v.locks.WithLockContext(ctx, userID, seedLockTimeout, func() error {
		_, err := v.seeds.Get(ctx, userID)
		if err == nil {
			return ErrAlreadyCommitted
		}
		if !errors.Is(err, repository.ErrSeedPairNotFound) {
			return err
		}

		serverSeed := fair.GenerateServerSeed()
		commitment = fair.Commitment(serverSeed)
		_, err = v.seeds.Create(ctx, userID, fair.GenerateClientSeed(), serverSeed, commitment)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit server seed: %w", err)
	}
	return commitment, nil
}

// RevealAndRotate discloses the current concealed server seed and
// immediately replaces it with a fresh one, resetting the nonce. Revealing
// without rotating is not offered anywhere: it would allow seed reuse after
// disclosure.
func (v *SeedVault) RevealAndRotate(ctx context.Context, userID int64) (string, error) {
	var revealed string
	err := v.locks.WithLockContext(ctx, userID, seedLockTimeout, func() error {
		pair, err := v.seeds.Get(ctx, userID)
		if err != nil {
			return err
		}
		revealed = pair.ServerSeed

		next := fair.GenerateServerSeed()
		_, err = v.seeds.Replace(ctx, userID, next, fair.Commitment(next))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to reveal and rotate seed: %w", err)
	}
	return revealed, nil
}

// SetClientSeed stores user-supplied entropy mixed into every subsequent
// draw. The server seed does not rotate.
func (v *SeedVault) SetClientSeed(ctx context.Context, userID int64, seed string) error {
	if seed == "" {
		return fmt.Errorf("%w: must not be empty", ErrClientSeed)
	}
	if len(seed) > v.maxClientSeedLen {
		return fmt.Errorf("%w: longer than %d characters", ErrClientSeed, v.maxClientSeedLen)
	}

	return v.locks.WithLockContext(ctx, userID, seedLockTimeout, func() error {
		_, err := v.seeds.SetClientSeed(ctx, userID, seed)
		return err
	})
}

// Commitment returns the published commitment for a user's current
// concealed server seed.
func (v *SeedVault) Commitment(ctx context.Context, userID int64) (string, error) {
	pair, err := v.seeds.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return pair.Commitment, nil
}
