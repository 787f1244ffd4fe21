package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"fairdice/internal/model"
	"fairdice/internal/repository"
)

// AccountService handles user account lifecycle and account-state
// transitions. State changes are explicit domain events consumed by the
// notification bus, never hidden side effects of a generic save path.
type AccountService struct {
	users    *repository.UserRepository
	balances *repository.BalanceRepository
	vault    *SeedVault
	bus      *NotificationBus
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	users *repository.UserRepository,
	balances *repository.BalanceRepository,
	vault *SeedVault,
	bus *NotificationBus,
) *AccountService {
	return &AccountService{
		users:    users,
		balances: balances,
		vault:    vault,
		bus:      bus,
	}
}

// EnsureUser ensures a user exists, creating the account together with a
// zero balance and a committed server seed on first contact. Returns the
// user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	user, created, err := s.users.GetOrCreate(ctx, telegramID, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	if created {
		if _, err := s.balances.Create(ctx, user.ID); err != nil {
			return nil, false, fmt.Errorf("failed to create balance: %w", err)
		}
		if _, err := s.vault.CommitNewServerSeed(ctx, user.ID); err != nil {
			return nil, false, err
		}
		log.Info().Int64("user_id", user.ID).Str("site_id", user.SiteID).Msg("User created")
	} else if user.Username != username && username != "" {
		if err := s.users.UpdateUsername(ctx, user.ID, username); err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to update username")
		} else {
			user.Username = username
		}
	}

	return user, created, nil
}

// SetBanned updates a user's ban flag. When the flag transitions to banned,
// the resulting event produces a destructive priority notification.
func (s *AccountService) SetBanned(ctx context.Context, userID int64, banned bool) (*model.User, error) {
	user, changed, err := s.users.SetBanned(ctx, userID, banned)
	if err != nil {
		return nil, err
	}

	if changed && banned {
		if _, err := s.bus.Create(ctx, userID, model.KeyBan, nil, model.CategoryDestructive, true); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to record ban notification")
		}
	}

	return user, nil
}

// BalanceSnapshot returns a read-only view of a user's balance for the
// presentation layer.
func (s *AccountService) BalanceSnapshot(ctx context.Context, userID int64) (*model.Balance, error) {
	return s.balances.Get(ctx, userID)
}
