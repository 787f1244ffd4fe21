package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fairdice/internal/model"
	"fairdice/internal/pkg/lock"
	"fairdice/internal/repository"
)

const depositLockTimeout = 5 * time.Second

// DepositService records confirmed inbound funds. Confirmation comes from
// the external payment transport; recording credits the ledger and appends
// the deposit notification. There is no pending state on this side: an
// unconfirmed payment never reaches the service.
type DepositService struct {
	deposits *repository.DepositRepository
	balances *repository.BalanceRepository
	bus      *NotificationBus
	locks    *lock.UserLock
}

// NewDepositService creates a new DepositService instance.
func NewDepositService(
	deposits *repository.DepositRepository,
	balances *repository.BalanceRepository,
	bus *NotificationBus,
	locks *lock.UserLock,
) *DepositService {
	return &DepositService{
		deposits: deposits,
		balances: balances,
		bus:      bus,
		locks:    locks,
	}
}

// Confirm credits a confirmed payment to the user's balance and records the
// deposit.
func (s *DepositService) Confirm(ctx context.Context, userID int64, amount decimal.Decimal, paymentSystem string) (*model.Deposit, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidStake)
	}

	var d *model.Deposit
	err := s.locks.WithLockContext(ctx, userID, depositLockTimeout, func() error {
		if _, err := s.balances.Credit(ctx, userID, amount); err != nil {
			return err
		}

		var err error
		d, err = s.deposits.Create(ctx, userID, amount, paymentSystem)
		if err != nil {
			// The credit stands; the missing record needs reconciliation,
			// not a blind reversal.
			return fmt.Errorf("%w: deposit record failed: %v", ErrSettlementIntegrity, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.bus.Create(ctx, userID, model.KeyDepositSuccess, map[string]any{
		"amount": amount.String(),
	}, model.CategorySuccess, false); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to record deposit notification")
	}

	return d, nil
}

// History retrieves a user's deposits, newest first.
func (s *DepositService) History(ctx context.Context, userID int64, limit int) ([]*model.Deposit, error) {
	return s.deposits.ListByUser(ctx, userID, limit)
}
