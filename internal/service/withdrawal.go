package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fairdice/internal/model"
	"fairdice/internal/pkg/lock"
	"fairdice/internal/repository"
)

const withdrawalLockTimeout = 5 * time.Second

// WithdrawalService handles cash-out requests. The funds leave the ledger
// when the request is created; a cancel refunds them. The actual payout
// transport is an external collaborator.
type WithdrawalService struct {
	withdrawals *repository.WithdrawalRepository
	balances    *repository.BalanceRepository
	bus         *NotificationBus
	locks       *lock.UserLock
}

// NewWithdrawalService creates a new WithdrawalService instance.
func NewWithdrawalService(
	withdrawals *repository.WithdrawalRepository,
	balances *repository.BalanceRepository,
	bus *NotificationBus,
	locks *lock.UserLock,
) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		balances:    balances,
		bus:         bus,
		locks:       locks,
	}
}

// Request debits the amount and creates a pending withdrawal.
func (s *WithdrawalService) Request(ctx context.Context, userID int64, amount decimal.Decimal, paymentSystem string) (*model.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidStake)
	}

	var w *model.Withdrawal
	err := s.locks.WithLockContext(ctx, userID, withdrawalLockTimeout, func() error {
		if _, err := s.balances.Debit(ctx, userID, amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return ErrInsufficientFunds
			}
			return err
		}

		var err error
		w, err = s.withdrawals.Create(ctx, userID, amount, paymentSystem)
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.bus.Create(ctx, userID, model.KeyWithdrawalInfo, map[string]any{
		"amount": amount.String(),
	}, model.CategoryInfo, false); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to record withdrawal notification")
	}

	return w, nil
}

// Approve marks a pending withdrawal approved.
func (s *WithdrawalService) Approve(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := s.transition(ctx, id, model.WithdrawalPending, model.WithdrawalApproved)
	if err != nil {
		return nil, err
	}

	if _, err := s.bus.Create(ctx, w.UserID, model.KeyWithdrawalApproved, map[string]any{
		"amount": w.Amount.String(),
	}, model.CategorySuccess, false); err != nil {
		log.Error().Err(err).Int64("user_id", w.UserID).Msg("Failed to record withdrawal notification")
	}

	return w, nil
}

// Cancel rejects a pending withdrawal and refunds the debited amount.
func (s *WithdrawalService) Cancel(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := s.transition(ctx, id, model.WithdrawalPending, model.WithdrawalCanceled)
	if err != nil {
		return nil, err
	}

	err = s.locks.WithLockContext(ctx, w.UserID, withdrawalLockTimeout, func() error {
		_, err := s.balances.Credit(ctx, w.UserID, w.Amount)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: cancel refund failed: %v", ErrSettlementIntegrity, err)
	}

	if _, err := s.bus.Create(ctx, w.UserID, model.KeyWithdrawalCancel, map[string]any{
		"amount": w.Amount.String(),
	}, model.CategoryInfo, false); err != nil {
		log.Error().Err(err).Int64("user_id", w.UserID).Msg("Failed to record withdrawal notification")
	}

	return w, nil
}

// Lock freezes a pending withdrawal for manual review. No refund.
func (s *WithdrawalService) Lock(ctx context.Context, id int64) (*model.Withdrawal, error) {
	return s.transition(ctx, id, model.WithdrawalPending, model.WithdrawalLocked)
}

func (s *WithdrawalService) transition(ctx context.Context, id int64, from, to string) (*model.Withdrawal, error) {
	w, err := s.withdrawals.UpdateStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			// Either the row is missing or it is not in the expected state.
			if _, getErr := s.withdrawals.GetByID(ctx, id); getErr == nil {
				return nil, fmt.Errorf("%w: %s -> %s", ErrWithdrawalState, from, to)
			}
			return nil, err
		}
		return nil, err
	}
	return w, nil
}
