package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fairdice/internal/fair"
	"fairdice/internal/model"
	"fairdice/internal/pkg/db"
	"fairdice/internal/pkg/lock"
	"fairdice/internal/pubsub"
	"fairdice/internal/repository"
)

// WagerState tracks a wager through settlement. Requested and SeedPrepared
// never touch the ledger; the Drawn->Settled step runs inside a single
// database transaction.
type WagerState string

// Wager states.
const (
	StateRequested    WagerState = "requested"
	StateSeedPrepared WagerState = "seed_prepared"
	StateDrawn        WagerState = "drawn"
	StateSettled      WagerState = "settled"
	StateRejected     WagerState = "rejected"
)

const settlementLockTimeout = 10 * time.Second

// SettlementPipeline orchestrates one wager: stake validation, seed and
// nonce acquisition, the deterministic draw, and the atomic ledger
// settlement with its audit trail and notification.
type SettlementPipeline struct {
	pool          *db.Pool
	engine        *fair.Engine
	users         *repository.UserRepository
	balances      *repository.BalanceRepository
	seeds         *repository.SeedRepository
	wagers        *repository.WagerRepository
	notifications *repository.NotificationRepository
	locks         *lock.UserLock
	publisher     pubsub.Publisher
	maxTotalStake decimal.Decimal
}

// NewSettlementPipeline creates a new SettlementPipeline instance.
func NewSettlementPipeline(
	pool *db.Pool,
	engine *fair.Engine,
	users *repository.UserRepository,
	balances *repository.BalanceRepository,
	seeds *repository.SeedRepository,
	wagers *repository.WagerRepository,
	notifications *repository.NotificationRepository,
	locks *lock.UserLock,
	publisher pubsub.Publisher,
	maxTotalStake decimal.Decimal,
) *SettlementPipeline {
	return &SettlementPipeline{
		pool:          pool,
		engine:        engine,
		users:         users,
		balances:      balances,
		seeds:         seeds,
		wagers:        wagers,
		notifications: notifications,
		locks:         locks,
		publisher:     publisher,
		maxTotalStake: maxTotalStake,
	}
}

// validateStakes checks the stake structure: every staked side must be
// configured, no stake may be negative, and at least one side must carry a
// positive stake. Returns the total stake.
func (p *SettlementPipeline) validateStakes(stakes map[int]decimal.Decimal) (decimal.Decimal, error) {
	if len(stakes) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no sides staked", ErrInvalidStake)
	}

	total := decimal.Zero
	positive := 0
	for side, stake := range stakes {
		if !p.engine.HasSide(side) {
			return decimal.Zero, fmt.Errorf("%w: side %d is not playable", ErrInvalidStake, side)
		}
		if stake.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: negative stake on side %d", ErrInvalidStake, side)
		}
		if stake.IsPositive() {
			positive++
		}
		total = total.Add(stake)
	}
	if positive == 0 {
		return decimal.Zero, fmt.Errorf("%w: total stake must be positive", ErrInvalidStake)
	}
	if p.maxTotalStake.IsPositive() && total.GreaterThan(p.maxTotalStake) {
		return decimal.Zero, fmt.Errorf("%w: total %s exceeds maximum %s", ErrInvalidStake, total, p.maxTotalStake)
	}
	return total, nil
}

// PlaceWager runs the full settlement state machine for one wager and
// returns the wager with its result. The user's lock serializes concurrent
// wagers and seed operations for that user; wagers by different users
// proceed in parallel.
func (p *SettlementPipeline) PlaceWager(ctx context.Context, userID int64, stakes map[int]decimal.Decimal) (*model.Wager, *model.WagerResult, error) {
	var (
		wager  *model.Wager
		result *model.WagerResult
	)

	err := p.locks.WithLockContext(ctx, userID, settlementLockTimeout, func() error {
		var err error
		wager, result, err = p.settle(ctx, userID, stakes)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return wager, result, nil
}

func (p *SettlementPipeline) settle(ctx context.Context, userID int64, stakes map[int]decimal.Decimal) (*model.Wager, *model.WagerResult, error) {
	state := StateRequested

	// Banned accounts never enter the pipeline.
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user.Banned {
		return nil, nil, ErrUserBanned
	}

	total, err := p.validateStakes(stakes)
	if err != nil {
		return nil, nil, err
	}

	// Non-mutating funds pre-check: a rejection here has no side effects.
	balance, err := p.balances.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if balance.Raw.LessThan(total) {
		return nil, nil, ErrInsufficientFunds
	}
	state = StateSeedPrepared

	// Everything that mutates state happens in one transaction: nonce
	// advance, debit, wager + result records, payout credit, notification.
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	seeds := p.seeds.WithTx(tx)
	balances := p.balances.WithTx(tx)
	wagers := p.wagers.WithTx(tx)
	notifications := p.notifications.WithTx(tx)

	pair, err := seeds.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := seeds.NextNonce(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	rolled := p.engine.Draw(pair.ServerSeed, pair.ClientSeed, nonce)
	isWin, payout := p.engine.Resolve(rolled, stakes)
	state = StateDrawn

	// Debit the full stake, then credit the payout. Never netted: the
	// ledger audit trail stays symmetric.
	if _, err := balances.Debit(ctx, userID, total); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, nil, ErrInsufficientFunds
		}
		return nil, nil, err
	}

	wager, err := wagers.CreateWager(ctx, &model.Wager{
		Ref:        uuid.NewString(),
		UserID:     userID,
		TotalStake: total,
		SideStakes: stakes,
		ClientSeed: pair.ClientSeed,
		ServerSeed: pair.ServerSeed,
		Nonce:      nonce,
	})
	if err != nil {
		return nil, nil, p.integrityFailure(userID, state, err)
	}

	result, err := wagers.CreateResult(ctx, &model.WagerResult{
		WagerID: wager.ID,
		Rolled:  rolled,
		IsWin:   isWin,
		Payout:  payout,
	})
	if err != nil {
		return nil, nil, p.integrityFailure(userID, state, err)
	}

	if isWin {
		if _, err := balances.Credit(ctx, userID, payout); err != nil {
			return nil, nil, p.integrityFailure(userID, state, err)
		}
	}

	key := model.KeyGameLoss
	category := model.CategoryInfo
	if isWin {
		key = model.KeyGameWin
		category = model.CategorySuccess
	}
	notification, err := notifications.Create(ctx, userID, key, map[string]any{
		"wager_ref": wager.Ref,
		"rolled":    rolled,
		"payout":    payout.String(),
	}, category, false)
	if err != nil {
		return nil, nil, p.integrityFailure(userID, state, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, p.integrityFailure(userID, state, err)
	}
	state = StateSettled

	log.Info().
		Int64("user_id", userID).
		Str("wager_ref", wager.Ref).
		Int("rolled", rolled).
		Bool("win", isWin).
		Str("total_stake", total.String()).
		Str("payout", payout.String()).
		Msg("Wager settled")

	p.publishSettled(ctx, notification)

	return wager, result, nil
}

// integrityFailure wraps a post-debit failure. The transaction rolls back,
// so no money moved, but the condition is surfaced with its last state
// rather than retried: re-running a debit/credit pair blindly risks
// double-spend or double-payout.
func (p *SettlementPipeline) integrityFailure(userID int64, state WagerState, err error) error {
	log.Error().
		Err(err).
		Int64("user_id", userID).
		Str("state", string(state)).
		Msg("Settlement aborted after draw")
	return fmt.Errorf("%w (state %s): %v", ErrSettlementIntegrity, state, err)
}

// publishSettled pushes the committed notification onto the broadcast
// channel. Delivery is best effort; the durable record already exists.
func (p *SettlementPipeline) publishSettled(ctx context.Context, n *model.Notification) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, pubsub.ChannelNotifications, n); err != nil {
		log.Warn().Err(err).Int64("user_id", n.UserID).Msg("Failed to publish settlement event")
	}
}

// VerifyFairness recomputes the draw for a revealed seed pair and compares
// it to a claimed rolled value. It belongs to the public check surface: any
// player can re-run it once the server seed is revealed.
func (p *SettlementPipeline) VerifyFairness(serverSeed, clientSeed string, nonce int64, claimedRolled int) bool {
	return p.engine.VerifyDraw(serverSeed, clientSeed, nonce, claimedRolled)
}

// WinChancePercent reports the informational win-chance figure for a stake
// layout before the wager is placed.
func (p *SettlementPipeline) WinChancePercent(stakes map[int]decimal.Decimal) int {
	return p.engine.WinChancePercent(stakes)
}
