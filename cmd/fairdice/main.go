// Package main is the entry point for the fairdice wagering engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fairdice/internal/config"
	"fairdice/internal/fair"
	"fairdice/internal/pkg/db"
	"fairdice/internal/pkg/lock"
	"fairdice/internal/presence"
	"fairdice/internal/pubsub"
	"fairdice/internal/repository"
	"fairdice/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	publisher, err := pubsub.NewRedisPublisher(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer publisher.Close()

	engine, err := fair.NewEngine(cfg.Game.DomainSize, sideMultipliers(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid game side configuration")
	}
	log.Info().
		Int("domain_size", engine.DomainSize()).
		Int("sides", len(engine.Sides())).
		Msg("Outcome engine initialized")

	// Repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	balanceRepo := repository.NewBalanceRepository(dbPool.Pool)
	seedRepo := repository.NewSeedRepository(dbPool.Pool)
	wagerRepo := repository.NewWagerRepository(dbPool.Pool)
	notificationRepo := repository.NewNotificationRepository(dbPool.Pool)
	withdrawalRepo := repository.NewWithdrawalRepository(dbPool.Pool)
	depositRepo := repository.NewDepositRepository(dbPool.Pool)

	// Services
	userLock := lock.NewUserLock()
	bus := service.NewNotificationBus(notificationRepo, publisher)
	vault := service.NewSeedVault(seedRepo, userLock, cfg.Seed.MaxClientSeedLen)
	accountService := service.NewAccountService(userRepo, balanceRepo, vault, bus)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, balanceRepo, bus, userLock)
	depositService := service.NewDepositService(depositRepo, balanceRepo, bus, userLock)
	pipeline := service.NewSettlementPipeline(
		dbPool,
		engine,
		userRepo,
		balanceRepo,
		seedRepo,
		wagerRepo,
		notificationRepo,
		userLock,
		publisher,
		decimal.NewFromFloat(cfg.Game.MaxTotalStake),
	)

	// Presence tracking with periodic eviction
	tracker := presence.NewTracker(cfg.Presence.TTL, publisher)
	tracker.Start(ctx, cfg.Presence.SweepInterval)
	defer tracker.Stop()

	core := &service.Core{
		Accounts:      accountService,
		Vault:         vault,
		Settlement:    pipeline,
		Withdrawals:   withdrawalService,
		Deposits:      depositService,
		Notifications: bus,
		Presence:      tracker,
	}
	serveTransports(core)

	log.Info().Msg("Wagering engine ready")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
}

// serveTransports is where bot and web frontends attach to the core. They
// live in their own deployables and are out of scope here.
func serveTransports(core *service.Core) {
	log.Info().
		Int("online_users", core.Presence.Count()).
		Msg("Core services wired, waiting for transports")
}

// sideMultipliers converts the config side map into engine multipliers.
func sideMultipliers(cfg *config.Config) map[int]decimal.Decimal {
	multipliers := make(map[int]decimal.Decimal, len(cfg.Game.Sides))
	for side, mult := range cfg.Game.Sides {
		n, err := strconv.Atoi(side)
		if err != nil {
			log.Fatal().Str("side", side).Msg("Side keys must be numeric")
		}
		multipliers[n] = decimal.NewFromFloat(mult)
	}
	return multipliers
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: users
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT NOT NULL UNIQUE,
			username VARCHAR(255) NOT NULL,
			site_id VARCHAR(10) NOT NULL UNIQUE,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			premium BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}

	// Migration 2: balances
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS balances (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			balance_raw NUMERIC(12,2) NOT NULL DEFAULT 0,
			balance_display BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (balance_raw >= 0)
		);
	`)
	if err != nil {
		return err
	}

	// Migration 3: seed pairs
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS seed_pairs (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			client_seed VARCHAR(64) NOT NULL,
			server_seed VARCHAR(64) NOT NULL,
			server_seed_hash VARCHAR(64) NOT NULL,
			nonce BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}

	// Migration 4: wagers and results
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wagers (
			id BIGSERIAL PRIMARY KEY,
			ref VARCHAR(36) NOT NULL UNIQUE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			total_stake NUMERIC(12,2) NOT NULL,
			side_stakes JSONB NOT NULL,
			client_seed VARCHAR(64) NOT NULL,
			server_seed VARCHAR(64) NOT NULL,
			nonce BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_wagers_user_time ON wagers(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS wager_results (
			id BIGSERIAL PRIMARY KEY,
			wager_id BIGINT NOT NULL REFERENCES wagers(id) ON DELETE CASCADE,
			rolled_value INT NOT NULL,
			is_win BOOLEAN NOT NULL DEFAULT FALSE,
			payout NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_wager_results_wager ON wager_results(wager_id);
	`)
	if err != nil {
		return err
	}

	// Migration 5: notifications
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			message_key VARCHAR(50) NOT NULL,
			message_params JSONB NOT NULL DEFAULT '{}',
			category VARCHAR(20) NOT NULL DEFAULT 'info',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			priority BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id, is_read, created_at DESC);
	`)
	if err != nil {
		return err
	}

	// Migration 6: withdrawals
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS withdrawals (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount NUMERIC(12,2) NOT NULL,
			payment_system VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_user_time ON withdrawals(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}

	// Migration 7: deposits
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deposits (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount NUMERIC(12,2) NOT NULL,
			payment_system VARCHAR(50) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_deposits_user_time ON deposits(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}

	log.Info().Msg("Database migrations completed")
	return nil
}
