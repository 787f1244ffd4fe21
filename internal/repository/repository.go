// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgx operations the repositories use. It is satisfied
// by *pgxpool.Pool and by pgx.Tx, so a repository can run standalone or
// inside a settlement transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Common errors for repository operations.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrBalanceNotFound      = errors.New("balance not found")
	ErrSeedPairNotFound     = errors.New("seed pair not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrWagerNotFound        = errors.New("wager not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrDepositNotFound      = errors.New("deposit not found")
)
