package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fairdice/internal/model"
)

const userColumns = "id, telegram_id, username, site_id, banned, premium, created_at, updated_at"

// UserRepository handles user account persistence.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.SiteID,
		&u.Banned,
		&u.Premium,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create creates a new user with a freshly generated short site ID.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (telegram_id, username, site_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING %s
	`, userColumns)

	// Same shape as the public profile IDs the site hands out: the first 8
	// characters of a v4 UUID. The unique index catches the rare collision.
	siteID := uuid.NewString()[:8]

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, username, siteID))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by internal ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByTelegramID retrieves a user by their Telegram ID.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE telegram_id = $1`, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetBySiteID retrieves a user by their public short ID.
func (r *UserRepository) GetBySiteID(ctx context.Context, siteID string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE site_id = $1`, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, siteID))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by Telegram ID, creating one if it doesn't
// exist. Returns the user and whether it was newly created.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	user, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, telegramID, username)
	if err != nil {
		// Another request may have created the user concurrently.
		user, err = r.GetByTelegramID(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// SetBanned updates the ban flag. Returns the user and whether the flag
// actually changed, so the caller can emit the matching domain event.
func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) (*model.User, bool, error) {
	query := fmt.Sprintf(`
		UPDATE users
		SET banned = $2, updated_at = NOW()
		WHERE id = $1 AND banned <> $2
		RETURNING %s
	`, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, id, banned))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// No row changed: either the user is missing or the flag
			// already had the requested value.
			user, err = r.GetByID(ctx, id)
			if err != nil {
				return nil, false, err
			}
			return user, false, nil
		}
		return nil, false, fmt.Errorf("failed to set ban flag: %w", err)
	}
	return user, true, nil
}

// UpdateUsername updates a user's username.
func (r *UserRepository) UpdateUsername(ctx context.Context, id int64, username string) error {
	const query = `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
