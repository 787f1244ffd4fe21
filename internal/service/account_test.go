package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairdice/internal/fair"
	"fairdice/internal/model"
)

func TestAccountService_EnsureUser(t *testing.T) {
	env, cleanup := setupTestEnv(t, halfDomainSide())
	defer cleanup()

	ctx := context.Background()

	user, created, err := env.accounts.EnsureUser(ctx, 2001, "newplayer")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "newplayer", user.Username)
	assert.Len(t, user.SiteID, 8)

	// First contact provisions a zero balance and a committed seed pair.
	bal, err := env.balances.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, bal.Raw.IsZero())
	assert.Equal(t, int64(0), bal.Display)

	pair, err := env.seeds.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.ServerSeed)
	assert.Equal(t, fair.Commitment(pair.ServerSeed), pair.Commitment)
	assert.Equal(t, int64(0), pair.Nonce)

	// Second contact is idempotent.
	again, created, err := env.accounts.EnsureUser(ctx, 2001, "newplayer")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
}

func TestAccountService_EnsureUserSyncsUsername(t *testing.T) {
	env, cleanup := setupTestEnv(t, halfDomainSide())
	defer cleanup()

	ctx := context.Background()

	user, _, err := env.accounts.EnsureUser(ctx, 2002, "oldname")
	require.NoError(t, err)

	updated, created, err := env.accounts.EnsureUser(ctx, 2002, "newname")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, updated.ID)
	assert.Equal(t, "newname", updated.Username)

	got, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "newname", got.Username)
}

func TestAccountService_SetBanned(t *testing.T) {
	env, cleanup := setupTestEnv(t, halfDomainSide())
	defer cleanup()

	ctx := context.Background()

	user, _, err := env.accounts.EnsureUser(ctx, 2003, "badactor")
	require.NoError(t, err)

	banned, err := env.accounts.SetBanned(ctx, user.ID, true)
	require.NoError(t, err)
	assert.True(t, banned.Banned)

	// The ban transition produces one destructive priority notification.
	unread, err := env.bus.Unread(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, model.KeyBan, unread[0].Key)
	assert.Equal(t, model.CategoryDestructive, unread[0].Category)
	assert.True(t, unread[0].Priority)

	// Re-banning an already banned user emits nothing new.
	_, err = env.accounts.SetBanned(ctx, user.ID, true)
	require.NoError(t, err)

	unread, err = env.bus.Unread(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	// Unbanning is silent.
	unbanned, err := env.accounts.SetBanned(ctx, user.ID, false)
	require.NoError(t, err)
	assert.False(t, unbanned.Banned)

	unread, err = env.bus.Unread(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}

func TestSeedVault_CommitIsExclusive(t *testing.T) {
	env, cleanup := setupTestEnv(t, halfDomainSide())
	defer cleanup()

	ctx := context.Background()

	user, _, err := env.accounts.EnsureUser(ctx, 2004, "player")
	require.NoError(t, err)

	// EnsureUser already committed; a second commit must be refused until
	// the current seed is revealed.
	_, err = env.vault.CommitNewServerSeed(ctx, user.ID)
	assert.ErrorIs(t, err, ErrAlreadyCommitted)
}

func TestSeedVault_SetClientSeed(t *testing.T) {
	env, cleanup := setupTestEnv(t, halfDomainSide())
	defer cleanup()

	ctx := context.Background()

	user, _, err := env.accounts.EnsureUser(ctx, 2005, "player")
	require.NoError(t, err)

	err = env.vault.SetClientSeed(ctx, user.ID, "my-own-entropy")
	require.NoError(t, err)

	pair, err := env.seeds.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "my-own-entropy", pair.ClientSeed)

	err = env.vault.SetClientSeed(ctx, user.ID, "")
	assert.ErrorIs(t, err, ErrClientSeed)

	tooLong := make([]byte, 65)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	err = env.vault.SetClientSeed(ctx, user.ID, string(tooLong))
	assert.ErrorIs(t, err, ErrClientSeed)
}
