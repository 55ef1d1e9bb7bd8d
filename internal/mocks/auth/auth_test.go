package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
)

func TestMemoryIdentityStore_CreateAndFind(t *testing.T) {
	t.Parallel()

	store := NewMemoryIdentityStore()
	ctx := context.Background()

	user := &domainauth.Identity{Username: "alice", Email: "alice@example.edu"}
	require.NoError(t, store.Create(ctx, user))
	assert.NotZero(t, user.ID)

	found, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := store.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryIdentityStore_DuplicateUsername(t *testing.T) {
	t.Parallel()

	store := NewMemoryIdentityStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &domainauth.Identity{Username: "alice"}))
	err := store.Create(ctx, &domainauth.Identity{Username: "alice"})
	require.Error(t, err)
	assert.Equal(t, autherr.KindInvalid, autherr.AuthKindOf(err))
}

func TestMemoryTokenStore_Match(t *testing.T) {
	t.Parallel()

	store := NewMemoryTokenStore()
	ctx := context.Background()

	token := &domainauth.LoginToken{UserID: 7, Series: "s1", Token: "secret"}
	require.NoError(t, store.Create(ctx, token))

	matched, err := store.Match(ctx, 7, "s1", "secret")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, token.ID, matched.ID)

	// Wrong secret on a live series signals theft.
	_, err = store.Match(ctx, 7, "s1", "wrong")
	assert.True(t, autherr.IsToken(err))

	// Unknown series is simply absent.
	matched, err = store.Match(ctx, 7, "s2", "secret")
	require.NoError(t, err)
	assert.Nil(t, matched)
}

func TestMemoryTokenStore_DeleteBySeriesKeep(t *testing.T) {
	t.Parallel()

	store := NewMemoryTokenStore()
	ctx := context.Background()

	first := &domainauth.LoginToken{UserID: 1, Series: "s", Token: "a"}
	second := &domainauth.LoginToken{UserID: 1, Series: "s", Token: "b"}
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	require.NoError(t, store.DeleteBySeries(ctx, "s", second.ID))
	remaining := store.All()
	require.Len(t, remaining, 1)
	assert.Equal(t, second.ID, remaining[0].ID)

	require.NoError(t, store.DeleteBySeries(ctx, "s", 0))
	assert.Empty(t, store.All())
}

func TestMemorySessionStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemorySessionStore()
	ctx := context.Background()

	sess, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	sess.Set("ns", "key", "value")
	require.NoError(t, store.Save(ctx, sess))

	again, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	v, ok := again.Get("ns", "key")
	require.True(t, ok)
	assert.Equal(t, "value", v)

	require.NoError(t, store.Destroy(ctx, "sid"))
	assert.False(t, store.Has("sid"))
	assert.Contains(t, store.Destroyed, "sid")
}
