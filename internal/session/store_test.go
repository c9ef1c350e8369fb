package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/atlasprotect/atlas/internal"
	"github.com/atlasprotect/atlas/internal/ports"
	"github.com/atlasprotect/atlas/internal/session"
)

var _ ports.SessionStore = (*session.Store)(nil)

func newTestStore(t *testing.T, refresh func(ctx context.Context, refreshToken string) (string, string, error)) (*session.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(rdb, refresh)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestSaveAndLoadTokens(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.SaveTokens(ctx, "access-1", "refresh-1"))

	token, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
}

func TestAccessTokenWithoutSession(t *testing.T) {
	store, _ := newTestStore(t, nil)

	_, err := store.AccessToken(context.Background())
	assert.True(t, errors.Is(err, session.ErrNoSession))
}

func TestRefreshRotatesAndPersistsTokens(t *testing.T) {
	var seenRefreshToken string
	store, _ := newTestStore(t, func(ctx context.Context, refreshToken string) (string, string, error) {
		seenRefreshToken = refreshToken
		return "access-2", "refresh-2", nil
	})
	ctx := context.Background()

	require.NoError(t, store.SaveTokens(ctx, "access-1", "refresh-1"))

	access, err := store.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", access)
	assert.Equal(t, "refresh-1", seenRefreshToken)

	// the rotated pair survives a fresh read
	token, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)

	access, err = store.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", seenRefreshToken, "second rotation uses the new refresh token")
	assert.Equal(t, "access-2", access)
}

func TestRefreshWithoutSession(t *testing.T) {
	store, _ := newTestStore(t, func(ctx context.Context, refreshToken string) (string, string, error) {
		t.Fatal("refresh must not be called without a stored session")
		return "", "", nil
	})

	_, err := store.Refresh(context.Background())
	assert.True(t, errors.Is(err, session.ErrNoSession))
}

func TestRefreshFailureKeepsOldTokens(t *testing.T) {
	store, _ := newTestStore(t, func(ctx context.Context, refreshToken string) (string, string, error) {
		return "", "", errors.New("refresh token revoked")
	})
	ctx := context.Background()

	require.NoError(t, store.SaveTokens(ctx, "access-1", "refresh-1"))

	_, err := store.Refresh(ctx)
	require.Error(t, err)

	token, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
}

func TestProfileRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.Profile(ctx)
	assert.True(t, errors.Is(err, session.ErrNoSession))

	p := models.Profile{
		ID:        "u-17",
		Email:     "j.vorster@example.com",
		FirstName: "Johan",
		LastName:  "Vorster",
	}
	require.NoError(t, store.SaveProfile(ctx, p))

	got, err := store.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, &p, got)
}

func TestClearWipesSession(t *testing.T) {
	store, mr := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.SaveTokens(ctx, "access-1", "refresh-1"))
	require.NoError(t, store.SaveProfile(ctx, models.Profile{ID: "u-17"}))

	require.NoError(t, store.Clear(ctx))

	_, err := store.AccessToken(ctx)
	assert.True(t, errors.Is(err, session.ErrNoSession))
	_, err = store.Profile(ctx)
	assert.True(t, errors.Is(err, session.ErrNoSession))
	assert.Empty(t, mr.Keys())
}

func TestPing(t *testing.T) {
	store, mr := newTestStore(t, nil)

	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
