package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	models "github.com/atlasprotect/atlas/internal"
	"github.com/atlasprotect/atlas/pkg/atlasapi"
)

const (
	keyAccessToken  = "atlas:session:access_token"
	keyRefreshToken = "atlas:session:refresh_token"
	keyProfile      = "atlas:session:profile"
)

// ErrNoSession is returned when no tokens are stored, meaning the user
// must log in.
var ErrNoSession = errors.New("no stored session")

// Store holds the session tokens and last-known profile in durable local
// key-value storage. It implements atlasapi.CredentialSource: a refresh
// rotates both tokens through the injected refresh call and persists the
// new pair before returning.
type Store struct {
	rdb     *redis.Client
	refresh atlasapi.RefreshFunc

	// serializes concurrent Refresh calls so one rotation happens
	refreshMu sync.Mutex
}

func NewStore(rdb *redis.Client, refresh atlasapi.RefreshFunc) *Store {
	return &Store{rdb: rdb, refresh: refresh}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies the storage backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// SaveTokens persists a token pair, e.g. after login.
func (s *Store) SaveTokens(ctx context.Context, access, refresh string) error {
	if err := s.rdb.Set(ctx, keyAccessToken, access, 0).Err(); err != nil {
		return fmt.Errorf("saving access token: %w", err)
	}
	if err := s.rdb.Set(ctx, keyRefreshToken, refresh, 0).Err(); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

// AccessToken returns the stored access token, or ErrNoSession.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, keyAccessToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("reading access token: %w", err)
	}
	return token, nil
}

// Refresh rotates the token pair through the auth backend and persists
// the result. Returns the new access token.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	refreshToken, err := s.rdb.Get(ctx, keyRefreshToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("reading refresh token: %w", err)
	}

	access, refresh, err := s.refresh(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("refreshing session: %w", err)
	}
	if err := s.SaveTokens(ctx, access, refresh); err != nil {
		return "", err
	}
	return access, nil
}

// SaveProfile caches the last-known user profile.
func (s *Store) SaveProfile(ctx context.Context, p models.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("serializing profile: %w", err)
	}
	if err := s.rdb.Set(ctx, keyProfile, data, 0).Err(); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// Profile returns the cached profile, or ErrNoSession when none is stored.
func (s *Store) Profile(ctx context.Context) (*models.Profile, error) {
	data, err := s.rdb.Get(ctx, keyProfile).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("deserializing profile: %w", err)
	}
	return &p, nil
}

// Clear wipes the whole session on logout: tokens and profile.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, keyAccessToken, keyRefreshToken, keyProfile).Err(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
