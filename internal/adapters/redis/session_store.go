// Package redis provides the Redis-backed session store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 2 * time.Hour

// SessionStore persists session containers as JSON under a prefixed key with
// a rolling TTL.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Prefix string        // Key prefix, "session:" when empty
	TTL    time.Duration // Session lifetime, DefaultTTL when zero
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client redis.UniversalClient, opts SessionStoreOptions) *SessionStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionStore{client: client, prefix: prefix, ttl: ttl}
}

// Load fetches the stored session, returning a fresh empty one when nothing
// is stored under the id.
func (s *SessionStore) Load(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}
	raw, err := s.client.Get(ctx, s.prefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return session.New(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var data map[string]map[string]string
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return session.Restore(id, data), nil
}

// Save persists the session with a refreshed TTL. A destroyed session is
// removed instead.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	if sess.Destroyed() {
		return s.Destroy(ctx, sess.ID())
	}
	data, err := json.Marshal(sess.Data())
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+sess.ID(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Destroy removes the stored session. Destroying an absent session is a
// no-op.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
