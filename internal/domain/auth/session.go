package auth

import (
	"context"
	"time"

	"fivebear-admin-go/internal/platform/kvstore"
)

const sessionKeyPrefix = "session:"

// SessionRegistry tracks the single active token per account. The pointer
// carries its own TTL aligned with token lifetime, so an abandoned session
// self-heals instead of blocking future logins.
type SessionRegistry struct {
	store kvstore.Store
	ttl   time.Duration
}

// NewSessionRegistry builds a registry over an expiring key-value store.
func NewSessionRegistry(store kvstore.Store, ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionRegistry{store: store, ttl: ttl}
}

// SetActive overwrites the pointer unconditionally and returns the token it
// replaced, letting the caller notify the displaced session.
func (r *SessionRegistry) SetActive(ctx context.Context, account, token string) (prev string, existed bool, err error) {
	return r.store.Swap(ctx, sessionKeyPrefix+account, token, r.ttl)
}

// IsActive reports whether token is currently the account's session pointer.
func (r *SessionRegistry) IsActive(ctx context.Context, account, token string) (bool, error) {
	current, err := r.store.Get(ctx, sessionKeyPrefix+account)
	if err == kvstore.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return current == token, nil
}

// ClearIfMatches removes the pointer only when it still equals token, so a
// stale logout never clears a newer session.
func (r *SessionRegistry) ClearIfMatches(ctx context.Context, account, token string) (bool, error) {
	return r.store.CompareAndDelete(ctx, sessionKeyPrefix+account, token)
}

// Ping verifies the backing store is reachable.
func (r *SessionRegistry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
