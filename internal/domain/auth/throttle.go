package auth

import (
	"context"
	"strconv"
	"time"

	"fivebear-admin-go/internal/platform/kvstore"
)

// Throttle limits failed login attempts per account. Implementations must be
// safe for concurrent use; counter increments are atomic per account.
type Throttle interface {
	IsLocked(ctx context.Context, account string) (bool, error)

	// RecordFailure bumps the failure counter and converts it into a lock
	// once the threshold is reached. It reports attempts left and whether
	// this failure triggered the lock.
	RecordFailure(ctx context.Context, account string) (remaining int, locked bool, err error)

	// ClearFailures removes the counter and any lock after a successful login.
	ClearFailures(ctx context.Context, account string) error

	RemainingAttempts(ctx context.Context, account string) (int, error)

	// LockRemaining reports time until the lock expires, zero when unlocked.
	LockRemaining(ctx context.Context, account string) (time.Duration, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

const (
	failureKeyPrefix = "failure:"
	lockKeyPrefix    = "lock:"
)

// ThrottleConfig tunes the lockout policy.
type ThrottleConfig struct {
	MaxAttempts   int
	FailureWindow time.Duration
	LockDuration  time.Duration
}

type storeThrottle struct {
	store kvstore.Store
	cfg   ThrottleConfig
}

// NewThrottle builds a throttle over an expiring key-value store.
func NewThrottle(store kvstore.Store, cfg ThrottleConfig) Throttle {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = 15 * time.Minute
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 30 * time.Minute
	}
	return &storeThrottle{store: store, cfg: cfg}
}

func (t *storeThrottle) IsLocked(ctx context.Context, account string) (bool, error) {
	_, err := t.store.Get(ctx, lockKeyPrefix+account)
	if err == kvstore.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *storeThrottle) RecordFailure(ctx context.Context, account string) (int, bool, error) {
	count, err := t.store.Increment(ctx, failureKeyPrefix+account, t.cfg.FailureWindow)
	if err != nil {
		return 0, false, err
	}
	if count < int64(t.cfg.MaxAttempts) {
		return t.cfg.MaxAttempts - int(count), false, nil
	}

	// Threshold reached: the counter becomes a lock.
	if err := t.store.Set(ctx, lockKeyPrefix+account, "1", t.cfg.LockDuration); err != nil {
		return 0, false, err
	}
	if err := t.store.Delete(ctx, failureKeyPrefix+account); err != nil {
		return 0, true, err
	}
	return 0, true, nil
}

func (t *storeThrottle) ClearFailures(ctx context.Context, account string) error {
	if err := t.store.Delete(ctx, failureKeyPrefix+account); err != nil {
		return err
	}
	return t.store.Delete(ctx, lockKeyPrefix+account)
}

func (t *storeThrottle) RemainingAttempts(ctx context.Context, account string) (int, error) {
	raw, err := t.store.Get(ctx, failureKeyPrefix+account)
	if err == kvstore.ErrNotFound {
		return t.cfg.MaxAttempts, nil
	}
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	remaining := t.cfg.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (t *storeThrottle) LockRemaining(ctx context.Context, account string) (time.Duration, error) {
	ttl, err := t.store.TTL(ctx, lockKeyPrefix+account)
	if err == kvstore.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return t.cfg.LockDuration, nil
	}
	return ttl, nil
}

func (t *storeThrottle) Ping(ctx context.Context) error {
	return t.store.Ping(ctx)
}

// NoopThrottle reports every account as unlocked with unlimited attempts.
// It is wired in when login security is disabled or the store is unreachable.
type NoopThrottle struct {
	MaxAttempts int
}

func (n NoopThrottle) IsLocked(context.Context, string) (bool, error) { return false, nil }

func (n NoopThrottle) RecordFailure(context.Context, string) (int, bool, error) {
	return n.attempts(), false, nil
}

func (n NoopThrottle) ClearFailures(context.Context, string) error { return nil }

func (n NoopThrottle) RemainingAttempts(context.Context, string) (int, error) {
	return n.attempts(), nil
}

func (n NoopThrottle) LockRemaining(context.Context, string) (time.Duration, error) {
	return 0, nil
}

func (n NoopThrottle) Ping(context.Context) error { return nil }

func (n NoopThrottle) attempts() int {
	if n.MaxAttempts > 0 {
		return n.MaxAttempts
	}
	return 5
}
