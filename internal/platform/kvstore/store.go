package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing or expired key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is an expiring key-value backend. The throttle counters and the
// session registry both run on top of it, so the compound operations
// (Increment, Swap, CompareAndDelete) must be atomic per key.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes key with the given TTL. A non-positive TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment adds one to the integer at key and returns the new count.
	// The TTL is applied only when the key is created, so an attempt window
	// keeps its original deadline across repeated failures.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Swap writes key and returns the previous value, with existed=false
	// when the key was absent.
	Swap(ctx context.Context, key, value string, ttl time.Duration) (prev string, existed bool, err error)

	// CompareAndDelete removes key only if its current value equals expected.
	// It returns true when the key was deleted.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)

	// TTL reports the remaining lifetime of key, or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

// Config describes the store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
	Memory *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
