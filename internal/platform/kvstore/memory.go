package kvstore

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type memoryStore struct {
	items       map[string]memoryEntry
	mutex       sync.RWMutex
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory store with a background expiry sweep.
func NewMemory(cfg Config) Store {
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]memoryEntry),
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) cleanupExpired() {
	now := time.Now()
	s.mutex.Lock()
	for key, entry := range s.items {
		if entry.expired(now) {
			delete(s.items, key)
		}
	}
	s.mutex.Unlock()
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mutex.RLock()
	entry, ok := s.items[key]
	s.mutex.RUnlock()
	if !ok || entry.expired(time.Now()) {
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mutex.Lock()
	s.items[key] = entry
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	delete(s.items, key)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.items[key]
	if !ok || entry.expired(now) {
		entry = memoryEntry{value: "1"}
		if ttl > 0 {
			entry.expiresAt = now.Add(ttl)
		}
		s.items[key] = entry
		return 1, nil
	}

	count, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, err
	}
	count++
	entry.value = strconv.FormatInt(count, 10)
	s.items[key] = entry
	return count, nil
}

func (s *memoryStore) Swap(_ context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	now := time.Now()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	s.mutex.Lock()
	prev, ok := s.items[key]
	s.items[key] = entry
	s.mutex.Unlock()

	if !ok || prev.expired(now) {
		return "", false, nil
	}
	return prev.value, true, nil
}

func (s *memoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	now := time.Now()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.items[key]
	if !ok || entry.expired(now) || entry.value != expected {
		return false, nil
	}
	delete(s.items, key)
	return true, nil
}

func (s *memoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	now := time.Now()
	s.mutex.RLock()
	entry, ok := s.items[key]
	s.mutex.RUnlock()

	if !ok || entry.expired(now) {
		return 0, ErrNotFound
	}
	if entry.expiresAt.IsZero() {
		return -1, nil
	}
	return entry.expiresAt.Sub(now), nil
}

func (s *memoryStore) Ping(context.Context) error {
	return nil
}

func (s *memoryStore) Close(context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
