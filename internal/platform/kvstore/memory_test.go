package kvstore

import (
	"context"
	"testing"
	"time"
)

func newTestMemory(t *testing.T) Store {
	t.Helper()
	s := NewMemory(Config{Memory: &MemoryConfig{GCInterval: 50 * time.Millisecond}})
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	return s
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory(t)

	if err := s.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "v" {
		t.Fatalf("unexpected value: %q", got)
	}

	ttl, err := s.TTL(ctx, "k")
	if err != nil {
		t.Fatalf("TTL error: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl: %s", ttl)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory(t)

	if err := s.Set(ctx, "short", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := s.Get(ctx, "short"); err != ErrNotFound {
		t.Fatalf("expected expired key, got %v", err)
	}
	if _, err := s.TTL(ctx, "short"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound from TTL, got %v", err)
	}
}

func TestMemoryStoreIncrement(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory(t)

	for want := int64(1); want <= 3; want++ {
		count, err := s.Increment(ctx, "attempts", time.Minute)
		if err != nil {
			t.Fatalf("Increment error: %v", err)
		}
		if count != want {
			t.Fatalf("count = %d, want %d", count, want)
		}
	}

	// The window keeps its original deadline across increments.
	ttl1, err := s.TTL(ctx, "attempts")
	if err != nil {
		t.Fatalf("TTL error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := s.Increment(ctx, "attempts", time.Hour); err != nil {
		t.Fatalf("Increment error: %v", err)
	}
	ttl2, err := s.TTL(ctx, "attempts")
	if err != nil {
		t.Fatalf("TTL error: %v", err)
	}
	if ttl2 > ttl1 {
		t.Fatalf("ttl extended on increment: %s -> %s", ttl1, ttl2)
	}
}

func TestMemoryStoreIncrementAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory(t)

	if _, err := s.Increment(ctx, "attempts", 20*time.Millisecond); err != nil {
		t.Fatalf("Increment error: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	count, err := s.Increment(ctx, "attempts", time.Minute)
	if err != nil {
		t.Fatalf("Increment error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected counter restart after expiry, got %d", count)
	}
}

func TestMemoryStoreSwap(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory(t)

	prev, existed, err := s.Swap(ctx, "session", "token-a", time.Minute)
	if err != nil {
		t.Fatalf("Swap error: %v", err)
	}
	if existed || prev != "" {
		t.Fatalf("expected no previous value, got %q existed=%v", prev, existed)
	}

	prev, existed, err = s.Swap(ctx, "session", "token-b", time.Minute)
	if err != nil {
		t.Fatalf("Swap error: %v", err)
	}
	if !existed || prev != "token-a" {
		t.Fatalf("expected previous token-a, got %q existed=%v", prev, existed)
	}

	got, err := s.Get(ctx, "session")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "token-b" {
		t.Fatalf("unexpected value after swap: %q", got)
	}
}

func TestMemoryStoreCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory(t)

	if err := s.Set(ctx, "session", "token-a", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	deleted, err := s.CompareAndDelete(ctx, "session", "token-b")
	if err != nil {
		t.Fatalf("CompareAndDelete error: %v", err)
	}
	if deleted {
		t.Fatal("expected mismatch to leave the key in place")
	}
	if _, err := s.Get(ctx, "session"); err != nil {
		t.Fatalf("key removed on mismatch: %v", err)
	}

	deleted, err = s.CompareAndDelete(ctx, "session", "token-a")
	if err != nil {
		t.Fatalf("CompareAndDelete error: %v", err)
	}
	if !deleted {
		t.Fatal("expected matching delete to succeed")
	}
	if _, err := s.Get(ctx, "session"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreGC(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory(t)

	if err := s.Set(ctx, "gone", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	ms := s.(*memoryStore)
	ms.mutex.RLock()
	_, ok := ms.items["gone"]
	ms.mutex.RUnlock()
	if ok {
		t.Fatal("expected background sweep to remove expired entry")
	}
}
