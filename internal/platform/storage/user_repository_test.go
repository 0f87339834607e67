package storage

import (
	"context"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) UserRepository {
	t.Helper()
	db, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap database: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM users")
		_ = sqlDB.Close()
	})
	return NewUserRepository(db)
}

func TestUserRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	user := &User{Username: "alice", Password: "secret", Role: "admin", Status: UserStatusActive}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if user.Password == "secret" {
		t.Fatal("password stored in plaintext")
	}

	found, err := repo.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername error: %v", err)
	}
	if found == nil || found.Username != "alice" {
		t.Fatalf("unexpected user: %+v", found)
	}

	if !repo.VerifyCredential(found, "secret") {
		t.Fatal("expected credential match")
	}
	if repo.VerifyCredential(found, "wrong") {
		t.Fatal("expected credential mismatch")
	}
	if repo.VerifyCredential(nil, "secret") {
		t.Fatal("nil user must never verify")
	}

	missing, err := repo.FindByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("FindByUsername error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing user, got %+v", missing)
	}
}

func TestUserRepositoryTouchLastLogin(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	user := &User{Username: "bob", Password: "pw", Status: UserStatusActive}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	at := time.Now().Truncate(time.Second)
	if err := repo.TouchLastLogin(ctx, user.ID, at); err != nil {
		t.Fatalf("TouchLastLogin error: %v", err)
	}

	found, err := repo.FindByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("FindByUsername error: %v", err)
	}
	if found.LastLoginAt == nil || !found.LastLoginAt.Equal(at) {
		t.Fatalf("unexpected last login: %v", found.LastLoginAt)
	}
}

func TestSeedDefaultAdmin(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.SeedDefaultAdmin(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("SeedDefaultAdmin error: %v", err)
	}
	admin, err := repo.FindByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("FindByUsername error: %v", err)
	}
	if admin == nil || admin.Role != "admin" {
		t.Fatalf("unexpected seeded account: %+v", admin)
	}

	// Seeding again must not create a second account.
	if err := repo.SeedDefaultAdmin(ctx, "admin2", "pw"); err != nil {
		t.Fatalf("SeedDefaultAdmin error: %v", err)
	}
	second, err := repo.FindByUsername(ctx, "admin2")
	if err != nil {
		t.Fatalf("FindByUsername error: %v", err)
	}
	if second != nil {
		t.Fatal("seed ran against a non-empty table")
	}
}
