package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.SaveRefreshSession(ctx, "hash-1", "user-123", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	userID, err := store.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("expected user-123, got %s", userID)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := store.SaveRefreshSession(ctx, "short", "user-456", time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := store.LookupRefreshSession(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := store.SaveRefreshSession(ctx, "token-1", "user-1", expiresAt); err != nil {
		t.Fatalf("save token-1: %v", err)
	}
	if err := store.SaveRefreshSession(ctx, "token-2", "user-2", expiresAt); err != nil {
		t.Fatalf("save token-2: %v", err)
	}
	if err := store.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("revoke token-1: %v", err)
	}

	if _, err := store.LookupRefreshSession(ctx, "token-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected revoked token-1 to be gone, got %v", err)
	}
	if userID, err := store.LookupRefreshSession(ctx, "token-2"); err != nil || userID != "user-2" {
		t.Errorf("expected token-2 intact, got %q, %v", userID, err)
	}
	if err := store.RevokeRefreshSession(ctx, "missing"); err != nil {
		t.Errorf("revoking a missing token should not fail: %v", err)
	}
}

func TestSaveRejectsPastExpiry(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.SaveRefreshSession(context.Background(), "old", "user-1", time.Now().Add(-time.Minute)); err == nil {
		t.Fatal("expected error for past expiry")
	}
}

func TestRedisTryLock(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	release, ok, err := store.TryLock(ctx, "insights:user-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}
	if _, ok, _ := store.TryLock(ctx, "insights:user-1", time.Minute); ok {
		t.Fatal("second TryLock must fail while held")
	}
	if _, ok, _ := store.TryLock(ctx, "insights:user-2", time.Minute); !ok {
		t.Fatal("locks for other keys must be independent")
	}

	release()
	if mr.Exists("lock:insights:user-1") {
		t.Fatal("release should delete the lock key")
	}
	if _, ok, _ := store.TryLock(ctx, "insights:user-1", time.Minute); !ok {
		t.Fatal("TryLock after release should succeed")
	}
}

func TestRedisLockExpires(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	if _, ok, _ := store.TryLock(ctx, "k", time.Second); !ok {
		t.Fatal("expected lock")
	}
	mr.FastForward(2 * time.Second)
	if _, ok, _ := store.TryLock(ctx, "k", time.Second); !ok {
		t.Fatal("expected lock after expiry")
	}
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	now := time.Now()
	locker.clock = func() time.Time { return now }
	ctx := context.Background()

	release, ok, _ := locker.TryLock(ctx, "k", time.Minute)
	if !ok {
		t.Fatal("expected lock")
	}
	if _, ok, _ := locker.TryLock(ctx, "k", time.Minute); ok {
		t.Fatal("expected contention")
	}
	release()
	if _, ok, _ := locker.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatal("expected lock after release")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := locker.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatal("expected stale lock to be taken over")
	}
}
