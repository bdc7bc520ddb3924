package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisStore(client, 10*time.Minute)
}

func TestIssueAndVerify(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "patient", "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != CodeLength {
		t.Errorf("expected %d-digit code, got %q", CodeLength, code)
	}

	if err := store.Verify(ctx, "patient", "alice@example.com", code); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVerify_ConsumesCode(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	code, _ := store.Issue(ctx, "patient", "alice@example.com")
	if err := store.Verify(ctx, "patient", "alice@example.com", code); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := store.Verify(ctx, "patient", "alice@example.com", code)
	if !errors.Is(err, ErrNotRequested) {
		t.Errorf("expected ErrNotRequested on reuse, got %v", err)
	}
}

func TestVerify_WrongCode(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "staff", "doc@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := store.Verify(ctx, "staff", "doc@example.com", "000000")
	if !errors.Is(err, ErrCodeMismatch) {
		t.Errorf("expected ErrCodeMismatch, got %v", err)
	}
}

func TestVerify_NeverRequested(t *testing.T) {
	_, store := setupStore(t)
	err := store.Verify(context.Background(), "patient", "nobody@example.com", "123456")
	if !errors.Is(err, ErrNotRequested) {
		t.Errorf("expected ErrNotRequested, got %v", err)
	}
}

func TestVerify_KindIsolation(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	code, _ := store.Issue(ctx, "patient", "shared@example.com")
	err := store.Verify(ctx, "staff", "shared@example.com", code)
	if !errors.Is(err, ErrNotRequested) {
		t.Errorf("expected kinds to be isolated, got %v", err)
	}
}

func TestIssue_ReplacesOutstandingCode(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	first, _ := store.Issue(ctx, "patient", "alice@example.com")
	second, _ := store.Issue(ctx, "patient", "alice@example.com")

	if first != second {
		err := store.Verify(ctx, "patient", "alice@example.com", first)
		if !errors.Is(err, ErrCodeMismatch) {
			t.Errorf("expected first code invalidated by re-request, got %v", err)
		}
	}
	if err := store.Verify(ctx, "patient", "alice@example.com", second); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCodeExpiry(t *testing.T) {
	mr, store := setupStore(t)
	ctx := context.Background()

	code, _ := store.Issue(ctx, "patient", "alice@example.com")
	mr.FastForward(11 * time.Minute)

	err := store.Verify(ctx, "patient", "alice@example.com", code)
	if !errors.Is(err, ErrNotRequested) {
		t.Errorf("expected expired code to be gone, got %v", err)
	}
}
