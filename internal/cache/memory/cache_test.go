package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prn-tf/meridian-users/internal/repository"
)

func TestCache_SetGet(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	if err := cache.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := cache.Get(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("expected %q, got %q", "value", got)
	}
}

func TestCache_Miss(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()

	_, err := cache.Get(context.Background(), "absent")
	if !errors.Is(err, repository.ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	if err := cache.Set(ctx, "key", []byte("value"), 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := cache.Get(ctx, "key"); !errors.Is(err, repository.ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after TTL, got %v", err)
	}
	exists, err := cache.Exists(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected expired key to report as absent")
	}
}

func TestCache_Delete(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	if err := cache.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cache.Delete(ctx, "key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Get(ctx, "key"); !errors.Is(err, repository.ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after delete, got %v", err)
	}

	// Deleting an absent key is not an error.
	if err := cache.Delete(ctx, "absent"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCache_Expire(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	if err := cache.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cache.Expire(ctx, "key", 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := cache.Get(ctx, "key"); !errors.Is(err, repository.ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after Expire TTL, got %v", err)
	}
}

func TestCache_GetReturnsCopy(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	if err := cache.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := cache.Get(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first[0] = 'X'

	second, err := cache.Get(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(second) != "value" {
		t.Errorf("mutating a returned value must not affect the cached copy, got %q", second)
	}
}
