package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
)

type fakeSessionStore struct {
	sessions map[string]*domain.Session
	getCalls int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *fakeSessionStore) Create(ctx context.Context, session *domain.Session) error {
	s.sessions[session.TokenHash] = session
	return nil
}

func (s *fakeSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	s.getCalls++
	if session, ok := s.sessions[tokenHash]; ok {
		return session, nil
	}
	return nil, ErrNotFound
}

func (s *fakeSessionStore) ListByUserID(ctx context.Context, userID int64) ([]*domain.Session, error) {
	var out []*domain.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) ExtendExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	for _, session := range s.sessions {
		if session.ID == id {
			session.ExpiresAt = &expiresAt
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeSessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if _, ok := s.sessions[tokenHash]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, tokenHash)
	return nil
}

func (s *fakeSessionStore) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for hash, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (s *fakeSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for hash, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// fakeCache is an in-memory Cache with injectable failures.
type fakeCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if data, ok := c.entries[key]; ok {
		return data, nil
	}
	return nil, ErrCacheMiss
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.entries[key]
	return ok, nil
}

func (c *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

var _ Cache = (*fakeCache)(nil)

func seedSession(store *fakeSessionStore, id, userID int64, tokenHash string) *domain.Session {
	session := &domain.Session{ID: id, UserID: userID, TokenHash: tokenHash, CreatedAt: time.Now().UTC()}
	store.sessions[tokenHash] = session
	return session
}

func TestCachedSessionRepository_GetPopulatesCache(t *testing.T) {
	store := newFakeSessionStore()
	cache := newFakeCache()
	seedSession(store, 1, 42, "hash-a")
	repo := NewCachedSessionRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	first, err := repo.GetByTokenHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.UserID != 42 {
		t.Errorf("expected user ID 42, got %d", first.UserID)
	}
	if store.getCalls != 1 {
		t.Fatalf("expected 1 store read, got %d", store.getCalls)
	}

	// Second read is served from cache.
	second, err := repo.GetByTokenHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("cached session differs: %d vs %d", second.ID, first.ID)
	}
	if store.getCalls != 1 {
		t.Errorf("expected the second read to hit the cache, store reads = %d", store.getCalls)
	}
}

func TestCachedSessionRepository_UnknownToken(t *testing.T) {
	repo := NewCachedSessionRepository(newFakeSessionStore(), newFakeCache(), time.Minute, zerolog.Nop())

	if _, err := repo.GetByTokenHash(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCachedSessionRepository_CorruptEntryFallsThrough(t *testing.T) {
	store := newFakeSessionStore()
	cache := newFakeCache()
	seedSession(store, 1, 42, "hash-a")
	cache.entries[sessionCacheKey("hash-a")] = []byte("{not json")
	repo := NewCachedSessionRepository(store, cache, time.Minute, zerolog.Nop())

	session, err := repo.GetByTokenHash(context.Background(), "hash-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.UserID != 42 {
		t.Errorf("expected the store copy, got user ID %d", session.UserID)
	}
}

func TestCachedSessionRepository_CacheUnavailableFallsThrough(t *testing.T) {
	store := newFakeSessionStore()
	cache := newFakeCache()
	cache.getErr = ErrCacheUnavailable
	cache.setErr = ErrCacheUnavailable
	seedSession(store, 1, 42, "hash-a")
	repo := NewCachedSessionRepository(store, cache, time.Minute, zerolog.Nop())

	session, err := repo.GetByTokenHash(context.Background(), "hash-a")
	if err != nil {
		t.Fatalf("expected the store to serve despite a dead cache, got %v", err)
	}
	if session.UserID != 42 {
		t.Errorf("expected user ID 42, got %d", session.UserID)
	}
}

func TestCachedSessionRepository_DeleteInvalidatesCache(t *testing.T) {
	store := newFakeSessionStore()
	cache := newFakeCache()
	seedSession(store, 1, 42, "hash-a")
	repo := NewCachedSessionRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if _, err := repo.GetByTokenHash(ctx, "hash-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.entries[sessionCacheKey("hash-a")]; !ok {
		t.Fatal("expected the read to populate the cache")
	}

	if err := repo.DeleteByTokenHash(ctx, "hash-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.entries[sessionCacheKey("hash-a")]; ok {
		t.Error("expected the delete to invalidate the cache entry")
	}
	if _, err := repo.GetByTokenHash(ctx, "hash-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revocation, got %v", err)
	}
}

func TestCachedSessionRepository_DeleteByUserIDInvalidatesAll(t *testing.T) {
	store := newFakeSessionStore()
	cache := newFakeCache()
	seedSession(store, 1, 42, "hash-a")
	seedSession(store, 2, 42, "hash-b")
	seedSession(store, 3, 7, "hash-other")
	repo := NewCachedSessionRepository(store, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for _, hash := range []string{"hash-a", "hash-b", "hash-other"} {
		if _, err := repo.GetByTokenHash(ctx, hash); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	n, err := repo.DeleteByUserID(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 sessions revoked, got %d", n)
	}

	for _, hash := range []string{"hash-a", "hash-b"} {
		if _, ok := cache.entries[sessionCacheKey(hash)]; ok {
			t.Errorf("expected cache entry for %s to be invalidated", hash)
		}
	}
	if _, ok := cache.entries[sessionCacheKey("hash-other")]; !ok {
		t.Error("expected the other user's cache entry to survive")
	}
}
