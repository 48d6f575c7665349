package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
)

// DefaultSessionCacheTTL bounds how long a cached session may outlive
// its row. Revocation deletes the cache entry first, so the TTL only
// matters when cache invalidation fails.
const DefaultSessionCacheTTL = 5 * time.Minute

// cachedSessionRepository decorates a SessionRepository with a cache on
// the token-hash lookup path, which is hit on every request carrying an
// opaque session token.
type cachedSessionRepository struct {
	inner  SessionRepository
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedSessionRepository wraps repo with a cache for GetByTokenHash.
// A zero ttl falls back to DefaultSessionCacheTTL.
func NewCachedSessionRepository(repo SessionRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionCacheTTL
	}
	return &cachedSessionRepository{
		inner:  repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("repository", "session_cache").Logger(),
	}
}

var _ SessionRepository = (*cachedSessionRepository)(nil)

func sessionCacheKey(tokenHash string) string {
	return "session:" + tokenHash
}

func (r *cachedSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	return r.inner.Create(ctx, session)
}

func (r *cachedSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	key := sessionCacheKey(tokenHash)

	if data, err := r.cache.Get(ctx, key); err == nil {
		var session domain.Session
		if err := json.Unmarshal(data, &session); err == nil {
			return &session, nil
		}
		r.logger.Warn().Str("key", key).Msg("corrupt cache entry, falling through to store")
	} else if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn().Err(err).Msg("cache read failed, falling through to store")
	}

	session, err := r.inner.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(session); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn().Err(err).Msg("cache write failed")
		}
	}

	return session, nil
}

func (r *cachedSessionRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.Session, error) {
	return r.inner.ListByUserID(ctx, userID)
}

func (r *cachedSessionRepository) ExtendExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	// The cached copy keeps the old expiry until its TTL lapses, which
	// only shortens how long the extension takes to be visible.
	return r.inner.ExtendExpiry(ctx, id, expiresAt)
}

// DeleteByTokenHash drops the cache entry before the row so a revoked
// session cannot be served from cache after the delete succeeds.
func (r *cachedSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if err := r.cache.Delete(ctx, sessionCacheKey(tokenHash)); err != nil {
		r.logger.Warn().Err(err).Msg("cache invalidation failed")
	}
	return r.inner.DeleteByTokenHash(ctx, tokenHash)
}

func (r *cachedSessionRepository) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	sessions, err := r.inner.ListByUserID(ctx, userID)
	if err == nil {
		for _, s := range sessions {
			if err := r.cache.Delete(ctx, sessionCacheKey(s.TokenHash)); err != nil {
				r.logger.Warn().Err(err).Msg("cache invalidation failed")
			}
		}
	}
	return r.inner.DeleteByUserID(ctx, userID)
}

func (r *cachedSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	// Expired entries fail the expiry check on read, so stale cache
	// copies are harmless here.
	return r.inner.DeleteExpired(ctx)
}
