package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/config"
	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/middleware"
	"github.com/prn-tf/meridian-users/internal/repository"
	"github.com/prn-tf/meridian-users/internal/service"
)

// memStore is an in-memory implementation of all three repositories,
// backing the router tests without a database.
type memStore struct {
	users      map[int64]*domain.User
	sessions   map[string]*domain.Session
	prefs      map[int64]*domain.Preference
	nextUserID int64
	nextSessID int64
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[int64]*domain.User),
		sessions:   make(map[string]*domain.Session),
		prefs:      make(map[int64]*domain.Preference),
		nextUserID: 1,
		nextSessID: 1,
	}
}

func (s *memStore) Create(ctx context.Context, user *domain.User) error {
	for _, u := range s.users {
		if u.Nickname == user.Nickname || u.Email == user.Email {
			return fmt.Errorf("%w: duplicate", domain.ErrUserAlreadyExists)
		}
	}
	user.ID = s.nextUserID
	s.nextUserID++
	s.users[user.ID] = user
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) GetByNickname(ctx context.Context, nickname string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Nickname == nickname {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) Update(ctx context.Context, user *domain.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	result := &repository.ListResult[domain.User]{Total: int64(len(s.users))}
	for _, u := range s.users {
		result.Items = append(result.Items, u)
	}
	return result, nil
}

func (s *memStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	return err == nil, nil
}

func (s *memStore) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	_, err := s.GetByNickname(ctx, nickname)
	return err == nil, nil
}

// sessionStore adapts memStore to repository.SessionRepository; the user
// methods above already claim the Create/Delete names.
type sessionStore struct{ *memStore }

func (s sessionStore) Create(ctx context.Context, session *domain.Session) error {
	if _, ok := s.sessions[session.TokenHash]; ok {
		return domain.ErrSessionTokenTaken
	}
	session.ID = s.nextSessID
	s.memStore.nextSessID++
	s.sessions[session.TokenHash] = session
	return nil
}

func (s sessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	if session, ok := s.sessions[tokenHash]; ok {
		return session, nil
	}
	return nil, repository.ErrNotFound
}

func (s sessionStore) ListByUserID(ctx context.Context, userID int64) ([]*domain.Session, error) {
	var out []*domain.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s sessionStore) ExtendExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	for _, session := range s.sessions {
		if session.ID == id {
			session.ExpiresAt = &expiresAt
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s sessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if _, ok := s.sessions[tokenHash]; !ok {
		return repository.ErrNotFound
	}
	delete(s.sessions, tokenHash)
	return nil
}

func (s sessionStore) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for hash, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (s sessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for hash, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

type prefStore struct{ *memStore }

func (s prefStore) GetByUserID(ctx context.Context, userID int64) (*domain.Preference, error) {
	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (s prefStore) Upsert(ctx context.Context, pref *domain.Preference) error {
	s.prefs[pref.UserID] = pref
	return nil
}

func (s prefStore) DeleteByUserID(ctx context.Context, userID int64) error {
	delete(s.prefs, userID)
	return nil
}

type okChecker struct{}

func (okChecker) Ping(ctx context.Context) error { return nil }

// newTestServer wires the full handler stack against in-memory stores.
// The returned store allows direct seeding and inspection.
func newTestServer(t *testing.T, gateway auth.GatewayConfig) (http.Handler, *memStore) {
	return newTestServerWith(t, gateway, 0, nil)
}

func newTestServerWith(t *testing.T, gateway auth.GatewayConfig, sessionExpiry time.Duration, limiter *middleware.RateLimiter) (http.Handler, *memStore) {
	t.Helper()

	store := newMemStore()
	sessions := sessionStore{store}
	prefs := prefStore{store}
	logger := zerolog.Nop()
	hasher := auth.NewPasswordHasher(4)

	tokens, err := auth.NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), "meridian-users", "meridian-api", time.Hour)
	if err != nil {
		t.Fatalf("failed to create token manager: %v", err)
	}
	issuer := auth.NewSessionTokenIssuer()
	verifier := auth.NewChainVerifier(
		auth.NewJWTVerifier(tokens),
		auth.NewSessionVerifier(issuer, sessions, store),
	)

	userService := service.NewUserService(store, prefs, sessions, hasher, logger)
	authService := service.NewAuthService(store, sessions, hasher, tokens, issuer, sessionExpiry, nil, logger)
	prefService := service.NewPreferenceService(prefs, store, logger)

	router := NewRouter(RouterConfig{
		AuthHandler:       NewAuthHandler(authService, userService, nil, logger),
		UserHandler:       NewUserHandler(userService, authService, nil, logger),
		PreferenceHandler: NewPreferenceHandler(prefService, logger),
		HealthHandler:     NewHealthHandler(okChecker{}, logger),
		Gateway:           gateway,
		Verifier:          verifier,
		RateLimiter:       limiter,
		Logger:            logger,
	})
	return router.Handler(), store
}

func testModeGateway() auth.GatewayConfig {
	cfg := auth.DefaultGatewayConfig("")
	cfg.TestMode = true
	return cfg
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestRouter_RegisterLoginMe(t *testing.T) {
	handler, _ := newTestServer(t, testModeGateway())

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"nickname": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var registered userResponse
	decodeBody(t, rec, &registered)
	if registered.Nickname != "alice" || registered.Role != "user" || registered.Status != "active" {
		t.Errorf("unexpected registration response: %+v", registered)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login":    "alice@example.com",
		"password": "password123",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var login loginResponse
	decodeBody(t, rec, &login)
	if login.Token == "" {
		t.Fatal("expected a token in the login response")
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/auth/me", nil, map[string]string{
		auth.AuthorizationHeader: auth.BearerPrefix + login.Token,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var me userResponse
	decodeBody(t, rec, &me)
	if me.ID != registered.ID {
		t.Errorf("expected user %d, got %d", registered.ID, me.ID)
	}
}

func TestRouter_LoginFailures(t *testing.T) {
	handler, _ := newTestServer(t, testModeGateway())

	doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"nickname": "alice", "email": "alice@example.com", "password": "password123",
	}, nil)

	tests := []struct {
		name  string
		login string
		pass  string
	}{
		{name: "wrong password", login: "alice@example.com", pass: "wrong"},
		{name: "unknown user", login: "nobody@example.com", pass: "password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", map[string]string{
				"login": tt.login, "password": tt.pass,
			}, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}

			var body APIError
			decodeBody(t, rec, &body)
			if body.Code != "invalid_credentials" {
				t.Errorf("expected code invalid_credentials, got %q", body.Code)
			}
		})
	}
}

func TestRouter_SessionLifecycle(t *testing.T) {
	handler, store := newTestServer(t, testModeGateway())

	doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"nickname": "alice", "email": "alice@example.com", "password": "password123",
	}, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/sessions", map[string]string{
		"login": "alice", "password": "password123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var session sessionResponse
	decodeBody(t, rec, &session)
	if session.Token == "" {
		t.Fatal("expected an opaque token")
	}
	if _, stored := store.sessions[session.Token]; stored {
		t.Error("the raw token must not be the storage key")
	}

	authHeader := map[string]string{auth.AuthorizationHeader: auth.BearerPrefix + session.Token}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/auth/me", nil, authHeader)
	if rec.Code != http.StatusOK {
		t.Fatalf("me with session token: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/auth/sessions", nil, authHeader)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}

	// The revoked token no longer authenticates.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/auth/me", nil, authHeader)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout: expected 401, got %d", rec.Code)
	}
}

func TestRouter_SessionRefresh(t *testing.T) {
	handler, _ := newTestServerWith(t, testModeGateway(), 30*time.Minute, nil)

	doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"nickname": "alice", "email": "alice@example.com", "password": "password123",
	}, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/sessions", map[string]string{
		"login": "alice", "password": "password123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var session sessionResponse
	decodeBody(t, rec, &session)
	if session.ExpiresAt == nil {
		t.Fatal("expected an expiring session")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/sessions/refresh", nil, map[string]string{
		auth.AuthorizationHeader: auth.BearerPrefix + session.Token,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var refreshed struct {
		ExpiresAt *time.Time `json:"expires_at"`
	}
	decodeBody(t, rec, &refreshed)
	if refreshed.ExpiresAt == nil || refreshed.ExpiresAt.Before(*session.ExpiresAt) {
		t.Errorf("expected expiry slid past %v, got %v", session.ExpiresAt, refreshed.ExpiresAt)
	}
}

func TestRouter_SessionRefreshWithJWT(t *testing.T) {
	handler, _ := newTestServerWith(t, testModeGateway(), 30*time.Minute, nil)

	doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"nickname": "alice", "email": "alice@example.com", "password": "password123",
	}, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "alice", "password": "password123",
	}, nil)
	var login loginResponse
	decodeBody(t, rec, &login)

	// A JWT has no session row to extend.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/sessions/refresh", nil, map[string]string{
		auth.AuthorizationHeader: auth.BearerPrefix + login.Token,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a JWT refresh, got %d", rec.Code)
	}
}

func TestRouter_RateLimitKeyedByAuthenticatedUser(t *testing.T) {
	limiter := middleware.NewRateLimiter(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.5,
		BurstSize:         1,
	}, zerolog.Nop())
	t.Cleanup(limiter.Stop)

	handler, store := newTestServerWith(t, testModeGateway(), 0, limiter)

	// Three users behind one address each get their own bucket, so none
	// of them is throttled by the others.
	var firstUser map[string]string
	for i := 1; i <= 3; i++ {
		user := domain.NewUser(fmt.Sprintf("user%d", i), fmt.Sprintf("user%d@example.com", i), "hash")
		if err := store.Create(context.Background(), user); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
		headers := map[string]string{
			auth.UserIDHeader:   strconv.FormatInt(user.ID, 10),
			auth.UserRoleHeader: "user",
		}
		if firstUser == nil {
			firstUser = headers
		}

		rec := doJSON(t, handler, http.MethodGet, "/api/v1/auth/me", nil, headers)
		if rec.Code != http.StatusOK {
			t.Fatalf("user %d: expected 200, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	if n := limiter.LimiterCount(); n != 3 {
		t.Errorf("expected 3 tracked clients, got %d", n)
	}

	// A second request from the same user exhausts that user's bucket.
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/auth/me", nil, firstUser)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 on a repeat from the same user, got %d", rec.Code)
	}
}

func TestRouter_LogoutWithJWT(t *testing.T) {
	handler, _ := newTestServer(t, testModeGateway())

	doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"nickname": "alice", "email": "alice@example.com", "password": "password123",
	}, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "alice", "password": "password123",
	}, nil)
	var login loginResponse
	decodeBody(t, rec, &login)

	// A JWT has no server-side session to revoke.
	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/auth/sessions", nil, map[string]string{
		auth.AuthorizationHeader: auth.BearerPrefix + login.Token,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a JWT logout, got %d", rec.Code)
	}
}

func TestRouter_GatewayEnforced(t *testing.T) {
	handler, _ := newTestServer(t, auth.DefaultGatewayConfig("shhh"))

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"login": "alice", "password": "password123",
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without the gateway secret, got %d", rec.Code)
	}

	// Health stays reachable for probes.
	rec = doJSON(t, handler, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected /health to bypass the gate, got %d", rec.Code)
	}
}

func TestRouter_AdminOnlyRoutes(t *testing.T) {
	handler, store := newTestServer(t, testModeGateway())

	user := domain.NewUser("bob", "bob@example.com", "hash")
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	asUser := map[string]string{
		auth.UserIDHeader:   strconv.FormatInt(user.ID, 10),
		auth.UserRoleHeader: "user",
	}
	asAdmin := map[string]string{
		auth.UserIDHeader:   "999",
		auth.UserRoleHeader: "admin",
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/users/", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list: expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users/", nil, asUser)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin list: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users/", nil, asAdmin)
	if rec.Code != http.StatusOK {
		t.Errorf("admin list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/v1/users/%d/status", user.ID), map[string]string{
		"status": "blocked",
	}, asAdmin)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set status: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.users[user.ID].Status != domain.StatusBlocked {
		t.Errorf("expected user to be blocked, got %q", store.users[user.ID].Status)
	}
}

func TestRouter_SelfOrAdminOnUserResources(t *testing.T) {
	handler, store := newTestServer(t, testModeGateway())

	alice := domain.NewUser("alice", "alice@example.com", "hash")
	bob := domain.NewUser("bob", "bob@example.com", "hash")
	for _, u := range []*domain.User{alice, bob} {
		if err := store.Create(context.Background(), u); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	asAlice := map[string]string{
		auth.UserIDHeader:   strconv.FormatInt(alice.ID, 10),
		auth.UserRoleHeader: "user",
	}

	rec := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", alice.ID), nil, asAlice)
	if rec.Code != http.StatusOK {
		t.Errorf("self get: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", bob.ID), nil, asAlice)
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-user get: expected 403, got %d", rec.Code)
	}
}

func TestRouter_Preferences(t *testing.T) {
	handler, store := newTestServer(t, testModeGateway())

	user := domain.NewUser("alice", "alice@example.com", "hash")
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	asAlice := map[string]string{
		auth.UserIDHeader:   strconv.FormatInt(user.ID, 10),
		auth.UserRoleHeader: "user",
	}
	prefPath := fmt.Sprintf("/api/v1/users/%d/preferences", user.ID)

	rec := doJSON(t, handler, http.MethodGet, prefPath, nil, asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("get defaults: expected 200, got %d", rec.Code)
	}
	var pref preferenceResponse
	decodeBody(t, rec, &pref)
	if pref.Theme != "light" || pref.FontScale != 1.0 {
		t.Errorf("expected default preferences, got %+v", pref)
	}

	rec = doJSON(t, handler, http.MethodPut, prefPath, map[string]interface{}{
		"theme":      "dark",
		"font_scale": 1.5,
	}, asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &pref)
	if pref.Theme != "dark" || pref.FontScale != 1.5 {
		t.Errorf("unexpected updated preferences: %+v", pref)
	}

	rec = doJSON(t, handler, http.MethodPut, prefPath, map[string]interface{}{
		"theme": "sepia",
	}, asAlice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid theme: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, prefPath, nil, asAlice)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", rec.Code)
	}
	decodeBody(t, rec, &pref)
	if pref.Theme != "light" {
		t.Errorf("expected defaults after reset, got %+v", pref)
	}
}
