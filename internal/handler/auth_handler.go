// Package handler provides HTTP handlers for the users service API.
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/metrics"
	"github.com/prn-tf/meridian-users/internal/service"
)

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
	metrics     *metrics.Collector
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. collector may be nil.
func NewAuthHandler(authService *service.AuthService, userService *service.UserService, collector *metrics.Collector, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		metrics:     collector,
		logger:      logger.With().Str("handler", "auth").Logger(),
	}
}

// userResponse is the public view of a user account.
type userResponse struct {
	ID             int64      `json:"id"`
	Nickname       string     `json:"nickname"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	EmailConfirmed bool       `json:"email_confirmed"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	RegisteredAt   time.Time  `json:"registered_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Nickname:       u.Nickname,
		Email:          u.Email,
		Role:           string(u.Role),
		Status:         string(u.Status),
		EmailConfirmed: u.EmailConfirmed,
		LastLoginAt:    u.LastLoginAt,
		RegisteredAt:   u.RegisteredAt,
	}
}

type registerRequest struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	out, err := h.userService.Register(r.Context(), service.RegisterInput{
		Nickname: strings.TrimSpace(req.Nickname),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRegistration()
	}

	writeJSON(w, http.StatusCreated, toUserResponse(out.User))
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

// Login handles POST /api/v1/auth/login and issues a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	out, err := h.authService.Login(r.Context(), service.LoginInput{
		Login:    strings.TrimSpace(req.Login),
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     out.Token,
		ExpiresAt: out.ExpiresAt,
		User:      toUserResponse(out.User),
	})
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	User      userResponse `json:"user"`
}

// CreateSession handles POST /api/v1/auth/sessions and issues an opaque
// session token for legacy clients.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	out, err := h.authService.LoginSession(r.Context(), service.LoginInput{
		Login:    strings.TrimSpace(req.Login),
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:     out.Token,
		ExpiresAt: out.ExpiresAt,
		User:      toUserResponse(out.User),
	})
}

type refreshSessionResponse struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RefreshSession handles POST /api/v1/auth/sessions/refresh. It slides
// the expiry of the opaque session presented in the Authorization
// header. Non-expiring sessions come back unchanged; JWTs have no
// session row and report not found.
func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	rawToken, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	expiresAt, err := h.authService.RefreshSession(r.Context(), rawToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshSessionResponse{ExpiresAt: expiresAt})
}

// DeleteSession handles DELETE /api/v1/auth/sessions. It revokes the
// opaque session token presented in the Authorization header. JWTs have
// no server-side state and cannot be revoked here.
func (h *AuthHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	rawToken, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	if err := h.authService.Logout(r.Context(), rawToken); err != nil {
		writeServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSessionsRevoked(1)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me. It returns the account of the caller
// established by the identity middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if !identity.IsAuthenticated() {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	user, err := h.userService.GetByID(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles PUT /api/v1/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if !identity.IsAuthenticated() {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	if err := h.userService.UpdatePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bearerToken extracts the raw bearer token from the request.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(auth.AuthorizationHeader)
	if header == "" || !strings.HasPrefix(header, auth.BearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, auth.BearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}
