package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/metrics"
	"github.com/prn-tf/meridian-users/internal/service"
)

// UserHandler handles user management endpoints.
type UserHandler struct {
	userService *service.UserService
	authService *service.AuthService
	metrics     *metrics.Collector
	logger      zerolog.Logger
}

// NewUserHandler creates a new UserHandler. collector may be nil.
func NewUserHandler(userService *service.UserService, authService *service.AuthService, collector *metrics.Collector, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		authService: authService,
		metrics:     collector,
		logger:      logger.With().Str("handler", "user").Logger(),
	}
}

type listUsersResponse struct {
	Users  []userResponse `json:"users"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// List handles GET /api/v1/users. Admin only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	out, err := h.userService.List(r.Context(), service.ListInput{Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	users := make([]userResponse, 0, len(out.Users))
	for _, u := range out.Users {
		users = append(users, toUserResponse(u))
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	writeJSON(w, http.StatusOK, listUsersResponse{
		Users:  users,
		Total:  out.Total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/v1/users/{id}. Users may fetch themselves;
// admins may fetch anyone.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if !authorizeSelfOrAdmin(w, r, userID) {
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PUT /api/v1/users/{id}/status. Admin only.
func (h *UserHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	if err := h.userService.SetStatus(r.Context(), userID, domain.Status(req.Status)); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /api/v1/users/{id}/role. Admin only.
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	if err := h.userService.SetRole(r.Context(), userID, domain.Role(req.Role)); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ConfirmEmail handles POST /api/v1/users/{id}/confirm-email. Admin only.
func (h *UserHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.userService.ConfirmEmail(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/users/{id}. Users may delete themselves;
// admins may delete anyone.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if !authorizeSelfOrAdmin(w, r, userID) {
		return
	}

	if err := h.userService.Delete(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevokeSessions handles DELETE /api/v1/users/{id}/sessions. Users may
// revoke their own sessions; admins may revoke anyone's.
func (h *UserHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if !authorizeSelfOrAdmin(w, r, userID) {
		return
	}

	revoked, err := h.authService.RevokeAll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSessionsRevoked(revoked)
	}

	writeJSON(w, http.StatusOK, map[string]int64{"revoked": revoked})
}

// pathUserID parses the {id} path parameter, writing a 400 on failure.
func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "user id must be a positive integer")
		return 0, false
	}
	return id, true
}

// authorizeSelfOrAdmin authorizes access to a user-scoped resource,
// writing the error response when access is denied.
func authorizeSelfOrAdmin(w http.ResponseWriter, r *http.Request, userID int64) bool {
	identity := auth.IdentityFromContext(r.Context())
	if !identity.IsAuthenticated() {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return false
	}
	if identity.UserID != userID && !identity.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden", "access denied")
		return false
	}
	return true
}
