package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/service"
)

// PreferenceHandler handles accessibility preference endpoints.
type PreferenceHandler struct {
	prefService *service.PreferenceService
	logger      zerolog.Logger
}

// NewPreferenceHandler creates a new PreferenceHandler.
func NewPreferenceHandler(prefService *service.PreferenceService, logger zerolog.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		prefService: prefService,
		logger:      logger.With().Str("handler", "preference").Logger(),
	}
}

type preferenceResponse struct {
	UserID        int64     `json:"user_id"`
	Theme         string    `json:"theme"`
	FontScale     float64   `json:"font_scale"`
	ReducedMotion bool      `json:"reduced_motion"`
	Language      string    `json:"language"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toPreferenceResponse(p *domain.Preference) preferenceResponse {
	return preferenceResponse{
		UserID:        p.UserID,
		Theme:         string(p.Theme),
		FontScale:     p.FontScale,
		ReducedMotion: p.ReducedMotion,
		Language:      p.Language,
		UpdatedAt:     p.UpdatedAt,
	}
}

// Get handles GET /api/v1/users/{id}/preferences.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if !authorizeSelfOrAdmin(w, r, userID) {
		return
	}

	pref, err := h.prefService.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferenceResponse(pref))
}

type updatePreferenceRequest struct {
	Theme         *string  `json:"theme"`
	FontScale     *float64 `json:"font_scale"`
	ReducedMotion *bool    `json:"reduced_motion"`
	Language      *string  `json:"language"`
}

// Update handles PUT /api/v1/users/{id}/preferences. Absent fields keep
// their current value.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if !authorizeSelfOrAdmin(w, r, userID) {
		return
	}

	var req updatePreferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	pref, err := h.prefService.Update(r.Context(), userID, service.UpdateInput{
		Theme:         req.Theme,
		FontScale:     req.FontScale,
		ReducedMotion: req.ReducedMotion,
		Language:      req.Language,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferenceResponse(pref))
}

// Reset handles DELETE /api/v1/users/{id}/preferences, restoring defaults.
func (h *PreferenceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if !authorizeSelfOrAdmin(w, r, userID) {
		return
	}

	pref, err := h.prefService.Reset(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferenceResponse(pref))
}
