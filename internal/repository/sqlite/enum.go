package sqlite

import (
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
)

// parseRoleOrDefault maps a stored role string to a domain role, falling back
// to the least privileged role when the stored value is unknown.
func parseRoleOrDefault(raw string, logger zerolog.Logger) domain.Role {
	role, err := domain.ParseRole(raw)
	if err != nil {
		logger.Warn().Str("role", raw).Msg("unknown role in database, defaulting to user")
		return domain.RoleUser
	}
	return role
}

// parseStatusOrDefault maps a stored status string to a domain status, falling
// back to inactive when the stored value is unknown.
func parseStatusOrDefault(raw string, logger zerolog.Logger) domain.Status {
	status, err := domain.ParseStatus(raw)
	if err != nil {
		logger.Warn().Str("status", raw).Msg("unknown status in database, defaulting to inactive")
		return domain.StatusInactive
	}
	return status
}
