package postgres

import (
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
)

// Stored enum values predate the strict parsers, so read paths tolerate
// unknown strings: role falls back to least privilege, status to a state
// that cannot authenticate. Write paths reject unknown values outright.

func parseRoleOrDefault(logger zerolog.Logger, s string) domain.Role {
	role, err := domain.ParseRole(s)
	if err != nil {
		logger.Warn().Str("role", s).Msg("unknown role in store, treating as user")
		return domain.RoleUser
	}
	return role
}

func parseStatusOrDefault(logger zerolog.Logger, s string) domain.Status {
	status, err := domain.ParseStatus(s)
	if err != nil {
		logger.Warn().Str("status", s).Msg("unknown status in store, treating as inactive")
		return domain.StatusInactive
	}
	return status
}
