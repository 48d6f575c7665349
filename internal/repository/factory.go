package repository

import (
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/config"
)

// Repositories holds all repository instances.
type Repositories struct {
	User       UserRepository
	Session    SessionRepository
	Preference PreferenceRepository
}

// Factory describes the configured database backend. The concrete
// repositories are built in the driver packages; command wiring selects
// the package based on Driver.
type Factory struct {
	cfg    config.DatabaseConfig
	logger zerolog.Logger
}

// NewFactory creates a new repository factory.
func NewFactory(cfg config.DatabaseConfig, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// Driver returns the configured database driver.
func (f *Factory) Driver() string {
	return f.cfg.Driver
}

// IsEmbedded returns true if using an embedded database.
func (f *Factory) IsEmbedded() bool {
	return f.cfg.IsEmbedded()
}
