// Package main is the database migration tool for the Meridian users
// service. It applies the embedded schema migrations for the configured
// backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/config"
	"github.com/prn-tf/meridian-users/internal/repository/postgres"
	"github.com/prn-tf/meridian-users/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Meridian Users Migrate\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return
	}

	cfg := config.MustLoad(*configPath)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := migrate(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	logger.Info().Msg("migrations complete")
}

func migrate(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)

	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)

	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
