// Package main is the entry point for the Meridian users service, the
// account, credential and preference backend behind the API gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/cache/memory"
	redcache "github.com/prn-tf/meridian-users/internal/cache/redis"
	"github.com/prn-tf/meridian-users/internal/config"
	"github.com/prn-tf/meridian-users/internal/handler"
	"github.com/prn-tf/meridian-users/internal/metrics"
	"github.com/prn-tf/meridian-users/internal/middleware"
	"github.com/prn-tf/meridian-users/internal/repository"
	"github.com/prn-tf/meridian-users/internal/repository/postgres"
	"github.com/prn-tf/meridian-users/internal/repository/sqlite"
	"github.com/prn-tf/meridian-users/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("environment", cfg.Server.Environment).
		Msg("starting Meridian users service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}

	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	repos, db, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Cache: Redis for multi-node deployments, in-process otherwise.
	var cache repository.Cache
	if cfg.Redis.Enabled {
		redisCache, err := redcache.NewCache(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisCache.Close()
		cache = redisCache
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()
		cache = memCache
	}
	repos.Session = repository.NewCachedSessionRepository(repos.Session, cache, 0, logger)

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	issuer := auth.NewSessionTokenIssuer()

	// A weak signing key is a fatal startup error.
	tokens, err := auth.NewTokenManager(
		[]byte(cfg.Auth.SigningKey),
		cfg.Auth.Issuer,
		cfg.Auth.Audience,
		cfg.Auth.TokenExpiry(),
	)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	verifier := auth.NewChainVerifier(
		auth.NewJWTVerifier(tokens),
		auth.NewSessionVerifier(issuer, repos.Session, repos.User),
	)

	var collector *metrics.Collector
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(registry)
	}

	authService := service.NewAuthService(repos.User, repos.Session, hasher, tokens, issuer, cfg.Auth.SessionExpiry(), collector, logger)
	userService := service.NewUserService(repos.User, repos.Preference, repos.Session, hasher, logger)
	prefService := service.NewPreferenceService(repos.Preference, repos.User, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, logger)
	defer rateLimiter.Stop()

	gateway := auth.DefaultGatewayConfig(cfg.Auth.GatewaySecret)
	gateway.TestMode = cfg.Server.IsTestEnvironment()

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:       handler.NewAuthHandler(authService, userService, collector, logger),
		UserHandler:       handler.NewUserHandler(userService, authService, collector, logger),
		PreferenceHandler: handler.NewPreferenceHandler(prefService, logger),
		HealthHandler:     handler.NewHealthHandler(db, logger),
		Gateway:           gateway,
		Verifier:          verifier,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		Logger:            logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler(registry))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Str("path", cfg.Metrics.Path).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	// Periodic purge of expired sessions.
	purgeCtx, cancelPurge := context.WithCancel(ctx)
	defer cancelPurge()
	go purgeLoop(purgeCtx, authService, logger)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}

	return nil
}

// buildRepositories connects to the configured database backend and
// constructs the repository set.
func buildRepositories(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Repositories, repository.DatabaseHealth, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return &repository.Repositories{
			User:       postgres.NewUserRepository(db),
			Session:    postgres.NewSessionRepository(db),
			Preference: postgres.NewPreferenceRepository(db),
		}, closableDB{db}, nil

	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		// Embedded deployments migrate on startup.
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		return &repository.Repositories{
			User:       sqlite.NewUserRepository(db, logger),
			Session:    sqlite.NewSessionRepository(db, logger),
			Preference: sqlite.NewPreferenceRepository(db, logger),
		}, closableDB{db}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// closableDB joins the health-check and close surfaces of both drivers.
type closableDB struct {
	db interface {
		Ping(ctx context.Context) error
		Close() error
	}
}

func (c closableDB) Ping(ctx context.Context) error { return c.db.Ping(ctx) }
func (c closableDB) Close() error                   { return c.db.Close() }

// purgeLoop removes expired sessions once an hour.
func purgeLoop(ctx context.Context, authService *service.AuthService, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := authService.PurgeExpired(ctx); err != nil {
				logger.Error().Err(err).Msg("session purge failed")
			}
		}
	}
}

// setupLogger configures the process logger from configuration.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}
