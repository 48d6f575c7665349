// Package main is the admin CLI for the Meridian users service.
// It provides operational commands for managing accounts and sessions
// directly against the database, bypassing the HTTP API.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/config"
	"github.com/prn-tf/meridian-users/internal/domain"
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Meridian Users Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		if err := runUser(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "sessions":
		if err := runSessions(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "keygen":
		key := make([]byte, auth.MinSigningKeyBytes)
		if _, err := rand.Read(key); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(base64.StdEncoding.EncodeToString(key))

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// runUser dispatches user subcommands.
func runUser(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("user subcommand required: create, promote, deactivate")
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("user create", flag.ExitOnError)
		configPath := fs.String("config", "", "path to configuration file")
		nickname := fs.String("nickname", "", "nickname for the new user")
		email := fs.String("email", "", "email for the new user")
		password := fs.String("password", "", "password for the new user")
		admin := fs.Bool("admin", false, "grant the admin role")
		fs.Parse(args[1:])

		return withServices(*configPath, func(ctx context.Context, users *service.UserService, _ *service.AuthService) error {
			role := domain.RoleUser
			if *admin {
				role = domain.RoleAdmin
			}
			out, err := users.Register(ctx, service.RegisterInput{
				Nickname: *nickname,
				Email:    *email,
				Password: *password,
				Role:     role,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created user %d (%s)\n", out.User.ID, out.User.Nickname)
			return nil
		})

	case "promote":
		fs := flag.NewFlagSet("user promote", flag.ExitOnError)
		configPath := fs.String("config", "", "path to configuration file")
		id := fs.Int64("id", 0, "user id to promote")
		fs.Parse(args[1:])

		return withServices(*configPath, func(ctx context.Context, users *service.UserService, _ *service.AuthService) error {
			if err := users.SetRole(ctx, *id, domain.RoleAdmin); err != nil {
				return err
			}
			fmt.Printf("User %d promoted to admin\n", *id)
			return nil
		})

	case "deactivate":
		fs := flag.NewFlagSet("user deactivate", flag.ExitOnError)
		configPath := fs.String("config", "", "path to configuration file")
		id := fs.Int64("id", 0, "user id to deactivate")
		fs.Parse(args[1:])

		return withServices(*configPath, func(ctx context.Context, users *service.UserService, _ *service.AuthService) error {
			if err := users.SetStatus(ctx, *id, domain.StatusInactive); err != nil {
				return err
			}
			fmt.Printf("User %d deactivated\n", *id)
			return nil
		})

	default:
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

// runSessions dispatches session subcommands.
func runSessions(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("sessions subcommand required: purge, revoke")
	}

	switch args[0] {
	case "purge":
		fs := flag.NewFlagSet("sessions purge", flag.ExitOnError)
		configPath := fs.String("config", "", "path to configuration file")
		fs.Parse(args[1:])

		return withServices(*configPath, func(ctx context.Context, _ *service.UserService, sessions *service.AuthService) error {
			purged, err := sessions.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Purged %d expired sessions\n", purged)
			return nil
		})

	case "revoke":
		fs := flag.NewFlagSet("sessions revoke", flag.ExitOnError)
		configPath := fs.String("config", "", "path to configuration file")
		id := fs.Int64("user-id", 0, "revoke all sessions for this user id")
		fs.Parse(args[1:])

		return withServices(*configPath, func(ctx context.Context, _ *service.UserService, sessions *service.AuthService) error {
			revoked, err := sessions.RevokeAll(ctx, *id)
			if err != nil {
				return err
			}
			fmt.Printf("Revoked %d sessions for user %d\n", revoked, *id)
			return nil
		})

	default:
		return fmt.Errorf("unknown sessions subcommand: %s", args[0])
	}
}

// withServices connects to the configured database and invokes fn with
// the wired services.
func withServices(configPath string, fn func(context.Context, *service.UserService, *service.AuthService) error) error {
	cfg := config.MustLoad(configPath)
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		repos *repository.Repositories
		done  func() error
	)

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		done = db.Close
		repos = &repository.Repositories{
			User:       postgres.NewUserRepository(db),
			Session:    postgres.NewSessionRepository(db),
			Preference: postgres.NewPreferenceRepository(db),
		}
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return err
		}
		done = db.Close
		repos = &repository.Repositories{
			User:       sqlite.NewUserRepository(db, logger),
			Session:    sqlite.NewSessionRepository(db, logger),
			Preference: sqlite.NewPreferenceRepository(db, logger),
		}
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	defer done()

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	issuer := auth.NewSessionTokenIssuer()

	tokens, err := auth.NewTokenManager(
		[]byte(cfg.Auth.SigningKey),
		cfg.Auth.Issuer,
		cfg.Auth.Audience,
		cfg.Auth.TokenExpiry(),
	)
	if err != nil {
		return err
	}

	users := service.NewUserService(repos.User, repos.Preference, repos.Session, hasher, logger)
	sessions := service.NewAuthService(repos.User, repos.Session, hasher, tokens, issuer, cfg.Auth.SessionExpiry(), nil, logger)

	return fn(ctx, users, sessions)
}

func printUsage() {
	fmt.Println(strings.TrimSpace(`
Meridian Users Admin CLI

Usage:
  meridian-admin <command> [arguments]

Commands:
  user        Manage users (create, promote, deactivate)
  sessions    Manage sessions (purge, revoke)
  keygen      Generate a JWT signing key
  version     Print version information
  help        Show this help message

Examples:
  meridian-admin user create --nickname admin --email admin@example.com --password secret123 --admin
  meridian-admin user promote --id 42
  meridian-admin sessions purge
  meridian-admin sessions revoke --user-id 42
  meridian-admin keygen

Use "meridian-admin <command> --help" for more information about a command.
`))
}
