// Package cli provides common initialization shared by cmd/cassa and
// cmd/cassa-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"cassa/internal/auth"
	"cassa/internal/config"
	"cassa/internal/core"
	"cassa/internal/log"
	"cassa/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	if format == "json" {
		cfg.Format = "json"
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the database, seeds the default categories and makes
// sure the bootstrap admin exists. Exits the process on failure.
func InitSQLite(ctx context.Context, logger *log.Logger, cfg *config.Config) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	n, err := repo.SeedCategories(ctx)
	if err != nil {
		logger.Error("Failed to seed categories", "error", err)
		os.Exit(1)
	}
	if n > 0 {
		logger.Info("Seeded default categories", "count", n)
	}

	if err := EnsureBootstrapAdmin(ctx, repo, cfg); err != nil {
		logger.Error("Failed to create bootstrap admin", "error", err)
		os.Exit(1)
	}
	return repo
}

// EnsureBootstrapAdmin creates the configured superadmin on first start.
// It does nothing when no bootstrap email is configured.
func EnsureBootstrapAdmin(ctx context.Context, repo *storage.SQLiteRepository, cfg *config.Config) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return errors.New("BOOTSTRAP_ADMIN_PASSWORD is required with BOOTSTRAP_ADMIN_EMAIL")
	}
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	u, created, err := repo.EnsureUser(ctx, core.User{
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		Role:         core.RoleSuperAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("ensure bootstrap admin: %w", err)
	}
	if created {
		slog.InfoContext(ctx, "Bootstrap admin created", "id", u.ID, "email", u.Email)
	}
	return nil
}

// Origin names this process on the signal bus, e.g. "cassa-3f2a9c1e".
// Every start gets a fresh one so restarted processes never mistake
// their own old events for remote ones.
func Origin(binary string) string {
	return binary + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// cleanup func runs with a context bounded by timeout before the returned
// context is cancelled.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
