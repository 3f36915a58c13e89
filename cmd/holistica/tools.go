package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"holistica/internal/domain"
	"holistica/internal/gateway/adapter/token"
	"holistica/internal/platform/config"
	"holistica/internal/platform/database"
)

func runMigrations() error {
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg.LogLevel))

	if cfg.Database.Driver == "memory" {
		return fmt.Errorf("DB_DRIVER=memory has no schema to migrate")
	}

	slog.Info("running database migrations", "driver", cfg.Database.Driver)
	if err := database.Migrate(cfg.Database.ConnectionString); err != nil {
		return err
	}
	slog.Info("migrations completed successfully")
	return nil
}

func runIssueToken(w io.Writer, id int64, roleName string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if id <= 0 {
		return fmt.Errorf("--id must be positive, got %d", id)
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return err
	}

	tok, exp, err := token.NewSigner(cfg.Auth.Secret, cfg.Auth.TokenTTL).Sign(domain.Claims{SubjectID: id, Role: role})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n# expires %s\n", tok, exp.UTC().Format(time.RFC3339))
	return err
}
