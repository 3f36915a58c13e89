package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"holistica/internal/account"
	"holistica/internal/gateway"
	"holistica/internal/gateway/adapter/inmem"
	"holistica/internal/gateway/adapter/postgres"
	"holistica/internal/gateway/adapter/token"
	"holistica/internal/gateway/api"
	"holistica/internal/gateway/middleware"
	"holistica/internal/platform/config"
	"holistica/internal/platform/database"
	"holistica/internal/platform/server"
	"holistica/internal/platform/telemetry"
)

const limiterSweepInterval = 5 * time.Minute

func runServer(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("telemetry shutdown error", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics initialization: %w", err)
	}

	users, ready, closeStore, err := openUserStore(cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	signer := token.NewSigner(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	verifier := token.NewVerifier(cfg.Auth.Secret, token.WithLeeway(cfg.Auth.ClockSkew))

	accounts, err := account.NewService(users, signer)
	if err != nil {
		return err
	}

	ipLimiter := inmem.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Burst, time.Now)
	loginLimiter := inmem.NewRateLimiter(cfg.LoginLimit.Rate, cfg.LoginLimit.Burst, time.Now)
	go sweepLimiters(ctx, ipLimiter, loginLimiter)

	router := api.NewRouter(accounts, api.Options{
		LoginLimiter:   loginLimiter,
		Ready:          ready,
		Metrics:        metrics,
		MetricsHandler: telemetry.MetricsHandler(),
	})

	handler := middleware.Chain(
		router,
		middleware.Metrics(metrics, router),
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery,
		middleware.MaxBodySize(cfg.MaxBodyBytes),
		middleware.RateLimit(ipLimiter, "ip", metrics),
		middleware.Auth(gateway.NewGate(verifier), api.PublicPaths, metrics),
	)

	slog.Info("holistica starting",
		"addr", cfg.ServerAddr,
		"db_driver", cfg.Database.Driver,
		"token_ttl", cfg.Auth.TokenTTL.String(),
	)
	return server.New(cfg.ServerAddr, handler).Run(ctx)
}

// openUserStore returns the repository selected by DB_DRIVER, a readiness
// check and a close function.
func openUserStore(cfg config.DatabaseConfig) (account.UserRepository, func(context.Context) error, func(), error) {
	switch cfg.Driver {
	case "memory":
		slog.Warn("using in-memory user store; accounts are lost on restart")
		return inmem.NewUserRepository(time.Now), nil, func() {}, nil
	case "postgres", "pgx":
		db, err := database.Connect(database.Config{
			Driver:             cfg.Driver,
			ConnectionString:   cfg.ConnectionString,
			MaxOpenConnections: cfg.MaxOpenConnections,
			MaxIdleConnections: cfg.MaxIdleConnections,
			ConnMaxLifetime:    cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				slog.Error("closing database", "error", err)
			}
		}
		return postgres.NewUserRepository(db), pinger(db), closeDB, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func pinger(db *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
}

func sweepLimiters(ctx context.Context, limiters ...*inmem.RateLimiter) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, l := range limiters {
				l.Cleanup()
			}
		}
	}
}
