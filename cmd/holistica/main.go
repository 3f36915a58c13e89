package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "holistica",
		Usage: "Holística API and operator tools",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP API",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServer(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMigrations()
				},
			},
			{
				Name:  "issue-token",
				Usage: "Sign an access token with the configured secret",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "id",
						Required: true,
						Usage:    "Subject id carried in the token",
					},
					&cli.StringFlag{
						Name:  "role",
						Value: "student",
						Usage: "Role name (admin, student, instructor) or number",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runIssueToken(os.Stdout, cmd.Int64("id"), cmd.String("role"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
