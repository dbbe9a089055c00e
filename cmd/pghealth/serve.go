package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/app"
	"github.com/ppiankov/pghealth/internal/history"
	"github.com/ppiankov/pghealth/internal/server"
	"github.com/ppiankov/pghealth/pkg/config"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var addr string
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports, recommendations and history over HTTP",
		Long: `Start an HTTP API. Every request to /api/v1/report or
/api/v1/recommendations runs a fresh inspection against the database.

Endpoints:
  GET /healthz
  GET /api/v1/report
  GET /api/v1/recommendations
  GET /api/v1/history?database=&days=&limit=
  GET /api/v1/history/{database}/metrics
  GET /api/v1/history/{database}/metrics/{metric}?days=`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ServerAddr = addr
			}
			if cfg.ServerAddr == "" {
				return invalidArg("invalid --addr value: must not be empty")
			}
			return cfg.RequireDSN()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "Listen address")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(cmd.ErrOrStderr()).Level(level).With().Timestamp().Logger()

	deps := server.Dependencies{
		Inspector: newService(cmd, cfg),
		Advisor:   newService(cmd, cfg),
		Logger:    logger,
	}

	path, err := app.HistoryPath(cfg.DataDir)
	if err != nil {
		slog.Warn("history routes disabled", slog.String("error", err.Error()))
	} else {
		deps.History = history.NewFile(path, 0)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "🌐 Serving pghealth API at %s (Ctrl+C to stop)\n", cfg.ServerAddr)
	return server.NewWebAPI(server.Config{
		Addr:         cfg.ServerAddr,
		Dependencies: deps,
	}).Start(ctx)
}
