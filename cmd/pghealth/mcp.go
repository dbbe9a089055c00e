package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/mcpserver"
	"github.com/ppiankov/pghealth/pkg/config"
)

// NewMCPCmd creates the mcp command
func NewMCPCmd() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve checks, recommendations and fixes as MCP tools over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout so that AI assistants
can inspect the database.

Tools:
  pghealth_check    run every health check
  pghealth_suggest  recommendations grouped by priority
  pghealth_fix      preview or apply fixes (dry run unless execute=true)

Logs go to stderr; stdout carries only protocol messages.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig()
			if err != nil {
				return err
			}
			if cfg.FixConcurrency < 1 {
				return invalidArg("invalid fix concurrency in config: must be at least 1")
			}
			if cfg.FixRate < 0 {
				return invalidArg("invalid fix rate in config: must be zero or positive")
			}
			return cfg.RequireDSN()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context(), cmd, cfg)
		},
	}

	return cmd
}

func runMCP(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(cmd.ErrOrStderr()).Level(level).With().Timestamp().Logger()

	svc := newService(cmd, cfg)
	return mcpserver.Run(ctx, mcpserver.Dependencies{
		Inspector: svc,
		Advisor:   svc,
		Fixer:     svc,
		Logger:    logger,
	}, version)
}
