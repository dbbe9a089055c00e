package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/pkg/config"
)

// loadConfig resolves settings from defaults, the config file, .env, the
// environment and finally the global flags, each layer overriding the last.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	fc, path, err := config.Load(configPath)
	switch {
	case err != nil && strings.TrimSpace(configPath) != "" && errors.Is(err, os.ErrNotExist):
		return nil, &NotFoundError{Err: err}
	case err != nil:
		slog.Warn("config file ignored", slog.String("error", err.Error()))
	case fc != nil:
		slog.Debug("config file loaded", slog.String("path", path))
		for _, w := range fc.ApplyTo(cfg) {
			slog.Warn("config value ignored", slog.String("path", path), slog.String("error", w.Error()))
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn(".env file ignored", slog.String("error", err.Error()))
	}
	for _, w := range config.ApplyEnv(cfg) {
		slog.Warn("environment value ignored", slog.String("error", w.Error()))
	}

	if dsn := strings.TrimSpace(dsnFlag); dsn != "" {
		cfg.DSN = dsn
	}
	cfg.NoColor = cfg.NoColor || noColor
	cfg.Verbose = verbose

	return cfg, nil
}

// connect opens a collector client for cfg.DSN.
func connect(ctx context.Context, cmd *cobra.Command, cfg *config.Config, maxConns int) (*collector.Client, error) {
	if err := cfg.RequireDSN(); err != nil {
		return nil, err
	}

	progress(cmd, "🔌 Connecting to %s...", collector.MaskDSN(cfg.DSN))
	client, err := collector.Open(ctx, collector.Options{
		DSN:            cfg.DSN,
		ConnectTimeout: cfg.ConnectTimeout,
		QueryTimeout:   cfg.QueryTimeout,
		MaxOpenConns:   maxConns,
	})
	if err != nil {
		if collector.IsAuthError(err) || collector.IsConnectionError(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &NetworkError{Err: err}
		}
		return nil, err
	}
	return client, nil
}

// progress prints an emoji-prefixed status line to stderr in verbose mode.
func progress(cmd *cobra.Command, format string, args ...any) {
	if !verbose {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
