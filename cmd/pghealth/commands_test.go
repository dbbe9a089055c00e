package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/pghealth/internal/fix"
	"github.com/ppiankov/pghealth/internal/severity"
	"github.com/ppiankov/pghealth/pkg/config"
)

// isolate runs the test in an empty directory with no config, .env or DSN in scope.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("DATABASE_URL", "")
	t.Setenv(config.EnvPrefix+"_DSN", "")
	t.Setenv(config.EnvPrefix+"_FORMAT", "")
	t.Setenv("PGHEALTH_DATA_DIR", filepath.Join(dir, "data"))

	prevConfig, prevDSN, prevNoColor := configPath, dsnFlag, noColor
	t.Cleanup(func() {
		configPath, dsnFlag, noColor = prevConfig, prevDSN, prevNoColor
	})
	configPath, dsnFlag, noColor = "", "", false

	return dir
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "degraded", err: &HealthError{Outcome: severity.Degraded, Count: 2}, want: ExitDegraded},
		{name: "failing", err: &HealthError{Outcome: severity.Failing, Count: 1}, want: ExitCritical},
		{name: "wrapped_health", err: fmt.Errorf("check: %w", &HealthError{Outcome: severity.Failing}), want: ExitCritical},
		{name: "invalid_arg", err: invalidArg("invalid --format value"), want: ExitInvalidArg},
		{name: "no_dsn", err: config.ErrNoDSN, want: ExitInvalidArg},
		{name: "unknown_category", err: fmt.Errorf("%w: %q", fix.ErrUnknownCategory, "reindex"), want: ExitInvalidArg},
		{name: "not_found", err: &NotFoundError{Err: errors.New("no history")}, want: ExitNotFound},
		{name: "missing_file", err: fmt.Errorf("open: %w", os.ErrNotExist), want: ExitNotFound},
		{name: "network", err: &NetworkError{Err: errors.New("timeout")}, want: ExitNetwork},
		{name: "refused_text", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), want: ExitNetwork},
		{name: "does_not_exist_text", err: errors.New(`relation "foo" does not exist`), want: ExitNotFound},
		{name: "other", err: errors.New("boom"), want: ExitInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != tc.want {
				t.Fatalf("classifyError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestHealthErrorMessage(t *testing.T) {
	err := &HealthError{Outcome: severity.Failing, Count: 3}
	if got := err.Error(); got != "database is critical: 3 issues detected" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestNewCheckCmdPreRunValidation(t *testing.T) {
	tests := []struct {
		name         string
		format       string
		queryTimeout string
		wantErr      string
	}{
		{name: "valid_text", format: "text", queryTimeout: "30s"},
		{name: "valid_json", format: "json", queryTimeout: "2m"},
		{name: "valid_sarif", format: "sarif", queryTimeout: "1h"},
		{name: "valid_days", format: "text", queryTimeout: "1d"},
		{name: "invalid_format", format: "yaml", queryTimeout: "30s", wantErr: "invalid --format value"},
		{name: "invalid_query_timeout", format: "text", queryTimeout: "bad", wantErr: "invalid --query-timeout duration"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)

			cmd := NewCheckCmd()
			if err := cmd.Flags().Set("format", tc.format); err != nil {
				t.Fatalf("failed to set format flag: %v", err)
			}
			if err := cmd.Flags().Set("query-timeout", tc.queryTimeout); err != nil {
				t.Fatalf("failed to set query-timeout flag: %v", err)
			}

			err := cmd.PreRunE(cmd, nil)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
			if got := classifyError(err); got != ExitInvalidArg {
				t.Fatalf("expected exit code %d, got %d", ExitInvalidArg, got)
			}
		})
	}
}

func TestNewCheckCmdHasAuditAlias(t *testing.T) {
	cmd := NewCheckCmd()
	for _, alias := range cmd.Aliases {
		if alias == "audit" {
			return
		}
	}
	t.Fatal("expected check command to include audit alias")
}

func TestNewCheckCmdAutoLoadsConfigFile(t *testing.T) {
	dir := isolate(t)

	content := "dsn: postgres://localhost:5432/app\nformat: yaml\n"
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFileYAML), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := NewCheckCmd()
	err := cmd.PreRunE(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid --format value") {
		t.Fatalf("expected format from auto-loaded config to be validated, got %v", err)
	}

	cmd = NewCheckCmd()
	if err := cmd.Flags().Set("format", "json"); err != nil {
		t.Fatalf("failed to set format flag: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected --format to override config file value, got %v", err)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := isolate(t)

	content := "dsn: postgres://from-file:5432/app\nretention: 30d\n"
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFileYAML), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PGHEALTH_RETENTION=14d\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("PGHEALTH_RETENTION") })

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.DSN != "postgres://from-file:5432/app" {
		t.Fatalf("expected DSN from config file, got %q", cfg.DSN)
	}
	if cfg.Retention != 14*24*time.Hour {
		t.Fatalf("expected .env retention to override file, got %s", cfg.Retention)
	}

	dsnFlag = "postgres://from-flag:5432/app"
	noColor = true
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.DSN != "postgres://from-flag:5432/app" {
		t.Fatalf("expected --dsn to win, got %q", cfg.DSN)
	}
	if !cfg.NoColor {
		t.Fatal("expected --no-color to be applied")
	}
}

func TestLoadConfigMissingExplicitPath(t *testing.T) {
	dir := isolate(t)
	configPath = filepath.Join(dir, "missing.yaml")

	_, err := loadConfig()
	if err == nil {
		t.Fatal("expected error for missing --config path")
	}
	if got := classifyError(err); got != ExitNotFound {
		t.Fatalf("expected exit code %d, got %d (%v)", ExitNotFound, got, err)
	}
}

func TestRunCheckRequiresDSN(t *testing.T) {
	isolate(t)

	cmd := NewCheckCmd()
	cmd.SetContext(context.Background())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("PreRunE failed: %v", err)
	}
	err := cmd.RunE(cmd, nil)
	if !errors.Is(err, config.ErrNoDSN) {
		t.Fatalf("expected ErrNoDSN, got %v", err)
	}
	if got := classifyError(err); got != ExitInvalidArg {
		t.Fatalf("expected exit code %d, got %d", ExitInvalidArg, got)
	}
}

func TestNewSuggestCmdPreRunValidation(t *testing.T) {
	isolate(t)

	cmd := NewSuggestCmd()
	if err := cmd.Flags().Set("format", "sarif"); err != nil {
		t.Fatalf("failed to set format flag: %v", err)
	}
	err := cmd.PreRunE(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid --format value") {
		t.Fatalf("expected sarif to be rejected for suggest, got %v", err)
	}

	cmd = NewSuggestCmd()
	if err := cmd.Flags().Set("update-baseline", "true"); err != nil {
		t.Fatalf("failed to set update-baseline flag: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestNewFixCmdPreRunValidation(t *testing.T) {
	tests := []struct {
		name     string
		category string
		flags    map[string]string
		wantErr  string
	}{
		{name: "unused_indexes", category: "unused-indexes"},
		{name: "vacuum_uppercase", category: "VACUUM"},
		{name: "all_with_rate", category: "all", flags: map[string]string{"concurrency": "4", "rate": "2.5"}},
		{name: "unknown_category", category: "reindex", wantErr: "unknown fix category"},
		{name: "zero_concurrency", category: "analyze", flags: map[string]string{"concurrency": "0"}, wantErr: "invalid --concurrency value"},
		{name: "negative_rate", category: "analyze", flags: map[string]string{"rate": "-1"}, wantErr: "invalid --rate value"},
		{name: "negative_limit", category: "unused-indexes", flags: map[string]string{"limit": "-3"}, wantErr: "invalid --limit value"},
		{name: "bad_format", category: "vacuum", flags: map[string]string{"format": "sarif"}, wantErr: "invalid --format value"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)

			cmd := NewFixCmd()
			for name, value := range tc.flags {
				if err := cmd.Flags().Set(name, value); err != nil {
					t.Fatalf("failed to set %s flag: %v", name, err)
				}
			}

			err := cmd.PreRunE(cmd, []string{tc.category})
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
			if got := classifyError(err); got != ExitInvalidArg {
				t.Fatalf("expected exit code %d, got %d", ExitInvalidArg, got)
			}
		})
	}
}

func TestNewFixCmdArgs(t *testing.T) {
	cmd := NewFixCmd()
	if err := cmd.Args(cmd, nil); err == nil {
		t.Fatal("expected error without a category")
	}
	if err := cmd.Args(cmd, []string{"vacuum", "analyze"}); err == nil {
		t.Fatal("expected error for two categories")
	}
	if len(cmd.ValidArgs) != 4 {
		t.Fatalf("expected 4 completion categories, got %v", cmd.ValidArgs)
	}
}

func TestHistoryCommandsWithoutStore(t *testing.T) {
	for _, args := range [][]string{
		{"history", "list"},
		{"history", "trend", "app", "cache_hit_ratio.ratio"},
		{"history", "databases"},
		{"history", "metrics", "app"},
		{"history", "prune"},
	} {
		t.Run(strings.Join(args[1:], "_"), func(t *testing.T) {
			isolate(t)

			root := newRootCmd()
			root.SetArgs(args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.ExecuteContext(context.Background())
			if got := classifyError(err); got != ExitNotFound {
				t.Fatalf("expected exit code %d, got %d (%v)", ExitNotFound, got, err)
			}
		})
	}
}

func TestHistoryCommandsRejectBadDays(t *testing.T) {
	for _, args := range [][]string{
		{"history", "list", "--days", "0"},
		{"history", "list", "--limit", "0"},
		{"history", "list", "--days", "36501"},
		{"history", "list", "--days", "9223372036854775807"},
		{"history", "trend", "app", "cache_hit_ratio.ratio", "--days", "36501"},
		{"history", "trend", "app", "cache_hit_ratio.ratio", "--days", "-1"},
	} {
		t.Run(strings.Join(args[1:], "_"), func(t *testing.T) {
			isolate(t)

			root := newRootCmd()
			root.SetArgs(args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.ExecuteContext(context.Background())
			if got := classifyError(err); got != ExitInvalidArg {
				t.Fatalf("expected exit code %d, got %d (%v)", ExitInvalidArg, got, err)
			}
		})
	}
}

func TestHistoryListAcceptsMaxDays(t *testing.T) {
	isolate(t)

	root := newRootCmd()
	root.SetArgs([]string{"history", "list", "--days", "36500"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	// Validation passes; the missing store is what stops it.
	err := root.ExecuteContext(context.Background())
	if got := classifyError(err); got != ExitNotFound {
		t.Fatalf("expected exit code %d, got %d (%v)", ExitNotFound, got, err)
	}
}

func TestFormatAge(t *testing.T) {
	if got := formatAge(90 * day); got != "90d" {
		t.Fatalf("expected 90d, got %q", got)
	}
	if got := formatAge(36 * time.Hour); got != "36h0m0s" {
		t.Fatalf("expected 36h0m0s, got %q", got)
	}
}

func TestServeCmdRequiresDSN(t *testing.T) {
	isolate(t)

	cmd := NewServeCmd()
	if err := cmd.Args(cmd, []string{"extra"}); err == nil {
		t.Fatal("expected args validation error")
	}
	if err := cmd.PreRunE(cmd, nil); !errors.Is(err, config.ErrNoDSN) {
		t.Fatalf("expected ErrNoDSN, got %v", err)
	}

	dsnFlag = "postgres://localhost:5432/app"
	cmd = NewServeCmd()
	if err := cmd.Flags().Set("addr", "127.0.0.1:9999"); err != nil {
		t.Fatalf("failed to set addr flag: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestMCPCmdRequiresDSN(t *testing.T) {
	isolate(t)

	cmd := NewMCPCmd()
	if err := cmd.Args(cmd, []string{"extra"}); err == nil {
		t.Fatal("expected args validation error")
	}
	if err := cmd.PreRunE(cmd, nil); !errors.Is(err, config.ErrNoDSN) {
		t.Fatalf("expected ErrNoDSN, got %v", err)
	}

	dsnFlag = "postgres://localhost:5432/app"
	cmd = NewMCPCmd()
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestMCPCmdRegistered(t *testing.T) {
	isolate(t)

	cmd, _, err := newRootCmd().Find([]string{"mcp"})
	if err != nil || cmd.Name() != "mcp" {
		t.Fatalf("expected mcp command, got %v (%v)", cmd, err)
	}
}

func TestVersionCmd(t *testing.T) {
	isolate(t)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"version"})
	root.SetOut(&out)
	root.SetErr(&out)

	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "pghealth "+version) {
		t.Fatalf("expected version in output, got %q", out.String())
	}
	if !strings.Contains(out.String(), "platform: ") {
		t.Fatalf("expected platform line, got %q", out.String())
	}
}
