package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/app"
	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/fix"
	"github.com/ppiankov/pghealth/internal/logging"
	"github.com/ppiankov/pghealth/internal/severity"
	"github.com/ppiankov/pghealth/pkg/config"
)

var (
	version    = "dev"
	verbose    bool
	configPath string
	dsnFlag    string
	noColor    bool
	isFirstRun bool
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitNetwork    = 5
	ExitDegraded   = 6
	ExitCritical   = 7
)

// HealthError indicates the check completed but the database is not healthy.
type HealthError struct {
	Outcome severity.Outcome
	Count   int
}

func (e *HealthError) Error() string {
	return fmt.Sprintf("database is %s: %d issues detected", e.Outcome, e.Count)
}

// InvalidArgError marks bad user input.
type InvalidArgError struct {
	Err error
}

func (e *InvalidArgError) Error() string { return e.Err.Error() }
func (e *InvalidArgError) Unwrap() error { return e.Err }

// NotFoundError marks a missing file, database or history entry.
type NotFoundError struct {
	Err error
}

func (e *NotFoundError) Error() string { return e.Err.Error() }
func (e *NotFoundError) Unwrap() error { return e.Err }

// NetworkError marks an unreachable server or a rejected login.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

func invalidArg(format string, args ...any) error {
	return &InvalidArgError{Err: fmt.Errorf(format, args...)}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pghealth",
		Short: "PostgreSQL health checks, recommendations and safe fixes",
		Long: `pghealth inspects a PostgreSQL database through its statistics views,
rates what it finds as ok, warning or critical, and turns the findings into
ranked recommendations.

Safe maintenance (dropping unused indexes, VACUUM, ANALYZE) can be previewed
and applied with the fix command. Results can be stored locally to track
trends over time, sent to webhooks, or served over HTTP.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./.pghealth.yaml or ~/.pghealth.yaml)")
	root.PersistentFlags().StringVarP(&dsnFlag, "dsn", "c", "", "PostgreSQL connection string (or DATABASE_URL)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewCheckCmd())
	root.AddCommand(NewSuggestCmd())
	root.AddCommand(NewFixCmd())
	root.AddCommand(NewHistoryCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewMCPCmd())
	root.AddCommand(NewVersionCmd())

	return root
}

func main() {
	logging.Init(false)
	isFirstRun = app.IsFirstRun()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		exitCode := classifyError(err)
		var he *HealthError
		if errors.As(err, &he) {
			slog.Info("health issues detected", slog.String("outcome", he.Outcome.String()), slog.Int("count", he.Count))
		} else {
			slog.Error("command failed", slog.String("error", err.Error()))
		}
		os.Exit(exitCode)
	}
}

func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var he *HealthError
	if errors.As(err, &he) {
		if he.Outcome == severity.Failing {
			return ExitCritical
		}
		return ExitDegraded
	}

	var iae *InvalidArgError
	if errors.As(err, &iae) || errors.Is(err, config.ErrNoDSN) || errors.Is(err, fix.ErrUnknownCategory) {
		return ExitInvalidArg
	}

	var nfe *NotFoundError
	if errors.As(err, &nfe) || errors.Is(err, os.ErrNotExist) {
		return ExitNotFound
	}

	var ne *NetworkError
	if errors.As(err, &ne) || collector.IsAuthError(err) || collector.IsConnectionError(err) {
		return ExitNetwork
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such file") {
		return ExitNotFound
	}

	if strings.Contains(msg, "dial") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "network is unreachable") {
		return ExitNetwork
	}

	return ExitInternal
}
