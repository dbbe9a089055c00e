package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/app"
	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/history"
	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/notify"
	"github.com/ppiankov/pghealth/internal/reporter"
	"github.com/ppiankov/pghealth/internal/severity"
	"github.com/ppiankov/pghealth/pkg/config"
)

type checkOptions struct {
	format       string
	output       string
	saveHistory  bool
	notify       bool
	queryTimeout string
}

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	var opts checkOptions
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:     "check",
		Aliases: []string{"audit"},
		Short:   "Run health checks and report findings",
		Long: `Run every health check against the database and print a report.

The exit code follows the overall status: 0 when healthy, 6 when any check
warns and 7 when any check is critical.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig()
			if err != nil {
				return err
			}
			return opts.apply(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format (text, json, sarif)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Write the report into this directory instead of stdout")
	cmd.Flags().BoolVar(&opts.saveHistory, "save-history", false, "Record the result in the local history store")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "Send the result to the configured notification targets")
	cmd.Flags().StringVar(&opts.queryTimeout, "query-timeout", "30s", "Per-query timeout (e.g., 30s, 2m)")

	return cmd
}

// apply overlays explicitly set flags onto cfg.
func (o checkOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = o.format
	}
	if err := reporter.ValidateFormat(cfg.Format, reporter.FormatText, reporter.FormatJSON, reporter.FormatSARIF); err != nil {
		return &InvalidArgError{Err: fmt.Errorf("invalid --format value: %w", err)}
	}
	if flags.Changed("output") {
		cfg.OutputDir = o.output
	}
	if flags.Changed("query-timeout") {
		d, err := config.ParseDuration(o.queryTimeout)
		if err != nil {
			return invalidArg("invalid --query-timeout duration: %w", err)
		}
		cfg.QueryTimeout = d
	}
	if flags.Changed("save-history") {
		cfg.SaveHistory = o.saveHistory
	}
	return nil
}

// runCheck executes the check workflow
func runCheck(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts checkOptions) error {
	report, err := newService(cmd, cfg).Inspect(ctx)
	if err != nil {
		return err
	}

	if err := reporter.WriteReport(report, reporter.Options{
		Format:    cfg.Format,
		OutputDir: cfg.OutputDir,
		NoColor:   cfg.NoColor,
		Version:   version,
	}, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if cfg.OutputDir != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "📝 Report written to: %s\n", cfg.OutputDir)
	}

	if cfg.SaveHistory {
		saveHistory(ctx, cmd, cfg, report)
	}
	if opts.notify {
		sendNotifications(ctx, cmd, cfg, report)
	}

	if isFirstRun {
		fmt.Fprintln(cmd.ErrOrStderr(), "\n💡 Tip: run `pghealth suggest` for ranked recommendations, or add --save-history to track trends.")
	}

	if outcome := report.Outcome(); outcome != severity.Healthy {
		return &HealthError{
			Outcome: outcome,
			Count:   report.Count(severity.Warning) + report.Count(severity.Critical),
		}
	}
	return nil
}

// saveHistory records report; failures are reported but never fail the check.
func saveHistory(ctx context.Context, cmd *cobra.Command, cfg *config.Config, report *models.Report) {
	path, err := app.HistoryPath(cfg.DataDir)
	if err != nil {
		slog.Warn("history not saved", slog.String("error", err.Error()))
		return
	}
	id, err := history.NewFile(path, 0).Record(ctx, report, collector.ConnectionHash(cfg.DSN))
	if err != nil {
		slog.Warn("history not saved", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	progress(cmd, "💾 Saved to history (#%d)", id)
}

func sendNotifications(ctx context.Context, cmd *cobra.Command, cfg *config.Config, report *models.Report) {
	if !cfg.Notify.Enabled() {
		slog.Warn("--notify set but no notification target is configured")
		return
	}
	for _, r := range notify.NewDispatcher(cfg.Notify).Notify(ctx, report) {
		switch {
		case r.Skipped:
			progress(cmd, "🔕 %s: %s", r.Provider, r.Message)
		case r.Success:
			progress(cmd, "📣 %s: notification sent", r.Provider)
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %s notification failed: %s\n", r.Provider, r.Error)
		}
	}
}
