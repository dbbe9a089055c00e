package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/app"
	"github.com/ppiankov/pghealth/internal/history"
	"github.com/ppiankov/pghealth/internal/reporter"
	"github.com/ppiankov/pghealth/pkg/config"
)

const day = 24 * time.Hour

// NewHistoryCmd creates the history command and its subcommands
func NewHistoryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded health check history",
		Long: `Query results recorded with "pghealth check --save-history".

History is stored in a local DuckDB file inside the data directory
(PGHEALTH_DATA_DIR or ~/.pghealth).`,
	}
	cmd.PersistentFlags().StringVar(&format, "format", "text", "Output format (text, json)")

	cmd.AddCommand(newHistoryListCmd(&format))
	cmd.AddCommand(newHistoryTrendCmd(&format))
	cmd.AddCommand(newHistoryDatabasesCmd(&format))
	cmd.AddCommand(newHistoryMetricsCmd(&format))
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd(format *string) *cobra.Command {
	var database string
	var days, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent health checks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return invalidArg("--limit must be positive")
			}
			if err := history.ValidateDays(days); err != nil {
				return invalidArg("invalid --days: %w", err)
			}
			return withHistory(cmd, *format, func(ctx context.Context, store *history.Store, _ *config.Config, opts reporter.Options) error {
				entries, err := store.QueryEntries(ctx, history.EntryQuery{
					Database: database,
					Lookback: history.Days(days),
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				return reporter.WriteHistory(entries, opts, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&database, "database", "", "Only show this database")
	cmd.Flags().IntVar(&days, "days", int(history.DefaultLookback/day), "Look back this many days")
	cmd.Flags().IntVar(&limit, "limit", history.DefaultLimit, "Maximum entries to show")

	return cmd
}

func newHistoryTrendCmd(format *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "trend <database> <metric>",
		Short: "Show a metric over time with its trend",
		Long: `Show the recorded values of one metric. Metric names are <check>.<detail>,
for example cache_hit_ratio.ratio; list them with "pghealth history metrics".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := history.ValidateDays(days); err != nil {
				return invalidArg("invalid --days: %w", err)
			}
			database, metric := args[0], args[1]
			return withHistory(cmd, *format, func(ctx context.Context, store *history.Store, _ *config.Config, opts reporter.Options) error {
				points, err := store.QueryMetric(ctx, database, metric, history.Days(days))
				if err != nil {
					return err
				}
				return reporter.WriteTrend(reporter.TrendDocument{
					Database: database,
					Metric:   metric,
					Points:   points,
					Trend:    history.Summarize(points),
				}, opts, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", int(history.DefaultLookback/day), "Look back this many days")
	return cmd
}

func newHistoryDatabasesCmd(format *string) *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List databases with recorded history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, *format, func(ctx context.Context, store *history.Store, _ *config.Config, opts reporter.Options) error {
				names, err := store.ListDatabases(ctx)
				if err != nil {
					return err
				}
				return writeNames(cmd, names, opts, "databases.json", "No databases recorded.")
			})
		},
	}
}

func newHistoryMetricsCmd(format *string) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <database>",
		Short: "List metric names recorded for a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, *format, func(ctx context.Context, store *history.Store, _ *config.Config, opts reporter.Options) error {
				names, err := store.ListMetricNames(ctx, args[0])
				if err != nil {
					return err
				}
				return writeNames(cmd, names, opts, "metrics.json", "No metrics recorded for "+args[0]+".")
			})
		},
	}
}

func newHistoryPruneCmd() *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, reporter.FormatText, func(ctx context.Context, store *history.Store, cfg *config.Config, _ reporter.Options) error {
				age := cfg.Retention
				if cmd.Flags().Changed("older-than") {
					d, err := config.ParseDuration(olderThan)
					if err != nil {
						return invalidArg("invalid --older-than duration: %w", err)
					}
					age = d
				}
				if age <= 0 {
					return invalidArg("invalid --older-than duration: must be positive")
				}

				res, err := store.Prune(ctx, age)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "🧹 Pruned %d checks and %d metric samples older than %s\n",
					res.Entries, res.Metrics, formatAge(age))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "90d", "Delete entries older than this (e.g., 30d, 720h; default: retention from config)")
	return cmd
}

type historyFunc func(ctx context.Context, store *history.Store, cfg *config.Config, opts reporter.Options) error

// withHistory opens the existing history store and runs fn against it.
func withHistory(cmd *cobra.Command, format string, fn historyFunc) error {
	if err := reporter.ValidateFormat(format, reporter.FormatText, reporter.FormatJSON); err != nil {
		return &InvalidArgError{Err: fmt.Errorf("invalid --format value: %w", err)}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := app.HistoryPath(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve history path: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{Err: fmt.Errorf("no history recorded at %s (run `pghealth check --save-history` first)", path)}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := history.OpenContext(ctx, path, 0)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(ctx, store, cfg, reporter.Options{
		Format:  strings.ToLower(strings.TrimSpace(format)),
		NoColor: cfg.NoColor,
		Version: version,
	})
}

func writeNames(cmd *cobra.Command, names []string, opts reporter.Options, filename, empty string) error {
	if opts.Format == reporter.FormatJSON {
		return reporter.WriteJSON(names, opts, filename, cmd.OutOrStdout())
	}
	if len(names) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), empty)
		return err
	}
	for _, n := range names {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), n); err != nil {
			return err
		}
	}
	return nil
}

func formatAge(d time.Duration) string {
	if d%day == 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	return d.String()
}
