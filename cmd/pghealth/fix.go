package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/fix"
	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/reporter"
	"github.com/ppiankov/pghealth/pkg/config"
)

type fixOptions struct {
	execute     bool
	tables      []string
	limit       int
	noAnalyze   bool
	concurrency int
	rate        float64
	format      string
}

// NewFixCmd creates the fix command
func NewFixCmd() *cobra.Command {
	var opts fixOptions
	var cfg *config.Config
	var category models.FixCategory

	categories := make([]string, 0, len(models.FixCategories()))
	for _, c := range models.FixCategories() {
		categories = append(categories, string(c))
	}

	cmd := &cobra.Command{
		Use:   "fix <category>",
		Short: "Preview or apply safe maintenance",
		Long: fmt.Sprintf(`Drop unused indexes, VACUUM tables with dead tuples, or ANALYZE tables with
stale statistics. Categories: %s.

Statements are only previewed unless --execute is given. Each target runs on
its own; a failing statement does not stop the others.`, strings.Join(categories, ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: categories,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			category = models.FixCategory(strings.ToLower(strings.TrimSpace(args[0])))
			if !validCategory(category) {
				return &InvalidArgError{Err: fmt.Errorf("%w: %q (expected %s)", fix.ErrUnknownCategory, args[0], strings.Join(categories, ", "))}
			}
			if opts.limit < 0 {
				return invalidArg("invalid --limit value: must be zero or positive")
			}
			if err := reporter.ValidateFormat(opts.format, reporter.FormatText, reporter.FormatJSON); err != nil {
				return &InvalidArgError{Err: fmt.Errorf("invalid --format value: %w", err)}
			}

			var err error
			cfg, err = loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.FixConcurrency = opts.concurrency
			}
			if cmd.Flags().Changed("rate") {
				cfg.FixRate = opts.rate
			}
			if cfg.FixConcurrency < 1 {
				return invalidArg("invalid --concurrency value: must be at least 1")
			}
			if cfg.FixRate < 0 {
				return invalidArg("invalid --rate value: must be zero or positive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd.Context(), cmd, cfg, category, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.execute, "execute", false, "Run the statements (default: dry run)")
	cmd.Flags().StringArrayVar(&opts.tables, "table", nil, "Only fix these tables or indexes (repeatable, name or schema.name)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of unused indexes to drop (0 = no limit)")
	cmd.Flags().BoolVar(&opts.noAnalyze, "no-analyze", false, "Run plain VACUUM instead of VACUUM ANALYZE")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 1, "Statements to run at once")
	cmd.Flags().Float64Var(&opts.rate, "rate", 0, "Maximum statements per second (0 = unlimited)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format (text, json)")

	return cmd
}

func validCategory(c models.FixCategory) bool {
	for _, known := range models.FixCategories() {
		if c == known {
			return true
		}
	}
	return false
}

func runFix(ctx context.Context, cmd *cobra.Command, cfg *config.Config, category models.FixCategory, opts fixOptions) error {
	batch, applyErr := newService(cmd, cfg).Fix(ctx, category, fix.Options{
		DryRun:      !opts.execute,
		Targets:     opts.tables,
		Limit:       opts.limit,
		SkipAnalyze: opts.noAnalyze,
	})
	if batch != nil {
		if err := reporter.WriteFixBatch(batch, reporter.Options{
			Format:  opts.format,
			NoColor: cfg.NoColor,
			Version: version,
		}, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to write fix results: %w", err)
		}
	}
	if applyErr != nil {
		return applyErr
	}

	if failed := batch.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d fix statements failed", failed, len(batch.Results))
	}
	return nil
}
