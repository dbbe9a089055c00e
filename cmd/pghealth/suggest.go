package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/baseline"
	"github.com/ppiankov/pghealth/internal/reporter"
	"github.com/ppiankov/pghealth/pkg/config"
)

type suggestOptions struct {
	format         string
	baselinePath   string
	updateBaseline bool
}

// NewSuggestCmd creates the suggest command
func NewSuggestCmd() *cobra.Command {
	var opts suggestOptions
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Show ranked recommendations",
		Long: `Analyze the database and print recommendations ordered by priority.

With --baseline, recommendations recorded in the baseline file are hidden.
--update-baseline adds the current recommendations to the file.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") || cfg.Format == reporter.FormatSARIF {
				cfg.Format = opts.format
			}
			if err := reporter.ValidateFormat(cfg.Format, reporter.FormatText, reporter.FormatJSON); err != nil {
				return &InvalidArgError{Err: fmt.Errorf("invalid --format value: %w", err)}
			}
			if opts.updateBaseline && opts.baselinePath == "" {
				opts.baselinePath = baseline.DefaultPath
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd.Context(), cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format (text, json)")
	cmd.Flags().StringVar(&opts.baselinePath, "baseline", "", "Baseline file of recommendations to hide")
	cmd.Flags().BoolVar(&opts.updateBaseline, "update-baseline", false, "Add current recommendations to the baseline file (default path: "+baseline.DefaultPath+")")

	return cmd
}

func runSuggest(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts suggestOptions) error {
	recs, err := newService(cmd, cfg).Recommend(ctx)
	if err != nil {
		return err
	}

	if opts.baselinePath != "" {
		known, err := baseline.Load(opts.baselinePath)
		if err != nil {
			return &InvalidArgError{Err: err}
		}

		if opts.updateBaseline {
			before := len(known)
			baseline.AddAll(known, baseline.CollectFingerprints(recs))
			if err := baseline.Save(opts.baselinePath, known); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "📌 Baseline %s updated: %d new, %d total\n",
				opts.baselinePath, len(known)-before, len(known))
		} else {
			var suppressed int
			recs, suppressed = baseline.SuppressKnown(recs, known)
			slog.Debug("baseline applied",
				slog.String("path", opts.baselinePath),
				slog.Int("suppressed", suppressed),
				slog.Int("remaining", len(recs)),
			)
			if suppressed > 0 {
				progress(cmd, "🙈 %d known recommendations hidden by baseline", suppressed)
			}
		}
	}

	return reporter.WriteRecommendations(recs, reporter.Options{
		Format:  cfg.Format,
		NoColor: cfg.NoColor,
		Version: version,
	}, cmd.OutOrStdout())
}
