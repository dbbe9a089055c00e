package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pghealth/internal/checks"
	"github.com/ppiankov/pghealth/internal/fix"
	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/suggest"
	"github.com/ppiankov/pghealth/pkg/config"
)

// service runs checks and recommendations, opening a connection per call.
type service struct {
	cmd *cobra.Command
	cfg *config.Config
}

func newService(cmd *cobra.Command, cfg *config.Config) *service {
	return &service{cmd: cmd, cfg: cfg}
}

// Inspect runs every health check and returns the report.
func (s *service) Inspect(ctx context.Context) (*models.Report, error) {
	client, err := connect(ctx, s.cmd, s.cfg, 4)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	progress(s.cmd, "🩺 Running health checks...")
	report, err := checks.New(client, s.cfg.Thresholds).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	progress(s.cmd, "✓ %d checks completed", len(report.Findings))
	return report, nil
}

// Recommend runs every recommendation rule.
func (s *service) Recommend(ctx context.Context) ([]models.Recommendation, error) {
	client, err := connect(ctx, s.cmd, s.cfg, 4)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	progress(s.cmd, "🔍 Analyzing database...")
	recs, err := suggest.New(client, s.cfg.RecommendationThresholds, s.cfg).Analyze(ctx)
	if err != nil {
		return nil, fmt.Errorf("recommendation analysis failed: %w", err)
	}
	progress(s.cmd, "✓ %d recommendations", len(recs))
	return recs, nil
}

// Fix previews or applies one fix category using the configured concurrency and rate.
func (s *service) Fix(ctx context.Context, category models.FixCategory, opts fix.Options) (*models.FixBatch, error) {
	client, err := connect(ctx, s.cmd, s.cfg, s.cfg.FixConcurrency+1)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	if opts.DryRun {
		progress(s.cmd, "🔍 Planning %s fixes (dry run)...", category)
	} else {
		progress(s.cmd, "🔧 Applying %s fixes...", category)
	}
	executor := fix.NewExecutor(client, client.DB(),
		fix.WithConcurrency(s.cfg.FixConcurrency),
		fix.WithRate(s.cfg.FixRate),
		fix.WithExcluder(s.cfg),
	)
	return executor.Apply(ctx, category, opts)
}
