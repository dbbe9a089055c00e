// Package suggest derives ranked, actionable recommendations from a metric source.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
	"github.com/ppiankov/pghealth/internal/threshold"
)

type rule struct {
	name string
	run  func(ctx context.Context) ([]models.Recommendation, error)
}

// Engine evaluates the recommendation rules.
type Engine struct {
	src     Source
	cfg     threshold.Config
	exclude Excluder
}

// New returns an Engine rating against cfg, falling back to the recommendation defaults.
// exclude may be nil.
func New(src Source, cfg threshold.Config, exclude Excluder) *Engine {
	if cfg == nil {
		cfg = threshold.Config{}
	}
	return &Engine{src: src, cfg: cfg, exclude: exclude}
}

func (e *Engine) rules() []rule {
	return []rule{
		{name: "cache hit ratio", run: e.cacheRule},
		{name: "unused indexes", run: e.unusedIndexRule},
		{name: "vacuum", run: e.vacuumRule},
		{name: "sequential scans", run: e.seqScanRule},
		{name: "large tables", run: e.largeTableRule},
		{name: "outdated statistics", run: e.statisticsRule},
		{name: "slow queries", run: e.slowQueryRule},
		{name: "connections", run: e.connectionRule},
		{name: "replication lag", run: e.replicationRule},
		{name: "lock waits", run: e.lockRule},
	}
}

// Analyze runs every rule in order and returns the recommendations sorted by priority.
// Within a priority, rule order is kept. A rule whose view or extension is missing
// contributes nothing; any other failure aborts.
func (e *Engine) Analyze(ctx context.Context) ([]models.Recommendation, error) {
	recs := []models.Recommendation{}
	for _, r := range e.rules() {
		out, err := r.run(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%s rule interrupted: %w", r.name, ctxErr)
			}
			if collector.IsUnavailable(err) {
				slog.Debug("recommendation rule skipped",
					slog.String("rule", r.name),
					slog.String("error", err.Error()),
				)
				continue
			}
			return nil, fmt.Errorf("%s rule failed: %w", r.name, err)
		}
		recs = append(recs, out...)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Rank() < recs[j].Priority.Rank()
	})
	return recs, nil
}

// rate maps the recommendation threshold for name onto a priority.
func (e *Engine) rate(name string, value float64) (models.Priority, bool) {
	return priorityOf(e.evaluate(name, value))
}

func (e *Engine) evaluate(name string, value float64) severity.Severity {
	return threshold.EvaluateWith(name, value, e.cfg, threshold.RecommendationDefaults())
}

func (e *Engine) limit(name string) threshold.Threshold {
	return threshold.Lookup(name, e.cfg, threshold.RecommendationDefaults())
}

func (e *Engine) excluded(qualified string) bool {
	return e.exclude != nil && e.exclude.IsTableExcluded(qualified)
}

func priorityOf(s severity.Severity) (models.Priority, bool) {
	switch s {
	case severity.Critical:
		return models.PriorityHigh, true
	case severity.Warning:
		return models.PriorityMedium, true
	default:
		return models.PriorityLow, false
	}
}
