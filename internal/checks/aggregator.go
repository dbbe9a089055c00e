// Package checks runs the ordered health checks against a metric source and
// assembles their findings into a report.
package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/threshold"
)

// step is one check. A step appends to the report only after all of its facts were read.
type step struct {
	name      string
	mandatory bool
	run       func(ctx context.Context, r *models.Report) error
}

// Aggregator builds a Report from a Source.
type Aggregator struct {
	src        Source
	thresholds threshold.Config
	now        func() time.Time
}

// New returns an Aggregator evaluating findings against thresholds.
// A nil thresholds map uses the built-in defaults.
func New(src Source, thresholds threshold.Config) *Aggregator {
	if thresholds == nil {
		thresholds = threshold.Config{}
	}
	return &Aggregator{
		src:        src,
		thresholds: thresholds,
		now:        time.Now,
	}
}

func (a *Aggregator) steps() []step {
	return []step{
		{name: "version", mandatory: true, run: a.checkVersion},
		{name: "database size", mandatory: true, run: a.checkDatabaseSize},
		{name: "replication lag", run: a.checkReplicationLag},
		{name: "lock waits", run: a.checkLockWaits},
		{name: "cache hit ratio", run: a.checkCacheHitRatio},
		{name: "index hit ratio", run: a.checkIndexHitRatio},
		{name: "connection usage", run: a.checkConnections},
		{name: "vacuum stats", run: a.checkVacuumStats},
		{name: "long running queries", run: a.checkLongRunningQueries},
		{name: "unused indexes", run: a.checkUnusedIndexes},
		{name: "table bloat", run: a.checkTableBloat},
		{name: "missing primary keys", run: a.checkMissingPrimaryKeys},
		{name: "table sizes", run: a.collectTableSizes},
		{name: "slow queries", run: a.checkSlowQueries},
		{name: "duplicate indexes", run: a.checkDuplicateIndexes},
		{name: "fk missing indexes", run: a.checkFKMissingIndexes},
		{name: "transaction id age", run: a.checkXIDAge},
		{name: "security checks", run: a.checkSecurity},
		{name: "tablespace usage", run: a.checkTablespaces},
	}
}

// Run executes every check in order.
// A failing mandatory check, or a cancelled ctx, aborts the run with no report.
// Other failures drop that check's finding and the run continues.
func (a *Aggregator) Run(ctx context.Context) (*models.Report, error) {
	report := &models.Report{GeneratedAt: a.now().UTC()}

	for _, s := range a.steps() {
		err := s.run(ctx, report)
		if err == nil {
			continue
		}
		if s.mandatory {
			return nil, fmt.Errorf("%s check failed: %w", s.name, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s check interrupted: %w", s.name, ctxErr)
		}
		slog.Warn("check skipped",
			slog.String("check", s.name),
			slog.String("error", err.Error()),
		)
	}

	slog.Debug("health check complete",
		slog.String("database", report.Database),
		slog.Int("findings", len(report.Findings)),
		slog.String("worst", report.WorstSeverity().String()),
	)
	return report, nil
}
