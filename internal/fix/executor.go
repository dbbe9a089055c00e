// Package fix applies remediation statements for a fix category, one target at a time.
package fix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/models"
)

// ErrUnknownCategory is returned for a category outside models.FixCategories.
var ErrUnknownCategory = errors.New("unknown fix category")

// TargetSource enumerates the current targets of each category.
// *collector.Client satisfies it.
type TargetSource interface {
	UnusedIndexes(ctx context.Context) ([]models.IndexInfo, error)
	TablesNeedingVacuum(ctx context.Context) ([]collector.VacuumTarget, error)
	TablesNeedingAnalyze(ctx context.Context) ([]collector.StaleStats, error)
}

// Conner hands out dedicated sessions. *sql.DB satisfies it.
type Conner interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Excluder filters tables by qualified name. *config.Config satisfies it.
type Excluder interface {
	IsTableExcluded(qualified string) bool
}

// Options narrows one Apply call.
type Options struct {
	DryRun      bool
	Targets     []string
	Limit       int
	SkipAnalyze bool
}

// Executor turns a fix category into statements and runs them.
type Executor struct {
	targets     TargetSource
	db          Conner
	exclude     Excluder
	concurrency int
	limiter     *rate.Limiter
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithConcurrency runs up to n statements at once. Values below 1 mean 1.
func WithConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithRate paces execution to perSecond statements. Zero or less disables pacing.
func WithRate(perSecond float64) ExecutorOption {
	return func(e *Executor) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithExcluder drops targets on excluded tables.
func WithExcluder(ex Excluder) ExecutorOption {
	return func(e *Executor) {
		e.exclude = ex
	}
}

// NewExecutor returns an Executor reading targets from targets and running statements on db.
func NewExecutor(targets TargetSource, db Conner, opts ...ExecutorOption) *Executor {
	e := &Executor{
		targets:     targets,
		db:          db,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply re-enumerates the targets of category and previews or executes one statement per target.
// A failing target is recorded in the batch and never stops its siblings.
// FixAll runs unused-indexes, vacuum and analyze in that order; when one of them cannot
// enumerate its targets, the results gathered so far are returned with the error.
func (e *Executor) Apply(ctx context.Context, category models.FixCategory, opts Options) (*models.FixBatch, error) {
	batch := &models.FixBatch{
		Category: category,
		DryRun:   opts.DryRun,
		Results:  []models.FixResult{},
	}

	var categories []models.FixCategory
	switch category {
	case models.FixAll:
		categories = []models.FixCategory{models.FixUnusedIndexes, models.FixVacuum, models.FixAnalyze}
	case models.FixUnusedIndexes, models.FixVacuum, models.FixAnalyze:
		categories = []models.FixCategory{category}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	for _, c := range categories {
		stmts, err := e.plan(ctx, c, opts)
		if err != nil {
			return batch, fmt.Errorf("failed to list %s targets: %w", c, err)
		}
		slog.Debug("fix targets resolved",
			slog.String("category", string(c)),
			slog.Int("targets", len(stmts)),
			slog.Bool("dry_run", opts.DryRun),
		)

		if opts.DryRun {
			for _, s := range stmts {
				batch.Results = append(batch.Results, s.preview())
			}
			continue
		}
		batch.Results = append(batch.Results, e.executeAll(ctx, stmts)...)
	}

	return batch, nil
}

func (e *Executor) plan(ctx context.Context, category models.FixCategory, opts Options) ([]statement, error) {
	filter := newTargetFilter(opts.Targets)

	switch category {
	case models.FixUnusedIndexes:
		indexes, err := e.targets.UnusedIndexes(ctx)
		if err != nil {
			return nil, err
		}
		var stmts []statement
		for _, idx := range indexes {
			if e.excluded(idx.QualifiedTable()) || !filter.matchIndex(idx) {
				continue
			}
			if opts.Limit > 0 && len(stmts) == opts.Limit {
				break
			}
			stmts = append(stmts, dropIndex(idx))
		}
		return stmts, nil

	case models.FixVacuum:
		tables, err := e.targets.TablesNeedingVacuum(ctx)
		if err != nil {
			return nil, err
		}
		var stmts []statement
		for _, t := range tables {
			if e.excluded(t.QualifiedName()) || !filter.matchTable(t.Schema, t.Table) {
				continue
			}
			stmts = append(stmts, vacuum(t, !opts.SkipAnalyze))
		}
		return stmts, nil

	case models.FixAnalyze:
		tables, err := e.targets.TablesNeedingAnalyze(ctx)
		if err != nil {
			return nil, err
		}
		var stmts []statement
		for _, t := range tables {
			if e.excluded(t.QualifiedName()) || !filter.matchTable(t.Schema, t.Table) {
				continue
			}
			stmts = append(stmts, analyze(t))
		}
		return stmts, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

// executeAll runs stmts through the worker pool and returns their results in stmts order.
// Statements never started because ctx ended are reported as skipped.
func (e *Executor) executeAll(ctx context.Context, stmts []statement) []models.FixResult {
	results := make([]models.FixResult, len(stmts))
	if len(stmts) == 0 {
		return results
	}
	done := make([]bool, len(stmts))

	pool := NewWorkerPool(e.concurrency, e.execute)
	pool.Start(ctx)
	go func() {
		for i, s := range stmts {
			if !pool.Submit(task{index: i, stmt: s}) {
				break
			}
		}
		pool.Stop()
	}()

	for out := range pool.Results() {
		results[out.index] = out.result
		done[out.index] = true
	}

	for i, ok := range done {
		if !ok {
			results[i] = stmts[i].skipped(ctx.Err())
		}
	}
	return results
}

// execute runs one statement on a dedicated session, outside any transaction.
func (e *Executor) execute(ctx context.Context, s statement) models.FixResult {
	if err := ctx.Err(); err != nil {
		return s.skipped(err)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return s.skipped(err)
		}
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return s.failed(err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, s.sql); err != nil {
		slog.Warn("fix statement failed",
			slog.String("target", s.target),
			slog.String("sql", s.sql),
			slog.String("error", err.Error()),
		)
		return s.failed(err)
	}

	slog.Debug("fix statement executed", slog.String("target", s.target), slog.String("sql", s.sql))
	return s.succeeded()
}

func (e *Executor) excluded(qualified string) bool {
	return e.exclude != nil && e.exclude.IsTableExcluded(qualified)
}

// targetFilter matches user supplied names against targets. An empty filter matches all.
type targetFilter map[string]bool

func newTargetFilter(names []string) targetFilter {
	f := targetFilter{}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			f[n] = true
		}
	}
	return f
}

func (f targetFilter) matchTable(schema, table string) bool {
	return len(f) == 0 || f[table] || f[schema+"."+table]
}

func (f targetFilter) matchIndex(idx models.IndexInfo) bool {
	return f.matchTable(idx.Schema, idx.Table) || f[idx.Name] || f[idx.QualifiedName()]
}
