package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/pghealth/internal/fix"
	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
	"github.com/ppiankov/pghealth/internal/threshold"
)

const (
	maxUnusedIndexRecs   = 5
	unusedIndexMediumMin = 10_000_000
	maxSeqScanRecs       = 5
	seqScanMinRows       = 50_000
	seqScanMinBytes      = 50_000_000
	largeTableMinGB      = 10
	maxAnalyzeInSQL      = 5
	maxSlowQueryRecs     = 3
	slowQueryPreviewLen  = 100
)

func (e *Engine) cacheRule(ctx context.Context) ([]models.Recommendation, error) {
	ratio, err := e.src.CacheHitRatio(ctx)
	if err != nil || !ratio.Valid {
		return nil, err
	}
	priority, ok := e.rate(threshold.CacheHitRatio, ratio.V)
	if !ok {
		return nil, nil
	}
	current, err := e.src.SharedBuffers(ctx)
	if err != nil {
		return nil, err
	}

	return []models.Recommendation{{
		Priority: priority,
		Title:    "Increase shared_buffers",
		Why: fmt.Sprintf("Cache hit ratio is %.1f%% (should be >%.0f%%)",
			ratio.V*100, e.limit(threshold.CacheHitRatio).Warning*100),
		Impact: "Better cache hit ratio means faster queries",
		Action: "Edit postgresql.conf, set shared_buffers to ~25% of RAM. Current: " + current,
		Details: models.Details{
			"cache_hit_ratio":        ratio.V,
			"current_shared_buffers": current,
		},
	}}, nil
}

func (e *Engine) unusedIndexRule(ctx context.Context) ([]models.Recommendation, error) {
	all, err := e.src.UnusedIndexes(ctx)
	if err != nil {
		return nil, err
	}

	indexes := make([]models.IndexInfo, 0, len(all))
	var wasted int64
	for _, idx := range all {
		if e.excluded(idx.QualifiedTable()) {
			continue
		}
		indexes = append(indexes, idx)
		wasted += idx.SizeBytes
	}

	var recs []models.Recommendation
	for i, idx := range indexes {
		if i == maxUnusedIndexRecs {
			break
		}
		priority := models.PriorityLow
		if idx.SizeBytes > unusedIndexMediumMin {
			priority = models.PriorityMedium
		}
		recs = append(recs, models.Recommendation{
			Priority: priority,
			Title:    "Drop unused index " + idx.Name,
			Why:      fmt.Sprintf("0 scans since stats reset, %s wasted", idx.Size),
			Impact:   fmt.Sprintf("Free %s disk space, faster writes", idx.Size),
			SQL:      fix.DropIndexStatement(idx.Schema, idx.Name),
			Details: models.Details{
				"schema":     idx.Schema,
				"table":      idx.Table,
				"index":      idx.Name,
				"size_bytes": idx.SizeBytes,
			},
			FixType: models.FixUnusedIndexes,
		})
	}

	if rest := len(indexes) - maxUnusedIndexRecs; rest > 0 {
		recs = append(recs, models.Recommendation{
			Priority: models.PriorityMedium,
			Title:    fmt.Sprintf("Review %d more unused indexes", rest),
			Why:      fmt.Sprintf("Total %s wasted on unused indexes", models.FormatBytes(wasted)),
			Impact:   "Run `pghealth fix unused-indexes` to preview all of them",
			Details: models.Details{
				"remaining":    rest,
				"wasted_bytes": wasted,
			},
			FixType: models.FixUnusedIndexes,
		})
	}
	return recs, nil
}

func (e *Engine) vacuumRule(ctx context.Context) ([]models.Recommendation, error) {
	targets, err := e.src.TablesNeedingVacuum(ctx)
	if err != nil {
		return nil, err
	}

	var recs []models.Recommendation
	for _, t := range targets {
		if e.excluded(t.QualifiedName()) {
			continue
		}
		priority, ok := priorityOf(severity.Worst(
			e.evaluate(threshold.DeadTuplePct, t.DeadPct),
			e.evaluate(threshold.DeadTuples, float64(t.DeadTuples)),
		))
		if !ok {
			continue
		}

		recs = append(recs, models.Recommendation{
			Priority: priority,
			Title:    "VACUUM ANALYZE " + t.QualifiedName(),
			Why:      fmt.Sprintf("%s dead tuples (%.1f%% bloat)", models.FormatCount(t.DeadTuples), t.DeadPct),
			Impact:   "Reclaim disk space, improve query performance",
			SQL:      fix.VacuumStatement(t.Schema, t.Table, true),
			Details: models.Details{
				"schema":      t.Schema,
				"table":       t.Table,
				"dead_tuples": t.DeadTuples,
				"dead_pct":    t.DeadPct,
			},
			FixType: models.FixVacuum,
		})
	}
	return recs, nil
}

func (e *Engine) seqScanRule(ctx context.Context) ([]models.Recommendation, error) {
	tables, err := e.src.SeqScanCandidates(ctx)
	if err != nil {
		return nil, err
	}

	var recs []models.Recommendation
	considered := 0
	for _, t := range tables {
		if e.excluded(t.QualifiedName()) {
			continue
		}
		if considered == maxSeqScanRecs {
			break
		}
		considered++
		if t.LiveTuples <= seqScanMinRows || t.SizeBytes <= seqScanMinBytes {
			continue
		}
		recs = append(recs, models.Recommendation{
			Priority: models.PriorityMedium,
			Title:    "Consider adding index on " + t.QualifiedName(),
			Why: fmt.Sprintf("%s sequential scans on %s rows (%s)",
				models.FormatCount(t.SeqScans), models.FormatCount(t.LiveTuples), t.TableSize),
			Impact: "Index could significantly speed up queries",
			Action: "Analyze query patterns to identify which columns to index",
			Details: models.Details{
				"schema":    t.Schema,
				"table":     t.Table,
				"seq_scans": t.SeqScans,
				"rows":      t.LiveTuples,
			},
		})
	}
	return recs, nil
}

func (e *Engine) largeTableRule(ctx context.Context) ([]models.Recommendation, error) {
	tables, err := e.src.LargeTables(ctx)
	if err != nil {
		return nil, err
	}

	var recs []models.Recommendation
	for _, t := range tables {
		sizeGB := float64(t.SizeBytes) / (1 << 30)
		if sizeGB <= largeTableMinGB || e.excluded(t.QualifiedName()) {
			continue
		}
		recs = append(recs, models.Recommendation{
			Priority: models.PriorityLow,
			Title:    "Consider partitioning " + t.QualifiedName(),
			Why:      fmt.Sprintf("Table is %s with %s rows", t.TotalSize, models.FormatCount(t.Rows)),
			Impact:   "Improved query performance, easier maintenance",
			Action:   "Partition by date/time column if available, or by range/list",
			Details: models.Details{
				"schema":  t.Schema,
				"table":   t.Table,
				"size_gb": sizeGB,
				"rows":    t.Rows,
			},
		})
	}
	return recs, nil
}

func (e *Engine) statisticsRule(ctx context.Context) ([]models.Recommendation, error) {
	stale, err := e.src.OutdatedStatistics(ctx)
	if err != nil {
		return nil, err
	}

	var (
		names    []string
		targets  [][2]string
		worst    models.Priority
		anyFired bool
	)
	for _, s := range stale {
		if e.excluded(s.QualifiedName()) {
			continue
		}
		priority, ok := e.rate(threshold.StaleStatistics, float64(s.Modifications))
		if !ok {
			continue
		}
		if !anyFired || priority.Rank() < worst.Rank() {
			worst = priority
		}
		anyFired = true
		names = append(names, s.QualifiedName())
		targets = append(targets, [2]string{s.Schema, s.Table})
	}
	if !anyFired {
		return nil, nil
	}
	if len(targets) > maxAnalyzeInSQL {
		targets = targets[:maxAnalyzeInSQL]
	}

	return []models.Recommendation{{
		Priority: worst,
		Title:    "Update table statistics",
		Why:      fmt.Sprintf("%d tables have outdated statistics", len(names)),
		Impact:   "Better query plans with accurate statistics",
		SQL:      fix.AnalyzeStatement(targets...),
		Details: models.Details{
			"tables": strings.Join(names, ", "),
			"count":  len(names),
		},
		FixType: models.FixAnalyze,
	}}, nil
}

func (e *Engine) slowQueryRule(ctx context.Context) ([]models.Recommendation, error) {
	queries, err := e.src.SlowQueryCandidates(ctx)
	if err != nil {
		return nil, err
	}

	var recs []models.Recommendation
	for i, q := range queries {
		if i == maxSlowQueryRecs {
			break
		}
		priority, ok := e.rate(threshold.SlowQueryMs, q.MeanTimeMs)
		if !ok {
			continue
		}
		recs = append(recs, models.Recommendation{
			Priority: priority,
			Title:    "Optimize slow query",
			Why:      fmt.Sprintf("Query averaging %.0fms (%s calls)", q.MeanTimeMs, models.FormatCount(q.Calls)),
			Impact:   fmt.Sprintf("~%.0fms saved per call", q.MeanTimeMs),
			Action:   "Review query plan: " + preview(q.Query, slowQueryPreviewLen) + "...",
			Details: models.Details{
				"query":        q.Query,
				"mean_time_ms": q.MeanTimeMs,
				"calls":        q.Calls,
			},
		})
	}
	return recs, nil
}

func (e *Engine) connectionRule(ctx context.Context) ([]models.Recommendation, error) {
	stats, err := e.src.Connections(ctx)
	if err != nil {
		return nil, err
	}
	ratio, ok := stats.UsageRatio()
	if !ok {
		return nil, nil
	}
	priority, ok := e.rate(threshold.Connections, ratio)
	if !ok {
		return nil, nil
	}
	return []models.Recommendation{{
		Priority: priority,
		Title:    "Connection pool nearing limit",
		Why:      fmt.Sprintf("Using %d/%d connections (%.0f%%)", stats.Total, stats.Max, ratio*100),
		Impact:   "May cause connection refused errors",
		Action:   "Consider using connection pooler (PgBouncer) or increasing max_connections",
		Details: models.Details{
			"current": stats.Total,
			"max":     stats.Max,
		},
	}}, nil
}

func (e *Engine) replicationRule(ctx context.Context) ([]models.Recommendation, error) {
	status, err := e.src.Replication(ctx)
	if err != nil || !status.LagSeconds.Valid {
		return nil, err
	}
	lag := status.LagSeconds.V
	priority, ok := e.rate(threshold.ReplicationLag, lag)
	if !ok {
		return nil, nil
	}
	return []models.Recommendation{{
		Priority: priority,
		Title:    "High replication lag",
		Why:      fmt.Sprintf("Replica is %.0fs behind primary", lag),
		Impact:   "Stale reads, potential data loss if failover occurs",
		Action:   "Check network latency, disk I/O, and write load on primary",
		Details:  models.Details{"lag_seconds": lag},
	}}, nil
}

func (e *Engine) lockRule(ctx context.Context) ([]models.Recommendation, error) {
	waiting, err := e.src.LockWaits(ctx)
	if err != nil {
		return nil, err
	}
	priority, ok := e.rate(threshold.LockWaits, float64(waiting))
	if !ok {
		return nil, nil
	}
	return []models.Recommendation{{
		Priority: priority,
		Title:    "High lock contention",
		Why:      fmt.Sprintf("%d queries waiting for locks", waiting),
		Impact:   "Queries blocked, potential deadlocks",
		Action:   "Identify blocking queries with pg_blocking_pids()",
		Details:  models.Details{"waiting_locks": waiting},
	}}, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
