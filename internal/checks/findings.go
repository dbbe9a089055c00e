package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
	"github.com/ppiankov/pghealth/internal/threshold"
)

// Finding names, in report order.
const (
	NameDatabaseSize       = "Database Size"
	NameReplicationLag     = "Replication Lag"
	NameLockWaits          = "Lock Waits"
	NameCacheHitRatio      = "Cache Hit Ratio"
	NameIndexHitRatio      = "Index Hit Ratio"
	NameConnectionUsage    = "Connection Usage"
	NameVacuumStats        = "Vacuum Stats"
	NameLongRunningQueries = "Long Running Queries"
	NameUnusedIndexes      = "Unused Indexes"
	NameTableBloat         = "Table Bloat"
	NameMissingPrimaryKeys = "Missing Primary Keys"
	NameSlowQueries        = "Slow Queries"
	NameDuplicateIndexes   = "Duplicate Indexes"
	NameFKMissingIndexes   = "FK Missing Indexes"
	NameTransactionIDAge   = "Transaction ID Age"
	NameSecurityChecks     = "Security Checks"
	NameTablespaceUsage    = "Tablespace Usage"
)

const (
	maxUnusedIndexes    = 20
	unusedIndexWarnOver = 5
	fkMissingWarnOver   = 3
	freshStatsDays      = 7
	listedTables        = 5
)

// suggestWhen returns text unless s is OK.
func suggestWhen(s severity.Severity, text string) string {
	if s == severity.OK {
		return ""
	}
	return text
}

func joinLimited(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + fmt.Sprintf(" (+%d more)", len(items)-limit)
}

func (a *Aggregator) checkVersion(ctx context.Context, r *models.Report) error {
	version, err := a.src.Version(ctx)
	if err != nil {
		return err
	}
	r.Version = version
	return nil
}

func (a *Aggregator) checkDatabaseSize(ctx context.Context, r *models.Report) error {
	size, err := a.src.DatabaseSize(ctx)
	if err != nil {
		return err
	}
	r.Database = size.Name
	r.Add(models.Finding{
		Name:        NameDatabaseSize,
		Description: "Total database size",
		Severity:    severity.Info,
		Message:     "Database size: " + size.Pretty,
		Details:     models.Details{"size_bytes": size.Bytes, "size_pretty": size.Pretty},
	})
	return nil
}

func (a *Aggregator) checkReplicationLag(ctx context.Context, r *models.Report) error {
	status, err := a.src.Replication(ctx)
	if err != nil {
		return err
	}

	f := models.Finding{
		Name:        NameReplicationLag,
		Description: "Time behind primary (replica only)",
	}
	switch {
	case !status.IsReplica:
		f.Severity = severity.Info
		f.Message = "Not a replica (primary server)"
		f.Details = models.Details{"is_replica": false}
	case !status.LagSeconds.Valid:
		f.Severity = severity.Info
		f.Message = "Replica has not replayed any transactions yet"
		f.Details = models.Details{"is_replica": true}
	default:
		lag := status.LagSeconds.V
		f.Severity = threshold.Evaluate(threshold.ReplicationLag, lag, a.thresholds)
		f.Message = fmt.Sprintf("Replication lag: %.0fs", lag)
		f.Details = models.Details{"lag_seconds": lag}
		f.Suggestion = suggestWhen(f.Severity, "Check network/disk I/O on replica")
	}
	r.Add(f)
	return nil
}

func (a *Aggregator) checkLockWaits(ctx context.Context, r *models.Report) error {
	waiting, err := a.src.LockWaits(ctx)
	if err != nil {
		return err
	}
	s := threshold.Evaluate(threshold.LockWaits, float64(waiting), a.thresholds)
	r.Add(models.Finding{
		Name:        NameLockWaits,
		Description: "Number of queries waiting for locks",
		Severity:    s,
		Message:     fmt.Sprintf("%d waiting locks", waiting),
		Details:     models.Details{"waiting_locks": waiting},
		Suggestion:  suggestWhen(s, "Investigate blocking queries"),
	})
	return nil
}

func (a *Aggregator) checkCacheHitRatio(ctx context.Context, r *models.Report) error {
	ratio, err := a.src.CacheHitRatio(ctx)
	if err != nil {
		return err
	}
	if !ratio.Valid {
		return nil
	}
	s := threshold.Evaluate(threshold.CacheHitRatio, ratio.V, a.thresholds)
	r.Add(models.Finding{
		Name:        NameCacheHitRatio,
		Description: "Percentage of data reads from cache vs disk",
		Severity:    s,
		Message:     fmt.Sprintf("Cache hit ratio: %.1f%%", ratio.V*100),
		Details:     models.Details{"ratio": ratio.V},
		Suggestion:  suggestWhen(s, "Increase shared_buffers if ratio is low"),
	})
	return nil
}

func (a *Aggregator) checkIndexHitRatio(ctx context.Context, r *models.Report) error {
	ratio, err := a.src.IndexHitRatio(ctx)
	if err != nil {
		return err
	}
	if !ratio.Valid {
		return nil
	}
	r.Add(models.Finding{
		Name:        NameIndexHitRatio,
		Description: "Percentage of index reads from cache",
		Severity:    threshold.Evaluate(threshold.IndexHitRatio, ratio.V, a.thresholds),
		Message:     fmt.Sprintf("Index hit ratio: %.1f%%", ratio.V*100),
		Details:     models.Details{"ratio": ratio.V},
	})
	return nil
}

func (a *Aggregator) checkConnections(ctx context.Context, r *models.Report) error {
	stats, err := a.src.Connections(ctx)
	if err != nil {
		return err
	}
	usage, ok := stats.UsageRatio()
	if !ok {
		return nil
	}
	r.Add(models.Finding{
		Name:        NameConnectionUsage,
		Description: "Current connections vs max_connections",
		Severity:    threshold.Evaluate(threshold.Connections, usage, a.thresholds),
		Message:     fmt.Sprintf("%d/%d connections (%.0f%%)", stats.Total, stats.Max, usage*100),
		Details: models.Details{
			"total":       stats.Total,
			"active":      stats.Active,
			"idle":        stats.Idle,
			"max":         stats.Max,
			"usage_ratio": usage,
		},
	})
	return nil
}

func (a *Aggregator) checkVacuumStats(ctx context.Context, r *models.Report) error {
	stats, err := a.src.VacuumStats(ctx)
	if err != nil {
		return err
	}

	f := models.Finding{
		Name:        NameVacuumStats,
		Description: "Tables with high dead tuple counts",
	}
	if len(stats) == 0 {
		f.Severity = severity.OK
		f.Message = "No tables with significant dead tuples"
		r.Add(f)
		return nil
	}

	limit := a.thresholds.Get(threshold.DeadTuples)
	var maxDead int64
	over := 0
	for _, v := range stats {
		if v.DeadTuples > maxDead {
			maxDead = v.DeadTuples
		}
		if float64(v.DeadTuples) > limit.Warning {
			over++
		}
	}

	f.Severity = threshold.EvaluateOr(threshold.DeadTuples, float64(maxDead), a.thresholds, severity.Info)
	f.Message = fmt.Sprintf("%d tables with > %s dead tuples (max: %s)", over, models.FormatCount(int64(limit.Warning)), models.FormatCount(maxDead))
	f.Details = models.Details{"tables_checked": len(stats), "max_dead_tuples": maxDead}
	f.Suggestion = suggestWhen(f.Severity, "Run VACUUM ANALYZE on affected tables")
	r.Add(f)
	r.VacuumStats = stats
	return nil
}

func (a *Aggregator) checkLongRunningQueries(ctx context.Context, r *models.Report) error {
	queries, err := a.src.LongRunningQueries(ctx)
	if err != nil {
		return err
	}

	f := models.Finding{
		Name:        NameLongRunningQueries,
		Description: "Queries running for more than 5 minutes",
	}
	if len(queries) == 0 {
		f.Severity = severity.OK
		f.Message = "No long-running queries"
		r.Add(f)
		return nil
	}

	var longest float64
	pids := make([]string, 0, len(queries))
	for _, q := range queries {
		if q.DurationSeconds > longest {
			longest = q.DurationSeconds
		}
		pids = append(pids, fmt.Sprintf("%d", q.PID))
	}
	f.Severity = severity.Warning
	f.Message = fmt.Sprintf("%d long-running queries detected", len(queries))
	f.Details = models.Details{
		"count":           len(queries),
		"longest_seconds": longest,
		"pids":            joinLimited(pids, 10),
	}
	f.Suggestion = "Review and optimize these queries or consider terminating"
	r.Add(f)
	return nil
}

func (a *Aggregator) checkUnusedIndexes(ctx context.Context, r *models.Report) error {
	unused, err := a.src.UnusedIndexes(ctx)
	if err != nil {
		return err
	}
	since, err := a.src.StatsSince(ctx)
	if err != nil {
		return err
	}

	note := ""
	if since.Valid {
		days := int(a.now().Sub(since.V).Hours() / 24)
		if days < freshStatsDays {
			note = fmt.Sprintf(" (stats only %dd old - may be inaccurate)", days)
		} else {
			note = " (since " + since.V.Format("2006-01-02") + ")"
		}
	}

	if len(unused) == 0 {
		r.Add(models.Finding{
			Name:        NameUnusedIndexes,
			Description: "Indexes that have never been scanned",
			Severity:    severity.OK,
			Message:     "No unused indexes found",
		})
		return nil
	}

	var total int64
	for _, idx := range unused {
		total += idx.SizeBytes
	}
	s := severity.Info
	if len(unused) > unusedIndexWarnOver {
		s = severity.Warning
	}
	r.Add(models.Finding{
		Name:        NameUnusedIndexes,
		Description: "Indexes that have never been scanned",
		Severity:    s,
		Message:     fmt.Sprintf("%d unused indexes found%s", len(unused), note),
		Details:     models.Details{"count": len(unused), "total_size_bytes": total},
		Suggestion:  "Review before dropping, small tables may use seq scan instead of index scan",
	})

	if len(unused) > maxUnusedIndexes {
		unused = unused[:maxUnusedIndexes]
	}
	r.UnusedIndexes = unused
	return nil
}

func (a *Aggregator) checkTableBloat(ctx context.Context, r *models.Report) error {
	rows, err := a.src.Bloat(ctx)
	if err != nil {
		return err
	}

	limit := a.thresholds.Get(threshold.TableBloat)
	var bloated []string
	var maxRatio float64
	for _, b := range rows {
		if !b.DeadRatio.Valid {
			continue
		}
		ratio := b.DeadRatio.V / 100
		if ratio > maxRatio {
			maxRatio = ratio
		}
		if ratio > limit.Warning {
			bloated = append(bloated, b.QualifiedName())
		}
	}

	f := models.Finding{
		Name:        NameTableBloat,
		Description: "Tables with high dead tuple ratio",
	}
	if len(bloated) == 0 {
		f.Severity = severity.OK
		f.Message = "No significant table bloat detected"
		r.Add(f)
		return nil
	}

	f.Severity = threshold.Evaluate(threshold.TableBloat, maxRatio, a.thresholds)
	f.Message = fmt.Sprintf("%d tables with >%.0f%% dead tuples", len(bloated), limit.Warning*100)
	f.Details = models.Details{
		"tables":         len(bloated),
		"max_dead_ratio": maxRatio,
		"table_names":    joinLimited(bloated, listedTables),
	}
	f.Suggestion = "Run VACUUM ANALYZE on these tables"
	r.Add(f)
	return nil
}

func (a *Aggregator) checkMissingPrimaryKeys(ctx context.Context, r *models.Report) error {
	tables, err := a.src.MissingPrimaryKeys(ctx)
	if err != nil {
		return err
	}

	f := models.Finding{
		Name:        NameMissingPrimaryKeys,
		Description: "Tables without primary keys",
	}
	if len(tables) == 0 {
		f.Severity = severity.OK
		f.Message = "All tables have primary keys"
	} else {
		f.Severity = severity.Warning
		f.Message = fmt.Sprintf("%d tables without primary keys", len(tables))
		f.Details = models.Details{"count": len(tables), "tables": joinLimited(tables, listedTables)}
		f.Suggestion = "Add primary keys for data integrity and replication support"
	}
	r.Add(f)
	return nil
}

func (a *Aggregator) collectTableSizes(ctx context.Context, r *models.Report) error {
	tables, err := a.src.TableSizes(ctx)
	if err != nil {
		return err
	}
	r.Tables = tables
	return nil
}

func (a *Aggregator) checkSlowQueries(ctx context.Context, r *models.Report) error {
	slow, err := a.src.SlowQueries(ctx)
	if collector.IsUnavailable(err) {
		r.Add(models.Finding{
			Name:        NameSlowQueries,
			Description: "Queries with high average execution time",
			Severity:    severity.Info,
			Message:     "pg_stat_statements extension not enabled",
			Suggestion:  "Enable pg_stat_statements for query performance insights",
		})
		return nil
	}
	if err != nil {
		return err
	}
	if len(slow) == 0 {
		return nil
	}

	var maxMean float64
	for _, q := range slow {
		if q.MeanTimeMs > maxMean {
			maxMean = q.MeanTimeMs
		}
	}
	r.SlowQueries = slow
	r.Add(models.Finding{
		Name:        NameSlowQueries,
		Description: "Queries with high average execution time",
		Severity:    severity.Info,
		Message:     fmt.Sprintf("Found %d potentially slow queries", len(slow)),
		Details:     models.Details{"count": len(slow), "max_mean_ms": maxMean},
		Suggestion:  "Review query plans and add indexes if needed",
	})
	return nil
}

func (a *Aggregator) checkDuplicateIndexes(ctx context.Context, r *models.Report) error {
	dups, err := a.src.DuplicateIndexes(ctx)
	if err != nil {
		return err
	}

	f := models.Finding{
		Name:        NameDuplicateIndexes,
		Description: "Indexes with identical columns on same table",
	}
	if len(dups) == 0 {
		f.Severity = severity.OK
		f.Message = "No duplicate indexes found"
	} else {
		pairs := make([]string, 0, len(dups))
		for _, d := range dups {
			pairs = append(pairs, d.Index1+"/"+d.Index2)
		}
		f.Severity = severity.Warning
		f.Message = fmt.Sprintf("%d duplicate index pair(s) found", len(dups))
		f.Details = models.Details{"count": len(dups), "pairs": joinLimited(pairs, listedTables)}
		f.Suggestion = "Review and drop redundant indexes to save space"
	}
	r.Add(f)
	return nil
}

func (a *Aggregator) checkFKMissingIndexes(ctx context.Context, r *models.Report) error {
	missing, err := a.src.FKMissingIndexes(ctx)
	if err != nil {
		return err
	}

	f := models.Finding{
		Name:        NameFKMissingIndexes,
		Description: "Foreign key columns without indexes",
	}
	if len(missing) == 0 {
		f.Severity = severity.OK
		f.Message = "All foreign keys have indexes"
		r.Add(f)
		return nil
	}

	columns := make([]string, 0, len(missing))
	for _, m := range missing {
		columns = append(columns, m.Table+"."+m.Column)
	}
	f.Severity = severity.Info
	if len(missing) > fkMissingWarnOver {
		f.Severity = severity.Warning
	}
	f.Message = fmt.Sprintf("%d foreign keys without indexes", len(missing))
	f.Details = models.Details{"count": len(missing), "columns": joinLimited(columns, listedTables)}
	f.Suggestion = "Add indexes on FK columns for faster JOINs and CASCADE deletes"
	r.Add(f)
	return nil
}

func (a *Aggregator) checkXIDAge(ctx context.Context, r *models.Report) error {
	ages, err := a.src.XIDAges(ctx)
	if err != nil {
		return err
	}

	f := models.Finding{
		Name:        NameTransactionIDAge,
		Description: "Table age approaching wraparound threshold",
	}
	if len(ages) == 0 {
		f.Severity = severity.OK
		f.Message = "All tables have healthy XID age"
		r.Add(f)
		return nil
	}

	var maxAge int64
	critical, warning := 0, 0
	names := make([]string, 0, len(ages))
	for _, x := range ages {
		if x.Age > maxAge {
			maxAge = x.Age
		}
		switch threshold.Evaluate(threshold.XIDAge, float64(x.Age), a.thresholds) {
		case severity.Critical:
			critical++
		case severity.Warning:
			warning++
		}
		names = append(names, x.Table)
	}
	f.Severity = threshold.Evaluate(threshold.XIDAge, float64(maxAge), a.thresholds)
	f.Message = fmt.Sprintf("Max XID age: %s (%d critical, %d warning)", models.FormatCount(maxAge), critical, warning)
	f.Details = models.Details{
		"max_age":     maxAge,
		"tables":      len(ages),
		"table_names": joinLimited(names, listedTables),
	}
	f.Suggestion = suggestWhen(f.Severity, "Run VACUUM FREEZE on old tables")
	r.Add(f)
	return nil
}

func (a *Aggregator) checkSecurity(ctx context.Context, r *models.Report) error {
	results, err := a.src.SecurityChecks(ctx)
	if err != nil {
		return err
	}

	details := models.Details{}
	issues := 0
	for _, c := range results {
		details[c.Name] = c.Status
		if c.IsWarning() {
			issues++
		}
	}
	details["issues"] = issues

	f := models.Finding{
		Name:        NameSecurityChecks,
		Description: "Basic security configuration audit",
		Details:     details,
	}
	if issues > 0 {
		f.Severity = severity.Warning
		f.Message = fmt.Sprintf("%d security warning(s)", issues)
		f.Suggestion = "Review and fix security warnings"
	} else {
		f.Severity = severity.OK
		f.Message = "No security issues detected"
	}
	r.Add(f)
	return nil
}

func (a *Aggregator) checkTablespaces(ctx context.Context, r *models.Report) error {
	spaces, err := a.src.Tablespaces(ctx)
	if err != nil {
		return err
	}
	if len(spaces) == 0 {
		return nil
	}

	details := models.Details{"count": len(spaces)}
	for _, ts := range spaces {
		details[ts.Name] = ts.Size
	}
	r.Add(models.Finding{
		Name:        NameTablespaceUsage,
		Description: "Tablespace sizes and locations",
		Severity:    severity.Info,
		Message:     fmt.Sprintf("%d tablespace(s)", len(spaces)),
		Details:     details,
	})
	return nil
}
