package collector

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ppiankov/pghealth/internal/models"
)

// DatabaseSize is the current database and its on-disk size.
type DatabaseSize struct {
	Name   string
	Bytes  int64
	Pretty string
}

// ReplicationStatus says whether the server is a standby and how far it lags.
type ReplicationStatus struct {
	IsReplica  bool
	LagSeconds sql.Null[float64]
}

// ConnectionStats counts backends of the current database.
type ConnectionStats struct {
	Total  int64
	Active int64
	Idle   int64
	Max    int64
}

// UsageRatio returns Total/Max. It is absent when max_connections is unknown.
func (s ConnectionStats) UsageRatio() (float64, bool) {
	if s.Max <= 0 {
		return 0, false
	}
	return float64(s.Total) / float64(s.Max), true
}

// LongQuery is a statement that has been running for more than five minutes.
type LongQuery struct {
	PID             int64
	DurationSeconds float64
	Query           string
	State           string
}

// BloatRow is a table with a noticeable dead tuple count.
// DeadRatio is a percentage and absent for empty tables.
type BloatRow struct {
	Schema     string
	Table      string
	TableSize  string
	DeadTuples int64
	LiveTuples int64
	DeadRatio  sql.Null[float64]
}

// QualifiedName returns schema.table.
func (b BloatRow) QualifiedName() string {
	return b.Schema + "." + b.Table
}

// DuplicateIndex is a pair of non-unique indexes over the same columns.
type DuplicateIndex struct {
	Table     string
	Index1    string
	Index2    string
	TotalSize string
}

// FKMissingIndex is a foreign key column with no covering index.
type FKMissingIndex struct {
	Constraint string
	Table      string
	Column     string
	Referenced string
}

// XIDAge is a table's frozen transaction id age.
type XIDAge struct {
	Table string
	Age   int64
}

// SecurityCheck is one row of the security audit.
type SecurityCheck struct {
	Name   string
	Status string
}

// IsWarning reports whether the check flagged a problem.
func (s SecurityCheck) IsWarning() bool {
	return strings.HasPrefix(s.Status, "WARNING")
}

// Tablespace is a tablespace with its size.
type Tablespace struct {
	Name     string
	Size     string
	Location string
}

// VacuumTarget is a table with more than 10000 dead tuples.
type VacuumTarget struct {
	Schema     string
	Table      string
	DeadTuples int64
	LiveTuples int64
	DeadPct    float64
	TableSize  string
}

// QualifiedName returns schema.table.
func (v VacuumTarget) QualifiedName() string {
	return v.Schema + "." + v.Table
}

// SeqScanTable is a table read mostly by sequential scans.
type SeqScanTable struct {
	Schema     string
	Table      string
	SeqScans   int64
	SeqTupRead int64
	IdxScans   int64
	LiveTuples int64
	TableSize  string
	SizeBytes  int64
}

// QualifiedName returns schema.table.
func (s SeqScanTable) QualifiedName() string {
	return s.Schema + "." + s.Table
}

// LargeTable is a table above 1GB including indexes and toast.
type LargeTable struct {
	Schema    string
	Table     string
	TotalSize string
	SizeBytes int64
	Rows      int64
}

// QualifiedName returns schema.table.
func (l LargeTable) QualifiedName() string {
	return l.Schema + "." + l.Table
}

// StaleStats is a table modified heavily since its last analyze.
type StaleStats struct {
	Schema        string
	Table         string
	Modifications int64
	LiveTuples    int64
}

// QualifiedName returns schema.table.
func (s StaleStats) QualifiedName() string {
	return s.Schema + "." + s.Table
}

const maxQueryTextLen = 200

// truncateQuery cuts q to maxQueryTextLen runes so multi-byte text stays valid UTF-8.
func truncateQuery(q string) string {
	r := []rune(q)
	if len(r) <= maxQueryTextLen {
		return q
	}
	return string(r[:maxQueryTextLen]) + "..."
}

// Version returns the server version string up to the first comma.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version sql.NullString
	if err := c.queryRow(ctx, "version", versionQuery, &version); err != nil {
		return "", err
	}
	if !version.Valid || version.String == "" {
		return "Unknown", nil
	}
	return strings.TrimSpace(strings.SplitN(version.String, ",", 2)[0]), nil
}

// DatabaseSize returns the current database name and size.
func (c *Client) DatabaseSize(ctx context.Context) (DatabaseSize, error) {
	var out DatabaseSize
	err := c.queryRow(ctx, "database_size", databaseSizeQuery, &out.Name, &out.Bytes, &out.Pretty)
	return out, err
}

// Replication returns the standby status and replay lag.
func (c *Client) Replication(ctx context.Context) (ReplicationStatus, error) {
	var out ReplicationStatus
	err := c.queryRow(ctx, "replication_lag", replicationQuery, &out.IsReplica, &out.LagSeconds)
	return out, err
}

// LockWaits counts ungranted locks.
func (c *Client) LockWaits(ctx context.Context) (int64, error) {
	var n int64
	err := c.queryRow(ctx, "lock_waits", lockWaitsQuery, &n)
	return n, err
}

// CacheHitRatio returns the heap cache hit ratio, absent before any reads.
func (c *Client) CacheHitRatio(ctx context.Context) (sql.Null[float64], error) {
	var ratio sql.Null[float64]
	err := c.queryRow(ctx, "cache_hit_ratio", cacheHitRatioQuery, &ratio)
	return ratio, err
}

// IndexHitRatio returns the index cache hit ratio, absent before any reads.
func (c *Client) IndexHitRatio(ctx context.Context) (sql.Null[float64], error) {
	var ratio sql.Null[float64]
	err := c.queryRow(ctx, "index_hit_ratio", indexHitRatioQuery, &ratio)
	return ratio, err
}

// Connections returns backend counts for the current database.
func (c *Client) Connections(ctx context.Context) (ConnectionStats, error) {
	var out ConnectionStats
	var maxConns sql.NullInt64
	err := c.queryRow(ctx, "connection_count", connectionsQuery, &out.Total, &out.Active, &out.Idle, &maxConns)
	out.Max = maxConns.Int64
	return out, err
}

// VacuumStats returns the ten tables with the most dead tuples above 10000.
func (c *Client) VacuumStats(ctx context.Context) ([]models.VacuumInfo, error) {
	return queryAll(ctx, c, "vacuum_stats", vacuumStatsQuery, func(rows *sql.Rows) (models.VacuumInfo, error) {
		var v models.VacuumInfo
		var lastVacuum, lastAuto sql.NullTime
		if err := rows.Scan(&v.Schema, &v.Table, &v.DeadTuples, &lastVacuum, &lastAuto); err != nil {
			return v, err
		}
		if lastVacuum.Valid {
			v.LastVacuum = &lastVacuum.Time
		}
		if lastAuto.Valid {
			v.LastAutovacuum = &lastAuto.Time
		}
		return v, nil
	})
}

// LongRunningQueries returns non-idle statements running for over five minutes.
func (c *Client) LongRunningQueries(ctx context.Context) ([]LongQuery, error) {
	return queryAll(ctx, c, "long_running_queries", longRunningQueriesQuery, func(rows *sql.Rows) (LongQuery, error) {
		var q LongQuery
		var state sql.NullString
		err := rows.Scan(&q.PID, &q.DurationSeconds, &q.Query, &state)
		q.State = state.String
		q.Query = truncateQuery(q.Query)
		return q, err
	})
}

// UnusedIndexes returns never-scanned, non-unique, non-primary indexes by size, largest first.
func (c *Client) UnusedIndexes(ctx context.Context) ([]models.IndexInfo, error) {
	return queryAll(ctx, c, "unused_indexes", unusedIndexesQuery, func(rows *sql.Rows) (models.IndexInfo, error) {
		idx := models.IndexInfo{Unused: true}
		err := rows.Scan(&idx.Schema, &idx.Table, &idx.Name, &idx.Size, &idx.SizeBytes, &idx.Scans)
		return idx, err
	})
}

// StatsSince returns when usage statistics started accumulating.
func (c *Client) StatsSince(ctx context.Context) (sql.Null[time.Time], error) {
	var since sql.Null[time.Time]
	err := c.queryRow(ctx, "stats_reset", statsSinceQuery, &since)
	return since, err
}

// Bloat returns the ten tables with the most dead tuples above 1000.
func (c *Client) Bloat(ctx context.Context) ([]BloatRow, error) {
	return queryAll(ctx, c, "bloat_estimate", bloatQuery, func(rows *sql.Rows) (BloatRow, error) {
		var b BloatRow
		err := rows.Scan(&b.Schema, &b.Table, &b.TableSize, &b.DeadTuples, &b.LiveTuples, &b.DeadRatio)
		return b, err
	})
}

// MissingPrimaryKeys returns schema.table names of ordinary tables without a primary key.
func (c *Client) MissingPrimaryKeys(ctx context.Context) ([]string, error) {
	return queryAll(ctx, c, "missing_primary_keys", missingPrimaryKeysQuery, func(rows *sql.Rows) (string, error) {
		var schema, table string
		err := rows.Scan(&schema, &table)
		return schema + "." + table, err
	})
}

// TableSizes returns the twenty largest tables.
func (c *Client) TableSizes(ctx context.Context) ([]models.TableInfo, error) {
	return queryAll(ctx, c, "table_sizes", tableSizesQuery, func(rows *sql.Rows) (models.TableInfo, error) {
		var t models.TableInfo
		err := rows.Scan(&t.Schema, &t.Name, &t.RowCount, &t.TotalSize, &t.TableSize, &t.IndexSize)
		return t, err
	})
}

func scanSlowQuery(rows *sql.Rows) (models.SlowQuery, error) {
	var q models.SlowQuery
	err := rows.Scan(&q.Query, &q.Calls, &q.TotalTimeMs, &q.MeanTimeMs, &q.Rows)
	q.Query = truncateQuery(q.Query)
	return q, err
}

// SlowQueries returns the slowest statements by mean time.
// It fails with ErrUnavailable when pg_stat_statements is not installed.
func (c *Client) SlowQueries(ctx context.Context) ([]models.SlowQuery, error) {
	return queryAll(ctx, c, "slow_queries", slowQueriesQuery, scanSlowQuery)
}

// SlowQueryCandidates returns filtered statements averaging over 100ms.
// It fails with ErrUnavailable when pg_stat_statements is not installed.
func (c *Client) SlowQueryCandidates(ctx context.Context) ([]models.SlowQuery, error) {
	return queryAll(ctx, c, "missing_indexes_from_slow_queries", slowQueryCandidatesQuery, scanSlowQuery)
}

// DuplicateIndexes returns index pairs covering identical columns.
func (c *Client) DuplicateIndexes(ctx context.Context) ([]DuplicateIndex, error) {
	return queryAll(ctx, c, "duplicate_indexes", duplicateIndexesQuery, func(rows *sql.Rows) (DuplicateIndex, error) {
		var d DuplicateIndex
		err := rows.Scan(&d.Table, &d.Index1, &d.Index2, &d.TotalSize)
		return d, err
	})
}

// FKMissingIndexes returns foreign key columns lacking an index.
func (c *Client) FKMissingIndexes(ctx context.Context) ([]FKMissingIndex, error) {
	return queryAll(ctx, c, "fk_missing_indexes", fkMissingIndexesQuery, func(rows *sql.Rows) (FKMissingIndex, error) {
		var f FKMissingIndex
		err := rows.Scan(&f.Constraint, &f.Table, &f.Column, &f.Referenced)
		return f, err
	})
}

// XIDAges returns the oldest tables by frozen xid age, above 100 million.
func (c *Client) XIDAges(ctx context.Context) ([]XIDAge, error) {
	return queryAll(ctx, c, "table_age", xidAgeQuery, func(rows *sql.Rows) (XIDAge, error) {
		var x XIDAge
		err := rows.Scan(&x.Table, &x.Age)
		return x, err
	})
}

// SecurityChecks returns the basic security audit rows.
func (c *Client) SecurityChecks(ctx context.Context) ([]SecurityCheck, error) {
	return queryAll(ctx, c, "security_checks", securityChecksQuery, func(rows *sql.Rows) (SecurityCheck, error) {
		var s SecurityCheck
		err := rows.Scan(&s.Name, &s.Status)
		return s, err
	})
}

// Tablespaces returns every tablespace with its size.
func (c *Client) Tablespaces(ctx context.Context) ([]Tablespace, error) {
	return queryAll(ctx, c, "tablespace_usage", tablespacesQuery, func(rows *sql.Rows) (Tablespace, error) {
		var t Tablespace
		var location sql.NullString
		err := rows.Scan(&t.Name, &t.Size, &location)
		t.Location = location.String
		return t, err
	})
}

// SharedBuffers returns shared_buffers in human-readable form.
func (c *Client) SharedBuffers(ctx context.Context) (string, error) {
	var size sql.NullString
	if err := c.queryRow(ctx, "shared_buffers", sharedBuffersQuery, &size); err != nil {
		return "", err
	}
	if !size.Valid {
		return "unknown", nil
	}
	return size.String, nil
}

// TablesNeedingVacuum returns every table above 10000 dead tuples, most first.
func (c *Client) TablesNeedingVacuum(ctx context.Context) ([]VacuumTarget, error) {
	return queryAll(ctx, c, "tables_needing_vacuum", tablesNeedingVacuumQuery, func(rows *sql.Rows) (VacuumTarget, error) {
		var v VacuumTarget
		err := rows.Scan(&v.Schema, &v.Table, &v.DeadTuples, &v.LiveTuples, &v.DeadPct, &v.TableSize)
		return v, err
	})
}

// SeqScanCandidates returns tables dominated by sequential scans.
func (c *Client) SeqScanCandidates(ctx context.Context) ([]SeqScanTable, error) {
	return queryAll(ctx, c, "sequential_scan_candidates", seqScanCandidatesQuery, func(rows *sql.Rows) (SeqScanTable, error) {
		var s SeqScanTable
		err := rows.Scan(&s.Schema, &s.Table, &s.SeqScans, &s.SeqTupRead, &s.IdxScans, &s.LiveTuples, &s.TableSize, &s.SizeBytes)
		return s, err
	})
}

// LargeTables returns tables above 1GB, largest first.
func (c *Client) LargeTables(ctx context.Context) ([]LargeTable, error) {
	return queryAll(ctx, c, "large_tables", largeTablesQuery, func(rows *sql.Rows) (LargeTable, error) {
		var l LargeTable
		err := rows.Scan(&l.Schema, &l.Table, &l.TotalSize, &l.SizeBytes, &l.Rows)
		return l, err
	})
}

// OutdatedStatistics returns tables with over 10% modified rows since the last analyze.
func (c *Client) OutdatedStatistics(ctx context.Context) ([]StaleStats, error) {
	return queryAll(ctx, c, "outdated_statistics", outdatedStatisticsQuery, scanStaleStats)
}

// TablesNeedingAnalyze returns the fix targets for statistics refresh.
func (c *Client) TablesNeedingAnalyze(ctx context.Context) ([]StaleStats, error) {
	return queryAll(ctx, c, "tables_needing_analyze", tablesNeedingAnalyzeQuery, scanStaleStats)
}

func scanStaleStats(rows *sql.Rows) (StaleStats, error) {
	var s StaleStats
	err := rows.Scan(&s.Schema, &s.Table, &s.Modifications, &s.LiveTuples)
	return s, err
}
