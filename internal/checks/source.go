package checks

import (
	"context"
	"database/sql"
	"time"

	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/models"
)

// Source supplies the raw facts behind each check.
// *collector.Client satisfies it.
type Source interface {
	Version(ctx context.Context) (string, error)
	DatabaseSize(ctx context.Context) (collector.DatabaseSize, error)
	Replication(ctx context.Context) (collector.ReplicationStatus, error)
	LockWaits(ctx context.Context) (int64, error)
	CacheHitRatio(ctx context.Context) (sql.Null[float64], error)
	IndexHitRatio(ctx context.Context) (sql.Null[float64], error)
	Connections(ctx context.Context) (collector.ConnectionStats, error)
	VacuumStats(ctx context.Context) ([]models.VacuumInfo, error)
	LongRunningQueries(ctx context.Context) ([]collector.LongQuery, error)
	UnusedIndexes(ctx context.Context) ([]models.IndexInfo, error)
	StatsSince(ctx context.Context) (sql.Null[time.Time], error)
	Bloat(ctx context.Context) ([]collector.BloatRow, error)
	MissingPrimaryKeys(ctx context.Context) ([]string, error)
	TableSizes(ctx context.Context) ([]models.TableInfo, error)
	SlowQueries(ctx context.Context) ([]models.SlowQuery, error)
	DuplicateIndexes(ctx context.Context) ([]collector.DuplicateIndex, error)
	FKMissingIndexes(ctx context.Context) ([]collector.FKMissingIndex, error)
	XIDAges(ctx context.Context) ([]collector.XIDAge, error)
	SecurityChecks(ctx context.Context) ([]collector.SecurityCheck, error)
	Tablespaces(ctx context.Context) ([]collector.Tablespace, error)
}
