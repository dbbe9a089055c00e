package suggest

import (
	"context"
	"database/sql"

	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/models"
)

// Source supplies the facts the rules read.
// *collector.Client satisfies it.
type Source interface {
	CacheHitRatio(ctx context.Context) (sql.Null[float64], error)
	SharedBuffers(ctx context.Context) (string, error)
	UnusedIndexes(ctx context.Context) ([]models.IndexInfo, error)
	TablesNeedingVacuum(ctx context.Context) ([]collector.VacuumTarget, error)
	SeqScanCandidates(ctx context.Context) ([]collector.SeqScanTable, error)
	LargeTables(ctx context.Context) ([]collector.LargeTable, error)
	OutdatedStatistics(ctx context.Context) ([]collector.StaleStats, error)
	SlowQueryCandidates(ctx context.Context) ([]models.SlowQuery, error)
	Connections(ctx context.Context) (collector.ConnectionStats, error)
	Replication(ctx context.Context) (collector.ReplicationStatus, error)
	LockWaits(ctx context.Context) (int64, error)
}

// Excluder filters tables by qualified name. *config.Config satisfies it.
type Excluder interface {
	IsTableExcluded(qualified string) bool
}
