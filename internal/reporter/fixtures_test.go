package reporter

import (
	"time"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

func sampleReport() *models.Report {
	return &models.Report{
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Database:    "orders",
		Version:     "PostgreSQL 16.2",
		Findings: []models.Finding{
			{Name: "database_size", Description: "Total database size", Severity: severity.Info, Message: "Database size: 1.2 GB", Details: models.Details{"size_bytes": int64(1288490188)}},
			{Name: "cache_hit_ratio", Description: "Buffer cache hit ratio", Severity: severity.Critical, Message: "Cache hit ratio: 82.0%", Details: models.Details{"ratio": 0.82}, Suggestion: "Increase shared_buffers"},
			{Name: "connection_usage", Description: "Connection usage", Severity: severity.Warning, Message: "Connections: 85/100 (85.0%)", Details: models.Details{"current": 85, "max": 100}},
			{Name: "lock_waits", Description: "Blocked queries", Severity: severity.OK, Message: "No blocked queries"},
		},
		Tables: []models.TableInfo{
			{Schema: "public", Name: "orders", RowCount: 1500000, TotalSize: "820 MB"},
		},
		UnusedIndexes: []models.IndexInfo{
			{Schema: "public", Table: "orders", Name: "orders_legacy_idx", Size: "12 MB", Unused: true},
		},
		SlowQueries: []models.SlowQuery{
			{Query: "SELECT *\n  FROM orders WHERE status = $1", Calls: 1200, MeanTimeMs: 450},
		},
	}
}

func healthyReport() *models.Report {
	return &models.Report{
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Database:    "orders",
		Findings: []models.Finding{
			{Name: "lock_waits", Severity: severity.OK, Message: "No blocked queries"},
		},
	}
}
