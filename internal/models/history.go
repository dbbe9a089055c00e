package models

import (
	"time"

	"github.com/ppiankov/pghealth/internal/severity"
)

// HistoryEntry is the persisted severity shape of one report.
type HistoryEntry struct {
	ID             int64             `json:"id"`
	Database       string            `json:"database"`
	CheckedAt      time.Time         `json:"checked_at"`
	WorstSeverity  severity.Severity `json:"worst_severity"`
	HasIssues      bool              `json:"has_issues"`
	TotalChecks    int               `json:"total_checks"`
	Warnings       int               `json:"warnings"`
	Criticals      int               `json:"criticals"`
	ConnectionHash string            `json:"connection_hash,omitempty"`
}

// DerivedHasIssues recomputes has_issues from the stored counts.
func (e HistoryEntry) DerivedHasIssues() bool {
	return e.Warnings > 0 || e.Criticals > 0
}

// NewHistoryEntry captures the severity shape of r.
func NewHistoryEntry(r *Report) HistoryEntry {
	return HistoryEntry{
		Database:      r.Database,
		CheckedAt:     r.GeneratedAt,
		WorstSeverity: r.WorstSeverity(),
		HasIssues:     r.HasIssues(),
		TotalChecks:   len(r.Findings),
		Warnings:      r.Count(severity.Warning),
		Criticals:     r.Count(severity.Critical),
	}
}

// MetricPoint is one sample of a named metric.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
