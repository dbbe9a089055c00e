package models

import (
	"sort"
	"time"

	"github.com/ppiankov/pghealth/internal/severity"
)

// Details is the open key/value bag attached to findings, recommendations and fix results.
// Values are scalars: numbers, strings or booleans.
type Details map[string]any

// Finding is one evaluated check.
type Finding struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Severity    severity.Severity `json:"severity"`
	Message     string            `json:"message"`
	Details     Details           `json:"details,omitempty"`
	Suggestion  string            `json:"suggestion,omitempty"`
}

// NumericDetails returns the numeric detail values of f keyed by detail name.
// Booleans are never numeric.
func (f Finding) NumericDetails() map[string]float64 {
	out := make(map[string]float64)
	for key, value := range f.Details {
		if v, ok := NumericValue(value); ok {
			out[key] = v
		}
	}
	return out
}

// MetricSample is one numeric detail extracted from a finding.
type MetricSample struct {
	Name  string
	Value float64
}

// MetricName joins a finding name and a detail key.
func MetricName(finding, key string) string {
	return finding + "." + key
}

// MetricSamples extracts every numeric detail of every finding, in finding order
// and sorted by key within a finding.
func MetricSamples(findings []Finding) []MetricSample {
	var samples []MetricSample
	for _, f := range findings {
		values := f.NumericDetails()
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			samples = append(samples, MetricSample{Name: MetricName(f.Name, k), Value: values[k]})
		}
	}
	return samples
}

// NumericValue converts integer and float kinds to float64.
// It switches on the dynamic type, so bool is rejected even though some encoders treat it as 0/1.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// TableInfo is a table with its size breakdown.
type TableInfo struct {
	Schema    string `json:"schema"`
	Name      string `json:"name"`
	RowCount  int64  `json:"row_count"`
	TotalSize string `json:"total_size"`
	TableSize string `json:"table_size"`
	IndexSize string `json:"index_size"`
}

// QualifiedName returns schema.name.
func (t TableInfo) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// IndexInfo is an index and its usage.
type IndexInfo struct {
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"size_bytes"`
	Scans     int64  `json:"scans"`
	Unused    bool   `json:"unused"`
}

// QualifiedName returns schema.index.
func (i IndexInfo) QualifiedName() string {
	return i.Schema + "." + i.Name
}

// QualifiedTable returns schema.table.
func (i IndexInfo) QualifiedTable() string {
	return i.Schema + "." + i.Table
}

// SlowQuery is one pg_stat_statements row.
type SlowQuery struct {
	Query       string  `json:"query"`
	Calls       int64   `json:"calls"`
	TotalTimeMs float64 `json:"total_time_ms"`
	MeanTimeMs  float64 `json:"mean_time_ms"`
	Rows        int64   `json:"rows"`
}

// VacuumInfo is a table's dead tuple state.
type VacuumInfo struct {
	Schema         string     `json:"schema"`
	Table          string     `json:"table"`
	DeadTuples     int64      `json:"dead_tuples"`
	LastVacuum     *time.Time `json:"last_vacuum,omitempty"`
	LastAutovacuum *time.Time `json:"last_autovacuum,omitempty"`
}

// QualifiedName returns schema.table.
func (v VacuumInfo) QualifiedName() string {
	return v.Schema + "." + v.Table
}
