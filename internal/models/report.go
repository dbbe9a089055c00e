package models

import (
	"encoding/json"
	"time"

	"github.com/ppiankov/pghealth/internal/severity"
)

// Report is the ordered result of one inspection run.
// Summary, WorstSeverity and HasIssues are computed from Findings on every call.
type Report struct {
	GeneratedAt   time.Time    `json:"generated_at"`
	Database      string       `json:"database"`
	Version       string       `json:"version"`
	Findings      []Finding    `json:"checks"`
	Tables        []TableInfo  `json:"tables"`
	UnusedIndexes []IndexInfo  `json:"unused_indexes"`
	SlowQueries   []SlowQuery  `json:"slow_queries"`
	VacuumStats   []VacuumInfo `json:"vacuum_stats"`
}

// Add appends findings in order.
func (r *Report) Add(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// Summary counts findings per severity. Every severity is present.
func (r *Report) Summary() map[severity.Severity]int {
	counts := make(map[severity.Severity]int, len(severity.All()))
	for _, s := range severity.All() {
		counts[s] = 0
	}
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// WorstSeverity is Critical if any finding is critical, else Warning if any warns, else OK.
func (r *Report) WorstSeverity() severity.Severity {
	levels := make([]severity.Severity, 0, len(r.Findings))
	for _, f := range r.Findings {
		levels = append(levels, f.Severity)
	}
	return severity.Worst(levels...)
}

// HasIssues reports whether any finding is a warning or critical.
func (r *Report) HasIssues() bool {
	return r.WorstSeverity().IsIssue()
}

// Outcome maps the worst severity to the three-level status.
func (r *Report) Outcome() severity.Outcome {
	return severity.OutcomeOf(r.WorstSeverity())
}

// Count returns the number of findings at level s.
func (r *Report) Count(s severity.Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// FindingsAt returns findings at level s in report order.
func (r *Report) FindingsAt(s severity.Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// MarshalJSON adds the derived fields so consumers never recompute them.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	summary := make(map[string]int, len(severity.All()))
	for s, n := range r.Summary() {
		summary[s.String()] = n
	}
	return json.Marshal(struct {
		plain
		Summary       map[string]int    `json:"summary"`
		WorstSeverity severity.Severity `json:"worst_severity"`
		HasIssues     bool              `json:"has_issues"`
		Outcome       severity.Outcome  `json:"outcome"`
	}{
		plain:         plain(r),
		Summary:       summary,
		WorstSeverity: r.WorstSeverity(),
		HasIssues:     r.HasIssues(),
		Outcome:       r.Outcome(),
	})
}
