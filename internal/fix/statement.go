package fix

import (
	"fmt"

	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/models"
)

// statement is one planned remediation with its result wording.
type statement struct {
	category models.FixCategory
	target   string
	sql      string
	details  models.Details
	would    string
	did      string
	verb     string
}

func dropIndex(idx models.IndexInfo) statement {
	name := idx.QualifiedName()
	return statement{
		category: models.FixUnusedIndexes,
		target:   name,
		sql:      DropIndexStatement(idx.Schema, idx.Name),
		details: models.Details{
			"schema":     idx.Schema,
			"table":      idx.Table,
			"index":      idx.Name,
			"size":       idx.Size,
			"size_bytes": idx.SizeBytes,
		},
		would: fmt.Sprintf("Would drop index %s (%s)", name, idx.Size),
		did:   fmt.Sprintf("Dropped index %s (%s)", name, idx.Size),
		verb:  "drop",
	}
}

func vacuum(t collector.VacuumTarget, analyze bool) statement {
	name := t.QualifiedName()
	return statement{
		category: models.FixVacuum,
		target:   name,
		sql:      VacuumStatement(t.Schema, t.Table, analyze),
		details: models.Details{
			"schema":      t.Schema,
			"table":       t.Table,
			"dead_tuples": t.DeadTuples,
			"dead_pct":    t.DeadPct,
			"table_size":  t.TableSize,
		},
		would: fmt.Sprintf("Would vacuum %s (%s dead tuples, %.1f%% bloat)", name, models.FormatCount(t.DeadTuples), t.DeadPct),
		did:   "Vacuumed " + name,
		verb:  "vacuum",
	}
}

func analyze(t collector.StaleStats) statement {
	name := t.QualifiedName()
	return statement{
		category: models.FixAnalyze,
		target:   name,
		sql:      AnalyzeStatement([2]string{t.Schema, t.Table}),
		details: models.Details{
			"schema":        t.Schema,
			"table":         t.Table,
			"modifications": t.Modifications,
			"rows":          t.LiveTuples,
		},
		would: fmt.Sprintf("Would analyze %s (%s modifications since last analyze)", name, models.FormatCount(t.Modifications)),
		did:   "Analyzed " + name,
		verb:  "analyze",
	}
}

func (s statement) result(executed, success bool, message string) models.FixResult {
	return models.FixResult{
		FixType:  s.category,
		Target:   s.target,
		SQL:      s.sql,
		Executed: executed,
		Success:  success,
		Message:  message,
		Details:  s.details,
	}
}

func (s statement) preview() models.FixResult {
	return s.result(false, true, s.would)
}

func (s statement) succeeded() models.FixResult {
	return s.result(true, true, s.did)
}

func (s statement) failed(err error) models.FixResult {
	return s.result(true, false, fmt.Sprintf("Failed to %s %s: %v", s.verb, s.target, err))
}

// skipped marks a statement that execute mode never ran. It counts as an executed failure.
func (s statement) skipped(err error) models.FixResult {
	return s.result(true, false, fmt.Sprintf("Skipped %s %s: %v", s.verb, s.target, err))
}
