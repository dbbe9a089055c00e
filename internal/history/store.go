package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

const (
	// DefaultLookback bounds list queries when none is given.
	DefaultLookback = 7 * 24 * time.Hour
	// DefaultLimit caps list queries when none is given.
	DefaultLimit = 100
	// DefaultRetention is the prune age used by the CLI.
	DefaultRetention = 90 * 24 * time.Hour
	// MaxLookbackDays caps day-based windows so they never overflow a time.Duration.
	MaxLookbackDays = 36500
)

// ValidateDays checks a day count for a lookback or retention window.
func ValidateDays(days int) error {
	if days <= 0 || days > MaxLookbackDays {
		return fmt.Errorf("days must be between 1 and %d, got %d", MaxLookbackDays, days)
	}
	return nil
}

// Days converts a validated day count into a duration.
func Days(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// ErrNilDB is returned by NewStore for a nil handle.
var ErrNilDB = errors.New("history database connection is nil")

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and writes check history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// EntryQuery filters QueryEntries. Zero values use the defaults.
type EntryQuery struct {
	Database string
	Lookback time.Duration
	Limit    int
}

// PruneResult counts rows removed by Prune.
type PruneResult struct {
	Entries int64 `json:"entries"`
	Metrics int64 `json:"metrics"`
}

// NewStore wraps an open history database.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	return &Store{db: db, now: time.Now}, nil
}

// Open opens the history file at path and returns a Store over it.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return NewStore(db)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record writes the report summary and one metric row per numeric detail in one transaction.
// When ctx already carries a transaction the writes join it and nothing is committed here.
func (s *Store) Record(ctx context.Context, report *models.Report, connHash string) (int64, error) {
	if report == nil {
		return 0, errors.New("report is nil")
	}

	if tx := GetTransaction(ctx); tx != nil {
		return s.record(ctx, tx, report, connHash)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	id, err := s.record(ctx, tx, report, connHash)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit history: %w", err)
	}
	return id, nil
}

func (s *Store) record(ctx context.Context, exec execer, report *models.Report, connHash string) (int64, error) {
	entry := models.NewHistoryEntry(report)
	checkedAt := entry.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = s.now()
	}
	checkedAt = checkedAt.UTC()

	checks, err := json.Marshal(report.Findings)
	if err != nil {
		return 0, fmt.Errorf("marshal checks: %w", err)
	}

	var id int64
	err = exec.QueryRowContext(ctx, `
		INSERT INTO health_checks (
			database_name, checked_at, worst_severity, has_issues,
			total_checks, warnings, criticals, checks_json, connection_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		entry.Database,
		checkedAt,
		entry.WorstSeverity.String(),
		entry.HasIssues,
		entry.TotalChecks,
		entry.Warnings,
		entry.Criticals,
		string(checks),
		nullString(connHash),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert health check: %w", err)
	}

	samples := models.MetricSamples(report.Findings)
	for _, m := range samples {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO metrics (database_name, checked_at, metric_name, metric_value, connection_hash)
			VALUES (?, ?, ?, ?, ?)`,
			entry.Database, checkedAt, m.Name, m.Value, nullString(connHash),
		)
		if err != nil {
			return 0, fmt.Errorf("insert metric %s: %w", m.Name, err)
		}
	}

	slog.Debug("history recorded",
		slog.Int64("id", id),
		slog.String("database", entry.Database),
		slog.Int("metrics", len(samples)),
	)
	return id, nil
}

// QueryEntries returns summaries inside the lookback window, newest first.
func (s *Store) QueryEntries(ctx context.Context, q EntryQuery) ([]models.HistoryEntry, error) {
	lookback := q.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	since := s.now().UTC().Add(-lookback)

	query := `
		SELECT id, database_name, checked_at, worst_severity, has_issues,
		       total_checks, warnings, criticals, connection_hash
		FROM health_checks
		WHERE checked_at >= ?`
	args := []any{since}
	if q.Database != "" {
		query += ` AND database_name = ?`
		args = append(args, q.Database)
	}
	query += ` ORDER BY checked_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var (
			e     models.HistoryEntry
			worst string
			hash  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Database, &e.CheckedAt, &worst, &e.HasIssues,
			&e.TotalChecks, &e.Warnings, &e.Criticals, &hash); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.WorstSeverity, err = severity.Parse(worst)
		if err != nil {
			return nil, fmt.Errorf("history entry %d: %w", e.ID, err)
		}
		e.CheckedAt = e.CheckedAt.UTC()
		e.ConnectionHash = hash.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// QueryMetric returns the samples of metric for database inside lookback, oldest first.
func (s *Store) QueryMetric(ctx context.Context, database, metric string, lookback time.Duration) ([]models.MetricPoint, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	since := s.now().UTC().Add(-lookback)

	rows, err := s.db.QueryContext(ctx, `
		SELECT checked_at, metric_value
		FROM metrics
		WHERE database_name = ? AND metric_name = ? AND checked_at >= ?
		ORDER BY checked_at ASC, id ASC`,
		database, metric, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query metric %s: %w", metric, err)
	}
	defer rows.Close()

	points := []models.MetricPoint{}
	for rows.Next() {
		var p models.MetricPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// ListDatabases returns every database with recorded history, sorted.
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT database_name FROM health_checks ORDER BY database_name`)
}

// ListMetricNames returns the metric names recorded for database, sorted.
func (s *Store) ListMetricNames(ctx context.Context, database string) ([]string, error) {
	return s.strings(ctx, `
		SELECT DISTINCT metric_name FROM metrics
		WHERE database_name = ?
		ORDER BY metric_name`, database)
}

// Prune deletes every row checked strictly before now-olderThan.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (PruneResult, error) {
	if olderThan <= 0 {
		return PruneResult{}, fmt.Errorf("prune age must be positive, got %s", olderThan)
	}
	cutoff := s.now().UTC().Add(-olderThan)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PruneResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var result PruneResult
	res, err := tx.ExecContext(ctx, `DELETE FROM health_checks WHERE checked_at < ?`, cutoff)
	if err != nil {
		return PruneResult{}, fmt.Errorf("prune health checks: %w", err)
	}
	result.Entries, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM metrics WHERE checked_at < ?`, cutoff)
	if err != nil {
		return PruneResult{}, fmt.Errorf("prune metrics: %w", err)
	}
	result.Metrics, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return PruneResult{}, fmt.Errorf("commit prune: %w", err)
	}
	slog.Debug("history pruned",
		slog.Time("cutoff", cutoff),
		slog.Int64("entries", result.Entries),
		slog.Int64("metrics", result.Metrics),
	)
	return result, nil
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
