package history

import (
	"context"
	"sync"
	"time"

	"github.com/ppiankov/pghealth/internal/models"
)

// File is a history store that holds the file lock only for the duration of each call,
// so that other pghealth processes can record between calls.
// Reads on a missing file return ErrNoHistory instead of creating it.
type File struct {
	path string
	wait time.Duration
	mu   sync.Mutex
}

// NewFile returns a File over path. wait bounds each lock wait; zero means DefaultLockWait.
func NewFile(path string, wait time.Duration) *File {
	return &File{path: path, wait: wait}
}

// Path returns the history file path.
func (f *File) Path() string {
	return f.path
}

func (f *File) with(ctx context.Context, create bool, fn func(*Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !create && !exists(f.path) {
		return ErrNoHistory
	}
	store, err := OpenContext(ctx, f.path, f.wait)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

// Record appends report, creating the file when needed.
func (f *File) Record(ctx context.Context, report *models.Report, connHash string) (int64, error) {
	var id int64
	err := f.with(ctx, true, func(s *Store) error {
		var err error
		id, err = s.Record(ctx, report, connHash)
		return err
	})
	return id, err
}

// QueryEntries see Store.QueryEntries.
func (f *File) QueryEntries(ctx context.Context, q EntryQuery) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	err := f.with(ctx, false, func(s *Store) error {
		var err error
		out, err = s.QueryEntries(ctx, q)
		return err
	})
	return out, err
}

// QueryMetric see Store.QueryMetric.
func (f *File) QueryMetric(ctx context.Context, database, metric string, lookback time.Duration) ([]models.MetricPoint, error) {
	var out []models.MetricPoint
	err := f.with(ctx, false, func(s *Store) error {
		var err error
		out, err = s.QueryMetric(ctx, database, metric, lookback)
		return err
	})
	return out, err
}

// ListDatabases see Store.ListDatabases.
func (f *File) ListDatabases(ctx context.Context) ([]string, error) {
	var out []string
	err := f.with(ctx, false, func(s *Store) error {
		var err error
		out, err = s.ListDatabases(ctx)
		return err
	})
	return out, err
}

// ListMetricNames see Store.ListMetricNames.
func (f *File) ListMetricNames(ctx context.Context, database string) ([]string, error) {
	var out []string
	err := f.with(ctx, false, func(s *Store) error {
		var err error
		out, err = s.ListMetricNames(ctx, database)
		return err
	})
	return out, err
}

// Prune see Store.Prune.
func (f *File) Prune(ctx context.Context, olderThan time.Duration) (PruneResult, error) {
	var out PruneResult
	err := f.with(ctx, false, func(s *Store) error {
		var err error
		out, err = s.Prune(ctx, olderThan)
		return err
	})
	return out, err
}
