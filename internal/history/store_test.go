package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	store.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReport(db string, at time.Time, cacheRatio float64) *models.Report {
	r := &models.Report{GeneratedAt: at, Database: db, Version: "PostgreSQL 16.2"}
	r.Add(
		models.Finding{
			Name:     "Cache Hit Ratio",
			Severity: severity.OK,
			Message:  "ok",
			Details:  models.Details{"ratio": cacheRatio, "label": "buffer cache", "enabled": true},
		},
		models.Finding{
			Name:     "Lock Waits",
			Severity: severity.Warning,
			Message:  "7 waiting",
			Details:  models.Details{"waiting": int64(7)},
		},
		models.Finding{Name: "Slow Queries", Severity: severity.Info, Message: "pg_stat_statements not installed"},
	)
	return r
}

func TestNewStoreRejectsNil(t *testing.T) {
	_, err := NewStore(nil)
	require.ErrorIs(t, err, ErrNilDB)
}

func TestRecordAndQueryEntries(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, sampleReport("app", fixedNow.Add(-time.Hour), 0.97), "abc123")
	require.NoError(t, err)
	assert.Positive(t, id)

	entries, err := store.QueryEntries(ctx, EntryQuery{Database: "app"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, id, e.ID)
	assert.Equal(t, "app", e.Database)
	assert.Equal(t, fixedNow.Add(-time.Hour), e.CheckedAt)
	assert.Equal(t, severity.Warning, e.WorstSeverity)
	assert.True(t, e.HasIssues)
	assert.Equal(t, 3, e.TotalChecks)
	assert.Equal(t, 1, e.Warnings)
	assert.Equal(t, 0, e.Criticals)
	assert.Equal(t, "abc123", e.ConnectionHash)
	assert.Equal(t, e.HasIssues, e.DerivedHasIssues())
}

func TestRecordWritesNumericMetricsOnly(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Record(ctx, sampleReport("app", fixedNow.Add(-time.Hour), 0.97), "")
	require.NoError(t, err)

	names, err := store.ListMetricNames(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cache Hit Ratio.ratio", "Lock Waits.waiting"}, names)

	points, err := store.QueryMetric(ctx, "app", "Lock Waits.waiting", 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 7.0, points[0].Value)
}

func TestRecordWithoutNumericDetails(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	r := &models.Report{GeneratedAt: fixedNow.Add(-time.Minute), Database: "app"}
	r.Add(
		models.Finding{Name: "Version", Severity: severity.OK, Message: "PostgreSQL 16.2", Details: models.Details{"label": "x", "enabled": true}},
		models.Finding{Name: "Replication", Severity: severity.OK, Message: "not a replica", Details: models.Details{}},
		models.Finding{Name: "Slow Queries", Severity: severity.Info, Message: "pg_stat_statements not installed"},
	)

	id, err := store.Record(ctx, r, "")
	require.NoError(t, err)
	assert.Positive(t, id)

	entries, err := store.QueryEntries(ctx, EntryQuery{Database: "app"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].TotalChecks)
	assert.False(t, entries[0].HasIssues)

	names, err := store.ListMetricNames(ctx, "app")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestQueryEntriesOrderingAndWindow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i, age := range []time.Duration{10 * 24 * time.Hour, 3 * time.Hour, 2 * time.Hour, time.Hour} {
		_, err := store.Record(ctx, sampleReport("app", fixedNow.Add(-age), 0.9+float64(i)/100), "")
		require.NoError(t, err)
	}
	_, err := store.Record(ctx, sampleReport("billing", fixedNow.Add(-time.Hour), 0.99), "")
	require.NoError(t, err)

	entries, err := store.QueryEntries(ctx, EntryQuery{Database: "app"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, fixedNow.Add(-time.Hour), entries[0].CheckedAt)
	assert.Equal(t, fixedNow.Add(-3*time.Hour), entries[2].CheckedAt)

	limited, err := store.QueryEntries(ctx, EntryQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	wide, err := store.QueryEntries(ctx, EntryQuery{Database: "app", Lookback: 30 * 24 * time.Hour})
	require.NoError(t, err)
	assert.Len(t, wide, 4)

	dbs, err := store.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "billing"}, dbs)
}

func TestQueryMetricIsChronological(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ratios := []float64{0.91, 0.95, 0.99}
	for i, r := range ratios {
		at := fixedNow.Add(-time.Duration(len(ratios)-i) * time.Hour)
		_, err := store.Record(ctx, sampleReport("app", at, r), "")
		require.NoError(t, err)
	}

	points, err := store.QueryMetric(ctx, "app", "Cache Hit Ratio.ratio", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, p := range points {
		assert.InDelta(t, ratios[i], p.Value, 1e-9)
	}
	assert.True(t, points[0].Timestamp.Before(points[2].Timestamp))

	missing, err := store.QueryMetric(ctx, "app", "No Such.metric", 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestPruneIsStrict(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	retention := 90 * 24 * time.Hour
	_, err := store.Record(ctx, sampleReport("app", fixedNow.Add(-retention), 0.97), "")
	require.NoError(t, err)
	_, err = store.Record(ctx, sampleReport("app", fixedNow.Add(-retention-time.Second), 0.97), "")
	require.NoError(t, err)

	result, err := store.Prune(ctx, retention)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Entries)
	assert.Equal(t, int64(2), result.Metrics)

	entries, err := store.QueryEntries(ctx, EntryQuery{Lookback: 365 * 24 * time.Hour})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fixedNow.Add(-retention), entries[0].CheckedAt)

	_, err = store.Prune(ctx, 0)
	require.Error(t, err)
}

func TestRecordJoinsContextTransaction(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	tx, err := store.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = store.Record(WithTransaction(ctx, tx), sampleReport("app", fixedNow.Add(-time.Minute), 0.97), "")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	entries, err := store.QueryEntries(ctx, EntryQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Nil(t, GetTransaction(ctx))
}

func TestConcurrentRecordsForDifferentDatabases(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Record(ctx, sampleReport(fmt.Sprintf("db%d", i), fixedNow.Add(-time.Minute), 0.97), "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	dbs, err := store.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"db0", "db1", "db2", "db3"}, dbs)
}

func TestSummarize(t *testing.T) {
	pts := func(values ...float64) []models.MetricPoint {
		out := make([]models.MetricPoint, len(values))
		for i, v := range values {
			out[i] = models.MetricPoint{Timestamp: fixedNow.Add(time.Duration(i) * time.Hour), Value: v}
		}
		return out
	}

	up := Summarize(pts(10, 5, 20))
	assert.Equal(t, 3, up.Points)
	assert.Equal(t, 10.0, up.First)
	assert.Equal(t, 20.0, up.Last)
	assert.Equal(t, 5.0, up.Min)
	assert.Equal(t, 20.0, up.Max)
	assert.InDelta(t, 35.0/3, up.Avg, 1e-9)
	assert.Equal(t, 10.0, up.Change)
	require.NotNil(t, up.ChangePct)
	assert.Equal(t, 100.0, *up.ChangePct)
	assert.Equal(t, DirectionUp, up.Direction)

	down := Summarize(pts(4, 2))
	assert.Equal(t, DirectionDown, down.Direction)
	assert.Equal(t, -50.0, *down.ChangePct)

	flat := Summarize(pts(0, 3, 0))
	assert.Equal(t, DirectionStable, flat.Direction)
	assert.Nil(t, flat.ChangePct)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Points)
	assert.Equal(t, DirectionStable, empty.Direction)
}
