package fix

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/pghealth/internal/collector"
	"github.com/ppiankov/pghealth/internal/models"
)

type fakeTargets struct {
	indexes    []models.IndexInfo
	vacuum     []collector.VacuumTarget
	analyze    []collector.StaleStats
	indexErr   error
	vacuumErr  error
	analyzeErr error
	calls      int
}

func (f *fakeTargets) UnusedIndexes(context.Context) ([]models.IndexInfo, error) {
	f.calls++
	return f.indexes, f.indexErr
}

func (f *fakeTargets) TablesNeedingVacuum(context.Context) ([]collector.VacuumTarget, error) {
	f.calls++
	return f.vacuum, f.vacuumErr
}

func (f *fakeTargets) TablesNeedingAnalyze(context.Context) ([]collector.StaleStats, error) {
	f.calls++
	return f.analyze, f.analyzeErr
}

type globExcluder []string

func (g globExcluder) IsTableExcluded(qualified string) bool {
	for _, p := range g {
		if ok, _ := path.Match(p, qualified); ok {
			return true
		}
	}
	return false
}

func sampleTargets() *fakeTargets {
	return &fakeTargets{
		indexes: []models.IndexInfo{
			{Schema: "public", Table: "orders", Name: "idx_orders_a", Size: "40 MB", SizeBytes: 40 << 20},
			{Schema: "public", Table: "orders", Name: "idx_orders_b", Size: "8 MB", SizeBytes: 8 << 20},
			{Schema: "public", Table: "users", Name: "idx_users_c", Size: "1 MB", SizeBytes: 1 << 20},
		},
		vacuum: []collector.VacuumTarget{
			{Schema: "public", Table: "events", DeadTuples: 250000, LiveTuples: 1000000, DeadPct: 20, TableSize: "1 GB"},
		},
		analyze: []collector.StaleStats{
			{Schema: "public", Table: "orders", Modifications: 42000, LiveTuples: 100000},
		},
	}
}

func newMockDB(t *testing.T) (*Executor, *fakeTargets, sqlmock.Sqlmock, func(...ExecutorOption) *Executor) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	targets := sampleTargets()
	build := func(opts ...ExecutorOption) *Executor {
		return NewExecutor(targets, db, opts...)
	}
	return build(), targets, mock, build
}

func TestApplyUnknownCategory(t *testing.T) {
	exec, _, _, _ := newMockDB(t)
	_, err := exec.Apply(context.Background(), models.FixCategory("reindex"), Options{DryRun: true})
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestDryRunPreviewsWithoutExecuting(t *testing.T) {
	exec, _, mock, _ := newMockDB(t)

	batch, err := exec.Apply(context.Background(), models.FixUnusedIndexes, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, batch.DryRun)
	require.Len(t, batch.Results, 3)

	first := batch.Results[0]
	assert.False(t, first.Executed)
	assert.True(t, first.Success)
	assert.Equal(t, `DROP INDEX "public"."idx_orders_a";`, first.SQL)
	assert.Equal(t, "Would drop index public.idx_orders_a (40 MB)", first.Message)
	assert.Equal(t, "public.idx_orders_a", first.Target)
	assert.Equal(t, 0, batch.Failed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteIsolatesFailures(t *testing.T) {
	exec, _, mock, _ := newMockDB(t)
	mock.ExpectExec(`DROP INDEX "public"."idx_orders_a";`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP INDEX "public"."idx_orders_b";`).WillReturnError(errors.New("index is in use"))
	mock.ExpectExec(`DROP INDEX "public"."idx_users_c";`).WillReturnResult(sqlmock.NewResult(0, 0))

	batch, err := exec.Apply(context.Background(), models.FixUnusedIndexes, Options{})
	require.NoError(t, err)
	require.Len(t, batch.Results, 3)

	assert.True(t, batch.Results[0].Success)
	assert.Equal(t, "Dropped index public.idx_orders_a (40 MB)", batch.Results[0].Message)
	assert.True(t, batch.Results[1].Executed)
	assert.False(t, batch.Results[1].Success)
	assert.Equal(t, "Failed to drop public.idx_orders_b: index is in use", batch.Results[1].Message)
	assert.True(t, batch.Results[2].Success)
	assert.Equal(t, 2, batch.Succeeded())
	assert.Equal(t, 1, batch.Failed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDryRunMatchesExecutionTargets(t *testing.T) {
	exec, _, mock, _ := newMockDB(t)

	preview, err := exec.Apply(context.Background(), models.FixAll, Options{DryRun: true})
	require.NoError(t, err)

	for _, r := range preview.Results {
		mock.ExpectExec(r.SQL).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	executed, err := exec.Apply(context.Background(), models.FixAll, Options{})
	require.NoError(t, err)

	require.Len(t, executed.Results, len(preview.Results))
	for i := range preview.Results {
		assert.Equal(t, preview.Results[i].SQL, executed.Results[i].SQL)
		assert.Equal(t, preview.Results[i].Target, executed.Results[i].Target)
		assert.True(t, executed.Results[i].Executed)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAllOrder(t *testing.T) {
	exec, targets, _, _ := newMockDB(t)

	batch, err := exec.Apply(context.Background(), models.FixAll, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, models.FixAll, batch.Category)

	var kinds []models.FixCategory
	for _, r := range batch.Results {
		kinds = append(kinds, r.FixType)
	}
	assert.Equal(t, []models.FixCategory{
		models.FixUnusedIndexes, models.FixUnusedIndexes, models.FixUnusedIndexes,
		models.FixVacuum,
		models.FixAnalyze,
	}, kinds)
	assert.Equal(t, `VACUUM ANALYZE "public"."events";`, batch.Results[3].SQL)
	assert.Equal(t, "Would vacuum public.events (250,000 dead tuples, 20.0% bloat)", batch.Results[3].Message)
	assert.Equal(t, `ANALYZE "public"."orders";`, batch.Results[4].SQL)
	assert.Equal(t, 3, targets.calls)
}

func TestTargetsAreReenumeratedEachCall(t *testing.T) {
	exec, targets, _, _ := newMockDB(t)

	_, err := exec.Apply(context.Background(), models.FixVacuum, Options{DryRun: true})
	require.NoError(t, err)
	targets.vacuum = nil
	batch, err := exec.Apply(context.Background(), models.FixVacuum, Options{DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	assert.Equal(t, 2, targets.calls)
}

func TestOptionsNarrowTargets(t *testing.T) {
	exec, _, _, build := newMockDB(t)

	byTable, err := exec.Apply(context.Background(), models.FixUnusedIndexes, Options{DryRun: true, Targets: []string{"users"}})
	require.NoError(t, err)
	require.Len(t, byTable.Results, 1)
	assert.Equal(t, "public.idx_users_c", byTable.Results[0].Target)

	byIndex, err := exec.Apply(context.Background(), models.FixUnusedIndexes, Options{DryRun: true, Targets: []string{"public.idx_orders_b"}})
	require.NoError(t, err)
	require.Len(t, byIndex.Results, 1)
	assert.Equal(t, "public.idx_orders_b", byIndex.Results[0].Target)

	limited, err := exec.Apply(context.Background(), models.FixUnusedIndexes, Options{DryRun: true, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited.Results, 2)

	noAnalyze, err := exec.Apply(context.Background(), models.FixVacuum, Options{DryRun: true, SkipAnalyze: true})
	require.NoError(t, err)
	require.Len(t, noAnalyze.Results, 1)
	assert.Equal(t, `VACUUM "public"."events";`, noAnalyze.Results[0].SQL)

	excluded, err := build(WithExcluder(globExcluder{"public.orders"})).Apply(context.Background(), models.FixAll, Options{DryRun: true})
	require.NoError(t, err)
	var targets []string
	for _, r := range excluded.Results {
		targets = append(targets, r.Target)
	}
	assert.Equal(t, []string{"public.idx_users_c", "public.events"}, targets)
}

func TestEnumerationFailureIsFatalForCategory(t *testing.T) {
	exec, targets, _, _ := newMockDB(t)
	targets.vacuumErr = errors.New("permission denied for view pg_stat_user_tables")

	batch, err := exec.Apply(context.Background(), models.FixAll, Options{DryRun: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list vacuum targets")
	require.NotNil(t, batch)
	assert.Len(t, batch.Results, 3)
}

func TestParallelExecutionKeepsOrder(t *testing.T) {
	_, _, mock, build := newMockDB(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec(`DROP INDEX "public"."idx_orders_a";`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP INDEX "public"."idx_orders_b";`).WillReturnError(errors.New("boom"))
	mock.ExpectExec(`DROP INDEX "public"."idx_users_c";`).WillReturnResult(sqlmock.NewResult(0, 0))

	exec := build(WithConcurrency(3), WithRate(1000))
	batch, err := exec.Apply(context.Background(), models.FixUnusedIndexes, Options{})
	require.NoError(t, err)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, "public.idx_orders_a", batch.Results[0].Target)
	assert.Equal(t, "public.idx_orders_b", batch.Results[1].Target)
	assert.False(t, batch.Results[1].Success)
	assert.Equal(t, "public.idx_users_c", batch.Results[2].Target)
	assert.Equal(t, 1, batch.Failed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelledExecutionReportsSkipped(t *testing.T) {
	exec, _, mock, _ := newMockDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch, err := exec.Apply(ctx, models.FixVacuum, Options{})
	require.NoError(t, err)
	require.False(t, batch.DryRun)
	require.Len(t, batch.Results, 1)
	assert.True(t, batch.Results[0].Executed, "only previews may report executed=false")
	assert.False(t, batch.Results[0].Success)
	assert.Equal(t, 0, batch.Succeeded())
	assert.Contains(t, batch.Results[0].Message, "Skipped vacuum public.events")
	assert.Equal(t, 1, batch.Failed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitedExecutionNeverReportsPreview(t *testing.T) {
	_, _, mock, build := newMockDB(t)
	exec := build(WithConcurrency(1), WithRate(0.001))

	mock.ExpectExec(`DROP INDEX "public"."idx_orders_a";`).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	batch, err := exec.Apply(ctx, models.FixUnusedIndexes, Options{})
	require.NoError(t, err)
	require.Len(t, batch.Results, 3)

	assert.True(t, batch.Results[0].Success)
	for _, r := range batch.Results[1:] {
		assert.True(t, r.Executed, "%s reported as a preview in execute mode", r.Target)
		assert.False(t, r.Success)
		assert.Contains(t, r.Message, "Skipped drop public.")
	}
	assert.Equal(t, 2, batch.Failed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatements(t *testing.T) {
	assert.Equal(t, `DROP INDEX "odd""schema"."idx";`, DropIndexStatement(`odd"schema`, "idx"))
	assert.Equal(t, `VACUUM "t";`, VacuumStatement("", "t", false))
	assert.Equal(t, `ANALYZE "a"."b", "c"."d";`, AnalyzeStatement([2]string{"a", "b"}, [2]string{"c", "d"}))
}
