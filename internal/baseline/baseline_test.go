package baseline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/pghealth/internal/models"
)

func TestCollectFingerprintsDeterministic(t *testing.T) {
	first := []models.Recommendation{
		{Priority: models.PriorityMedium, Title: "Drop unused index orders_legacy_idx", Why: "Index size 12 MB", SQL: `DROP INDEX "public"."orders_legacy_idx";`, FixType: models.FixUnusedIndexes},
		{Priority: models.PriorityHigh, Title: "VACUUM ANALYZE public.orders", Why: "50,000 dead tuples (20.0%)", FixType: models.FixVacuum},
	}
	// Same targets with different measurements and order.
	second := []models.Recommendation{
		{Priority: models.PriorityHigh, Title: "VACUUM ANALYZE public.orders", Why: "90,000 dead tuples (31.0%)", FixType: models.FixVacuum},
		{Priority: models.PriorityLow, Title: "Drop unused index orders_legacy_idx", Why: "Index size 14 MB", SQL: `DROP INDEX "public"."orders_legacy_idx";`, FixType: models.FixUnusedIndexes},
	}

	if a, b := CollectFingerprints(first), CollectFingerprints(second); !reflect.DeepEqual(a, b) {
		t.Fatalf("expected deterministic fingerprints, got %v vs %v", a, b)
	}
}

func TestFingerprintDistinguishesSlowQueries(t *testing.T) {
	a := models.Recommendation{Title: "Optimize slow query", Details: models.Details{"query": "SELECT 1"}}
	b := models.Recommendation{Title: "Optimize slow query", Details: models.Details{"query": "SELECT 2"}}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("expected different fingerprints for different queries")
	}
}

func TestSuppressKnownFiltersRecommendations(t *testing.T) {
	recs := []models.Recommendation{
		{Title: "Increase shared_buffers"},
		{Title: "VACUUM ANALYZE public.orders", FixType: models.FixVacuum},
		{Title: "VACUUM ANALYZE public.events", FixType: models.FixVacuum},
		{Title: "Update table statistics", FixType: models.FixAnalyze},
	}

	known := Set{}
	AddAll(known, []string{Fingerprint(recs[0]), Fingerprint(recs[2]), ""})

	remaining, suppressed := SuppressKnown(recs, known)
	if suppressed != 2 {
		t.Fatalf("expected 2 suppressed recommendations, got %d", suppressed)
	}
	titles := make([]string, 0, len(remaining))
	for _, r := range remaining {
		titles = append(titles, r.Title)
	}
	if !reflect.DeepEqual(titles, []string{"VACUUM ANALYZE public.orders", "Update table statistics"}) {
		t.Fatalf("unexpected remaining recommendations: %v", titles)
	}

	all, none := SuppressKnown(recs, Set{})
	if none != 0 || len(all) != len(recs) {
		t.Fatalf("empty baseline should suppress nothing")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "baseline.json")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("expected missing baseline file to be allowed, got %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty set for missing baseline, got %d", len(loaded))
	}

	set := Set{
		"b": {},
		"a": {},
	}
	if err := Save(path, set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(loaded))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read baseline file: %v", err)
	}
	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("failed to unmarshal baseline file: %v", err)
	}
	if file.Version != fileVersion {
		t.Fatalf("expected version %d, got %d", fileVersion, file.Version)
	}
	if !reflect.DeepEqual(file.Fingerprints, []string{"a", "b"}) {
		t.Fatalf("expected sorted fingerprints [a b], got %+v", file.Fingerprints)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	payload := `{"version":999,"fingerprints":[]}`
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatalf("failed to write baseline file: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported baseline version") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	if _, err := Load("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if err := Save("", Set{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
