package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/pghealth/internal/history"
	"github.com/ppiankov/pghealth/internal/models"
)

func TestWriteReportJSONIncludesDerivedFields(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(sampleReport(), Options{Format: FormatJSON}, &buf); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	for _, key := range []string{"generated_at", "database", "checks", "summary", "worst_severity", "has_issues", "outcome"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("expected key %q in JSON output", key)
		}
	}
	if decoded["worst_severity"] != "critical" {
		t.Fatalf("expected worst_severity critical, got %v", decoded["worst_severity"])
	}
	if decoded["has_issues"] != true {
		t.Fatalf("expected has_issues true, got %v", decoded["has_issues"])
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Fatalf("expected trailing newline after JSON document")
	}
}

func TestWriteJSONToOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	opts := Options{Format: FormatJSON, OutputDir: dir}

	if err := WriteReport(sampleReport(), opts, nil); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	payload, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("failed to read report.json: %v", err)
	}
	if !json.Valid(payload) {
		t.Fatalf("report.json is not valid JSON")
	}
}

func TestWriteRecommendationsJSON(t *testing.T) {
	recs := []models.Recommendation{
		{Priority: models.PriorityHigh, Title: "Increase shared_buffers", Why: "Cache hit ratio is 82.0%"},
	}

	var buf bytes.Buffer
	if err := WriteRecommendations(recs, Options{Format: FormatJSON}, &buf); err != nil {
		t.Fatalf("WriteRecommendations failed: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["priority"] != "high" {
		t.Fatalf("unexpected recommendations payload: %v", decoded)
	}
}

func TestWriteReportRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(sampleReport(), Options{Format: "xml"}, &buf)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}

	if err := WriteRecommendations(nil, Options{Format: FormatSARIF}, &buf); err == nil {
		t.Fatalf("expected sarif to be rejected for recommendations")
	}
}

func TestWriteReportNil(t *testing.T) {
	if err := WriteReport(nil, Options{}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for nil report")
	}
	if err := WriteFixBatch(nil, Options{}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for nil batch")
	}
}

func TestValidateFormat(t *testing.T) {
	if err := ValidateFormat(" JSON ", FormatText, FormatJSON); err != nil {
		t.Fatalf("expected JSON to validate, got %v", err)
	}
	if err := ValidateFormat("sarif", FormatText, FormatJSON); err == nil {
		t.Fatalf("expected sarif to be rejected")
	}
}

func TestWriteHistoryJSONEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHistory(nil, Options{Format: FormatJSON}, &buf); err != nil {
		t.Fatalf("WriteHistory failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Fatalf("expected empty JSON array, got %q", got)
	}
}

func TestWriteTrendJSON(t *testing.T) {
	points := []models.MetricPoint{
		{Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Value: 100},
		{Timestamp: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Value: 150},
	}
	doc := TrendDocument{
		Database: "app",
		Metric:   "database_size.bytes",
		Points:   points,
		Trend:    history.Summarize(points),
	}

	var buf bytes.Buffer
	if err := WriteTrend(doc, Options{Format: FormatJSON}, &buf); err != nil {
		t.Fatalf("WriteTrend failed: %v", err)
	}

	var decoded struct {
		Database string `json:"database"`
		Points   []any  `json:"points"`
		Trend    struct {
			Direction string  `json:"direction"`
			Change    float64 `json:"change"`
		} `json:"trend"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded.Database != "app" || len(decoded.Points) != 2 {
		t.Fatalf("unexpected document: %+v", decoded)
	}
	if decoded.Trend.Direction != "up" || decoded.Trend.Change != 50 {
		t.Fatalf("expected upward trend of 50, got %+v", decoded.Trend)
	}
}

func TestWriteTrendRejectsSARIF(t *testing.T) {
	err := WriteTrend(TrendDocument{}, Options{Format: FormatSARIF}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}
