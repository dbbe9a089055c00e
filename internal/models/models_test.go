package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/pghealth/internal/severity"
)

func TestNumericValue(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{name: "int", value: 42, want: 42, ok: true},
		{name: "int64", value: int64(7), want: 7, ok: true},
		{name: "uint32", value: uint32(3), want: 3, ok: true},
		{name: "float64", value: 0.5, want: 0.5, ok: true},
		{name: "float32", value: float32(0.25), want: 0.25, ok: true},
		{name: "bool true", value: true, ok: false},
		{name: "bool false", value: false, ok: false},
		{name: "string", value: "12", ok: false},
		{name: "nil", value: nil, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NumericValue(tc.value)
			if ok != tc.ok {
				t.Fatalf("NumericValue(%v) ok = %v, want %v", tc.value, ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("NumericValue(%v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestMetricSamples(t *testing.T) {
	findings := []Finding{
		{Name: "Cache Hit Ratio", Details: Details{"ratio": 0.97}},
		{Name: "Replication Lag", Details: Details{"is_replica": false}},
		{Name: "Connection Usage", Details: Details{"total": 10, "max": 100, "note": "x"}},
		{Name: "Security Checks"},
	}

	samples := MetricSamples(findings)
	want := []MetricSample{
		{Name: "Cache Hit Ratio.ratio", Value: 0.97},
		{Name: "Connection Usage.max", Value: 100},
		{Name: "Connection Usage.total", Value: 10},
	}
	if len(samples) != len(want) {
		t.Fatalf("expected %d samples, got %d: %+v", len(want), len(samples), samples)
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Fatalf("sample %d = %+v, want %+v", i, samples[i], want[i])
		}
	}
}

func TestReportDerivedFields(t *testing.T) {
	cases := []struct {
		name   string
		levels []severity.Severity
		worst  severity.Severity
		issues bool
	}{
		{name: "ok_info", levels: []severity.Severity{severity.OK, severity.Info, severity.Info}, worst: severity.OK},
		{name: "warning", levels: []severity.Severity{severity.OK, severity.Warning, severity.Info}, worst: severity.Warning, issues: true},
		{name: "critical", levels: []severity.Severity{severity.Critical, severity.OK}, worst: severity.Critical, issues: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Report{}
			for i, s := range tc.levels {
				r.Add(Finding{Name: string(rune('a' + i)), Severity: s})
			}
			if got := r.WorstSeverity(); got != tc.worst {
				t.Fatalf("WorstSeverity = %v, want %v", got, tc.worst)
			}
			if r.HasIssues() != tc.issues {
				t.Fatalf("HasIssues = %v, want %v", r.HasIssues(), tc.issues)
			}

			entry := NewHistoryEntry(r)
			if entry.DerivedHasIssues() != r.HasIssues() {
				t.Fatalf("derived has_issues %v does not match report %v", entry.DerivedHasIssues(), r.HasIssues())
			}
			if entry.TotalChecks != len(tc.levels) {
				t.Fatalf("TotalChecks = %d", entry.TotalChecks)
			}
		})
	}
}

func TestReportSummaryRecomputed(t *testing.T) {
	r := &Report{}
	r.Add(Finding{Name: "a", Severity: severity.Info})
	if r.Summary()[severity.Warning] != 0 {
		t.Fatalf("expected zero warnings")
	}

	r.Add(Finding{Name: "b", Severity: severity.Warning})
	summary := r.Summary()
	if summary[severity.Warning] != 1 || summary[severity.Info] != 1 {
		t.Fatalf("unexpected summary %v", summary)
	}
	if len(summary) != 4 {
		t.Fatalf("expected every severity in summary, got %v", summary)
	}
}

func TestReportJSONIncludesDerivedFields(t *testing.T) {
	r := Report{
		GeneratedAt: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		Database:    "app",
		Findings: []Finding{
			{Name: "Lock Waits", Severity: severity.Critical, Message: "25 waiting"},
		},
	}

	payload, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("failed to marshal report: %v", err)
	}
	body := string(payload)
	for _, want := range []string{
		`"worst_severity":"critical"`,
		`"has_issues":true`,
		`"outcome":"critical"`,
		`"checks":[`,
		`"critical":1`,
		`"ok":0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestFixBatchCounts(t *testing.T) {
	b := FixBatch{Results: []FixResult{
		{Executed: true, Success: true},
		{Executed: true, Success: false},
		{Executed: false, Success: true},
	}}
	if b.Succeeded() != 1 || b.Failed() != 1 {
		t.Fatalf("unexpected counts succeeded=%d failed=%d", b.Succeeded(), b.Failed())
	}
}

func TestPriorityJSON(t *testing.T) {
	payload, err := json.Marshal(Recommendation{Priority: PriorityMedium, Title: "t", FixType: FixVacuum})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(payload), `"priority":"medium"`) || !strings.Contains(string(payload), `"fix_type":"vacuum"`) {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -1500: "-1,500"}
	for in, want := range cases {
		if got := FormatCount(in); got != want {
			t.Fatalf("FormatCount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{0: "0.0B", 512: "512.0B", 2048: "2.0KB", 15 << 20: "15.0MB", 3 << 30: "3.0GB"}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
