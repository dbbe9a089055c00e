// Package reporter renders reports, recommendations, fix batches and history
// as text, JSON or SARIF.
package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/pghealth/internal/history"
	"github.com/ppiankov/pghealth/internal/models"
)

const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// Options controls where and how output is written.
// An empty OutputDir writes to the caller's writer.
type Options struct {
	Format    string
	OutputDir string
	NoColor   bool
	Version   string
}

// ValidateFormat rejects formats outside allowed.
func ValidateFormat(format string, allowed ...string) error {
	normalized := strings.ToLower(strings.TrimSpace(format))
	for _, a := range allowed {
		if normalized == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (expected %s)", format, strings.Join(allowed, ", "))
}

// WriteReport renders report in opts.Format.
func WriteReport(report *models.Report, opts Options, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		return WriteJSON(report, opts, "report.json", out)
	case FormatSARIF:
		return WriteSARIF(report, opts, out)
	case FormatText, "":
		return writeText(RenderReport(report, useColor(opts, out)), opts, "report.txt", out)
	default:
		return ValidateFormat(opts.Format, FormatText, FormatJSON, FormatSARIF)
	}
}

// WriteRecommendations renders recs in opts.Format.
func WriteRecommendations(recs []models.Recommendation, opts Options, out io.Writer) error {
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		return WriteJSON(recs, opts, "recommendations.json", out)
	case FormatText, "":
		return writeText(RenderRecommendations(recs, useColor(opts, out)), opts, "recommendations.txt", out)
	default:
		return ValidateFormat(opts.Format, FormatText, FormatJSON)
	}
}

// WriteFixBatch renders batch in opts.Format.
func WriteFixBatch(batch *models.FixBatch, opts Options, out io.Writer) error {
	if batch == nil {
		return fmt.Errorf("fix batch is nil")
	}
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		return WriteJSON(batch, opts, "fix.json", out)
	case FormatText, "":
		return writeText(RenderFixBatch(batch, useColor(opts, out)), opts, "fix.txt", out)
	default:
		return ValidateFormat(opts.Format, FormatText, FormatJSON)
	}
}

// WriteHistory renders history entries in opts.Format.
func WriteHistory(entries []models.HistoryEntry, opts Options, out io.Writer) error {
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		if entries == nil {
			entries = []models.HistoryEntry{}
		}
		return WriteJSON(entries, opts, "history.json", out)
	case FormatText, "":
		return writeText(RenderHistory(entries, useColor(opts, out)), opts, "history.txt", out)
	default:
		return ValidateFormat(opts.Format, FormatText, FormatJSON)
	}
}

// TrendDocument is the JSON form of one metric series.
type TrendDocument struct {
	Database string               `json:"database"`
	Metric   string               `json:"metric"`
	Points   []models.MetricPoint `json:"points"`
	Trend    history.Trend        `json:"trend"`
}

// WriteTrend renders a metric series and its trend in opts.Format.
func WriteTrend(doc TrendDocument, opts Options, out io.Writer) error {
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		if doc.Points == nil {
			doc.Points = []models.MetricPoint{}
		}
		return WriteJSON(doc, opts, "trend.json", out)
	case FormatText, "":
		rendered := RenderTrend(doc.Database, doc.Metric, doc.Points, doc.Trend, useColor(opts, out))
		return writeText(rendered, opts, "trend.txt", out)
	default:
		return ValidateFormat(opts.Format, FormatText, FormatJSON)
	}
}

func useColor(opts Options, out io.Writer) bool {
	return !opts.NoColor && supportsANSI(out)
}
