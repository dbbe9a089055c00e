package reporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/pghealth/internal/history"
	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

const (
	maxListedIndexes     = 5
	maxListedTables      = 5
	maxListedSlowQueries = 3
	queryPreviewWidth    = 80
)

// RenderReport renders a report as a human-readable text block.
func RenderReport(report *models.Report, color bool) string {
	p := painter(color)
	var b strings.Builder

	database := strings.TrimSpace(report.Database)
	if database == "" {
		database = "unknown"
	}
	b.WriteString(p.paint(styleTitle, "PostgreSQL Health Report"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Database: %s\n", database)
	if report.Version != "" {
		fmt.Fprintf(&b, "Version: %s\n", report.Version)
	}
	fmt.Fprintf(&b, "Generated: %s\n\n", formatTime(report.GeneratedAt))

	writeTextSectionHeader(&b, "Health Checks", p)
	nameWidth := 0
	for _, f := range report.Findings {
		nameWidth = max(nameWidth, len(f.Name))
	}
	for _, f := range report.Findings {
		fmt.Fprintf(&b, "%s %-*s %s\n",
			severityIcons[f.Severity],
			nameWidth, f.Name,
			p.paint(severityStyle(f.Severity), f.Message),
		)
		if f.Suggestion != "" && f.Severity.IsIssue() {
			fmt.Fprintf(&b, "   %s\n", p.paint(styleMuted, "→ "+f.Suggestion))
		}
	}
	b.WriteString("\n")

	summary := report.Summary()
	fmt.Fprintf(&b, "%s %s, %s, %s, %s\n",
		p.paint(styleSection, "Summary:"),
		p.paint(severityStyle(severity.OK), fmt.Sprintf("%d OK", summary[severity.OK])),
		p.paint(severityStyle(severity.Info), fmt.Sprintf("%d Info", summary[severity.Info])),
		p.paint(severityStyle(severity.Warning), fmt.Sprintf("%d Warnings", summary[severity.Warning])),
		p.paint(severityStyle(severity.Critical), fmt.Sprintf("%d Critical", summary[severity.Critical])),
	)
	outcome := report.Outcome()
	fmt.Fprintf(&b, "%s %s\n", p.paint(styleSection, "Status:"), p.paint(outcomeStyle(outcome), strings.ToUpper(outcome.String())))

	if len(report.UnusedIndexes) > 0 {
		b.WriteString("\n")
		writeTextSectionHeader(&b, fmt.Sprintf("Unused Indexes (%d)", len(report.UnusedIndexes)), p)
		for i, idx := range report.UnusedIndexes {
			if i == maxListedIndexes {
				fmt.Fprintf(&b, "  ... and %d more\n", len(report.UnusedIndexes)-maxListedIndexes)
				break
			}
			fmt.Fprintf(&b, "  • %s.%s (%s)\n", idx.Table, idx.Name, idx.Size)
		}
	}

	if len(report.Tables) > 0 {
		b.WriteString("\n")
		writeTextSectionHeader(&b, "Largest Tables", p)
		for i, t := range report.Tables {
			if i == maxListedTables {
				break
			}
			fmt.Fprintf(&b, "  • %s: %s (%s rows)\n", t.QualifiedName(), t.TotalSize, models.FormatCount(t.RowCount))
		}
	}

	if len(report.SlowQueries) > 0 {
		b.WriteString("\n")
		writeTextSectionHeader(&b, "Slowest Queries", p)
		for i, q := range report.SlowQueries {
			if i == maxListedSlowQueries {
				break
			}
			fmt.Fprintf(&b, "  • %.0fms avg (%s calls)\n", q.MeanTimeMs, models.FormatCount(q.Calls))
			fmt.Fprintf(&b, "    %s\n", p.paint(styleMuted, truncateTextValue(oneLine(q.Query), queryPreviewWidth)))
		}
	}

	return b.String()
}

// RenderRecommendations renders recommendations numbered in their given order.
func RenderRecommendations(recs []models.Recommendation, color bool) string {
	p := painter(color)
	var b strings.Builder

	b.WriteString(p.paint(styleTitle, "Recommendations"))
	b.WriteString("\n\n")
	if len(recs) == 0 {
		b.WriteString(p.paint(severityStyle(severity.OK), "✅ No recommendations. Database looks healthy."))
		b.WriteString("\n")
		return b.String()
	}

	for i, r := range recs {
		label := "[" + strings.ToUpper(r.Priority.String()) + "]"
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, p.paint(priorityStyle(r.Priority), label), p.paint(styleSection, r.Title))
		fmt.Fprintf(&b, "   Why: %s\n", r.Why)
		if r.Impact != "" {
			fmt.Fprintf(&b, "   Impact: %s\n", r.Impact)
		}
		if r.SQL != "" {
			fmt.Fprintf(&b, "   SQL: %s\n", r.SQL)
		}
		if r.Action != "" {
			fmt.Fprintf(&b, "   Action: %s\n", r.Action)
		}
		if r.FixType != "" {
			fmt.Fprintf(&b, "   %s\n", p.paint(styleMuted, "Fix: pghealth fix "+string(r.FixType)))
		}
		b.WriteString("\n")
	}

	counts := map[models.Priority]int{}
	for _, r := range recs {
		counts[r.Priority]++
	}
	fmt.Fprintf(&b, "%s %d high, %d medium, %d low\n",
		p.paint(styleSection, "Total:"),
		counts[models.PriorityHigh], counts[models.PriorityMedium], counts[models.PriorityLow])
	return b.String()
}

// RenderFixBatch renders the results of one fix run.
func RenderFixBatch(batch *models.FixBatch, color bool) string {
	p := painter(color)
	var b strings.Builder

	title := "Fix " + string(batch.Category)
	if batch.DryRun {
		title += " (dry run)"
	}
	b.WriteString(p.paint(styleTitle, title))
	b.WriteString("\n\n")

	if len(batch.Results) == 0 {
		b.WriteString("Nothing to fix.\n")
		return b.String()
	}

	for _, r := range batch.Results {
		icon, style := "✅", severityStyle(severity.OK)
		switch {
		case !r.Executed && r.Success:
			icon, style = "🔍", styleMuted
		case !r.Success:
			icon, style = "❌", severityStyle(severity.Critical)
		}
		fmt.Fprintf(&b, "%s %s\n", icon, p.paint(style, r.Message))
		fmt.Fprintf(&b, "   %s\n", r.SQL)
	}

	b.WriteString("\n")
	if batch.DryRun {
		fmt.Fprintf(&b, "%d statements would run. Re-run with --execute to apply.\n", len(batch.Results))
	} else {
		fmt.Fprintf(&b, "%d succeeded, %d failed\n", batch.Succeeded(), batch.Failed())
	}
	return b.String()
}

// RenderHistory renders history entries as a table, newest first.
func RenderHistory(entries []models.HistoryEntry, color bool) string {
	p := painter(color)
	var b strings.Builder

	writeTextSectionHeader(&b, "Health Check History", p)
	if len(entries) == 0 {
		b.WriteString("No history recorded.\n")
		return b.String()
	}

	b.WriteString("CHECKED AT            DATABASE             STATUS     CHECKS WARN CRIT\n")
	b.WriteString("------------------------------------------------------------------------\n")
	for _, e := range entries {
		status := fmt.Sprintf("%-10s", e.WorstSeverity.String())
		fmt.Fprintf(&b, "%-21s %-20s %s %6d %4d %4d\n",
			e.CheckedAt.UTC().Format("2006-01-02 15:04:05"),
			truncateTextValue(e.Database, 20),
			p.paint(severityStyle(e.WorstSeverity), status),
			e.TotalChecks, e.Warnings, e.Criticals,
		)
	}
	return b.String()
}

// RenderTrend renders a metric series and its summary.
func RenderTrend(database, metric string, points []models.MetricPoint, trend history.Trend, color bool) string {
	p := painter(color)
	var b strings.Builder

	writeTextSectionHeader(&b, fmt.Sprintf("%s: %s", database, metric), p)
	if len(points) == 0 {
		b.WriteString("No data points in the selected window.\n")
		return b.String()
	}

	for _, pt := range points {
		fmt.Fprintf(&b, "  %s  %s\n", pt.Timestamp.UTC().Format("2006-01-02 15:04"), formatValue(pt.Value))
	}
	b.WriteString("\n")

	arrow := map[history.Direction]string{
		history.DirectionUp:     "↑",
		history.DirectionDown:   "↓",
		history.DirectionStable: "→",
	}[trend.Direction]
	change := formatValue(trend.Change)
	if trend.ChangePct != nil {
		change += fmt.Sprintf(" (%+.1f%%)", *trend.ChangePct)
	}
	fmt.Fprintf(&b, "Points: %d  Min: %s  Max: %s  Avg: %s\n",
		trend.Points, formatValue(trend.Min), formatValue(trend.Max), formatValue(trend.Avg))
	fmt.Fprintf(&b, "%s %s %s %s\n", p.paint(styleSection, "Trend:"), arrow, trend.Direction, change)
	return b.String()
}

func writeTextSectionHeader(b *strings.Builder, title string, p painter) {
	fmt.Fprintf(b, "%s\n", p.paint(styleSection, title))
	fmt.Fprintf(b, "%s\n", strings.Repeat("-", len([]rune(title))))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4g", v)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateTextValue(value string, width int) string {
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}
