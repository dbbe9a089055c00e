package notify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

var severityEmoji = map[severity.Severity]string{
	severity.OK:       "✅",
	severity.Info:     "ℹ️",
	severity.Warning:  "⚠️",
	severity.Critical: "❌",
}

// FormatText renders report as a plain message body.
func FormatText(report *models.Report, includePassed bool) string {
	worst := report.WorstSeverity()
	lines := []string{
		"🐘 PG Health Report: " + report.Database,
		fmt.Sprintf("Status: %s %s", severityEmoji[worst], strings.ToUpper(worst.String())),
		"",
	}

	if criticals := report.FindingsAt(severity.Critical); len(criticals) > 0 {
		lines = append(lines, "❌ CRITICAL:")
		for _, f := range criticals {
			lines = append(lines, fmt.Sprintf("  • %s: %s", f.Name, f.Message))
		}
		lines = append(lines, "")
	}

	if warnings := report.FindingsAt(severity.Warning); len(warnings) > 0 {
		lines = append(lines, "⚠️ WARNINGS:")
		for _, f := range warnings {
			lines = append(lines, fmt.Sprintf("  • %s: %s", f.Name, f.Message))
		}
		lines = append(lines, "")
	}

	if includePassed {
		if passed := report.Count(severity.OK); passed > 0 {
			lines = append(lines, fmt.Sprintf("✅ %d checks passed", passed))
		}
	}

	return strings.Join(lines, "\n")
}
