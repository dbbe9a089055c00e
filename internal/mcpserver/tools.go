package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/pghealth/internal/fix"
	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

const topTables = 5

// Suggest statuses.
const (
	StatusHealthy        = "healthy"
	StatusNeedsAttention = "needs_attention"
	StatusCouldImprove   = "could_improve"
)

type tools struct {
	deps Dependencies
}

// CheckInput takes no arguments.
type CheckInput struct{}

// CheckResult is one finding as seen by a tool client.
type CheckResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// CheckSummary counts findings per severity.
type CheckSummary struct {
	OK       int `json:"ok"`
	Info     int `json:"info"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

// CheckOutput is the result of the check tool.
type CheckOutput struct {
	OverallStatus string             `json:"overall_status"`
	HasIssues     bool               `json:"has_issues"`
	Database      string             `json:"database"`
	Version       string             `json:"version"`
	Summary       CheckSummary       `json:"summary"`
	Checks        []CheckResult      `json:"checks"`
	LargestTables []models.TableInfo `json:"largest_tables"`
	UnusedIndexes []models.IndexInfo `json:"unused_indexes"`
}

// SuggestInput takes no arguments.
type SuggestInput struct{}

// Suggestion is one recommendation as seen by a tool client.
type Suggestion struct {
	Title   string `json:"title"`
	Why     string `json:"why"`
	Impact  string `json:"impact,omitempty"`
	SQL     string `json:"sql,omitempty"`
	Action  string `json:"action,omitempty"`
	FixType string `json:"fix_type,omitempty"`
}

// SuggestOutput groups recommendations by priority.
type SuggestOutput struct {
	Status string       `json:"status"`
	Total  int          `json:"total"`
	High   []Suggestion `json:"high"`
	Medium []Suggestion `json:"medium"`
	Low    []Suggestion `json:"low"`
}

// FixInput selects what the fix tool does. The zero value previews every category.
type FixInput struct {
	Category string   `json:"category,omitempty" jsonschema:"one of unused-indexes, vacuum, analyze or all; defaults to all"`
	Execute  bool     `json:"execute,omitempty" jsonschema:"run the statements; when false only a preview is returned"`
	Tables   []string `json:"tables,omitempty" jsonschema:"only fix these tables or indexes, by name or schema.name"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of unused indexes to drop; 0 means no limit"`
}

// FixItem is one planned or executed statement.
type FixItem struct {
	FixType  string `json:"fix_type"`
	Target   string `json:"target"`
	SQL      string `json:"sql"`
	Executed bool   `json:"executed"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

// FixOutput is the result of the fix tool.
type FixOutput struct {
	Category  string    `json:"category"`
	DryRun    bool      `json:"dry_run"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Results   []FixItem `json:"results"`
	Note      string    `json:"note,omitempty"`
}

func (t *tools) check(ctx context.Context, _ *mcp.CallToolRequest, _ CheckInput) (*mcp.CallToolResult, CheckOutput, error) {
	t.deps.Logger.Debug().Str("tool", ToolCheck).Msg("tool called")

	report, err := t.deps.Inspector.Inspect(ctx)
	if err != nil {
		t.deps.Logger.Error().Err(err).Str("tool", ToolCheck).Msg("health check failed")
		return nil, CheckOutput{}, fmt.Errorf("health check failed: %w", err)
	}
	return nil, checkOutput(report), nil
}

func checkOutput(report *models.Report) CheckOutput {
	out := CheckOutput{
		OverallStatus: report.Outcome().String(),
		HasIssues:     report.HasIssues(),
		Database:      report.Database,
		Version:       report.Version,
		Summary: CheckSummary{
			OK:       report.Count(severity.OK),
			Info:     report.Count(severity.Info),
			Warning:  report.Count(severity.Warning),
			Critical: report.Count(severity.Critical),
		},
		Checks:        make([]CheckResult, 0, len(report.Findings)),
		LargestTables: []models.TableInfo{},
		UnusedIndexes: []models.IndexInfo{},
	}
	for _, f := range report.Findings {
		out.Checks = append(out.Checks, CheckResult{
			Name:       f.Name,
			Status:     f.Severity.String(),
			Message:    f.Message,
			Suggestion: f.Suggestion,
		})
	}
	// Tables arrive largest first.
	tables := report.Tables
	if len(tables) > topTables {
		tables = tables[:topTables]
	}
	out.LargestTables = append(out.LargestTables, tables...)
	out.UnusedIndexes = append(out.UnusedIndexes, report.UnusedIndexes...)
	return out
}

func (t *tools) suggest(ctx context.Context, _ *mcp.CallToolRequest, _ SuggestInput) (*mcp.CallToolResult, SuggestOutput, error) {
	t.deps.Logger.Debug().Str("tool", ToolSuggest).Msg("tool called")

	recs, err := t.deps.Advisor.Recommend(ctx)
	if err != nil {
		t.deps.Logger.Error().Err(err).Str("tool", ToolSuggest).Msg("recommendation analysis failed")
		return nil, SuggestOutput{}, fmt.Errorf("recommendation analysis failed: %w", err)
	}
	return nil, suggestOutput(recs), nil
}

func suggestOutput(recs []models.Recommendation) SuggestOutput {
	out := SuggestOutput{
		Status: StatusHealthy,
		Total:  len(recs),
		High:   []Suggestion{},
		Medium: []Suggestion{},
		Low:    []Suggestion{},
	}
	for _, r := range recs {
		s := Suggestion{
			Title:   r.Title,
			Why:     r.Why,
			Impact:  r.Impact,
			SQL:     r.SQL,
			Action:  r.Action,
			FixType: string(r.FixType),
		}
		switch r.Priority {
		case models.PriorityHigh:
			out.High = append(out.High, s)
		case models.PriorityMedium:
			out.Medium = append(out.Medium, s)
		default:
			out.Low = append(out.Low, s)
		}
	}
	switch {
	case len(out.High) > 0:
		out.Status = StatusNeedsAttention
	case len(recs) > 0:
		out.Status = StatusCouldImprove
	}
	return out
}

func (t *tools) fix(ctx context.Context, _ *mcp.CallToolRequest, in FixInput) (*mcp.CallToolResult, FixOutput, error) {
	category := models.FixCategory(strings.ToLower(strings.TrimSpace(in.Category)))
	if category == "" {
		category = models.FixAll
	}
	if in.Limit < 0 {
		return nil, FixOutput{}, fmt.Errorf("invalid limit %d: must be zero or positive", in.Limit)
	}
	t.deps.Logger.Debug().Str("tool", ToolFix).Str("category", string(category)).Bool("execute", in.Execute).Msg("tool called")

	batch, err := t.deps.Fixer.Fix(ctx, category, fix.Options{
		DryRun:  !in.Execute,
		Targets: in.Tables,
		Limit:   in.Limit,
	})
	if err != nil {
		t.deps.Logger.Error().Err(err).Str("tool", ToolFix).Str("category", string(category)).Msg("fix failed")
		return nil, FixOutput{}, fmt.Errorf("fix %s failed: %w", category, err)
	}
	return nil, fixOutput(batch), nil
}

func fixOutput(batch *models.FixBatch) FixOutput {
	out := FixOutput{
		Category:  string(batch.Category),
		DryRun:    batch.DryRun,
		Succeeded: batch.Succeeded(),
		Failed:    batch.Failed(),
		Results:   make([]FixItem, 0, len(batch.Results)),
	}
	for _, r := range batch.Results {
		out.Results = append(out.Results, FixItem{
			FixType:  string(r.FixType),
			Target:   r.Target,
			SQL:      r.SQL,
			Executed: r.Executed,
			Success:  r.Success,
			Message:  r.Message,
		})
	}
	switch {
	case len(batch.Results) == 0:
		out.Note = "Nothing to fix."
	case batch.DryRun:
		out.Note = "Dry run: nothing was changed. Call again with execute=true to run these statements."
	}
	return out
}
