package notify

import (
	"context"
	"net/http"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

// WebhookPayload is the JSON body posted to generic webhooks.
type WebhookPayload struct {
	Database  string           `json:"database"`
	Status    string           `json:"status"`
	Outcome   severity.Outcome `json:"outcome"`
	HasIssues bool             `json:"has_issues"`
	Checks    []WebhookCheck   `json:"checks"`
	Summary   WebhookSummary   `json:"summary"`
}

// WebhookCheck is one finding in a webhook payload.
type WebhookCheck struct {
	Name       string            `json:"name"`
	Severity   severity.Severity `json:"severity"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
}

// WebhookSummary counts findings in a webhook payload.
type WebhookSummary struct {
	TotalChecks int `json:"total_checks"`
	Warnings    int `json:"warnings"`
	Criticals   int `json:"criticals"`
}

// NewWebhookPayload builds the generic webhook body for report.
func NewWebhookPayload(report *models.Report) WebhookPayload {
	checks := make([]WebhookCheck, 0, len(report.Findings))
	for _, f := range report.Findings {
		checks = append(checks, WebhookCheck{Name: f.Name, Severity: f.Severity, Message: f.Message, Suggestion: f.Suggestion})
	}
	return WebhookPayload{
		Database:  report.Database,
		Status:    report.WorstSeverity().String(),
		Outcome:   report.Outcome(),
		HasIssues: report.HasIssues(),
		Checks:    checks,
		Summary: WebhookSummary{
			TotalChecks: len(report.Findings),
			Warnings:    report.Count(severity.Warning),
			Criticals:   report.Count(severity.Critical),
		},
	}
}

// WebhookSender posts the report as JSON to an arbitrary URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(url string, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &WebhookSender{url: url, client: client}
}

func (s *WebhookSender) Name() string { return "webhook" }

func (s *WebhookSender) Send(ctx context.Context, report *models.Report) error {
	_, err := postJSON(ctx, s.client, s.url, NewWebhookPayload(report))
	return err
}
