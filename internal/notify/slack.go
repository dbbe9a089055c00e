package notify

import (
	"context"
	"net/http"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/internal/severity"
)

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string `json:"color"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer"`
}

var slackColors = map[severity.Severity]string{
	severity.OK:       "good",
	severity.Info:     "#439FE0",
	severity.Warning:  "warning",
	severity.Critical: "danger",
}

// SlackSender posts the report to a Slack incoming webhook.
type SlackSender struct {
	url    string
	client *http.Client
}

func NewSlackSender(url string, client *http.Client) *SlackSender {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &SlackSender{url: url, client: client}
}

func (s *SlackSender) Name() string { return "slack" }

func (s *SlackSender) Send(ctx context.Context, report *models.Report) error {
	color, ok := slackColors[report.WorstSeverity()]
	if !ok {
		color = "#808080"
	}
	payload := slackPayload{
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  "PG Health: " + report.Database,
			Text:   FormatText(report, false),
			Footer: "pghealth",
		}},
	}
	_, err := postJSON(ctx, s.client, s.url, payload)
	return err
}
