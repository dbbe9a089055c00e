// Package notify delivers report summaries to webhooks, Slack and Telegram.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ppiankov/pghealth/internal/models"
	"github.com/ppiankov/pghealth/pkg/config"
)

// DefaultTimeout bounds each delivery.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of one delivery attempt.
type Result struct {
	Provider string `json:"provider"`
	Success  bool   `json:"success"`
	Skipped  bool   `json:"skipped,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Sender posts a report to one destination.
type Sender interface {
	Name() string
	Send(ctx context.Context, report *models.Report) error
}

// Dispatcher fans a report out to every configured sender.
type Dispatcher struct {
	senders      []Sender
	onlyOnIssues bool
}

// NewDispatcher builds senders for every target set in cfg.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	d := &Dispatcher{onlyOnIssues: cfg.OnlyOnIssues}
	if cfg.WebhookURL != "" {
		d.senders = append(d.senders, NewWebhookSender(cfg.WebhookURL, client))
	}
	if cfg.SlackWebhook != "" {
		d.senders = append(d.senders, NewSlackSender(cfg.SlackWebhook, client))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		d.senders = append(d.senders, NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID, client))
	}
	return d
}

// NewDispatcherWith uses the given senders.
func NewDispatcherWith(onlyOnIssues bool, senders ...Sender) *Dispatcher {
	return &Dispatcher{senders: senders, onlyOnIssues: onlyOnIssues}
}

// Len returns the number of configured senders.
func (d *Dispatcher) Len() int {
	return len(d.senders)
}

// Notify delivers report to every sender. A failing sender does not stop the others.
func (d *Dispatcher) Notify(ctx context.Context, report *models.Report) []Result {
	results := make([]Result, 0, len(d.senders))
	for _, s := range d.senders {
		if d.onlyOnIssues && !report.HasIssues() {
			results = append(results, Result{Provider: s.Name(), Success: true, Skipped: true, Message: "Skipped - no issues to report"})
			continue
		}

		if err := s.Send(ctx, report); err != nil {
			slog.Warn("notification failed",
				slog.String("provider", s.Name()),
				slog.String("error", err.Error()),
			)
			results = append(results, Result{Provider: s.Name(), Error: err.Error()})
			continue
		}
		slog.Debug("notification sent", slog.String("provider", s.Name()))
		results = append(results, Result{Provider: s.Name(), Success: true, Message: "Sent"})
	}
	return results
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return respBody, nil
}
