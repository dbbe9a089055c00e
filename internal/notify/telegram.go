package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ppiankov/pghealth/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// TelegramSender posts the report through the Telegram bot API.
type TelegramSender struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

func NewTelegramSender(token, chatID string, client *http.Client) *TelegramSender {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &TelegramSender{token: token, chatID: chatID, apiBase: telegramAPIBase, client: client}
}

// WithAPIBase points the sender at another bot API host.
func (s *TelegramSender) WithAPIBase(base string) *TelegramSender {
	s.apiBase = strings.TrimRight(base, "/")
	return s
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, report *models.Report) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	body, err := postJSON(ctx, s.client, url, telegramMessage{
		ChatID:    s.chatID,
		Text:      FormatText(report, false),
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", redact(err, s.token))
	}

	var resp telegramResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("telegram: decode response: %w", err)
	}
	if !resp.OK {
		if resp.Description == "" {
			resp.Description = "unknown error"
		}
		return fmt.Errorf("telegram: %s", resp.Description)
	}
	return nil
}

// redact strips the bot token from transport errors, which embed the URL.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "***"))
}
