package config

import (
	"errors"
	"time"

	"github.com/ppiankov/pghealth/internal/threshold"
)

// ErrNoDSN is returned when no connection string was configured anywhere.
var ErrNoDSN = errors.New("database connection string is required (--dsn, DATABASE_URL or dsn in config file)")

// Config holds all runtime configuration
type Config struct {
	// Connection settings
	DSN            string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration

	// Evaluation settings
	Thresholds               threshold.Config
	RecommendationThresholds threshold.Config
	ExcludeSchemas           []string
	ExcludeTables            []string

	// Output settings
	Format    string
	OutputDir string
	NoColor   bool

	// History settings
	DataDir         string
	SaveHistory     bool
	HistoryLookback time.Duration
	HistoryLimit    int
	Retention       time.Duration

	// Notification settings
	Notify NotifyConfig

	// Fix settings
	FixConcurrency int
	FixRate        float64

	// Server settings
	ServerAddr string

	// Operational flags
	Verbose bool
}

// NotifyConfig holds outbound notification targets.
type NotifyConfig struct {
	WebhookURL     string
	SlackWebhook   string
	TelegramToken  string
	TelegramChatID string
	OnlyOnIssues   bool
	Timeout        time.Duration
}

// Enabled reports whether any notification target is configured.
func (n NotifyConfig) Enabled() bool {
	return n.WebhookURL != "" || n.SlackWebhook != "" || (n.TelegramToken != "" && n.TelegramChatID != "")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout:           30 * time.Second,
		QueryTimeout:             30 * time.Second,
		Thresholds:               threshold.Config{},
		RecommendationThresholds: threshold.Config{},
		ExcludeSchemas:           []string{},
		ExcludeTables:            []string{},
		Format:                   "text",
		HistoryLookback:          7 * 24 * time.Hour,
		HistoryLimit:             100,
		Retention:                90 * 24 * time.Hour,
		Notify: NotifyConfig{
			OnlyOnIssues: true,
			Timeout:      10 * time.Second,
		},
		FixConcurrency: 1,
		ServerAddr:     ":8767",
	}
}

// RequireDSN returns ErrNoDSN when DSN is empty.
func (c *Config) RequireDSN() error {
	if c == nil || c.DSN == "" {
		return ErrNoDSN
	}
	return nil
}
