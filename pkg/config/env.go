package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PGHEALTH"

// ApplyEnv overlays environment variables onto cfg.
// PGHEALTH_DSN wins over DATABASE_URL.
func ApplyEnv(cfg *Config) []error {
	if cfg == nil {
		return nil
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("dsn", EnvPrefix+"_DSN", "DATABASE_URL")
	for _, key := range []string{
		"data_dir",
		"format",
		"query_timeout",
		"retention",
		"webhook_url",
		"slack_webhook",
		"telegram_token",
		"telegram_chat_id",
		"only_on_issues",
		"save_history",
	} {
		_ = v.BindEnv(key)
	}

	var warnings []error
	setString := func(key string, dst *string) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}

	setString("dsn", &cfg.DSN)
	setString("data_dir", &cfg.DataDir)
	setString("format", &cfg.Format)
	setString("webhook_url", &cfg.Notify.WebhookURL)
	setString("slack_webhook", &cfg.Notify.SlackWebhook)
	setString("telegram_token", &cfg.Notify.TelegramToken)
	setString("telegram_chat_id", &cfg.Notify.TelegramChatID)

	if raw := strings.TrimSpace(v.GetString("query_timeout")); raw != "" {
		if d, err := ParseDuration(raw); err != nil {
			warnings = append(warnings, fmt.Errorf("invalid %s_QUERY_TIMEOUT %q: %w", EnvPrefix, raw, err))
		} else {
			cfg.QueryTimeout = d
		}
	}
	if raw := strings.TrimSpace(v.GetString("retention")); raw != "" {
		if d, err := ParseDuration(raw); err != nil {
			warnings = append(warnings, fmt.Errorf("invalid %s_RETENTION %q: %w", EnvPrefix, raw, err))
		} else {
			cfg.Retention = d
		}
	}
	if v.IsSet("only_on_issues") {
		cfg.Notify.OnlyOnIssues = v.GetBool("only_on_issues")
	}
	if v.IsSet("save_history") {
		cfg.SaveHistory = v.GetBool("save_history")
	}

	return warnings
}
