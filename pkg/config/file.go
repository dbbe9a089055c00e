package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/pghealth/internal/threshold"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".pghealth.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".pghealth.yml"
)

// FileConfig represents values loaded from a .pghealth.yaml file.
type FileConfig struct {
	DatabaseURL              string                        `yaml:"database_url"`
	DSN                      string                        `yaml:"dsn"`
	ExcludeTables            []string                      `yaml:"exclude_tables"`
	ExcludeSchemas           []string                      `yaml:"exclude_schemas"`
	Format                   string                        `yaml:"format"`
	Timeout                  string                        `yaml:"timeout"`
	QueryTimeout             string                        `yaml:"query_timeout"`
	Thresholds               map[string]threshold.Override `yaml:"thresholds"`
	RecommendationThresholds map[string]threshold.Override `yaml:"recommendation_thresholds"`
	DataDir                  string                        `yaml:"data_dir"`
	SaveHistory              *bool                         `yaml:"save_history"`
	Retention                string                        `yaml:"retention"`
	Notify                   *FileNotify                   `yaml:"notify"`
}

// FileNotify is the notify section of the config file.
type FileNotify struct {
	WebhookURL     string `yaml:"webhook_url"`
	SlackWebhook   string `yaml:"slack_webhook"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	OnlyOnIssues   *bool  `yaml:"only_on_issues"`
}

// Endpoint returns the configured connection string, preferring dsn over database_url.
func (fc *FileConfig) Endpoint() string {
	if fc == nil {
		return ""
	}
	if dsn := strings.TrimSpace(fc.DSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(fc.DatabaseURL)
}

// QueryTimeoutValue returns timeout from timeout/query_timeout fields.
func (fc *FileConfig) QueryTimeoutValue() string {
	if fc == nil {
		return ""
	}
	if timeout := strings.TrimSpace(fc.Timeout); timeout != "" {
		return timeout
	}
	return strings.TrimSpace(fc.QueryTimeout)
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.ExcludeTables = normalizeList(fc.ExcludeTables)
	fc.ExcludeSchemas = normalizeList(fc.ExcludeSchemas)
	fc.DatabaseURL = strings.TrimSpace(fc.DatabaseURL)
	fc.DSN = strings.TrimSpace(fc.DSN)
	fc.Format = strings.TrimSpace(fc.Format)
	fc.Timeout = strings.TrimSpace(fc.Timeout)
	fc.QueryTimeout = strings.TrimSpace(fc.QueryTimeout)
	fc.DataDir = strings.TrimSpace(fc.DataDir)
	fc.Retention = strings.TrimSpace(fc.Retention)
}

// ApplyTo copies file values onto cfg.
// Bad values are skipped and returned as warnings; they never abort loading.
func (fc *FileConfig) ApplyTo(cfg *Config) []error {
	if fc == nil || cfg == nil {
		return nil
	}

	var warnings []error
	if endpoint := fc.Endpoint(); endpoint != "" {
		cfg.DSN = endpoint
	}
	cfg.ExcludeTables = append(cfg.ExcludeTables, fc.ExcludeTables...)
	cfg.ExcludeSchemas = append(cfg.ExcludeSchemas, fc.ExcludeSchemas...)
	if fc.Format != "" {
		cfg.Format = fc.Format
	}
	if raw := fc.QueryTimeoutValue(); raw != "" {
		d, err := ParseDuration(raw)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("invalid timeout %q: %w", raw, err))
		} else {
			cfg.QueryTimeout = d
		}
	}
	if fc.Retention != "" {
		d, err := ParseDuration(fc.Retention)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("invalid retention %q: %w", fc.Retention, err))
		} else {
			cfg.Retention = d
		}
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.SaveHistory != nil {
		cfg.SaveHistory = *fc.SaveHistory
	}

	merged, errs := threshold.Merge(cfg.Thresholds, threshold.Defaults(), fc.Thresholds)
	cfg.Thresholds = merged
	warnings = append(warnings, errs...)

	merged, errs = threshold.Merge(cfg.RecommendationThresholds, threshold.RecommendationDefaults(), fc.RecommendationThresholds)
	cfg.RecommendationThresholds = merged
	warnings = append(warnings, errs...)

	if n := fc.Notify; n != nil {
		if v := strings.TrimSpace(n.WebhookURL); v != "" {
			cfg.Notify.WebhookURL = v
		}
		if v := strings.TrimSpace(n.SlackWebhook); v != "" {
			cfg.Notify.SlackWebhook = v
		}
		if v := strings.TrimSpace(n.TelegramToken); v != "" {
			cfg.Notify.TelegramToken = v
		}
		if v := strings.TrimSpace(n.TelegramChatID); v != "" {
			cfg.Notify.TelegramChatID = v
		}
		if n.OnlyOnIssues != nil {
			cfg.Notify.OnlyOnIssues = *n.OnlyOnIssues
		}
	}

	cfg.Normalize()
	return warnings
}

// Load loads path when set, otherwise the first discovered config file.
func Load(path string) (*FileConfig, string, error) {
	if strings.TrimSpace(path) != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, "", err
		}
		return fc, path, nil
	}
	return AutoLoadFile()
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
