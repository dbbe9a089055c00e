package config

import (
	"path"
	"strings"
)

// Normalize trims config patterns and removes empty values.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExcludeTables = normalizePatterns(c.ExcludeTables)
	c.ExcludeSchemas = normalizePatterns(c.ExcludeSchemas)
}

// IsSchemaExcluded reports whether schema matches exclude patterns.
func (c *Config) IsSchemaExcluded(schema string) bool {
	if c == nil || len(c.ExcludeSchemas) == 0 {
		return false
	}

	value := normalizePattern(schema)
	if value == "" {
		return false
	}

	for _, pattern := range c.ExcludeSchemas {
		if patternMatches(pattern, value) {
			return true
		}
	}

	return false
}

// IsTableExcluded reports whether a schema.table name matches the schema or table patterns.
// Table patterns are tried against both the qualified and the bare name.
func (c *Config) IsTableExcluded(qualified string) bool {
	if c == nil {
		return false
	}

	normalized := normalizePattern(qualified)
	if normalized == "" {
		return false
	}

	schema, table := splitTableName(normalized)
	if schema != "" && c.IsSchemaExcluded(schema) {
		return true
	}

	for _, pattern := range c.ExcludeTables {
		if patternMatches(pattern, normalized) {
			return true
		}
		if table != "" && patternMatches(pattern, table) {
			return true
		}
	}

	return false
}

func splitTableName(qualified string) (schema string, table string) {
	parts := strings.SplitN(qualified, ".", 2)
	if len(parts) < 2 {
		return "", strings.TrimSpace(qualified)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func normalizePatterns(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, pattern := range values {
		p := normalizePattern(pattern)
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return normalized
}

func normalizePattern(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func patternMatches(pattern, value string) bool {
	normalizedPattern := normalizePattern(pattern)
	normalizedValue := normalizePattern(value)
	if normalizedPattern == "" || normalizedValue == "" {
		return false
	}

	// Invalid glob patterns are treated as exact matches.
	matched, err := path.Match(normalizedPattern, normalizedValue)
	if err == nil {
		return matched
	}
	return normalizedPattern == normalizedValue
}
