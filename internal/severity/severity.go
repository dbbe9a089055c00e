// Package severity defines the ordered health levels used by every finding,
// and the collapse of many levels into one overall outcome.
package severity

import (
	"fmt"
	"strings"
)

// Severity is a health level. The zero value is OK.
type Severity int

const (
	OK Severity = iota
	Info
	Warning
	Critical
)

var labels = [...]string{
	OK:       "ok",
	Info:     "info",
	Warning:  "warning",
	Critical: "critical",
}

// rank is the total order used for comparisons.
var rank = [...]int{
	OK:       0,
	Info:     1,
	Warning:  2,
	Critical: 3,
}

// All returns every severity from least to most severe.
func All() []Severity {
	return []Severity{OK, Info, Warning, Critical}
}

// Valid reports whether s is one of the defined levels.
func (s Severity) Valid() bool {
	return s >= OK && s <= Critical
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return labels[s]
}

// Rank returns the position of s in the total order.
func (s Severity) Rank() int {
	if !s.Valid() {
		return -1
	}
	return rank[s]
}

// Less reports whether s orders before other.
func (s Severity) Less(other Severity) bool {
	return s.Rank() < other.Rank()
}

// IsIssue reports whether s counts towards a degraded outcome.
func (s Severity) IsIssue() bool {
	return s == Warning || s == Critical
}

// Parse converts a label into a Severity, ignoring case.
func Parse(label string) (Severity, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for s, l := range labels {
		if l == normalized {
			return Severity(s), nil
		}
	}
	return OK, fmt.Errorf("unknown severity %q", label)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(labels[s]), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Worst collapses levels into the worst-case result.
// Info never raises the result, so the answer is always OK, Warning or Critical.
func Worst(levels ...Severity) Severity {
	worst := OK
	for _, level := range levels {
		if !level.IsIssue() {
			continue
		}
		if worst.Less(level) {
			worst = level
		}
	}
	return worst
}
