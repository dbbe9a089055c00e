package models

import (
	"fmt"
	"strings"
)

// Priority ranks recommendations. The zero value is High.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

var priorityLabels = [...]string{
	PriorityHigh:   "high",
	PriorityMedium: "medium",
	PriorityLow:    "low",
}

func (p Priority) String() string {
	if p < PriorityHigh || p > PriorityLow {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityLabels[p]
}

// Rank orders priorities: lower sorts first.
func (p Priority) Rank() int {
	return int(p)
}

// ParsePriority converts a label into a Priority, ignoring case.
func ParsePriority(label string) (Priority, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for p, l := range priorityLabels {
		if l == normalized {
			return Priority(p), nil
		}
	}
	return PriorityLow, fmt.Errorf("unknown priority %q", label)
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// FixCategory names a class of automatable remediation.
type FixCategory string

const (
	FixUnusedIndexes FixCategory = "unused-indexes"
	FixVacuum        FixCategory = "vacuum"
	FixAnalyze       FixCategory = "analyze"
	FixAll           FixCategory = "all"
)

// FixCategories lists every category accepted by the fix executor.
func FixCategories() []FixCategory {
	return []FixCategory{FixUnusedIndexes, FixVacuum, FixAnalyze, FixAll}
}

// Recommendation is a ranked action item.
// SQL carries an executable statement, Action a human instruction; either or both may be set.
type Recommendation struct {
	Priority Priority    `json:"priority"`
	Title    string      `json:"title"`
	Why      string      `json:"why"`
	Impact   string      `json:"impact,omitempty"`
	SQL      string      `json:"sql,omitempty"`
	Action   string      `json:"action,omitempty"`
	Details  Details     `json:"details,omitempty"`
	FixType  FixCategory `json:"fix_type,omitempty"`
}

// FixResult is the outcome for one target of one fix category.
// Executed=false only ever appears in a dry run and always carries Success=true.
// In execute mode a statement skipped after cancellation is Executed=true, Success=false.
type FixResult struct {
	FixType  FixCategory `json:"fix_type"`
	Target   string      `json:"target"`
	SQL      string      `json:"sql"`
	Executed bool        `json:"executed"`
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	Details  Details     `json:"details,omitempty"`
}

// FixBatch is the ordered result of one apply call.
type FixBatch struct {
	Category FixCategory `json:"category"`
	DryRun   bool        `json:"dry_run"`
	Results  []FixResult `json:"results"`
}

// Failed counts results that did not succeed, including statements skipped after cancellation.
func (b *FixBatch) Failed() int {
	n := 0
	for _, r := range b.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// Succeeded counts results that ran successfully.
func (b *FixBatch) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.Executed && r.Success {
			n++
		}
	}
	return n
}
