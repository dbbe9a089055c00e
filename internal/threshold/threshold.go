// Package threshold turns a metric value into a severity using configurable
// warning/critical boundaries and a fixed per-metric direction.
package threshold

import (
	"fmt"
	"math"
	"sort"
)

// Metric names with built-in boundaries.
const (
	CacheHitRatio   = "cache_hit_ratio"
	IndexHitRatio   = "index_hit_ratio"
	Connections     = "connections"
	DeadTuples      = "dead_tuples"
	DeadTuplePct    = "dead_tuple_pct"
	LockWaits       = "lock_waits"
	ReplicationLag  = "replication_lag"
	TableBloat      = "table_bloat"
	XIDAge          = "xid_age"
	SlowQueryMs     = "slow_query_ms"
	StaleStatistics = "stale_statistics"
)

// Threshold is a warning/critical boundary pair.
type Threshold struct {
	Warning  float64 `json:"warning" yaml:"warning"`
	Critical float64 `json:"critical" yaml:"critical"`
}

// Generic applies to names absent from both the configuration and the built-in table.
var Generic = Threshold{Warning: 0.8, Critical: 0.9}

// Config maps metric names to thresholds.
type Config map[string]Threshold

// Defaults returns a fresh copy of the finding thresholds.
func Defaults() Config {
	return Config{
		CacheHitRatio:  {Warning: 0.95, Critical: 0.90},
		IndexHitRatio:  {Warning: 0.95, Critical: 0.90},
		Connections:    {Warning: 0.8, Critical: 0.9},
		DeadTuples:     {Warning: 10000, Critical: 100000},
		LockWaits:      {Warning: 5, Critical: 20},
		ReplicationLag: {Warning: 10, Critical: 60},
		TableBloat:     {Warning: 0.1, Critical: 0.2},
		XIDAge:         {Warning: 5e8, Critical: 1e9},
	}
}

// RecommendationDefaults returns a fresh copy of the recommendation thresholds.
// They are kept apart from Defaults and fire earlier for several metrics.
func RecommendationDefaults() Config {
	return Config{
		CacheHitRatio:   {Warning: 0.95, Critical: 0.90},
		Connections:     {Warning: 0.7, Critical: 0.9},
		ReplicationLag:  {Warning: 10, Critical: 60},
		LockWaits:       {Warning: 5, Critical: 20},
		SlowQueryMs:     {Warning: 500, Critical: 1000},
		DeadTuplePct:    {Warning: 10, Critical: 20},
		DeadTuples:      {Warning: 100000, Critical: 500000},
		// Stale statistics never escalate past medium unless a critical bound is configured.
		StaleStatistics: {Warning: 10000, Critical: math.Inf(1)},
	}
}

// Lookup resolves name against configured, then builtin, then Generic.
func Lookup(name string, configured, builtin Config) Threshold {
	if t, ok := configured[name]; ok {
		return t
	}
	if t, ok := builtin[name]; ok {
		return t
	}
	return Generic
}

// Get resolves name against c, then the finding defaults, then Generic.
func (c Config) Get(name string) Threshold {
	return Lookup(name, c, Defaults())
}

// Clone returns an independent copy of c.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Names returns the configured metric names in sorted order.
func (c Config) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Override is a partial threshold; nil fields keep the base value.
type Override struct {
	Warning  *float64 `json:"warning,omitempty" yaml:"warning,omitempty"`
	Critical *float64 `json:"critical,omitempty" yaml:"critical,omitempty"`
}

// Merge applies overrides on top of base and returns a new Config.
// Non-finite values and inverted pairs are rejected and reported; the base value stays in place.
func Merge(base Config, builtin Config, overrides map[string]Override) (Config, []error) {
	out := base.Clone()
	var errs []error

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		o := overrides[name]
		t := Lookup(name, out, builtin)
		if o.Warning != nil {
			if !finite(*o.Warning) {
				errs = append(errs, fmt.Errorf("threshold %s: warning %v is not a finite number", name, *o.Warning))
			} else {
				t.Warning = *o.Warning
			}
		}
		if o.Critical != nil {
			if !finite(*o.Critical) {
				errs = append(errs, fmt.Errorf("threshold %s: critical %v is not a finite number", name, *o.Critical))
			} else {
				t.Critical = *o.Critical
			}
		}
		if !ordered(name, t) {
			errs = append(errs, fmt.Errorf("threshold %s: warning %v and critical %v are in the wrong order for a %s metric",
				name, t.Warning, t.Critical, DirectionOf(name)))
			continue
		}
		out[name] = t
	}

	return out, errs
}

// ordered reports whether the warning boundary is crossed before the critical one.
func ordered(name string, t Threshold) bool {
	if DirectionOf(name) == LowerIsWorse {
		return t.Warning >= t.Critical
	}
	return t.Warning <= t.Critical
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
