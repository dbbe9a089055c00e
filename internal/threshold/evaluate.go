package threshold

import "github.com/ppiankov/pghealth/internal/severity"

// Direction says which side of a threshold is bad.
type Direction int

const (
	HigherIsWorse Direction = iota
	LowerIsWorse
)

func (d Direction) String() string {
	if d == LowerIsWorse {
		return "lower-is-worse"
	}
	return "higher-is-worse"
}

// lowerIsWorse lists the metrics where a falling value is a problem.
// Everything else is higher-is-worse.
var lowerIsWorse = map[string]bool{
	CacheHitRatio: true,
	IndexHitRatio: true,
}

// DirectionOf returns the fixed comparison direction for name.
func DirectionOf(name string) Direction {
	if lowerIsWorse[name] {
		return LowerIsWorse
	}
	return HigherIsWorse
}

// Evaluate classifies value for name using the finding defaults as fallback.
// Both boundaries are exclusive: a value equal to a boundary does not cross it.
func Evaluate(name string, value float64, cfg Config) severity.Severity {
	return EvaluateOr(name, value, cfg, severity.OK)
}

// EvaluateOr is Evaluate with floor returned when no boundary is crossed.
func EvaluateOr(name string, value float64, cfg Config, floor severity.Severity) severity.Severity {
	return classify(DirectionOf(name), value, cfg.Get(name), floor)
}

// EvaluateWith classifies against an explicit builtin table instead of the finding defaults.
func EvaluateWith(name string, value float64, cfg, builtin Config) severity.Severity {
	return classify(DirectionOf(name), value, Lookup(name, cfg, builtin), severity.OK)
}

func classify(dir Direction, value float64, t Threshold, floor severity.Severity) severity.Severity {
	if dir == LowerIsWorse {
		switch {
		case value < t.Critical:
			return severity.Critical
		case value < t.Warning:
			return severity.Warning
		default:
			return floor
		}
	}

	switch {
	case value > t.Critical:
		return severity.Critical
	case value > t.Warning:
		return severity.Warning
	default:
		return floor
	}
}
