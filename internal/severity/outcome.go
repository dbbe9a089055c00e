package severity

import "net/http"

// Outcome is the three-level status every surface derives from a worst severity.
type Outcome int

const (
	Healthy Outcome = iota
	Degraded
	Failing
)

// OutcomeOf maps a worst severity to an outcome.
func OutcomeOf(worst Severity) Outcome {
	switch worst {
	case Critical:
		return Failing
	case Warning:
		return Degraded
	default:
		return Healthy
	}
}

func (o Outcome) String() string {
	switch o {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Failing:
		return "critical"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// HTTPStatus returns the response status for o. Degraded still serves 200.
func (o Outcome) HTTPStatus() int {
	if o == Failing {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
