package history

import (
	"math"

	"github.com/ppiankov/pghealth/internal/models"
)

// Direction is the sign of a trend's change.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Trend summarizes a chronological series of metric points.
// ChangePct is absent when the first value is zero.
type Trend struct {
	Points    int       `json:"points"`
	First     float64   `json:"first"`
	Last      float64   `json:"last"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Avg       float64   `json:"avg"`
	Change    float64   `json:"change"`
	ChangePct *float64  `json:"change_pct,omitempty"`
	Direction Direction `json:"direction"`
}

// Summarize computes a Trend over points, which must be oldest first.
// An empty series yields a zero Trend with a stable direction.
func Summarize(points []models.MetricPoint) Trend {
	t := Trend{Points: len(points), Direction: DirectionStable}
	if len(points) == 0 {
		return t
	}

	t.First = points[0].Value
	t.Last = points[len(points)-1].Value
	t.Min = math.Inf(1)
	t.Max = math.Inf(-1)
	sum := 0.0
	for _, p := range points {
		t.Min = math.Min(t.Min, p.Value)
		t.Max = math.Max(t.Max, p.Value)
		sum += p.Value
	}
	t.Avg = sum / float64(len(points))
	t.Change = t.Last - t.First
	if t.First != 0 {
		pct := t.Change / math.Abs(t.First) * 100
		t.ChangePct = &pct
	}

	switch {
	case t.Change > 0:
		t.Direction = DirectionUp
	case t.Change < 0:
		t.Direction = DirectionDown
	}
	return t
}
