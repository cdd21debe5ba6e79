package monitor

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the format of Snapshot.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Volatility groups the OHLC derived metrics.
type Volatility struct {
	AverageParkinson *float64 `json:"average_parkinson,omitempty"`
	LatestEMA        *float64 `json:"latest_ema,omitempty"`
}

// MetricsResult is the set of risk metrics of one refresh cycle. A nil field
// means the metric could not be computed in that cycle.
type MetricsResult struct {
	StabilityPoolShare   *float64    `json:"stability_pool_share,omitempty"`
	ValueAtRisk          *float64    `json:"value_at_risk,omitempty"`
	TrovesAtRisk         *int        `json:"troves_at_risk,omitempty"`
	LimitFromImpact      *float64    `json:"limit_from_impact,omitempty"`
	AverageImpactPercent *float64    `json:"average_impact_percent,omitempty"`
	Volatility           *Volatility `json:"volatility,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate shared values.
func (r MetricsResult) Clone() MetricsResult {
	out := MetricsResult{
		StabilityPoolShare:   cloneFloat(r.StabilityPoolShare),
		ValueAtRisk:          cloneFloat(r.ValueAtRisk),
		LimitFromImpact:      cloneFloat(r.LimitFromImpact),
		AverageImpactPercent: cloneFloat(r.AverageImpactPercent),
	}
	if r.TrovesAtRisk != nil {
		n := *r.TrovesAtRisk
		out.TrovesAtRisk = &n
	}
	if r.Volatility != nil {
		out.Volatility = &Volatility{
			AverageParkinson: cloneFloat(r.Volatility.AverageParkinson),
			LatestEMA:        cloneFloat(r.Volatility.LatestEMA),
		}
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// Snapshot is one immutable refresh result.
type Snapshot struct {
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Result    MetricsResult `json:"result"`

	capturedAt time.Time
}

func newSnapshot(at time.Time, result MetricsResult) Snapshot {
	return Snapshot{
		ID:         uuid.NewString(),
		Timestamp:  at.Format(TimestampLayout),
		Result:     result,
		capturedAt: at,
	}
}

// CapturedAt returns the capture time behind Timestamp.
func (s Snapshot) CapturedAt() time.Time { return s.capturedAt }
