package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultEMASpan is the EMA span in days.
const DefaultEMASpan = 30

// EMA computes the exponential moving average of bar closes with
// alpha = 2/(span+1), seeded with the first close. It returns the full series
// and its last value.
func EMA(bars []Bar, span int) ([]float64, float64, error) {
	if len(bars) == 0 {
		return nil, 0, ErrEmptySeries
	}
	if span < 1 {
		return nil, 0, fmt.Errorf("%w: ema span %d", ErrDomain, span)
	}
	alpha := 2.0 / float64(span+1)

	series := make([]float64, len(bars))
	series[0] = bars[0].Close
	for i := 1; i < len(bars); i++ {
		series[i] = alpha*bars[i].Close + (1-alpha)*series[i-1]
	}
	return series, series[len(series)-1], nil
}

// ParkinsonVolatility returns the per-bar Parkinson estimator
// sqrt(ln(high/low)^2 / (4 ln 2)) and its arithmetic mean.
func ParkinsonVolatility(bars []Bar) ([]float64, float64, error) {
	if len(bars) == 0 {
		return nil, 0, ErrEmptySeries
	}
	denom := 4 * math.Ln2

	perBar := make([]float64, len(bars))
	for i, b := range bars {
		if !finite(b.High) || !finite(b.Low) || b.Low <= 0 || b.High < b.Low {
			return nil, 0, fmt.Errorf("%w: bar %s high=%g low=%g",
				ErrDomain, b.Day.Format("2006-01-02"), b.High, b.Low)
		}
		lr := math.Log(b.High / b.Low)
		perBar[i] = math.Sqrt(lr * lr / denom)
	}
	return perBar, stat.Mean(perBar, nil), nil
}
