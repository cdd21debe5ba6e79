package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultQueryImpact is the price impact (in percent) at which the capacity
// limit is read off the fitted curve.
const DefaultQueryImpact = 2.0

const (
	fitMaxIterations = 200
	fitStepTol       = 1e-10
	fitCostTol       = 1e-14
	fitLambdaInit    = 1e-3
	fitLambdaMax     = 1e16
)

// ImpactSample is one point of the upstream impact curve: selling Amount of
// collateral moves the price by Impact percent.
type ImpactSample struct {
	Impact float64
	Amount float64
}

// ImpactCurve is the model amount = A * ln(B*impact + 1).
type ImpactCurve struct {
	A float64
	B float64
}

// Amount evaluates the curve at impact.
func (c ImpactCurve) Amount(impact float64) float64 {
	return c.A * math.Log(c.B*impact+1)
}

// LimitFromImpact fits the impact curve and returns the amount that would
// move the price by queryImpact percent.
func LimitFromImpact(samples []ImpactSample, queryImpact float64) (float64, error) {
	curve, err := FitImpactCurve(samples)
	if err != nil {
		return 0, err
	}
	v := curve.Amount(queryImpact)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: fitted curve undefined at impact %g", ErrDomain, queryImpact)
	}
	return v, nil
}

// AverageImpact is the mean of the non-zero impacts, or 0 when there are none.
func AverageImpact(samples []ImpactSample) float64 {
	var total float64
	var n int
	for _, s := range samples {
		if s.Impact == 0 {
			continue
		}
		total += s.Impact
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// FitImpactCurve fits amount = a*ln(b*impact+1) by Levenberg-Marquardt.
// At least two distinct impact values are required since the model has two
// parameters.
func FitImpactCurve(samples []ImpactSample) (ImpactCurve, error) {
	xs := make([]float64, 0, len(samples))
	ys := make([]float64, 0, len(samples))
	distinct := make(map[float64]struct{}, len(samples))
	var scale float64
	for _, s := range samples {
		if !finite(s.Impact) || !finite(s.Amount) {
			continue
		}
		xs = append(xs, s.Impact)
		ys = append(ys, s.Amount)
		distinct[s.Impact] = struct{}{}
		scale = math.Max(scale, math.Abs(s.Amount))
	}
	if len(distinct) < 2 {
		return ImpactCurve{}, fmt.Errorf("%w: need at least 2 distinct impact values, have %d",
			ErrFitConvergence, len(distinct))
	}
	if scale == 0 {
		return ImpactCurve{A: 0, B: 1}, nil
	}
	for i := range ys {
		ys[i] /= scale
	}

	f := &logFit{xs: xs, ys: ys}
	b0 := f.initialRate()
	a, b, err := f.solve(f.amplitude(b0), b0)
	if err != nil {
		return ImpactCurve{}, err
	}
	return ImpactCurve{A: a * scale, B: b}, nil
}

type logFit struct {
	xs, ys []float64
}

func (f *logFit) inDomain(b float64) bool {
	for _, x := range f.xs {
		if b*x+1 <= 0 {
			return false
		}
	}
	return true
}

func (f *logFit) cost(a, b float64) float64 {
	var sse float64
	for i, x := range f.xs {
		r := f.ys[i] - a*math.Log(b*x+1)
		sse += r * r
	}
	return sse
}

// amplitude is the least-squares a for a fixed b.
func (f *logFit) amplitude(b float64) float64 {
	var gy, gg float64
	for i, x := range f.xs {
		g := math.Log(b*x + 1)
		gy += g * f.ys[i]
		gg += g * g
	}
	if gg == 0 {
		return 0
	}
	return gy / gg
}

// initialRate scans b over a log grid and keeps the best starting point.
func (f *logFit) initialRate() float64 {
	best, bestCost := 1.0, math.Inf(1)
	for e := -6.0; e <= 6.0; e += 0.1 {
		b := math.Pow(10, e)
		c := f.cost(f.amplitude(b), b)
		if c < bestCost {
			best, bestCost = b, c
		}
	}
	return best
}

func (f *logFit) solve(a, b float64) (float64, float64, error) {
	sse := f.cost(a, b)
	lambda := fitLambdaInit

	for iter := 0; iter < fitMaxIterations; iter++ {
		if sse == 0 {
			return a, b, nil
		}

		var j00, j01, j11, g0, g1 float64
		for i, x := range f.xs {
			u := b*x + 1
			ja := math.Log(u)
			jb := a * x / u
			r := f.ys[i] - a*ja
			j00 += ja * ja
			j01 += ja * jb
			j11 += jb * jb
			g0 += ja * r
			g1 += jb * r
		}
		if g0 == 0 && g1 == 0 {
			return a, b, nil
		}

		for {
			if lambda > fitLambdaMax {
				// No step reduces the cost any more: a minimum at float precision.
				return a, b, nil
			}
			lhs := mat.NewDense(2, 2, []float64{
				j00 + lambda*math.Max(j00, 1e-12), j01,
				j01, j11 + lambda*math.Max(j11, 1e-12),
			})
			var step mat.VecDense
			if err := step.SolveVec(lhs, mat.NewVecDense(2, []float64{g0, g1})); err != nil {
				lambda *= 10
				continue
			}
			da, db := step.AtVec(0), step.AtVec(1)
			na, nb := a+da, b+db
			if !finite(na) || !finite(nb) || !f.inDomain(nb) {
				lambda *= 10
				continue
			}
			c := f.cost(na, nb)
			if !finite(c) || c >= sse {
				lambda *= 10
				continue
			}

			small := math.Abs(da) <= fitStepTol*(math.Abs(a)+fitStepTol) &&
				math.Abs(db) <= fitStepTol*(math.Abs(b)+fitStepTol)
			flat := sse-c <= fitCostTol*sse
			a, b, sse = na, nb, c
			lambda = math.Max(lambda/10, 1e-12)
			if small || flat {
				return a, b, nil
			}
			break
		}
	}
	return 0, 0, fmt.Errorf("%w: no convergence after %d iterations", ErrFitConvergence, fitMaxIterations)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
