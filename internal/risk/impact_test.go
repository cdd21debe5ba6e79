package risk

import (
	"errors"
	"math"
	"testing"
)

func syntheticCurve(a, b float64, impacts []float64) []ImpactSample {
	samples := make([]ImpactSample, len(impacts))
	for i, x := range impacts {
		samples[i] = ImpactSample{Impact: x, Amount: a * math.Log(b*x+1)}
	}
	return samples
}

func TestLimitFromImpactRecoversCurve(t *testing.T) {
	impacts := []float64{0.25, 0.5, 1, 2, 3, 5, 7.5, 10}
	tests := []struct {
		a, b float64
	}{
		{1500, 0.8},
		{2_500_000, 0.35},
		{40, 3},
	}
	for _, tt := range tests {
		got, err := LimitFromImpact(syntheticCurve(tt.a, tt.b, impacts), DefaultQueryImpact)
		if err != nil {
			t.Fatalf("LimitFromImpact(a=%v, b=%v) error: %v", tt.a, tt.b, err)
		}
		want := tt.a * math.Log(tt.b*DefaultQueryImpact+1)
		assertClose(t, "limit", got, want, 1e-3)
	}
}

func TestFitImpactCurveTwoPoints(t *testing.T) {
	samples := syntheticCurve(100, 1.5, []float64{1, 4})
	curve, err := FitImpactCurve(samples)
	if err != nil {
		t.Fatalf("FitImpactCurve error: %v", err)
	}
	assertClose(t, "amount at 1", curve.Amount(1), samples[0].Amount, 1e-6)
	assertClose(t, "amount at 4", curve.Amount(4), samples[1].Amount, 1e-6)
}

func TestFitImpactCurveUnderdetermined(t *testing.T) {
	tests := []struct {
		name    string
		samples []ImpactSample
	}{
		{"empty", nil},
		{"single point", []ImpactSample{{Impact: 1, Amount: 10}}},
		{"repeated impact", []ImpactSample{{Impact: 2, Amount: 10}, {Impact: 2, Amount: 12}, {Impact: 2, Amount: 11}}},
		{"non-finite", []ImpactSample{{Impact: math.NaN(), Amount: 1}, {Impact: 1, Amount: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LimitFromImpact(tt.samples, DefaultQueryImpact)
			if !errors.Is(err, ErrFitConvergence) {
				t.Errorf("error = %v, want %v", err, ErrFitConvergence)
			}
		})
	}
}

func TestFitImpactCurveAllZero(t *testing.T) {
	got, err := LimitFromImpact([]ImpactSample{{Impact: 1}, {Impact: 2}}, DefaultQueryImpact)
	if err != nil {
		t.Fatalf("LimitFromImpact error: %v", err)
	}
	if got != 0 {
		t.Errorf("LimitFromImpact(all zero) = %v, want 0", got)
	}
}

func TestAverageImpact(t *testing.T) {
	tests := []struct {
		name    string
		samples []ImpactSample
		want    float64
	}{
		{"empty", nil, 0},
		{"only zero", []ImpactSample{{Impact: 0, Amount: 1}}, 0},
		{"skips zero", []ImpactSample{{Impact: 0}, {Impact: 1}, {Impact: 3}}, 2},
	}
	for _, tt := range tests {
		if got := AverageImpact(tt.samples); got != tt.want {
			t.Errorf("%s: AverageImpact = %v, want %v", tt.name, got, tt.want)
		}
	}
}
