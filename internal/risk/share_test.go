package risk

import (
	"errors"
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.9f, want %.9f (tol=%g)", label, got, want, tol)
	}
}

func TestStabilityPoolShare(t *testing.T) {
	got, err := StabilityPoolShare(ptr(1_000_000), ptr(4_000_000))
	if err != nil {
		t.Fatalf("StabilityPoolShare error: %v", err)
	}
	if got != 0.25 {
		t.Errorf("StabilityPoolShare = %v, want 0.25", got)
	}
}

func TestStabilityPoolShareErrors(t *testing.T) {
	tests := []struct {
		name   string
		pool   *float64
		supply *float64
		want   error
	}{
		{"zero supply", ptr(10), ptr(0), ErrDivision},
		{"missing pool", nil, ptr(10), ErrUpstreamData},
		{"missing supply", ptr(10), nil, ErrUpstreamData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StabilityPoolShare(tt.pool, tt.supply)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValueAtRisk(t *testing.T) {
	troves := []Trove{
		{Status: TroveOpen, CollateralRatio: 1.2, CollateralUSD: 500},
		{Status: TroveOpen, CollateralRatio: 1.6, CollateralUSD: 300},
		{Status: TroveClosedByOwner, CollateralRatio: 1.1, CollateralUSD: 900},
	}
	sum, count := ValueAtRisk(troves)
	if sum != 500 || count != 1 {
		t.Errorf("ValueAtRisk = (%v, %d), want (500, 1)", sum, count)
	}
}

func TestValueAtRiskEmpty(t *testing.T) {
	sum, count := ValueAtRisk(nil)
	if sum != 0 || count != 0 {
		t.Errorf("ValueAtRisk(nil) = (%v, %d), want (0, 0)", sum, count)
	}

	// exactly at the threshold is not at risk
	sum, count = ValueAtRisk([]Trove{{Status: TroveOpen, CollateralRatio: 1.5, CollateralUSD: 42}})
	if sum != 0 || count != 0 {
		t.Errorf("ValueAtRisk(threshold) = (%v, %d), want (0, 0)", sum, count)
	}
}

func TestParseTroveStatus(t *testing.T) {
	tests := []struct {
		input string
		want  TroveStatus
	}{
		{"Open", TroveOpen},
		{"open", TroveOpen},
		{"closedByOwner", TroveClosedByOwner},
		{"closed_by_liquidation", TroveClosedByLiquidation},
		{"Closed By Redemption", TroveClosedByRedemption},
		{"", TroveUnknown},
		{"nonExistent", TroveUnknown},
	}
	for _, tt := range tests {
		if got := ParseTroveStatus(tt.input); got != tt.want {
			t.Errorf("ParseTroveStatus(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
