package risk

import "strings"

// AtRiskCollateralRatio is the collateral ratio below which an open trove
// counts towards value-at-risk.
const AtRiskCollateralRatio = 1.5

// TroveStatus is the lifecycle state of a trove.
type TroveStatus int

const (
	TroveUnknown TroveStatus = iota
	TroveOpen
	TroveClosedByOwner
	TroveClosedByLiquidation
	TroveClosedByRedemption
)

func (s TroveStatus) String() string {
	switch s {
	case TroveOpen:
		return "open"
	case TroveClosedByOwner:
		return "closedByOwner"
	case TroveClosedByLiquidation:
		return "closedByLiquidation"
	case TroveClosedByRedemption:
		return "closedByRedemption"
	default:
		return "unknown"
	}
}

// ParseTroveStatus maps upstream status labels ("Open", "closedByOwner",
// "closed_by_liquidation", ...) onto TroveStatus.
func ParseTroveStatus(s string) TroveStatus {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch key {
	case "open", "active":
		return TroveOpen
	case "closedbyowner", "closed":
		return TroveClosedByOwner
	case "closedbyliquidation", "liquidated":
		return TroveClosedByLiquidation
	case "closedbyredemption", "redeemed":
		return TroveClosedByRedemption
	default:
		return TroveUnknown
	}
}

// Trove is one borrowing position as reported upstream.
type Trove struct {
	Status          TroveStatus
	CollateralRatio float64
	CollateralUSD   float64
}

// ValueAtRisk sums the USD collateral of open troves below
// AtRiskCollateralRatio and counts them. No match yields (0, 0).
func ValueAtRisk(troves []Trove) (float64, int) {
	var sum float64
	var count int
	for _, t := range troves {
		if t.Status != TroveOpen || t.CollateralRatio >= AtRiskCollateralRatio {
			continue
		}
		sum += t.CollateralUSD
		count++
	}
	return sum, count
}
