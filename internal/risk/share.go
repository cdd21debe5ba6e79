package risk

import "fmt"

// StabilityPoolShare returns the fraction of the circulating supply held in
// the stability pool. A nil input means the upstream did not report it.
func StabilityPoolShare(poolUSD, supplyUSD *float64) (float64, error) {
	if poolUSD == nil {
		return 0, fmt.Errorf("%w: stability pool size", ErrUpstreamData)
	}
	if supplyUSD == nil {
		return 0, fmt.Errorf("%w: circulating supply", ErrUpstreamData)
	}
	if *supplyUSD == 0 {
		return 0, fmt.Errorf("%w: circulating supply is zero", ErrDivision)
	}
	return *poolUSD / *supplyUSD, nil
}
