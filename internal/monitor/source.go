package monitor

import (
	"context"
	"errors"

	"github.com/web3-frozen/collateral-risk-monitor/internal/risk"
)

// ErrUpstreamUnavailable wraps every data source failure: transport errors,
// non-2xx responses and missing or malformed fields.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// PoolSupply holds the stability pool size and the stablecoin circulating
// supply in USD. A nil field was not reported by the upstream.
type PoolSupply struct {
	PoolUSD   *float64
	SupplyUSD *float64
}

// DataSource fetches and normalizes the raw inputs of one refresh cycle.
// Implementations return errors wrapping ErrUpstreamUnavailable and do not
// retry.
type DataSource interface {
	FetchPoolAndSupply(ctx context.Context) (PoolSupply, error)
	FetchImpactSamples(ctx context.Context) ([]risk.ImpactSample, error)
	FetchTroves(ctx context.Context) ([]risk.Trove, error)
	// FetchPriceSeries returns raw 4h candles for asset, ascending by time.
	FetchPriceSeries(ctx context.Context, asset string, windowDays int) ([]risk.Candle, error)
}
