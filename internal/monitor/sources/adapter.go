package sources

import (
	"context"
	"fmt"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
	"github.com/web3-frozen/collateral-risk-monitor/internal/risk"
)

// TroveLister is an alternative trove source, e.g. a database indexer.
type TroveLister interface {
	ListTroves(ctx context.Context) ([]risk.Trove, error)
}

// Adapter implements monitor.DataSource on top of Prisma and CoinGecko.
// When an indexer is set it replaces Prisma as the trove source.
type Adapter struct {
	prisma  *Prisma
	prices  *CoinGecko
	indexer TroveLister
}

var _ monitor.DataSource = (*Adapter)(nil)

func NewAdapter(prisma *Prisma, prices *CoinGecko, indexer TroveLister) *Adapter {
	return &Adapter{prisma: prisma, prices: prices, indexer: indexer}
}

func (a *Adapter) FetchPoolAndSupply(ctx context.Context) (monitor.PoolSupply, error) {
	return a.prisma.FetchPoolAndSupply(ctx)
}

func (a *Adapter) FetchImpactSamples(ctx context.Context) ([]risk.ImpactSample, error) {
	return a.prisma.FetchImpactSamples(ctx)
}

func (a *Adapter) FetchTroves(ctx context.Context) ([]risk.Trove, error) {
	if a.indexer == nil {
		return a.prisma.FetchTroves(ctx)
	}
	troves, err := a.indexer.ListTroves(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: trove indexer: %v", monitor.ErrUpstreamUnavailable, err)
	}
	return troves, nil
}

func (a *Adapter) FetchPriceSeries(ctx context.Context, asset string, windowDays int) ([]risk.Candle, error) {
	return a.prices.FetchPriceSeries(ctx, asset, windowDays)
}
