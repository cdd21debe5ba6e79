package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
	"github.com/web3-frozen/collateral-risk-monitor/internal/risk"
)

const (
	prismaAPI     = "https://api.prismamonitor.com"
	prismaTimeout = 15 * time.Second

	// StabilityPoolLabel is the holder label of the stability pool in the
	// stablecoin holders list.
	StabilityPoolLabel = "Stability Pool"
)

type prismaHolders struct {
	Holders []struct {
		Label string   `json:"label"`
		Value *float64 `json:"value"`
	} `json:"holders"`
}

type prismaGeneral struct {
	Info struct {
		Supply *float64 `json:"supply"`
	} `json:"info"`
}

type prismaImpact struct {
	Impact []struct {
		Impact *float64 `json:"impact"`
		Amount *float64 `json:"amount"`
	} `json:"impact"`
}

type prismaTroves struct {
	Troves []struct {
		Owner           string   `json:"owner"`
		Status          string   `json:"status"`
		CollateralRatio *float64 `json:"collateral_ratio"`
		CollateralUSD   *float64 `json:"collateral_usd"`
	} `json:"troves"`
}

// Prisma reads stablecoin, collateral and trove data from the Prisma
// Monitor API.
type Prisma struct {
	fetcher
	baseURL      string
	collateral   string
	troveManager string
}

func NewPrisma(baseURL, collateral, troveManager string, cache ResponseCache, logger *slog.Logger) *Prisma {
	if baseURL == "" {
		baseURL = prismaAPI
	}
	f := newFetcher("prisma", logger)
	f.client.Timeout = prismaTimeout
	f.cache = cache
	return &Prisma{
		fetcher:      f,
		baseURL:      strings.TrimRight(baseURL, "/"),
		collateral:   collateral,
		troveManager: troveManager,
	}
}

// FetchPoolAndSupply returns the stability pool size and the circulating
// supply. A missing field yields a nil value, not an error.
func (p *Prisma) FetchPoolAndSupply(ctx context.Context) (monitor.PoolSupply, error) {
	var holders prismaHolders
	if err := p.getJSON(ctx, p.baseURL+"/v1/mkusd/ethereum/holders", &holders); err != nil {
		return monitor.PoolSupply{}, err
	}
	var general prismaGeneral
	if err := p.getJSON(ctx, p.baseURL+"/v1/mkusd/ethereum/general", &general); err != nil {
		return monitor.PoolSupply{}, err
	}

	var out monitor.PoolSupply
	for _, h := range holders.Holders {
		if h.Label == StabilityPoolLabel {
			out.PoolUSD = h.Value
			break
		}
	}
	out.SupplyUSD = general.Info.Supply
	return out, nil
}

func (p *Prisma) FetchImpactSamples(ctx context.Context) ([]risk.ImpactSample, error) {
	var resp prismaImpact
	url := fmt.Sprintf("%s/v1/collateral/ethereum/%s/impact", p.baseURL, p.collateral)
	if err := p.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Impact == nil {
		return nil, fmt.Errorf("%w: prisma impact: missing impact list", monitor.ErrUpstreamUnavailable)
	}

	samples := make([]risk.ImpactSample, 0, len(resp.Impact))
	for i, s := range resp.Impact {
		if s.Impact == nil || s.Amount == nil {
			return nil, fmt.Errorf("%w: prisma impact: sample %d incomplete", monitor.ErrUpstreamUnavailable, i)
		}
		samples = append(samples, risk.ImpactSample{Impact: *s.Impact, Amount: *s.Amount})
	}
	return samples, nil
}

func (p *Prisma) FetchTroves(ctx context.Context) ([]risk.Trove, error) {
	var resp prismaTroves
	url := fmt.Sprintf("%s/v1/trove/ethereum/%s/troves", p.baseURL, p.troveManager)
	if err := p.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Troves == nil {
		return nil, fmt.Errorf("%w: prisma troves: missing trove list", monitor.ErrUpstreamUnavailable)
	}

	troves := make([]risk.Trove, 0, len(resp.Troves))
	for _, t := range resp.Troves {
		if t.CollateralRatio == nil || t.CollateralUSD == nil {
			return nil, fmt.Errorf("%w: prisma troves: trove %s incomplete", monitor.ErrUpstreamUnavailable, t.Owner)
		}
		troves = append(troves, risk.Trove{
			Status:          risk.ParseTroveStatus(t.Status),
			CollateralRatio: *t.CollateralRatio,
			CollateralUSD:   *t.CollateralUSD,
		})
	}
	return troves, nil
}
