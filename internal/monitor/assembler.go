package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/collateral-risk-monitor/internal/metrics"
	"github.com/web3-frozen/collateral-risk-monitor/internal/risk"
)

// AssemblerConfig parameterizes the metric computations of a cycle.
type AssemblerConfig struct {
	Asset       string  // price series asset id, e.g. "wrapped-steth"
	WindowDays  int     // OHLC window in days
	QueryImpact float64 // impact percent at which the limit is read
	EMASpan     int
}

func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		Asset:       "wrapped-steth",
		WindowDays:  30,
		QueryImpact: risk.DefaultQueryImpact,
		EMASpan:     risk.DefaultEMASpan,
	}
}

// Assembler runs one refresh cycle: it fetches every input, computes every
// metric and packs the result into a Snapshot.
type Assembler struct {
	src    DataSource
	cfg    AssemblerConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewAssembler(src DataSource, cfg AssemblerConfig, logger *slog.Logger) *Assembler {
	return &Assembler{
		src:    src,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type cycleInputs struct {
	poolSupply PoolSupply
	poolErr    error
	impact     []risk.ImpactSample
	impactErr  error
	troves     []risk.Trove
	trovesErr  error
	candles    []risk.Candle
	candlesErr error
}

// Assemble produces a Snapshot. A failing metric is left out of the result;
// only when no input could be fetched at all does it return ErrRefreshFailed.
func (a *Assembler) Assemble(ctx context.Context) (Snapshot, error) {
	in := a.fetch(ctx)
	if in.poolErr != nil && in.impactErr != nil && in.trovesErr != nil && in.candlesErr != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrRefreshFailed,
			errors.Join(in.poolErr, in.impactErr, in.trovesErr, in.candlesErr))
	}

	var res MetricsResult
	a.poolShare(&res, in)
	a.valueAtRisk(&res, in)
	a.impactLimit(&res, in)
	a.volatility(&res, in)
	return newSnapshot(a.now(), res), nil
}

func (a *Assembler) fetch(ctx context.Context) cycleInputs {
	var in cycleInputs
	var g errgroup.Group
	g.Go(func() error {
		in.poolSupply, in.poolErr = observeFetch("pool_supply", func() (PoolSupply, error) {
			return a.src.FetchPoolAndSupply(ctx)
		})
		return nil
	})
	g.Go(func() error {
		in.impact, in.impactErr = observeFetch("impact", func() ([]risk.ImpactSample, error) {
			return a.src.FetchImpactSamples(ctx)
		})
		return nil
	})
	g.Go(func() error {
		in.troves, in.trovesErr = observeFetch("troves", func() ([]risk.Trove, error) {
			return a.src.FetchTroves(ctx)
		})
		return nil
	})
	g.Go(func() error {
		in.candles, in.candlesErr = observeFetch("price_series", func() ([]risk.Candle, error) {
			return a.src.FetchPriceSeries(ctx, a.cfg.Asset, a.cfg.WindowDays)
		})
		return nil
	})
	_ = g.Wait()
	return in
}

func observeFetch[T any](input string, fetch func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fetch()
	metrics.FetchDuration.WithLabelValues(input).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.FetchTotal.WithLabelValues(input, status).Inc()
	return v, err
}

func (a *Assembler) poolShare(res *MetricsResult, in cycleInputs) {
	if in.poolErr != nil {
		a.omit("stability_pool_share", in.poolErr)
		return
	}
	share, err := risk.StabilityPoolShare(in.poolSupply.PoolUSD, in.poolSupply.SupplyUSD)
	if err != nil {
		a.omit("stability_pool_share", err)
		return
	}
	res.StabilityPoolShare = a.keep("stability_pool_share", share)
}

func (a *Assembler) valueAtRisk(res *MetricsResult, in cycleInputs) {
	if in.trovesErr != nil {
		a.omit("value_at_risk", in.trovesErr)
		return
	}
	sum, count := risk.ValueAtRisk(in.troves)
	res.ValueAtRisk = a.keep("value_at_risk", sum)
	res.TrovesAtRisk = &count
	metrics.MetricValue.WithLabelValues("troves_at_risk").Set(float64(count))
}

func (a *Assembler) impactLimit(res *MetricsResult, in cycleInputs) {
	if in.impactErr != nil {
		a.omit("limit_from_impact", in.impactErr)
		a.omit("average_impact_percent", in.impactErr)
		return
	}
	res.AverageImpactPercent = a.keep("average_impact_percent", risk.AverageImpact(in.impact))

	limit, err := risk.LimitFromImpact(in.impact, a.cfg.QueryImpact)
	if err != nil {
		a.omit("limit_from_impact", err)
		return
	}
	res.LimitFromImpact = a.keep("limit_from_impact", limit)
}

func (a *Assembler) volatility(res *MetricsResult, in cycleInputs) {
	if in.candlesErr != nil {
		a.omit("volatility", in.candlesErr)
		return
	}
	bars, err := risk.DailyOHLC(in.candles, a.cfg.WindowDays)
	if err != nil {
		a.omit("volatility", err)
		return
	}

	var vol Volatility
	if _, latest, err := risk.EMA(bars, a.cfg.EMASpan); err != nil {
		a.omit("latest_ema", err)
	} else {
		vol.LatestEMA = a.keep("latest_ema", latest)
	}
	if _, avg, err := risk.ParkinsonVolatility(bars); err != nil {
		a.omit("average_parkinson", err)
	} else {
		vol.AverageParkinson = a.keep("average_parkinson", avg)
	}
	if vol.LatestEMA != nil || vol.AverageParkinson != nil {
		res.Volatility = &vol
	}
}

func (a *Assembler) keep(metric string, v float64) *float64 {
	metrics.MetricValue.WithLabelValues(metric).Set(v)
	return &v
}

func (a *Assembler) omit(metric string, err error) {
	metrics.MetricFailuresTotal.WithLabelValues(metric).Inc()
	a.logger.Warn("metric omitted", "metric", metric, "error", err)
}
