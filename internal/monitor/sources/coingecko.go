package sources

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
	"github.com/web3-frozen/collateral-risk-monitor/internal/risk"
)

const (
	coinGeckoAPI = "https://api.coingecko.com/api/v3"

	// free tier allows roughly 30 calls per minute
	coinGeckoInterval = 2 * time.Second
)

// CoinGecko fetches OHLC candles from the CoinGecko public API.
type CoinGecko struct {
	fetcher
	baseURL string
	limiter *rate.Limiter
}

func NewCoinGecko(baseURL, apiKey string, cache ResponseCache, logger *slog.Logger) *CoinGecko {
	if baseURL == "" {
		baseURL = coinGeckoAPI
	}
	f := newFetcher("coingecko", logger)
	f.cache = cache
	if apiKey != "" {
		f.headers["x-cg-demo-api-key"] = apiKey
	}
	return &CoinGecko{
		fetcher: f,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(coinGeckoInterval), 1),
	}
}

// FetchPriceSeries returns the USD candles of asset over the last windowDays,
// ascending by time. For windows of 3 to 30 days CoinGecko serves 4h candles.
func (c *CoinGecko) FetchPriceSeries(ctx context.Context, asset string, windowDays int) ([]risk.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: coingecko rate limit: %v", monitor.ErrUpstreamUnavailable, err)
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(windowDays))
	u := fmt.Sprintf("%s/coins/%s/ohlc?%s", c.baseURL, url.PathEscape(asset), q.Encode())

	var rows [][]float64
	if err := c.getJSON(ctx, u, &rows); err != nil {
		return nil, err
	}

	candles := make([]risk.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) != 5 {
			return nil, fmt.Errorf("%w: coingecko ohlc: row %d has %d fields", monitor.ErrUpstreamUnavailable, i, len(row))
		}
		candles = append(candles, risk.Candle{
			Time:  time.UnixMilli(int64(row[0])).UTC(),
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	slices.SortStableFunc(candles, func(a, b risk.Candle) int {
		return cmp.Compare(a.Time.UnixMilli(), b.Time.UnixMilli())
	})
	return candles, nil
}
