package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/web3-frozen/collateral-risk-monitor/internal/metrics"
	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = 5 * time.Minute
	maxBodyBytes    = 8 << 20
)

// ResponseCache stores raw upstream bodies keyed by request URL.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// fetcher performs GET requests and decodes JSON bodies. Successful bodies
// go through the optional cache; cache failures only cost a direct fetch.
type fetcher struct {
	name     string
	client   *http.Client
	cache    ResponseCache
	cacheTTL time.Duration
	headers  map[string]string
	logger   *slog.Logger
}

func newFetcher(name string, logger *slog.Logger) fetcher {
	return fetcher{
		name:     name,
		client:   &http.Client{Timeout: defaultTimeout},
		cacheTTL: defaultCacheTTL,
		headers:  map[string]string{},
		logger:   logger,
	}
}

// SetCacheTTL sets how long successful responses stay cached.
func (f *fetcher) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		f.cacheTTL = ttl
	}
}

// getJSON decodes the body at url into out. Only bodies that decode are
// written to the cache.
func (f *fetcher) getJSON(ctx context.Context, url string, out any) error {
	key := f.name + ":" + url
	body, cached, err := f.get(ctx, key, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", monitor.ErrUpstreamUnavailable, f.name, err)
	}
	if f.cache != nil && !cached {
		if err := f.cache.Set(ctx, key, body, f.cacheTTL); err != nil {
			f.logger.Warn("response cache write failed", "source", f.name, "error", err)
		}
	}
	return nil
}

func (f *fetcher) get(ctx context.Context, key, url string) ([]byte, bool, error) {
	if f.cache != nil {
		body, ok, err := f.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.UpstreamCacheTotal.WithLabelValues("error").Inc()
			f.logger.Warn("response cache read failed", "source", f.name, "error", err)
		case ok:
			metrics.UpstreamCacheTotal.WithLabelValues("hit").Inc()
			return body, true, nil
		default:
			metrics.UpstreamCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build %s request: %v", monitor.ErrUpstreamUnavailable, f.name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s API: %v", monitor.ErrUpstreamUnavailable, f.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, fmt.Errorf("%w: %s API status: %d", monitor.ErrUpstreamUnavailable, f.name, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s response: %v", monitor.ErrUpstreamUnavailable, f.name, err)
	}
	return body, false, nil
}
