package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/web3-frozen/collateral-risk-monitor/internal/metrics"
)

const DefaultRefreshInterval = 30 * time.Minute

var (
	// ErrRefreshFailed is returned when a cycle could not fetch any input.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrNoData is returned by Latest when neither an override, a published
	// snapshot nor an on-demand refresh can produce a result.
	ErrNoData = errors.New("no data available")
)

const refreshKey = "refresh"

// Latest is the answer of the latest query.
type Latest struct {
	Snapshot
	// Cached is false when the query itself triggered the refresh.
	Cached bool `json:"is_cached"`
	Mocked bool `json:"is_mocked"`
}

// Engine schedules refresh cycles and serves the latest snapshot and the
// history. All refresh triggers share one in-flight cycle.
type Engine struct {
	store     *Store
	overrides *Overrides
	assembler *Assembler
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time

	group      singleflight.Group
	refreshing atomic.Bool

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}
}

func NewEngine(store *Store, overrides *Overrides, assembler *Assembler, logger *slog.Logger, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Engine{
		store:       store,
		overrides:   overrides,
		assembler:   assembler,
		logger:      logger,
		interval:    interval,
		now:         time.Now,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Run refreshes immediately and then once per interval until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("refresh scheduler started", "interval", e.interval.String())

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx)
	e.RunTicks(ctx, ticker.C)
}

// RunTicks runs one refresh per received tick until ctx is done or ticks is
// closed.
func (e *Engine) RunTicks(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if _, _, err := e.refresh(ctx, false); err != nil {
		e.logger.Error("scheduled refresh failed", "error", err)
	}
}

// ForceRefresh runs a cycle now, or joins the one in flight.
func (e *Engine) ForceRefresh(ctx context.Context) (Snapshot, error) {
	snap, _, err := e.refresh(ctx, false)
	return snap, err
}

// refresh reports started=true only to the caller whose call ran the cycle.
// With lazy set, a snapshot published since the caller last looked is
// returned instead of running a new cycle.
func (e *Engine) refresh(ctx context.Context, lazy bool) (Snapshot, bool, error) {
	started := false
	v, err, _ := e.group.Do(refreshKey, func() (any, error) {
		if lazy {
			if snap, ok := e.store.Latest(); ok {
				return snap, nil
			}
		}
		started = true
		return e.runCycle(ctx)
	})
	if err != nil {
		return Snapshot{}, started, err
	}
	return v.(Snapshot), started, nil
}

func (e *Engine) runCycle(ctx context.Context) (Snapshot, error) {
	e.refreshing.Store(true)
	defer e.refreshing.Store(false)

	start := time.Now()
	snap, err := e.assembler.Assemble(ctx)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return Snapshot{}, err
	}

	e.store.Publish(snap)
	e.broadcast(snap)

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	metrics.RefreshLastSuccess.Set(float64(snap.CapturedAt().Unix()))
	e.logger.Info("snapshot published",
		"id", snap.ID,
		"timestamp", snap.Timestamp,
		"history", e.store.Len(),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	snap.Result = snap.Result.Clone()
	return snap, nil
}

// Latest returns the override if enabled, else the latest published
// snapshot, else the result of an on-demand refresh.
func (e *Engine) Latest(ctx context.Context) (Latest, error) {
	if st := e.overrides.Get(); st.Enabled {
		return Latest{Snapshot: newSnapshot(e.now(), st.Values), Mocked: true}, nil
	}
	if snap, ok := e.store.Latest(); ok {
		return Latest{Snapshot: snap, Cached: true}, nil
	}

	snap, started, err := e.refresh(ctx, true)
	if err != nil {
		return Latest{}, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	return Latest{Snapshot: snap, Cached: !started}, nil
}

// History returns a window of the snapshot history and its total length.
func (e *Engine) History(offset, limit int) ([]Snapshot, int) {
	return e.store.History(offset, limit)
}

func (e *Engine) SetOverride(enabled bool, values MetricsResult) {
	e.overrides.Set(enabled, values)
	e.logger.Info("override updated", "enabled", enabled)
}

func (e *Engine) GetOverride() OverrideState {
	return e.overrides.Get()
}

// Refreshing reports whether a cycle is in flight.
func (e *Engine) Refreshing() bool { return e.refreshing.Load() }

func (e *Engine) Interval() time.Duration { return e.interval }

// HasData reports whether at least one snapshot has been published.
func (e *Engine) HasData() bool {
	_, ok := e.store.Latest()
	return ok
}

// Subscribe registers a receiver of published snapshots. Sends never block:
// a subscriber whose buffer is full misses that snapshot. The returned func
// unsubscribes and closes the channel.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	e.subMu.Lock()
	e.subscribers[ch] = struct{}{}
	metrics.StreamSubscribers.Set(float64(len(e.subscribers)))
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subscribers, ch)
			metrics.StreamSubscribers.Set(float64(len(e.subscribers)))
			e.subMu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (e *Engine) Subscribers() int {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return len(e.subscribers)
}

func (e *Engine) broadcast(snap Snapshot) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
			e.logger.Warn("stream subscriber lagging, snapshot dropped", "id", snap.ID)
		}
	}
}
