package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
	"github.com/web3-frozen/collateral-risk-monitor/internal/risk"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubSource struct {
	down bool
}

func (s stubSource) err() error {
	if s.down {
		return monitor.ErrUpstreamUnavailable
	}
	return nil
}

func (s stubSource) FetchPoolAndSupply(context.Context) (monitor.PoolSupply, error) {
	pool, supply := 250.0, 1000.0
	return monitor.PoolSupply{PoolUSD: &pool, SupplyUSD: &supply}, s.err()
}

func (s stubSource) FetchImpactSamples(context.Context) ([]risk.ImpactSample, error) {
	return nil, errors.New("no impact data")
}

func (s stubSource) FetchTroves(context.Context) ([]risk.Trove, error) {
	return []risk.Trove{{Status: risk.TroveOpen, CollateralRatio: 1.2, CollateralUSD: 500}}, s.err()
}

func (s stubSource) FetchPriceSeries(context.Context, string, int) ([]risk.Candle, error) {
	return nil, errors.New("no prices")
}

func newEngine(src monitor.DataSource) *monitor.Engine {
	asm := monitor.NewAssembler(src, monitor.DefaultAssemblerConfig(), testLogger)
	return monitor.NewEngine(monitor.NewStore(), monitor.NewOverrides(), asm, testLogger, time.Hour)
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLatestLazyThenCached(t *testing.T) {
	h := Latest(newEngine(stubSource{}), testLogger)

	rec := serve(h, http.MethodGet, "/api/latest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var first map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["is_cached"] != false || first["is_mocked"] != false {
		t.Errorf("flags = %v/%v, want false/false", first["is_cached"], first["is_mocked"])
	}
	result := first["result"].(map[string]any)
	if result["stability_pool_share"] != 0.25 {
		t.Errorf("share = %v, want 0.25", result["stability_pool_share"])
	}
	if _, ok := result["limit_from_impact"]; ok {
		t.Error("failed metric should be omitted")
	}

	rec = serve(h, http.MethodGet, "/api/latest", "")
	var second map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &second)
	if second["is_cached"] != true || second["id"] != first["id"] {
		t.Errorf("second response = %v, want cached copy of %v", second["id"], first["id"])
	}
}

func TestLatestNoData(t *testing.T) {
	h := Latest(newEngine(stubSource{down: true}), testLogger)

	rec := serve(h, http.MethodGet, "/api/latest", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"no data available"}` {
		t.Errorf("body = %s", got)
	}
}

func TestHistoryPaging(t *testing.T) {
	engine := newEngine(stubSource{})
	for i := 0; i < 25; i++ {
		if _, err := engine.ForceRefresh(context.Background()); err != nil {
			t.Fatalf("ForceRefresh: %v", err)
		}
	}
	h := History(engine)

	tests := []struct {
		query       string
		wantStatus  int
		wantItems   int
		wantPage    int
		wantPerPage int
	}{
		{"", http.StatusOK, 10, 1, 10},
		{"?page=3", http.StatusOK, 5, 3, 10},
		{"?page=2&per_page=20", http.StatusOK, 5, 2, 20},
		{"?per_page=500", http.StatusOK, 25, 1, 100},
		{"?page=9", http.StatusOK, 0, 9, 10},
		{"?offset=20&limit=10", http.StatusOK, 5, 3, 10},
		{"?offset=3", http.StatusOK, 10, 1, 10},
		{"?page=0", http.StatusBadRequest, 0, 0, 0},
		{"?per_page=abc", http.StatusBadRequest, 0, 0, 0},
		{"?offset=-1", http.StatusBadRequest, 0, 0, 0},
		{"?limit=0", http.StatusBadRequest, 0, 0, 0},
		{"?page=4611686018427387905&per_page=4", http.StatusBadRequest, 0, 0, 0},
		{"?page=9223372036854775807", http.StatusBadRequest, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := serve(h, http.MethodGet, "/api/history"+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var page historyPage
			if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if page.Total != 25 || len(page.Items) != tt.wantItems || page.Page != tt.wantPage || page.PerPage != tt.wantPerPage {
				t.Errorf("got total=%d items=%d page=%d per_page=%d", page.Total, len(page.Items), page.Page, page.PerPage)
			}
		})
	}
}

func TestHistoryEmptyItemsIsArray(t *testing.T) {
	rec := serve(History(newEngine(stubSource{})), http.MethodGet, "/api/history", "")
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Errorf("body = %s, want empty items array", rec.Body.String())
	}
}

func TestRefresh(t *testing.T) {
	engine := newEngine(stubSource{})
	rec := serve(Refresh(engine, testLogger), http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, total := engine.History(0, 10); total != 1 {
		t.Errorf("history total = %d, want 1", total)
	}

	rec = serve(Refresh(newEngine(stubSource{down: true}), testLogger), http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestOverrideRoundTrip(t *testing.T) {
	engine := newEngine(stubSource{down: true})

	rec := serve(SetOverride(engine), http.MethodPut, "/api/override",
		`{"enabled":true,"values":{"stability_pool_share":0.5,"troves_at_risk":3}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = serve(GetOverride(engine), http.MethodGet, "/api/override", "")
	var st monitor.OverrideState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Enabled || st.Values.StabilityPoolShare == nil || *st.Values.StabilityPoolShare != 0.5 {
		t.Errorf("override = %+v", st)
	}

	// the override answers even though every upstream is down
	rec = serve(Latest(engine, testLogger), http.MethodGet, "/api/latest", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"is_mocked":true`) {
		t.Errorf("latest = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSetOverrideValidation(t *testing.T) {
	h := SetOverride(newEngine(stubSource{}))
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{invalid`},
		{"missing enabled", `{"values":{}}`},
		{"unknown field", `{"enabled":true,"bogus":1}`},
		{"wrong type", `{"enabled":"yes"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodPut, "/api/override", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthAndReady(t *testing.T) {
	if rec := serve(Health(), http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	engine := newEngine(stubSource{})
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	rec := serve(Ready(engine, up), http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before first snapshot = %d, want 503", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["reason"] != "no snapshot yet" {
		t.Errorf("body = %s, err = %v", rec.Body.String(), err)
	}
	if _, err := engine.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if rec := serve(Ready(engine, up), http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d, want 200", rec.Code)
	}
	rec = serve(Ready(engine, up, down), http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with unreachable dependency = %d, want 503", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestStream(t *testing.T) {
	engine := newEngine(stubSource{})
	srv := httptest.NewServer(Stream(engine, func(*http.Request) bool { return true }, testLogger))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for engine.Subscribers() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap, err := engine.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got monitor.Snapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != snap.ID {
		t.Errorf("streamed %s, want %s", got.ID, snap.ID)
	}
}
