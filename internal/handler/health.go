package handler

import (
	"context"
	"net/http"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
)

// Pinger is a backing service whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

type readiness struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Ready reports ready once a snapshot exists and every dependency answers.
func Ready(engine *monitor.Engine, deps ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !engine.HasData() {
			writeJSON(w, http.StatusServiceUnavailable, readiness{Status: "not ready", Reason: "no snapshot yet"})
			return
		}
		for _, d := range deps {
			if err := d.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, readiness{Status: "not ready", Reason: "dependency unreachable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, readiness{Status: "ready"})
	}
}
