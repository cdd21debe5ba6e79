package handler

import (
	"encoding/json"
	"net/http"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
)

func GetOverride(engine *monitor.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, engine.GetOverride())
	}
}

// SetOverride replaces the override state with the request body.
func SetOverride(engine *monitor.Engine) http.HandlerFunc {
	type request struct {
		Enabled *bool                 `json:"enabled"`
		Values  monitor.MetricsResult `json:"values"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled required")
			return
		}

		engine.SetOverride(*req.Enabled, req.Values)
		writeJSON(w, http.StatusOK, engine.GetOverride())
	}
}
