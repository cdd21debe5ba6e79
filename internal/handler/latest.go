package handler

import (
	"log/slog"
	"net/http"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
)

// Latest serves the override, the latest snapshot or a freshly computed one.
func Latest(engine *monitor.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := refreshContext(r)
		defer cancel()

		latest, err := engine.Latest(ctx)
		if err != nil {
			logger.Warn("latest unavailable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "no data available")
			return
		}
		writeJSON(w, http.StatusOK, latest)
	}
}
