package handler

import (
	"log/slog"
	"net/http"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
)

// Refresh runs a refresh cycle now and returns its snapshot.
func Refresh(engine *monitor.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := refreshContext(r)
		defer cancel()

		snap, err := engine.ForceRefresh(ctx)
		if err != nil {
			logger.Error("manual refresh failed", "error", err)
			writeError(w, http.StatusBadGateway, "refresh failed")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
