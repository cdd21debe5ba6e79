package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/web3-frozen/collateral-risk-monitor/internal/monitor"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

type historyPage struct {
	Items   []monitor.Snapshot `json:"items"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
}

// History serves the snapshot history, paged by page/per_page or by
// offset/limit. Sizes above maxPerPage are capped.
func History(engine *monitor.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var offset, limit, page int
		if q.Has("offset") || q.Has("limit") {
			var ok bool
			if offset, ok = intParam(q.Get("offset"), 0, 0); !ok {
				writeError(w, http.StatusBadRequest, "invalid offset")
				return
			}
			if limit, ok = intParam(q.Get("limit"), defaultPerPage, 1); !ok {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(limit, maxPerPage)
			page = offset/limit + 1
		} else {
			var ok bool
			if page, ok = intParam(q.Get("page"), 1, 1); !ok {
				writeError(w, http.StatusBadRequest, "invalid page")
				return
			}
			if limit, ok = intParam(q.Get("per_page"), defaultPerPage, 1); !ok {
				writeError(w, http.StatusBadRequest, "invalid per_page")
				return
			}
			limit = min(limit, maxPerPage)
			if page-1 > math.MaxInt/limit {
				writeError(w, http.StatusBadRequest, "invalid page")
				return
			}
			offset = (page - 1) * limit
		}

		items, total := engine.History(offset, limit)
		writeJSON(w, http.StatusOK, historyPage{
			Items:   items,
			Total:   total,
			Page:    page,
			PerPage: limit,
		})
	}
}

// intParam parses s, returning def when empty. Values below lowest are
// rejected.
func intParam(s string, def, lowest int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lowest {
		return 0, false
	}
	return n, true
}
