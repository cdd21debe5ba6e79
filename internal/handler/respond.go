package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// refreshTimeout bounds a refresh started by a request. The refresh outlives
// the request since other callers may have joined it.
const refreshTimeout = 2 * time.Minute

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func refreshContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), refreshTimeout)
}
