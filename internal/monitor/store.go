package monitor

import (
	"sync"

	"github.com/web3-frozen/collateral-risk-monitor/internal/metrics"
)

// Store holds the latest snapshot and the append-only history. Publish
// updates both under one lock so readers never see one without the other.
type Store struct {
	mu      sync.RWMutex
	latest  *Snapshot
	history []Snapshot
}

func NewStore() *Store {
	return &Store{}
}

// Publish makes snap the latest snapshot and appends it to the history.
func (s *Store) Publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &snap
	s.history = append(s.history, snap)
	metrics.HistoryLength.Set(float64(len(s.history)))
}

// Latest returns a copy of the most recently published snapshot.
func (s *Store) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Snapshot{}, false
	}
	snap := *s.latest
	snap.Result = snap.Result.Clone()
	return snap, true
}

// History returns up to limit snapshots starting at offset, in insertion
// order, together with the total history length.
func (s *Store) History(offset, limit int) ([]Snapshot, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.history)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= total {
		return []Snapshot{}, total
	}
	end := offset + limit
	if end > total || end < offset {
		end = total
	}
	page := make([]Snapshot, end-offset)
	for i, snap := range s.history[offset:end] {
		snap.Result = snap.Result.Clone()
		page[i] = snap
	}
	return page, total
}

// Len returns the number of published snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
