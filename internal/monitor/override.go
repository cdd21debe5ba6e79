package monitor

import (
	"sync"

	"github.com/web3-frozen/collateral-risk-monitor/internal/metrics"
)

// OverrideState is the admin supplied synthetic result. When Enabled, the
// latest query returns Values instead of the real snapshot.
type OverrideState struct {
	Enabled bool          `json:"enabled"`
	Values  MetricsResult `json:"values"`
}

// Overrides guards the process wide OverrideState.
type Overrides struct {
	mu    sync.RWMutex
	state OverrideState
}

func NewOverrides() *Overrides {
	return &Overrides{}
}

// Set replaces the override state as a whole.
func (o *Overrides) Set(enabled bool, values MetricsResult) {
	next := OverrideState{Enabled: enabled, Values: values.Clone()}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = next
	if enabled {
		metrics.OverrideEnabled.Set(1)
	} else {
		metrics.OverrideEnabled.Set(0)
	}
}

// Get returns a copy of the current override state.
func (o *Overrides) Get() OverrideState {
	o.mu.RLock()
	st := o.state
	o.mu.RUnlock()
	st.Values = st.Values.Clone()
	return st
}
