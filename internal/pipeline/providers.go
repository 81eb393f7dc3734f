package pipeline

import (
	"sync"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/gates"
)

// StaticProviders is the default execution/risk source for deployments
// without a live execution layer: execution is READY and all risk figures
// start at zero. Figures can be updated at runtime by an external feed.
type StaticProviders struct {
	mu        sync.RWMutex
	execution gates.ExecutionSnapshot
	risk      gates.RiskSnapshot
}

// NewStaticProviders creates providers in the ready, zero-risk state
func NewStaticProviders() *StaticProviders {
	return &StaticProviders{
		execution: gates.ExecutionSnapshot{
			State:             gates.ExecutionReady,
			LayerAvailable:    true,
			CapacityAvailable: true,
		},
	}
}

// ExecutionSnapshot implements ExecutionProvider
func (sp *StaticProviders) ExecutionSnapshot(string) *gates.ExecutionSnapshot {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	snapshot := sp.execution
	return &snapshot
}

// RiskSnapshot implements RiskProvider
func (sp *StaticProviders) RiskSnapshot(string, analysis.Direction) *gates.RiskSnapshot {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	snapshot := sp.risk
	return &snapshot
}

// SetExecution replaces the execution snapshot
func (sp *StaticProviders) SetExecution(ex gates.ExecutionSnapshot) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.execution = ex
}

// SetRisk replaces the risk snapshot
func (sp *StaticProviders) SetRisk(r gates.RiskSnapshot) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.risk = r
}
