package signal

import (
	"time"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/bias"
	"smc-signal-engine/internal/entry"
)

// Penalty is one named deduction from the base confidence score
type Penalty struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Signal is an assembled trade candidate. It is never mutated after
// assembly; the gate chain only wraps it with a verdict.
type Signal struct {
	ID           string                                    `json:"id"`
	Symbol       string                                    `json:"symbol"`
	Timeframe    analysis.Timeframe                        `json:"timeframe"`
	Direction    analysis.Direction                        `json:"direction"`
	Confidence   float64                                   `json:"confidence"`
	EntryZone    *entry.Zone                               `json:"entry_zone,omitempty"`
	EntryStatus  entry.Status                              `json:"entry_status"`
	MTFBreakdown map[analysis.Timeframe]bias.TimeframeBias `json:"mtf_breakdown"`
	Consensus    float64                                   `json:"consensus"`
	Penalties    []Penalty                                 `json:"penalties"`
	GeneratedAt  time.Time                                 `json:"generated_at"`
}

// Emittable reports whether the entry status permits emission, independent
// of confidence.
func (s *Signal) Emittable() bool {
	return s.EntryStatus.Emittable()
}

// NoTrade is the structured no-trade descriptor. Callers always receive
// either a Signal or one of these, never an unstructured failure.
type NoTrade struct {
	Symbol       string                                    `json:"symbol"`
	Timeframe    analysis.Timeframe                        `json:"timeframe"`
	ReasonCode   string                                    `json:"reason_code"`
	Details      string                                    `json:"details"`
	MTFBreakdown map[analysis.Timeframe]bias.TimeframeBias `json:"mtf_breakdown,omitempty"`
	DecidedAt    time.Time                                 `json:"decided_at"`
}

// Well-known no-trade reason codes
const (
	ReasonNoDirectionalBias = "no_directional_bias"
	ReasonGateBlocked       = "gate_blocked"
	ReasonCooldownActive    = "cooldown_active"
	ReasonDataUnavailable   = "data_unavailable"
	ReasonException         = "exception"
)

// Decision is the terminal result of one evaluation: exactly one of Signal
// or NoTrade is set.
type Decision struct {
	Signal  *Signal  `json:"signal,omitempty"`
	NoTrade *NoTrade `json:"no_trade,omitempty"`
}

// Emitted reports whether the decision carries an emitted signal
func (d Decision) Emitted() bool {
	return d.Signal != nil
}
