package gates

import (
	"fmt"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/entry"
)

// ExecutionState is the execution layer's readiness state
type ExecutionState string

const (
	ExecutionReady    ExecutionState = "READY"
	ExecutionPaused   ExecutionState = "PAUSED"
	ExecutionDisabled ExecutionState = "DISABLED"
)

// ExecutionSnapshot holds the execution eligibility fields. A nil snapshot
// hard-fails the execution section.
type ExecutionSnapshot struct {
	State             ExecutionState
	LayerAvailable    bool
	SymbolLocked      bool
	CapacityAvailable bool
	EmergencyHalt     bool
}

// RiskSnapshot holds the risk admission figures, in percentage units. A nil
// snapshot hard-fails the risk section.
type RiskSnapshot struct {
	SignalRisk        float64
	TotalOpenRisk     float64
	SymbolExposure    float64
	DirectionExposure float64
	DailyLoss         float64
}

// Context is the flat, typed input to the gate chain. Gates read it and
// never mutate it.
type Context struct {
	EntryStatus entry.Status
	Confidence  float64
	Execution   *ExecutionSnapshot
	Risk        *RiskSnapshot
}

// Verdict is the chain's terminal result: a boolean plus, on failure, the
// first failing gate and a human-readable reason.
type Verdict struct {
	Passed     bool   `json:"passed"`
	FailedGate string `json:"failed_gate,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Chain evaluates the four admission sections strictly in order, stopping
// at the first failure. Evaluation is pure: the same context always yields
// the same verdict.
type Chain struct {
	cfg           config.GateConfig
	minConfidence float64
}

// NewChain creates a new admission gate chain
func NewChain(cfg config.GateConfig, minConfidence float64) *Chain {
	return &Chain{cfg: cfg, minConfidence: minConfidence}
}

// Evaluate runs entry gating, the confidence threshold, execution
// eligibility, and risk admission, in that order.
func (c *Chain) Evaluate(ctx Context) Verdict {
	if v := c.entryGating(ctx); !v.Passed {
		return v
	}
	if v := c.confidenceThreshold(ctx); !v.Passed {
		return v
	}
	if v := c.executionEligibility(ctx); !v.Passed {
		return v
	}
	return c.riskAdmission(ctx)
}

// entryGating checks the structural zone preconditions.
func (c *Chain) entryGating(ctx Context) Verdict {
	if !ctx.EntryStatus.Emittable() {
		return fail("EG-01", fmt.Sprintf("entry status %s is not tradable", ctx.EntryStatus))
	}
	return pass()
}

// confidenceThreshold requires the candidate to meet the configured minimum.
func (c *Chain) confidenceThreshold(ctx Context) Verdict {
	if ctx.Confidence < c.minConfidence {
		return fail("CT-01", fmt.Sprintf("confidence %.1f below minimum %.1f", ctx.Confidence, c.minConfidence))
	}
	return pass()
}

// executionEligibility runs the five execution sub-gates in fixed order,
// short-circuiting on the first failure.
func (c *Chain) executionEligibility(ctx Context) Verdict {
	ex := ctx.Execution
	if ex == nil {
		return fail("EE-00", "execution snapshot missing")
	}
	if ex.State != ExecutionReady {
		return fail("EE-01", fmt.Sprintf("execution state is %s, need READY", ex.State))
	}
	if !ex.LayerAvailable {
		return fail("EE-02", "execution layer unavailable")
	}
	if ex.SymbolLocked {
		return fail("EE-03", "symbol execution locked")
	}
	if !ex.CapacityAvailable {
		return fail("EE-04", "no position capacity available")
	}
	if ex.EmergencyHalt {
		return fail("EE-05", "emergency halt active")
	}
	return pass()
}

// riskAdmission checks the five risk figures against their fixed ceilings,
// short-circuiting on the first breach.
func (c *Chain) riskAdmission(ctx Context) Verdict {
	r := ctx.Risk
	if r == nil {
		return fail("RA-00", "risk snapshot missing")
	}
	if r.SignalRisk > c.cfg.MaxSignalRisk {
		return fail("RA-01", fmt.Sprintf("signal risk %.2f%% exceeds %.2f%%", r.SignalRisk, c.cfg.MaxSignalRisk))
	}
	if r.TotalOpenRisk > c.cfg.MaxTotalOpenRisk {
		return fail("RA-02", fmt.Sprintf("total open risk %.2f%% exceeds %.2f%%", r.TotalOpenRisk, c.cfg.MaxTotalOpenRisk))
	}
	if r.SymbolExposure > c.cfg.MaxSymbolExposure {
		return fail("RA-03", fmt.Sprintf("symbol exposure %.2f%% exceeds %.2f%%", r.SymbolExposure, c.cfg.MaxSymbolExposure))
	}
	if r.DirectionExposure > c.cfg.MaxDirectionExposure {
		return fail("RA-04", fmt.Sprintf("direction exposure %.2f%% exceeds %.2f%%", r.DirectionExposure, c.cfg.MaxDirectionExposure))
	}
	if r.DailyLoss > c.cfg.MaxDailyLoss {
		return fail("RA-05", fmt.Sprintf("daily loss %.2f%% exceeds %.2f%%", r.DailyLoss, c.cfg.MaxDailyLoss))
	}
	return pass()
}

func pass() Verdict {
	return Verdict{Passed: true}
}

func fail(gate, reason string) Verdict {
	return Verdict{Passed: false, FailedGate: gate, Reason: reason}
}
