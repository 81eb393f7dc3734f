package bias

import (
	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
)

// Kind is a timeframe's directional bias label
type Kind string

const (
	BiasBullish Kind = "BULLISH"
	BiasBearish Kind = "BEARISH"
	BiasNeutral Kind = "NEUTRAL" // Directional evidence on both sides, balanced
	BiasRanging Kind = "RANGING" // No directional evidence at all
	BiasNoData  Kind = "NO_DATA" // Fetch failed or timed out for this timeframe
)

// Directional reports whether the bias picks a side
func (k Kind) Directional() bool {
	return k == BiasBullish || k == BiasBearish
}

// Opposite returns the conflicting directional bias, or empty for
// directionless kinds.
func (k Kind) Opposite() Kind {
	switch k {
	case BiasBullish:
		return BiasBearish
	case BiasBearish:
		return BiasBullish
	default:
		return ""
	}
}

// ToDirection maps a directional bias to a trade direction
func (k Kind) ToDirection() (analysis.Direction, bool) {
	switch k {
	case BiasBullish:
		return analysis.Bullish, true
	case BiasBearish:
		return analysis.Bearish, true
	default:
		return "", false
	}
}

// TimeframeBias is one timeframe's structural bias. It is recomputed fresh
// on every evaluation and never persisted.
type TimeframeBias struct {
	Timeframe  analysis.Timeframe `json:"timeframe"`
	Bias       Kind               `json:"bias"`
	Confidence float64            `json:"confidence"` // 0-100
	BullScore  int                `json:"bull_score"`
	BearScore  int                `json:"bear_score"`
}

// HTFResolution is the outcome of reconciling the higher timeframe's bias
// with the instrument's own.
type HTFResolution struct {
	Effective Kind    // Bias used for downstream direction and zone decisions
	Penalty   float64 // Soft confidence penalty, 0 when the HTF is directional
	Source    string  // "htf", "own", or "none"
}

// Aggregator converts per-timeframe structural evidence into bias labels
// and computes cross-timeframe consensus.
type Aggregator struct {
	cfg config.BiasConfig
}

// NewAggregator creates a new bias aggregator
func NewAggregator(cfg config.BiasConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// BiasFor scores one timeframe's structural evidence. A single directional
// structural element is sufficient; the threshold is deliberately 1.
func (a *Aggregator) BiasFor(tf analysis.Timeframe, events []analysis.StructureEvent, blocks []analysis.OrderBlock) TimeframeBias {
	bull, bear := 0, 0

	for _, ev := range events {
		if ev.Direction == analysis.Bullish {
			bull++
		} else {
			bear++
		}
	}

	// Net order-block imbalance contributes one directional element
	bullOBs, bearOBs := 0, 0
	for _, b := range blocks {
		if b.Mitigated {
			continue
		}
		if b.Direction == analysis.Bullish {
			bullOBs++
		} else {
			bearOBs++
		}
	}
	if bullOBs > bearOBs {
		bull++
	} else if bearOBs > bullOBs {
		bear++
	}

	tb := TimeframeBias{Timeframe: tf, BullScore: bull, BearScore: bear}

	switch {
	case bull >= 1 && bull > bear:
		tb.Bias = BiasBullish
		tb.Confidence = directionalConfidence(bull, bear)
	case bear >= 1 && bear > bull:
		tb.Bias = BiasBearish
		tb.Confidence = directionalConfidence(bear, bull)
	case bull == bear && bull > 0:
		tb.Bias = BiasNeutral
		tb.Confidence = 50
	default:
		tb.Bias = BiasRanging
		tb.Confidence = 0
	}

	return tb
}

// NoData returns the degraded bias for a timeframe whose fetch failed.
func (a *Aggregator) NoData(tf analysis.Timeframe) TimeframeBias {
	return TimeframeBias{Timeframe: tf, Bias: BiasNoData}
}

// Consensus computes the agreement percentage for a target bias across
// timeframes. Aligned counts exact matches, conflicting counts the opposite
// direction; NEUTRAL, RANGING and NO_DATA timeframes are excluded from both,
// so directionless timeframes never inflate apparent agreement. The second
// return is false when no timeframe votes at all (consensus undefined).
func (a *Aggregator) Consensus(target Kind, biases []TimeframeBias) (float64, bool) {
	if !target.Directional() {
		return 0, false
	}

	aligned, conflicting := 0, 0
	opposite := target.Opposite()

	for _, tb := range biases {
		switch tb.Bias {
		case target:
			aligned++
		case opposite:
			conflicting++
		}
	}

	total := aligned + conflicting
	if total == 0 {
		return 0, false
	}
	return float64(aligned) / float64(total) * 100, true
}

// ResolveHTF reconciles the designated higher timeframe's bias with the
// instrument's own recomputed bias. A directionless HTF never blocks the
// pipeline; it costs a soft confidence penalty instead, smaller when the
// instrument's own structure is directional enough to stand in.
func (a *Aggregator) ResolveHTF(htf, own TimeframeBias) HTFResolution {
	if htf.Bias.Directional() {
		return HTFResolution{Effective: htf.Bias, Penalty: 0, Source: "htf"}
	}
	if own.Bias.Directional() {
		return HTFResolution{Effective: own.Bias, Penalty: a.cfg.HTFOverridePenalty, Source: "own"}
	}
	return HTFResolution{Effective: htf.Bias, Penalty: a.cfg.HTFNeutralPenalty, Source: "none"}
}

// HigherTimeframe returns the configured HTF for a signal timeframe. The
// highest supported timeframe maps to itself.
func (a *Aggregator) HigherTimeframe(tf analysis.Timeframe) analysis.Timeframe {
	if htf, ok := a.cfg.HigherTimeframes[string(tf)]; ok {
		if parsed, err := analysis.ParseTimeframe(htf); err == nil {
			return parsed
		}
	}
	return tf
}

// directionalConfidence scales with the evidence margin: an uncontested
// break scores higher than a narrowly winning one.
func directionalConfidence(winning, losing int) float64 {
	total := winning + losing
	if total == 0 {
		return 0
	}
	margin := float64(winning-losing) / float64(total)
	return 50 + margin*50
}
