package signal

import (
	"time"

	"github.com/google/uuid"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/bias"
	"smc-signal-engine/internal/entry"
)

// AssembleInput carries everything the confidence model consumes.
type AssembleInput struct {
	Symbol       string
	Timeframe    analysis.Timeframe
	Direction    analysis.Direction
	Zone         *entry.Zone
	EntryStatus  entry.Status
	Biases       map[analysis.Timeframe]bias.TimeframeBias
	OwnBias      bias.TimeframeBias
	HTF          bias.HTFResolution
	Consensus    float64
	ConsensusSet bool // False when every timeframe was directionless
}

// Assembler merges detector outputs, bias, and zone classification into a
// scored Signal.
type Assembler struct {
	confCfg config.ConfidenceConfig
	biasCfg config.BiasConfig
	clock   func() time.Time
}

// NewAssembler creates a new signal assembler
func NewAssembler(confCfg config.ConfidenceConfig, biasCfg config.BiasConfig) *Assembler {
	return &Assembler{
		confCfg: confCfg,
		biasCfg: biasCfg,
		clock:   time.Now,
	}
}

// Assemble computes the base technical score, applies the named penalties,
// and clamps the result to [0, 100]. The entry status is carried verbatim;
// a TOO_LATE, NO_ZONE, or TOO_FAR status makes the signal non-emittable
// regardless of confidence.
func (a *Assembler) Assemble(in AssembleInput) *Signal {
	base := a.confCfg.BaseScore

	if in.Zone != nil {
		base += in.Zone.Quality * a.confCfg.ZoneQualityWeight
	}
	if in.ConsensusSet {
		base += in.Consensus * a.confCfg.ConsensusWeight
	}
	base += in.OwnBias.Confidence * a.confCfg.StructureWeight

	var penalties []Penalty
	if in.HTF.Penalty > 0 {
		penalties = append(penalties, Penalty{Name: "htf_soft_constraint", Amount: in.HTF.Penalty})
	}
	if in.ConsensusSet && in.Consensus < a.biasCfg.ConsensusFloor {
		penalties = append(penalties, Penalty{Name: "consensus_shortfall", Amount: a.biasCfg.ConsensusShortfallPenalty})
	}

	confidence := base
	for _, p := range penalties {
		confidence -= p.Amount
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return &Signal{
		ID:           uuid.NewString(),
		Symbol:       in.Symbol,
		Timeframe:    in.Timeframe,
		Direction:    in.Direction,
		Confidence:   confidence,
		EntryZone:    in.Zone,
		EntryStatus:  in.EntryStatus,
		MTFBreakdown: in.Biases,
		Consensus:    in.Consensus,
		Penalties:    penalties,
		GeneratedAt:  a.clock(),
	}
}
