package analysis

import "smc-signal-engine/internal/binance"

// TrendState is the structure tracker's prevailing trend
type TrendState string

const (
	TrendNone    TrendState = "no_trend"
	TrendBullish TrendState = "bullish"
	TrendBearish TrendState = "bearish"
)

// StructureKind distinguishes trend continuation from reversal breaks
type StructureKind string

const (
	BreakOfStructure StructureKind = "BOS" // Break continuing the prevailing trend
	StructureShift   StructureKind = "MSS" // Break contradicting the prevailing trend
)

// StructureEvent records one confirmed directional break. The event log is
// append-only.
type StructureEvent struct {
	Index     int
	Price     float64
	Kind      StructureKind
	Direction Direction
}

// StructureTracker classifies directional breaks as BOS or MSS using a
// three-state trend machine.
type StructureTracker struct {
	state  TrendState
	events []StructureEvent
}

// NewStructureTracker creates a tracker in the no_trend state
func NewStructureTracker() *StructureTracker {
	return &StructureTracker{state: TrendNone}
}

// State returns the current trend state
func (st *StructureTracker) State() TrendState {
	return st.state
}

// Events returns the append-only event log
func (st *StructureTracker) Events() []StructureEvent {
	return st.events
}

// Process walks the series, confirming breaks of unbroken swing points on
// close. An upward break is a BOS unless the prevailing state is bearish, in
// which case it is an MSS; the symmetric rule applies downward. Each
// confirmed break updates the trend state and marks the swing point broken,
// so the same point can never break twice.
func (st *StructureTracker) Process(candles []binance.Kline, swings []SwingPoint) []StructureEvent {
	for i := 0; i < len(candles); i++ {
		close := candles[i].Close

		for s := range swings {
			if swings[s].Broken || swings[s].Index >= i {
				continue
			}

			switch swings[s].Kind {
			case SwingHigh:
				if close > swings[s].Price {
					st.confirmBreak(i, swings[s].Price, Bullish)
					swings[s].Broken = true
				}
			case SwingLow:
				if close < swings[s].Price {
					st.confirmBreak(i, swings[s].Price, Bearish)
					swings[s].Broken = true
				}
			}
		}
	}
	return st.events
}

func (st *StructureTracker) confirmBreak(index int, price float64, dir Direction) {
	kind := BreakOfStructure
	if dir == Bullish && st.state == TrendBearish {
		kind = StructureShift
	}
	if dir == Bearish && st.state == TrendBullish {
		kind = StructureShift
	}

	st.events = append(st.events, StructureEvent{
		Index:     index,
		Price:     price,
		Kind:      kind,
		Direction: dir,
	})

	if dir == Bullish {
		st.state = TrendBullish
	} else {
		st.state = TrendBearish
	}
}
