package entry

import (
	"sort"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
)

// ZoneSource names where a candidate zone came from
type ZoneSource string

const (
	SourceFVG ZoneSource = "FVG"
	SourceOB  ZoneSource = "OB"
	SourceSR  ZoneSource = "SR"
)

// Status classifies a selection outcome by distance from current price.
// The four distance buckets partition [0, inf) with no overlap.
type Status string

const (
	StatusNoZone    Status = "NO_ZONE"
	StatusTooLate   Status = "TOO_LATE"   // Zone effectively already reached
	StatusValidNear Status = "VALID_NEAR" // Optimal band
	StatusValidWait Status = "VALID_WAIT" // Acceptable, needs a pullback first
	StatusTooFar    Status = "TOO_FAR"    // Beyond the universal ceiling
)

// Emittable reports whether a signal with this status may be emitted
func (s Status) Emittable() bool {
	return s == StatusValidNear || s == StatusValidWait
}

// Zone is a qualified entry zone. For a SELL signal the whole zone lies
// above current price; for BUY, below. Wrong-sided zones never enter the
// candidate pool.
type Zone struct {
	Source        ZoneSource `json:"source"`
	Low           float64    `json:"low"`
	High          float64    `json:"high"`
	Center        float64    `json:"center"`
	Quality       float64    `json:"quality"`
	DistancePct   float64    `json:"distance_pct"`
	DistancePrice float64    `json:"distance_price"`
}

// Candidates bundles the detector outputs a selection draws from.
type Candidates struct {
	Gaps   []analysis.FairValueGap
	Blocks []analysis.OrderBlock
	Levels []analysis.SRLevel
}

// Selector picks the best-qualified, directionally-valid entry zone and
// classifies its distance.
type Selector struct {
	cfg config.EntryConfig
}

// NewSelector creates a new entry zone selector
func NewSelector(cfg config.EntryConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select builds the candidate pool for the given direction, ranks it by
// quality (ties to the nearer zone), and classifies the winner's distance.
// Only candidates inside the too-late band are passed over in favor of a
// valid alternative further out; a winner beyond the distance ceiling
// rejects the selection outright, and a pool holding nothing but too-late
// candidates reports the best one's own classification.
func (s *Selector) Select(direction analysis.Direction, currentPrice float64, cands Candidates) (*Zone, Status) {
	if currentPrice <= 0 {
		return nil, StatusNoZone
	}

	pool := s.buildPool(direction, currentPrice, cands)
	if len(pool) == 0 {
		return nil, StatusNoZone
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Quality != pool[j].Quality {
			return pool[i].Quality > pool[j].Quality
		}
		return pool[i].DistancePct < pool[j].DistancePct
	})

	// Walk the ranked pool: only too-late candidates are passed over, so the
	// first candidate outside that band decides the outcome, actionable or not.
	for i := range pool {
		if st := s.Classify(pool[i].DistancePct); st != StatusTooLate {
			return &pool[i], st
		}
	}

	best := pool[0]
	return &best, StatusTooLate
}

// Classify maps a distance percentage to exactly one status bucket.
func (s *Selector) Classify(distancePct float64) Status {
	switch {
	case distancePct < s.cfg.TooLatePercent:
		return StatusTooLate
	case distancePct <= s.cfg.NearPercent:
		return StatusValidNear
	case distancePct <= s.cfg.WaitPercent && distancePct <= s.cfg.MaxDistancePct:
		return StatusValidWait
	default:
		return StatusTooFar
	}
}

// buildPool collects every candidate zone on the directionally-correct side
// of price. For BUY the entire zone must sit below current price, for SELL
// above; anything else is excluded outright.
func (s *Selector) buildPool(direction analysis.Direction, price float64, cands Candidates) []Zone {
	var pool []Zone

	add := func(source ZoneSource, low, high, quality float64) {
		if high < low {
			return
		}
		center := (low + high) / 2
		if !correctSide(direction, price, low, high) {
			return
		}
		dist := price - center
		if direction == analysis.Bearish {
			dist = center - price
		}
		pool = append(pool, Zone{
			Source:        source,
			Low:           low,
			High:          high,
			Center:        center,
			Quality:       quality,
			DistancePct:   dist / price * 100,
			DistancePrice: dist,
		})
	}

	for _, g := range cands.Gaps {
		// Only gaps in the signal direction offer an entry on a retrace
		if g.Direction == direction {
			add(SourceFVG, g.Bottom, g.Top, g.QualityScore)
		}
	}
	for _, b := range cands.Blocks {
		if b.Direction == direction && !b.Mitigated {
			add(SourceOB, b.PriceLow, b.PriceHigh, b.Strength)
		}
	}
	for _, l := range cands.Levels {
		add(SourceSR, l.Low, l.High, l.Quality)
	}

	return pool
}

// correctSide enforces the zone invariant: BUY zones fully below price,
// SELL zones fully above.
func correctSide(direction analysis.Direction, price, low, high float64) bool {
	if direction == analysis.Bullish {
		return high < price
	}
	return low > price
}
