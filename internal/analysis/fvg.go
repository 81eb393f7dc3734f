package analysis

import (
	"smc-signal-engine/config"
	"smc-signal-engine/internal/binance"
)

// FillStatus tracks how much of a gap has been retraced into. It is
// monotonic: UNFILLED -> PARTIALLY_FILLED -> FULLY_FILLED, never back.
type FillStatus string

const (
	FillUnfilled FillStatus = "UNFILLED"
	FillPartial  FillStatus = "PARTIALLY_FILLED"
	FillFull     FillStatus = "FULLY_FILLED"
)

// FairValueGap represents a price imbalance left by a fast move.
// Top > Bottom always holds; zero or negative gaps are discarded at
// detection time and never stored.
type FairValueGap struct {
	Top          float64
	Bottom       float64
	Direction    Direction
	CreatedIndex int // Index of the middle (gap-creating) candle
	FillStatus   FillStatus
	FillPercent  float64 // 0-100, overlapped fraction of gap size
	QualityScore float64 // 0-100
	MultiCandle  bool    // Formed by the 4-candle variant
}

// Size returns the gap height in price units
func (g FairValueGap) Size() float64 {
	return g.Top - g.Bottom
}

// Midpoint returns the center of the gap
func (g FairValueGap) Midpoint() float64 {
	return (g.Top + g.Bottom) / 2
}

// FVGDetector detects fair value gaps and tracks their fill state.
type FVGDetector struct {
	cfg config.DetectorConfig
}

// NewFVGDetector creates a new FVG detector
func NewFVGDetector(cfg config.DetectorConfig) *FVGDetector {
	if cfg.FVGMinGapPercent <= 0 {
		cfg.FVGMinGapPercent = 0.1
	}
	return &FVGDetector{cfg: cfg}
}

// Detect scans the series for 3-candle gaps and the wider 4-candle variant,
// scores each, and resolves fill state against the candles that followed.
func (d *FVGDetector) Detect(candles []binance.Kline) []FairValueGap {
	if len(candles) < 3 {
		return nil
	}

	var gaps []FairValueGap

	for i := 0; i+2 < len(candles); i++ {
		a, c := candles[i], candles[i+2]

		// Bullish gap: the move up left untraded space between a's high
		// and c's low
		if gap, ok := d.buildGap(a.High, c.Low, Bullish, i+1, false); ok {
			gaps = append(gaps, gap)
		}
		// Bearish gap
		if gap, ok := d.buildGap(c.High, a.Low, Bearish, i+1, false); ok {
			gaps = append(gaps, gap)
		}
	}

	// 4-candle variant: same imbalance test across a wider span. Only kept
	// when the inner 3-candle form did not already capture it.
	for i := 0; i+3 < len(candles); i++ {
		a, c := candles[i], candles[i+3]

		if gap, ok := d.buildGap(a.High, c.Low, Bullish, i+1, true); ok && !containsGap(gaps, gap) {
			gaps = append(gaps, gap)
		}
		if gap, ok := d.buildGap(c.High, a.Low, Bearish, i+1, true); ok && !containsGap(gaps, gap) {
			gaps = append(gaps, gap)
		}
	}

	for i := range gaps {
		d.trackFill(&gaps[i], candles)
		gaps[i].QualityScore = d.scoreGap(candles, gaps[i])
	}

	return gaps
}

// buildGap validates gap geometry and the minimum-size filter. The filter is
// an OR: a gap passes on the percentage threshold or the absolute one.
func (d *FVGDetector) buildGap(bottom, top float64, dir Direction, createdIdx int, multi bool) (FairValueGap, bool) {
	if top <= bottom {
		return FairValueGap{}, false
	}

	size := top - bottom
	mid := (top + bottom) / 2
	sizePct := 0.0
	if mid > 0 {
		sizePct = size / mid * 100
	}

	passesPercent := sizePct >= d.cfg.FVGMinGapPercent
	passesAbsolute := d.cfg.FVGMinGapAbsolute > 0 && size >= d.cfg.FVGMinGapAbsolute
	if !passesPercent && !passesAbsolute {
		return FairValueGap{}, false
	}

	return FairValueGap{
		Top:          top,
		Bottom:       bottom,
		Direction:    dir,
		CreatedIndex: createdIdx,
		FillStatus:   FillUnfilled,
		MultiCandle:  multi,
	}, true
}

// trackFill scans forward from gap creation. The first candle whose opposite
// extreme crosses into the gap decides the outcome: a cross beyond the far
// edge is a full fill, anything less is partial with the overlapped fraction.
func (d *FVGDetector) trackFill(gap *FairValueGap, candles []binance.Kline) {
	size := gap.Size()
	if size <= 0 {
		return
	}

	// The gap spans creation candle and its neighbor; scanning starts after
	// the completing candle.
	start := gap.CreatedIndex + 2
	if gap.MultiCandle {
		start = gap.CreatedIndex + 3
	}

	for j := start; j < len(candles); j++ {
		c := candles[j]
		if gap.Direction == Bullish {
			// Retracement comes from above; the candle low probes the gap
			if c.Low < gap.Top {
				if c.Low <= gap.Bottom {
					gap.FillStatus = FillFull
					gap.FillPercent = 100
				} else {
					gap.FillStatus = FillPartial
					gap.FillPercent = (gap.Top - c.Low) / size * 100
				}
				return
			}
		} else {
			// Retracement comes from below; the candle high probes the gap
			if c.High > gap.Bottom {
				if c.High >= gap.Top {
					gap.FillStatus = FillFull
					gap.FillPercent = 100
				} else {
					gap.FillStatus = FillPartial
					gap.FillPercent = (c.High - gap.Bottom) / size * 100
				}
				return
			}
		}
	}
}

// IsFresh reports whether a gap is still actionable: its fill percentage is
// below the configured threshold.
func (d *FVGDetector) IsFresh(gap FairValueGap) bool {
	return gap.FillPercent < d.cfg.FVGFilledThreshold
}

// Fresh filters to gaps still below the fill threshold
func (d *FVGDetector) Fresh(gaps []FairValueGap) []FairValueGap {
	var out []FairValueGap
	for _, g := range gaps {
		if d.IsFresh(g) {
			out = append(out, g)
		}
	}
	return out
}

// scoreGap sums the quality components: gap-size tier, displacement bonus,
// unfilled bonus, volume spike, and the multi-candle bonus.
func (d *FVGDetector) scoreGap(candles []binance.Kline, gap FairValueGap) float64 {
	score := 0.0

	// Size tier, relative to the gap midpoint
	sizePct := 0.0
	if mid := gap.Midpoint(); mid > 0 {
		sizePct = gap.Size() / mid * 100
	}
	switch {
	case sizePct >= 1.0:
		score += d.cfg.FVGSizePts
	case sizePct >= 0.5:
		score += d.cfg.FVGSizePts * 2 / 3
	case sizePct >= 0.25:
		score += d.cfg.FVGSizePts / 3
	default:
		score += d.cfg.FVGSizePts / 6
	}

	mid := gap.CreatedIndex
	if mid < len(candles) {
		// Displacement bonus: the gap-creating candle's body dwarfs recent bodies
		if avgBody := averageBody(candles, mid, d.cfg.VolumeAvgPeriod); avgBody > 0 {
			if candles[mid].Body() >= d.cfg.DisplacementRatio*avgBody {
				score += d.cfg.FVGDisplacementBonus
			}
		}
		// Volume spike on the gap-creating candle
		if avgVol := averageVolume(candles, mid, d.cfg.VolumeAvgPeriod); avgVol > 0 {
			ratio := candles[mid].Volume / avgVol
			score += clamp((ratio-1)/1.5, 0, 1) * d.cfg.FVGVolumePts
		}
	}

	if gap.FillStatus == FillUnfilled {
		score += d.cfg.FVGUnfilledBonus
	}
	if gap.MultiCandle {
		score += d.cfg.FVGMultiCandleBonus
	}

	return clamp(score, 0, 100)
}

// containsGap reports whether an equivalent or enclosing gap already exists
// in the same direction.
func containsGap(gaps []FairValueGap, g FairValueGap) bool {
	for _, existing := range gaps {
		if existing.Direction == g.Direction &&
			existing.Bottom <= g.Bottom && existing.Top >= g.Top {
			return true
		}
	}
	return false
}
