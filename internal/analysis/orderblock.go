package analysis

import (
	"smc-signal-engine/config"
	"smc-signal-engine/internal/binance"
)

// OrderBlock represents the last opposing candle before a displacement
// breakout. PriceHigh >= PriceLow always holds. Mitigated flips to true
// once, when price revisits the block's midpoint, and never reverts.
type OrderBlock struct {
	StartIndex int // Index of the opposing candle forming the block
	BreakIndex int // Index of the displacement candle that confirmed it
	PriceHigh  float64
	PriceLow   float64
	Direction  Direction
	Strength   float64 // 0-100
	Mitigated  bool
}

// Midpoint returns the 50% level of the block
func (ob OrderBlock) Midpoint() float64 {
	return (ob.PriceHigh + ob.PriceLow) / 2
}

// OrderBlockDetector finds order blocks behind displacement candles and
// scores their strength.
type OrderBlockDetector struct {
	cfg config.DetectorConfig
}

// NewOrderBlockDetector creates a new order block detector
func NewOrderBlockDetector(cfg config.DetectorConfig) *OrderBlockDetector {
	if cfg.OBLookback <= 0 {
		cfg.OBLookback = 5
	}
	if cfg.VolumeAvgPeriod <= 0 {
		cfg.VolumeAvgPeriod = 20
	}
	return &OrderBlockDetector{cfg: cfg}
}

// Detect scans the series for order blocks. The minimum window is the
// volume averaging period; shorter series yield no blocks.
func (d *OrderBlockDetector) Detect(candles []binance.Kline) []OrderBlock {
	period := d.cfg.VolumeAvgPeriod
	if len(candles) <= period {
		return nil
	}

	var blocks []OrderBlock

	for i := period; i < len(candles); i++ {
		disp := candles[i]
		if !d.isDisplacement(candles, i) {
			continue
		}

		if disp.IsBullish() {
			if ob, found := d.findBullishBlock(candles, i); found {
				ob.Strength = d.scoreBlock(candles, ob, i)
				blocks = append(blocks, ob)
			}
		} else if disp.IsBearish() {
			if ob, found := d.findBearishBlock(candles, i); found {
				ob.Strength = d.scoreBlock(candles, ob, i)
				blocks = append(blocks, ob)
			}
		}
	}

	d.UpdateMitigation(blocks, candles)
	return blocks
}

// isDisplacement reports whether the candle at i is a displacement candle:
// its body is a configured multiple of the recent average body.
func (d *OrderBlockDetector) isDisplacement(candles []binance.Kline, i int) bool {
	avg := averageBody(candles, i, d.cfg.VolumeAvgPeriod)
	if avg == 0 {
		return false
	}
	return candles[i].Body() >= d.cfg.DisplacementRatio*avg
}

// findBullishBlock scans backward from a bullish displacement candle for the
// most recent bearish candle whose high the displacement close broke.
func (d *OrderBlockDetector) findBullishBlock(candles []binance.Kline, dispIdx int) (OrderBlock, bool) {
	disp := candles[dispIdx]
	for j := dispIdx - 1; j >= dispIdx-d.cfg.OBLookback && j >= 0; j-- {
		c := candles[j]
		if c.IsBearish() && disp.Close > c.High {
			return OrderBlock{
				StartIndex: j,
				BreakIndex: dispIdx,
				PriceHigh:  c.High,
				PriceLow:   c.Low,
				Direction:  Bullish,
			}, true
		}
	}
	return OrderBlock{}, false
}

func (d *OrderBlockDetector) findBearishBlock(candles []binance.Kline, dispIdx int) (OrderBlock, bool) {
	disp := candles[dispIdx]
	for j := dispIdx - 1; j >= dispIdx-d.cfg.OBLookback && j >= 0; j-- {
		c := candles[j]
		if c.IsBullish() && disp.Close < c.Low {
			return OrderBlock{
				StartIndex: j,
				BreakIndex: dispIdx,
				PriceHigh:  c.High,
				PriceLow:   c.Low,
				Direction:  Bearish,
			}, true
		}
	}
	return OrderBlock{}, false
}

// scoreBlock computes strength as the sum of body-to-range ratio, volume
// ratio, breakout momentum, and an untested bonus. Component caps come from
// configuration.
func (d *OrderBlockDetector) scoreBlock(candles []binance.Kline, ob OrderBlock, dispIdx int) float64 {
	disp := candles[dispIdx]
	score := 0.0

	// Body-to-range ratio of the displacement candle
	if rng := disp.Range(); rng > 0 {
		score += (disp.Body() / rng) * d.cfg.OBBodyRatioPts
	}

	// Volume vs the rolling average
	if avgVol := averageVolume(candles, dispIdx, d.cfg.VolumeAvgPeriod); avgVol > 0 {
		ratio := disp.Volume / avgVol
		score += clamp(ratio/2, 0, 1) * d.cfg.OBVolumePts
	}

	// Breakout momentum: displacement body relative to the average body
	if avgBody := averageBody(candles, dispIdx, d.cfg.VolumeAvgPeriod); avgBody > 0 {
		ratio := disp.Body() / avgBody
		score += clamp(ratio/3, 0, 1) * d.cfg.OBMomentumPts
	}

	// Untested bonus: no candle in the test window revisits the block range
	if d.isUntested(candles, ob, dispIdx) {
		score += d.cfg.OBUntestedBonus
	}

	return clamp(score, 0, 100)
}

func (d *OrderBlockDetector) isUntested(candles []binance.Kline, ob OrderBlock, dispIdx int) bool {
	end := dispIdx + 1 + d.cfg.OBUntestedWindow
	if end > len(candles) {
		end = len(candles)
	}
	for j := dispIdx + 1; j < end; j++ {
		// Any overlap with the block range counts as a test
		if candles[j].Low <= ob.PriceHigh && candles[j].High >= ob.PriceLow {
			return false
		}
	}
	return true
}

// UpdateMitigation marks blocks whose 50% midpoint was revisited by a later
// candle. The flag only ever moves false to true.
func (d *OrderBlockDetector) UpdateMitigation(blocks []OrderBlock, candles []binance.Kline) {
	for i := range blocks {
		if blocks[i].Mitigated {
			continue
		}
		mid := blocks[i].Midpoint()
		for j := blocks[i].BreakIndex + 1; j < len(candles); j++ {
			if blocks[i].Direction == Bullish {
				// Price trading back down to the midpoint mitigates
				if candles[j].Low <= mid {
					blocks[i].Mitigated = true
					break
				}
			} else {
				if candles[j].High >= mid {
					blocks[i].Mitigated = true
					break
				}
			}
		}
	}
}

// Unmitigated filters to blocks that have not yet been revisited
func Unmitigated(blocks []OrderBlock) []OrderBlock {
	var out []OrderBlock
	for _, b := range blocks {
		if !b.Mitigated {
			out = append(out, b)
		}
	}
	return out
}

func averageBody(candles []binance.Kline, end, period int) float64 {
	start := end - period
	if start < 0 {
		start = 0
	}
	if end <= start {
		return 0
	}
	sum := 0.0
	for j := start; j < end; j++ {
		sum += candles[j].Body()
	}
	return sum / float64(end-start)
}

func averageVolume(candles []binance.Kline, end, period int) float64 {
	start := end - period
	if start < 0 {
		start = 0
	}
	if end <= start {
		return 0
	}
	sum := 0.0
	for j := start; j < end; j++ {
		sum += candles[j].Volume
	}
	return sum / float64(end-start)
}
