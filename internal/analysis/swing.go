package analysis

import "smc-signal-engine/internal/binance"

// SwingKind distinguishes swing highs from swing lows
type SwingKind string

const (
	SwingHigh SwingKind = "HIGH"
	SwingLow  SwingKind = "LOW"
)

// SwingPoint represents a local price extremum. Broken flips to true exactly
// once, when a later close crosses the level (see StructureTracker).
type SwingPoint struct {
	Index  int
	Price  float64
	Kind   SwingKind
	Broken bool
}

// SwingDetector locates local extrema using a symmetric lookback window.
type SwingDetector struct {
	window int
}

// NewSwingDetector creates a swing detector with the given window length
func NewSwingDetector(window int) *SwingDetector {
	if window <= 0 {
		window = 3
	}
	return &SwingDetector{window: window}
}

// Detect scans the series for swing highs and lows. Indices within the
// window of either boundary have insufficient context and are never
// candidates.
func (sd *SwingDetector) Detect(candles []binance.Kline) []SwingPoint {
	k := sd.window
	if len(candles) < 2*k+1 {
		return nil
	}

	var swings []SwingPoint

	for i := k; i < len(candles)-k; i++ {
		if sd.isSwingHigh(candles, i) {
			swings = append(swings, SwingPoint{
				Index: i,
				Price: candles[i].High,
				Kind:  SwingHigh,
			})
		}
		if sd.isSwingLow(candles, i) {
			swings = append(swings, SwingPoint{
				Index: i,
				Price: candles[i].Low,
				Kind:  SwingLow,
			})
		}
	}

	return swings
}

// isSwingHigh requires the high at i to exceed every high in both the left
// and right windows.
func (sd *SwingDetector) isSwingHigh(candles []binance.Kline, i int) bool {
	h := candles[i].High
	for j := i - sd.window; j <= i+sd.window; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= h {
			return false
		}
	}
	return true
}

func (sd *SwingDetector) isSwingLow(candles []binance.Kline, i int) bool {
	l := candles[i].Low
	for j := i - sd.window; j <= i+sd.window; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= l {
			return false
		}
	}
	return true
}
