package analysis

import "smc-signal-engine/internal/binance"

// LiquiditySide tells which side of the book rests at a level
type LiquiditySide string

const (
	BuySideLiquidity  LiquiditySide = "buy"
	SellSideLiquidity LiquiditySide = "sell"
)

// LiquidityLevel marks a swing extremum as resting liquidity. Swept flips
// false to true once, on a wick-through-and-reject, and never reverts.
type LiquidityLevel struct {
	Index int
	Price float64
	Side  LiquiditySide
	Swept bool
}

// LiquidityTracker seeds liquidity levels from swing points and detects
// sweep events.
type LiquidityTracker struct{}

// NewLiquidityTracker creates a new liquidity tracker
func NewLiquidityTracker() *LiquidityTracker {
	return &LiquidityTracker{}
}

// FromSwings seeds levels: every swing high is buy-side liquidity, every
// swing low is sell-side.
func (lt *LiquidityTracker) FromSwings(swings []SwingPoint) []LiquidityLevel {
	levels := make([]LiquidityLevel, 0, len(swings))
	for _, s := range swings {
		side := BuySideLiquidity
		if s.Kind == SwingLow {
			side = SellSideLiquidity
		}
		levels = append(levels, LiquidityLevel{
			Index: s.Index,
			Price: s.Price,
			Side:  side,
		})
	}
	return levels
}

// UpdateSweeps marks levels swept by a wick-through-and-reject: the candle's
// extreme exceeds the level but its close comes back to the opposite side.
func (lt *LiquidityTracker) UpdateSweeps(levels []LiquidityLevel, candles []binance.Kline) {
	for i := range levels {
		if levels[i].Swept {
			continue
		}
		for j := levels[i].Index + 1; j < len(candles); j++ {
			c := candles[j]
			if levels[i].Side == BuySideLiquidity {
				if c.High > levels[i].Price && c.Close < levels[i].Price {
					levels[i].Swept = true
					break
				}
			} else {
				if c.Low < levels[i].Price && c.Close > levels[i].Price {
					levels[i].Swept = true
					break
				}
			}
		}
	}
}
