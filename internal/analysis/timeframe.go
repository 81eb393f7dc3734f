package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smc-signal-engine/internal/binance"
)

// Timeframe represents a chart timeframe. It is a closed set; unknown labels
// fail at parse time instead of producing silent empty lookups.
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// AllTimeframes lists every supported timeframe, shortest first.
var AllTimeframes = []Timeframe{TF5m, TF15m, TF1h, TF4h, TF1d}

// ParseTimeframe converts a label to a Timeframe, rejecting unknown values.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range AllTimeframes {
		if string(tf) == s {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// KlineSource provides candle data per symbol and interval.
type KlineSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error)
}

// TimeframeResult is the outcome of one timeframe's fetch. A fetch failure
// or timeout leaves Err set and Candles nil; the caller degrades that
// timeframe rather than aborting the evaluation.
type TimeframeResult struct {
	Timeframe Timeframe
	Candles   []binance.Kline
	Err       error
}

// TimeframeManager fetches multi-timeframe candle data with caching.
type TimeframeManager struct {
	source KlineSource
	cache  *CandleCache
}

// NewTimeframeManager creates a new multi-timeframe data manager
func NewTimeframeManager(source KlineSource) *TimeframeManager {
	return &TimeframeManager{
		source: source,
		cache:  NewCandleCache(),
	}
}

// FetchAll fetches candles for all requested timeframes in parallel, each
// bounded by perFetchTimeout. It always returns one result per timeframe.
func (tm *TimeframeManager) FetchAll(ctx context.Context, symbol string, timeframes []Timeframe, limit int, perFetchTimeout time.Duration) map[Timeframe]TimeframeResult {
	results := make(map[Timeframe]TimeframeResult, len(timeframes))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, tf := range timeframes {
		wg.Add(1)
		go func(tf Timeframe) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, perFetchTimeout)
			defer cancel()

			candles, err := tm.GetCandles(fetchCtx, symbol, tf, limit)

			mu.Lock()
			results[tf] = TimeframeResult{Timeframe: tf, Candles: candles, Err: err}
			mu.Unlock()
		}(tf)
	}

	wg.Wait()
	return results
}

// GetCandles fetches candles for one timeframe with caching
func (tm *TimeframeManager) GetCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]binance.Kline, error) {
	cacheKey := fmt.Sprintf("%s:%s:%d", symbol, tf, limit)

	if cached := tm.cache.Get(cacheKey); cached != nil {
		return cached, nil
	}

	candles, err := tm.source.GetKlines(ctx, symbol, string(tf), limit)
	if err != nil {
		return nil, err
	}

	tm.cache.Set(cacheKey, candles, cacheTTL(tf))
	return candles, nil
}

// cacheTTL returns the cache lifetime for a timeframe. Shorter timeframes
// go stale faster.
func cacheTTL(tf Timeframe) time.Duration {
	switch tf {
	case TF5m:
		return 1 * time.Minute
	case TF15m:
		return 5 * time.Minute
	case TF1h:
		return 15 * time.Minute
	case TF4h:
		return 1 * time.Hour
	case TF1d:
		return 6 * time.Hour
	default:
		return 1 * time.Minute
	}
}

// CandleCache provides TTL caching for candle data
type CandleCache struct {
	data map[string]*cacheEntry
	mu   sync.RWMutex
}

type cacheEntry struct {
	candles   []binance.Kline
	expiresAt time.Time
}

// NewCandleCache creates a new candle cache
func NewCandleCache() *CandleCache {
	return &CandleCache{data: make(map[string]*cacheEntry)}
}

// Get retrieves cached candles if not expired
func (c *CandleCache) Get(key string) []binance.Kline {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.candles
}

// Set stores candles with an expiration
func (c *CandleCache) Set(key string, candles []binance.Kline, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{candles: candles, expiresAt: time.Now().Add(ttl)}
}

// Prune removes expired entries
func (c *CandleCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}
