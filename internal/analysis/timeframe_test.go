package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smc-signal-engine/internal/binance"
)

type stubSource struct {
	mu      sync.Mutex
	calls   int
	err     error
	candles []binance.Kline
}

func (s *stubSource) GetKlines(_ context.Context, _, _ string, _ int) ([]binance.Kline, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

func TestParseTimeframe(t *testing.T) {
	for _, tf := range AllTimeframes {
		parsed, err := ParseTimeframe(string(tf))
		if err != nil || parsed != tf {
			t.Errorf("ParseTimeframe(%q) = %v, %v", tf, parsed, err)
		}
	}
	if _, err := ParseTimeframe("3m"); err == nil {
		t.Error("Unsupported labels must be rejected")
	}
	if _, err := ParseTimeframe(""); err == nil {
		t.Error("The empty label must be rejected")
	}
}

func TestFetchAllReturnsOneResultPerTimeframe(t *testing.T) {
	source := &stubSource{candles: []binance.Kline{{Open: 1, High: 2, Low: 0.5, Close: 1.5}}}
	tm := NewTimeframeManager(source)

	tfs := []Timeframe{TF15m, TF1h, TF4h}
	results := tm.FetchAll(context.Background(), "BTCUSDT", tfs, 100, time.Second)

	if len(results) != len(tfs) {
		t.Fatalf("Expected %d results, got %d", len(tfs), len(results))
	}
	for _, tf := range tfs {
		res, ok := results[tf]
		if !ok {
			t.Errorf("Missing result for %s", tf)
			continue
		}
		if res.Err != nil || len(res.Candles) != 1 {
			t.Errorf("Unexpected result for %s: %+v", tf, res)
		}
	}
}

func TestFetchAllCarriesErrorsPerTimeframe(t *testing.T) {
	source := &stubSource{err: errors.New("exchange down")}
	tm := NewTimeframeManager(source)

	results := tm.FetchAll(context.Background(), "BTCUSDT", []Timeframe{TF1h}, 100, time.Second)

	res := results[TF1h]
	if res.Err == nil {
		t.Error("A failed fetch must surface its error in the result")
	}
	if res.Candles != nil {
		t.Error("A failed fetch must carry no candles")
	}
}

func TestGetCandlesUsesCache(t *testing.T) {
	source := &stubSource{candles: []binance.Kline{{Close: 1}}}
	tm := NewTimeframeManager(source)
	ctx := context.Background()

	if _, err := tm.GetCandles(ctx, "BTCUSDT", TF1h, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := tm.GetCandles(ctx, "BTCUSDT", TF1h, 100); err != nil {
		t.Fatal(err)
	}

	if source.calls != 1 {
		t.Errorf("Expected the second read to hit the cache, got %d upstream calls", source.calls)
	}

	// A different limit is a different cache entry
	if _, err := tm.GetCandles(ctx, "BTCUSDT", TF1h, 200); err != nil {
		t.Fatal(err)
	}
	if source.calls != 2 {
		t.Errorf("Expected a distinct entry per limit, got %d upstream calls", source.calls)
	}
}

func TestCandleCacheExpiry(t *testing.T) {
	cache := NewCandleCache()
	candles := []binance.Kline{{Close: 1}}

	cache.Set("k", candles, 50*time.Millisecond)
	if got := cache.Get("k"); got == nil {
		t.Fatal("Expected a cache hit before expiry")
	}

	time.Sleep(60 * time.Millisecond)
	if got := cache.Get("k"); got != nil {
		t.Error("Expected a miss after expiry")
	}

	cache.Prune()
	if got := cache.Get("missing"); got != nil {
		t.Error("Unknown keys must miss")
	}
}
