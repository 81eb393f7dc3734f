package bias

import (
	"testing"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
)

func testAggregator() *Aggregator {
	return NewAggregator(config.Default().BiasConfig)
}

func TestBiasSingleBullishBreakIsSufficient(t *testing.T) {
	agg := testAggregator()

	events := []analysis.StructureEvent{
		{Index: 10, Price: 105, Kind: analysis.BreakOfStructure, Direction: analysis.Bullish},
	}

	tb := agg.BiasFor(analysis.TF1h, events, nil)

	if tb.Bias != BiasBullish {
		t.Errorf("One bullish break with no bearish evidence must yield BULLISH, got %s", tb.Bias)
	}
	if tb.BullScore != 1 || tb.BearScore != 0 {
		t.Errorf("Expected scores 1/0, got %d/%d", tb.BullScore, tb.BearScore)
	}
	if tb.Confidence != 100 {
		t.Errorf("An uncontested break should score full confidence, got %f", tb.Confidence)
	}
}

func TestBiasBalancedEvidenceIsNeutral(t *testing.T) {
	agg := testAggregator()

	events := []analysis.StructureEvent{
		{Direction: analysis.Bullish},
		{Direction: analysis.Bearish},
	}

	tb := agg.BiasFor(analysis.TF1h, events, nil)
	if tb.Bias != BiasNeutral {
		t.Errorf("Equal nonzero evidence must yield NEUTRAL, got %s", tb.Bias)
	}
}

func TestBiasNoEvidenceIsRanging(t *testing.T) {
	agg := testAggregator()

	tb := agg.BiasFor(analysis.TF1h, nil, nil)
	if tb.Bias != BiasRanging {
		t.Errorf("No evidence must yield RANGING, got %s", tb.Bias)
	}
	if tb.Confidence != 0 {
		t.Errorf("RANGING carries no confidence, got %f", tb.Confidence)
	}
}

func TestBiasOrderBlockImbalanceCounts(t *testing.T) {
	agg := testAggregator()

	blocks := []analysis.OrderBlock{
		{Direction: analysis.Bearish},
		{Direction: analysis.Bearish},
		{Direction: analysis.Bullish},
		// Mitigated blocks are dead evidence
		{Direction: analysis.Bullish, Mitigated: true},
	}

	tb := agg.BiasFor(analysis.TF4h, nil, blocks)
	if tb.Bias != BiasBearish {
		t.Errorf("Net bearish block imbalance must yield BEARISH, got %s", tb.Bias)
	}
	if tb.BearScore != 1 {
		t.Errorf("The block imbalance contributes a single element, got %d", tb.BearScore)
	}
}

func TestConsensusExcludesDirectionless(t *testing.T) {
	agg := testAggregator()

	biases := []TimeframeBias{
		{Timeframe: analysis.TF15m, Bias: BiasBullish},
		{Timeframe: analysis.TF1h, Bias: BiasBullish},
		{Timeframe: analysis.TF4h, Bias: BiasBearish},
		{Timeframe: analysis.TF1d, Bias: BiasRanging},
	}

	pct, ok := agg.Consensus(BiasBullish, biases)
	if !ok {
		t.Fatal("Consensus should be defined with directional votes present")
	}
	// 2 aligned, 1 conflicting, RANGING excluded
	want := 2.0 / 3.0 * 100
	if pct < want-0.01 || pct > want+0.01 {
		t.Errorf("Expected consensus %.2f, got %.2f", want, pct)
	}
}

func TestConsensusUndefinedWithoutVotes(t *testing.T) {
	agg := testAggregator()

	biases := []TimeframeBias{
		{Bias: BiasRanging},
		{Bias: BiasNeutral},
		{Bias: BiasNoData},
	}

	if _, ok := agg.Consensus(BiasBullish, biases); ok {
		t.Error("Consensus must be undefined when every timeframe is directionless")
	}
}

func TestConsensusBounds(t *testing.T) {
	agg := testAggregator()

	all := []TimeframeBias{{Bias: BiasBullish}, {Bias: BiasBullish}}
	if pct, _ := agg.Consensus(BiasBullish, all); pct != 100 {
		t.Errorf("Full agreement should be 100, got %f", pct)
	}

	none := []TimeframeBias{{Bias: BiasBearish}, {Bias: BiasBearish}}
	if pct, _ := agg.Consensus(BiasBullish, none); pct != 0 {
		t.Errorf("Full conflict should be 0, got %f", pct)
	}
}

func TestResolveHTFDirectionalWins(t *testing.T) {
	agg := testAggregator()

	htf := TimeframeBias{Bias: BiasBearish}
	own := TimeframeBias{Bias: BiasBullish}

	res := agg.ResolveHTF(htf, own)
	if res.Effective != BiasBearish || res.Penalty != 0 || res.Source != "htf" {
		t.Errorf("A directional HTF must win penalty-free, got %+v", res)
	}
}

func TestResolveHTFOwnStructureStandsIn(t *testing.T) {
	agg := testAggregator()
	cfg := config.Default().BiasConfig

	res := agg.ResolveHTF(TimeframeBias{Bias: BiasNeutral}, TimeframeBias{Bias: BiasBullish})
	if res.Effective != BiasBullish || res.Source != "own" {
		t.Errorf("Own directional structure should stand in for a neutral HTF, got %+v", res)
	}
	if res.Penalty != cfg.HTFOverridePenalty {
		t.Errorf("Expected the override penalty %f, got %f", cfg.HTFOverridePenalty, res.Penalty)
	}
}

func TestResolveHTFNothingDirectional(t *testing.T) {
	agg := testAggregator()
	cfg := config.Default().BiasConfig

	res := agg.ResolveHTF(TimeframeBias{Bias: BiasRanging}, TimeframeBias{Bias: BiasNeutral})
	if res.Effective.Directional() {
		t.Errorf("No directional input can produce a directional output, got %s", res.Effective)
	}
	if res.Source != "none" || res.Penalty != cfg.HTFNeutralPenalty {
		t.Errorf("Expected the neutral penalty %f from source none, got %+v", cfg.HTFNeutralPenalty, res)
	}
}

func TestHigherTimeframeMapping(t *testing.T) {
	agg := testAggregator()

	if htf := agg.HigherTimeframe(analysis.TF15m); htf != analysis.TF4h {
		t.Errorf("Expected 15m -> 4h, got %s", htf)
	}
	// The top of the ladder maps to itself
	if htf := agg.HigherTimeframe(analysis.TF1d); htf != analysis.TF1d {
		t.Errorf("Expected 1d -> 1d, got %s", htf)
	}
}
