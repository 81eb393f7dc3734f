package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/bias"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/cooldown"
	"smc-signal-engine/internal/entry"
	"smc-signal-engine/internal/gates"
	"smc-signal-engine/internal/signal"
)

// MarketData provides candles and current price. Fetches may fail per
// timeframe independently.
type MarketData interface {
	analysis.KlineSource
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// ExecutionProvider supplies the execution eligibility snapshot for the
// gate chain. A nil snapshot hard-fails the execution section.
type ExecutionProvider interface {
	ExecutionSnapshot(symbol string) *gates.ExecutionSnapshot
}

// RiskProvider supplies the risk admission figures. A nil snapshot
// hard-fails the risk section.
type RiskProvider interface {
	RiskSnapshot(symbol string, direction analysis.Direction) *gates.RiskSnapshot
}

// Pipeline runs one full evaluation: multi-timeframe fetch, detection, bias
// aggregation, zone selection, assembly, gating, and cooldown. All stages
// are synchronous and side-effect free except the cooldown reservation.
type Pipeline struct {
	cfg        *config.Config
	timeframes *analysis.TimeframeManager
	data       MarketData
	swings     *analysis.SwingDetector
	blocks     *analysis.OrderBlockDetector
	gaps       *analysis.FVGDetector
	levels     *analysis.SRDetector
	liquidity  *analysis.LiquidityTracker
	aggregator *bias.Aggregator
	selector   *entry.Selector
	assembler  *signal.Assembler
	chain      *gates.Chain
	cooldowns  cooldown.Store
	execution  ExecutionProvider
	risk       RiskProvider
	logger     zerolog.Logger
	clock      func() time.Time
}

// New wires a pipeline from configuration and collaborators.
func New(cfg *config.Config, data MarketData, store cooldown.Store, execution ExecutionProvider, risk RiskProvider, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		timeframes: analysis.NewTimeframeManager(data),
		data:       data,
		swings:     analysis.NewSwingDetector(cfg.DetectorConfig.SwingWindow),
		blocks:     analysis.NewOrderBlockDetector(cfg.DetectorConfig),
		gaps:       analysis.NewFVGDetector(cfg.DetectorConfig),
		levels:     analysis.NewSRDetector(cfg.DetectorConfig.SRClusterPercent),
		liquidity:  analysis.NewLiquidityTracker(),
		aggregator: bias.NewAggregator(cfg.BiasConfig),
		selector:   entry.NewSelector(cfg.EntryConfig),
		assembler:  signal.NewAssembler(cfg.ConfidenceConfig, cfg.BiasConfig),
		chain:      gates.NewChain(cfg.GateConfig, cfg.ConfidenceConfig.MinimumConfidence),
		cooldowns:  store,
		execution:  execution,
		risk:       risk,
		logger:     logger.With().Str("component", "pipeline").Logger(),
		clock:      time.Now,
	}
}

// timeframeEvidence bundles one timeframe's detector outputs.
type timeframeEvidence struct {
	candles   []binance.Kline
	swings    []analysis.SwingPoint
	blocks    []analysis.OrderBlock
	gaps      []analysis.FairValueGap
	levels    []analysis.SRLevel
	liquidity []analysis.LiquidityLevel
	events    []analysis.StructureEvent
}

// Evaluate runs the full decision pipeline for one symbol and signal
// timeframe. It always returns a structured decision: any unexpected fault
// degrades to a NO_TRADE with the exception reason instead of propagating.
func (p *Pipeline) Evaluate(ctx context.Context, symbol string, tf analysis.Timeframe) (dec signal.Decision) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("symbol", symbol).Str("timeframe", string(tf)).
				Interface("panic", r).Msg("evaluation fault, degrading to no-trade")
			dec = noTrade(symbol, tf, signal.ReasonException, fmt.Sprintf("%v", r), nil, p.clock())
		}
	}()

	htf := p.aggregator.HigherTimeframe(tf)
	tfs := uniqueTimeframes(p.cfg.EngineConfig.SignalTimeframes, tf, htf)

	// Fan out candle fetches; a failed timeframe degrades to NO_DATA below
	fetchTimeout := time.Duration(p.cfg.EngineConfig.FetchTimeoutSecs) * time.Second
	results := p.timeframes.FetchAll(ctx, symbol, tfs, p.cfg.EngineConfig.CandleLimit, fetchTimeout)

	evidence := make(map[analysis.Timeframe]*timeframeEvidence, len(results))
	biases := make(map[analysis.Timeframe]bias.TimeframeBias, len(results))
	for t, res := range results {
		if res.Err != nil || len(res.Candles) == 0 {
			if res.Err != nil {
				p.logger.Warn().Err(res.Err).Str("symbol", symbol).Str("timeframe", string(t)).
					Msg("timeframe degraded to NO_DATA")
			}
			biases[t] = p.aggregator.NoData(t)
			continue
		}
		ev := p.analyze(res.Candles)
		evidence[t] = ev
		biases[t] = p.aggregator.BiasFor(t, ev.events, ev.blocks)
	}

	signalEv, ok := evidence[tf]
	if !ok {
		return noTrade(symbol, tf, signal.ReasonDataUnavailable,
			fmt.Sprintf("no candle data for signal timeframe %s", tf), biases, p.clock())
	}

	// Reconcile the higher timeframe bias with the instrument's own
	ownBias := biases[tf]
	htfBias, ok := biases[htf]
	if !ok {
		htfBias = p.aggregator.NoData(htf)
	}
	resolution := p.aggregator.ResolveHTF(htfBias, ownBias)

	direction, ok := resolution.Effective.ToDirection()
	if !ok {
		return noTrade(symbol, tf, signal.ReasonNoDirectionalBias,
			"no directional bias on any deciding timeframe", biases, p.clock())
	}

	consensus, consensusSet := p.aggregator.Consensus(resolution.Effective, biasList(biases))

	currentPrice, err := p.data.GetPrice(ctx, symbol)
	if err != nil || currentPrice <= 0 {
		// Fall back to the latest close of the signal timeframe
		currentPrice = signalEv.candles[len(signalEv.candles)-1].Close
	}

	zone, status := p.selector.Select(direction, currentPrice, entry.Candidates{
		Gaps:   p.gaps.Fresh(signalEv.gaps),
		Blocks: signalEv.blocks,
		Levels: signalEv.levels,
	})

	candidate := p.assembler.Assemble(signal.AssembleInput{
		Symbol:       symbol,
		Timeframe:    tf,
		Direction:    direction,
		Zone:         zone,
		EntryStatus:  status,
		Biases:       biases,
		OwnBias:      ownBias,
		HTF:          resolution,
		Consensus:    consensus,
		ConsensusSet: consensusSet,
	})

	verdict := p.chain.Evaluate(gates.Context{
		EntryStatus: candidate.EntryStatus,
		Confidence:  candidate.Confidence,
		Execution:   p.execution.ExecutionSnapshot(symbol),
		Risk:        p.risk.RiskSnapshot(symbol, direction),
	})
	if !verdict.Passed {
		return noTrade(symbol, tf, signal.ReasonGateBlocked,
			fmt.Sprintf("%s: %s", verdict.FailedGate, verdict.Reason), biases, p.clock())
	}

	ok, err = p.cooldowns.Reserve(ctx, cooldown.Key{
		Symbol:    symbol,
		Timeframe: tf,
		Direction: direction,
	}, p.clock())
	if err != nil {
		p.logger.Error().Err(err).Str("symbol", symbol).Msg("cooldown reservation failed")
		return noTrade(symbol, tf, signal.ReasonCooldownActive,
			fmt.Sprintf("cooldown store error: %v", err), biases, p.clock())
	}
	if !ok {
		return noTrade(symbol, tf, signal.ReasonCooldownActive,
			"equivalent signal emitted within the cooldown window", biases, p.clock())
	}

	p.logger.Info().Str("symbol", symbol).Str("timeframe", string(tf)).
		Str("direction", string(direction)).Float64("confidence", candidate.Confidence).
		Str("entry_status", string(candidate.EntryStatus)).Msg("signal emitted")

	return signal.Decision{Signal: candidate}
}

// analyze runs every detector over one timeframe's candles. Detector faults
// are isolated: a window too short for one detector yields an empty result
// for it without affecting the others.
func (p *Pipeline) analyze(candles []binance.Kline) *timeframeEvidence {
	ev := &timeframeEvidence{candles: candles}

	ev.swings = p.swings.Detect(candles)
	ev.blocks = p.blocks.Detect(candles)
	ev.gaps = p.gaps.Detect(candles)
	ev.levels = p.levels.Detect(ev.swings)

	ev.liquidity = p.liquidity.FromSwings(ev.swings)
	p.liquidity.UpdateSweeps(ev.liquidity, candles)

	tracker := analysis.NewStructureTracker()
	ev.events = tracker.Process(candles, ev.swings)

	return ev
}

func noTrade(symbol string, tf analysis.Timeframe, reason, details string, biases map[analysis.Timeframe]bias.TimeframeBias, at time.Time) signal.Decision {
	return signal.Decision{NoTrade: &signal.NoTrade{
		Symbol:       symbol,
		Timeframe:    tf,
		ReasonCode:   reason,
		Details:      details,
		MTFBreakdown: biases,
		DecidedAt:    at,
	}}
}

func uniqueTimeframes(configured []string, extra ...analysis.Timeframe) []analysis.Timeframe {
	seen := make(map[analysis.Timeframe]bool)
	var out []analysis.Timeframe

	for _, s := range configured {
		if tf, err := analysis.ParseTimeframe(s); err == nil && !seen[tf] {
			seen[tf] = true
			out = append(out, tf)
		}
	}
	for _, tf := range extra {
		if !seen[tf] {
			seen[tf] = true
			out = append(out, tf)
		}
	}
	return out
}

func biasList(m map[analysis.Timeframe]bias.TimeframeBias) []bias.TimeframeBias {
	out := make([]bias.TimeframeBias, 0, len(m))
	for _, tb := range m {
		out = append(out, tb)
	}
	return out
}
