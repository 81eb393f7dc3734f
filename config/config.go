package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the root configuration for the signal engine.
type Config struct {
	BinanceConfig      BinanceConfig      `json:"binance"`
	EngineConfig       EngineConfig       `json:"engine"`
	DetectorConfig     DetectorConfig     `json:"detectors"`
	BiasConfig         BiasConfig         `json:"bias"`
	EntryConfig        EntryConfig        `json:"entry"`
	ConfidenceConfig   ConfidenceConfig   `json:"confidence"`
	GateConfig         GateConfig         `json:"gates"`
	CooldownConfig     CooldownConfig     `json:"cooldown"`
	ServerConfig       ServerConfig       `json:"server"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	NotificationConfig NotificationConfig `json:"notification"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// BinanceConfig holds market data API settings
type BinanceConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// EngineConfig controls the evaluation schedule and symbol universe
type EngineConfig struct {
	Enabled          bool     `json:"enabled"`
	Symbols          []string `json:"symbols"`
	SignalTimeframes []string `json:"signal_timeframes"` // Timeframes a signal is evaluated on
	CandleLimit      int      `json:"candle_limit"`      // Candles fetched per timeframe
	FetchTimeoutSecs int      `json:"fetch_timeout_secs"`
}

// DetectorConfig holds the tunable constants of the pattern detectors.
// The score weights are empirical; they are configuration, not code.
type DetectorConfig struct {
	SwingWindow int `json:"swing_window"` // Symmetric lookback for swing points

	// Order block scoring
	OBLookback       int     `json:"ob_lookback"`        // Max candles scanned back for the opposing candle
	OBBodyRatioPts   float64 `json:"ob_body_ratio_pts"`  // Max points from body-to-range ratio
	OBVolumePts      float64 `json:"ob_volume_pts"`      // Max points from volume vs average
	OBMomentumPts    float64 `json:"ob_momentum_pts"`    // Max points from breakout momentum
	OBUntestedBonus  float64 `json:"ob_untested_bonus"`  // Bonus when no revisit within the test window
	OBUntestedWindow int     `json:"ob_untested_window"` // Bars checked for the untested bonus
	VolumeAvgPeriod  int     `json:"volume_avg_period"`  // Period for the volume baseline

	DisplacementRatio float64 `json:"displacement_ratio"` // Body multiple over average body to call displacement

	// Fair value gap filtering and scoring
	FVGMinGapPercent     float64 `json:"fvg_min_gap_percent"`  // Min gap size as % of gap midpoint
	FVGMinGapAbsolute    float64 `json:"fvg_min_gap_absolute"` // Min gap size in absolute price units
	FVGSizePts           float64 `json:"fvg_size_pts"`         // Max points from the gap-size tier
	FVGDisplacementBonus float64 `json:"fvg_displacement_bonus"`
	FVGUnfilledBonus     float64 `json:"fvg_unfilled_bonus"`
	FVGVolumePts         float64 `json:"fvg_volume_pts"`
	FVGMultiCandleBonus  float64 `json:"fvg_multi_candle_bonus"`
	FVGFilledThreshold   float64 `json:"fvg_filled_threshold"` // Fill % at which a gap is no longer fresh

	SRClusterPercent float64 `json:"sr_cluster_percent"` // Swing levels within this % merge into one S/R level
}

// BiasConfig holds bias aggregation and higher-timeframe settings
type BiasConfig struct {
	HigherTimeframes map[string]string `json:"higher_timeframes"` // signal timeframe -> HTF used for bias

	HTFNeutralPenalty         float64 `json:"htf_neutral_penalty"`  // Penalty when HTF and own bias are both directionless
	HTFOverridePenalty        float64 `json:"htf_override_penalty"` // Penalty when own bias substitutes a directionless HTF
	ConsensusFloor            float64 `json:"consensus_floor"`      // Minimum consensus % before a shortfall penalty applies
	ConsensusShortfallPenalty float64 `json:"consensus_shortfall_penalty"`
}

// EntryConfig holds the entry zone distance buckets.
// TooLatePercent is deliberately configurable; its final product value is unsettled.
type EntryConfig struct {
	TooLatePercent float64 `json:"too_late_percent"` // Below this distance the zone is already reached
	NearPercent    float64 `json:"near_percent"`     // Upper bound of the optimal band
	WaitPercent    float64 `json:"wait_percent"`     // Upper bound of the pullback-required band
	MaxDistancePct float64 `json:"max_distance_pct"` // Hard ceiling, universal across timeframes
}

// ConfidenceConfig holds the confidence model weights
type ConfidenceConfig struct {
	BaseScore         float64 `json:"base_score"`
	ZoneQualityWeight float64 `json:"zone_quality_weight"` // Contribution of zone quality (0-100 scaled)
	ConsensusWeight   float64 `json:"consensus_weight"`    // Contribution of MTF consensus (0-100 scaled)
	StructureWeight   float64 `json:"structure_weight"`    // Contribution of bias confidence
	MinimumConfidence float64 `json:"minimum_confidence"`  // Gate chain confidence threshold
}

// GateConfig holds the risk admission ceilings, in percentage units
type GateConfig struct {
	MaxSignalRisk        float64 `json:"max_signal_risk"`
	MaxTotalOpenRisk     float64 `json:"max_total_open_risk"`
	MaxSymbolExposure    float64 `json:"max_symbol_exposure"`
	MaxDirectionExposure float64 `json:"max_direction_exposure"`
	MaxDailyLoss         float64 `json:"max_daily_loss"`
}

// CooldownConfig controls signal deduplication
type CooldownConfig struct {
	MinIntervalMinutes int    `json:"min_interval_minutes"`
	Backend            string `json:"backend"` // "memory" or "redis"
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// DatabaseConfig holds PostgreSQL settings for the signal history log
type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// NotificationConfig holds webhook notification settings
type NotificationConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // Console writer instead of JSON
}

// Load reads config.json if present and applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config.json: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with all heuristic constants at their
// calibrated values.
func Default() *Config {
	return &Config{
		BinanceConfig: BinanceConfig{
			BaseURL:        "https://api.binance.com",
			TimeoutSeconds: 10,
		},
		EngineConfig: EngineConfig{
			Enabled:          true,
			Symbols:          []string{"BTCUSDT", "ETHUSDT"},
			SignalTimeframes: []string{"15m", "1h", "4h"},
			CandleLimit:      100,
			FetchTimeoutSecs: 8,
		},
		DetectorConfig: DetectorConfig{
			SwingWindow:          3,
			OBLookback:           5,
			OBBodyRatioPts:       30,
			OBVolumePts:          25,
			OBMomentumPts:        25,
			OBUntestedBonus:      20,
			OBUntestedWindow:     20,
			VolumeAvgPeriod:      20,
			DisplacementRatio:    1.5,
			FVGMinGapPercent:     0.1,
			FVGMinGapAbsolute:    0,
			FVGSizePts:           30,
			FVGDisplacementBonus: 25,
			FVGUnfilledBonus:     20,
			FVGVolumePts:         15,
			FVGMultiCandleBonus:  10,
			FVGFilledThreshold:   50,
			SRClusterPercent:     0.25,
		},
		BiasConfig: BiasConfig{
			HigherTimeframes: map[string]string{
				"5m":  "1h",
				"15m": "4h",
				"1h":  "4h",
				"4h":  "1d",
			},
			HTFNeutralPenalty:         35,
			HTFOverridePenalty:        20,
			ConsensusFloor:            60,
			ConsensusShortfallPenalty: 15,
		},
		EntryConfig: EntryConfig{
			TooLatePercent: 0.5,
			NearPercent:    3.0,
			WaitPercent:    5.0,
			MaxDistancePct: 5.0,
		},
		ConfidenceConfig: ConfidenceConfig{
			BaseScore:         40,
			ZoneQualityWeight: 0.30,
			ConsensusWeight:   0.20,
			StructureWeight:   0.10,
			MinimumConfidence: 65,
		},
		GateConfig: GateConfig{
			MaxSignalRisk:        1.5,
			MaxTotalOpenRisk:     7.0,
			MaxSymbolExposure:    3.0,
			MaxDirectionExposure: 4.0,
			MaxDailyLoss:         4.0,
		},
		CooldownConfig: CooldownConfig{
			MinIntervalMinutes: 60,
			Backend:            "memory",
		},
		ServerConfig: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		DatabaseConfig: DatabaseConfig{
			Enabled: false,
		},
		RedisConfig: RedisConfig{
			Addr: "localhost:6379",
		},
		NotificationConfig: NotificationConfig{
			Enabled: false,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Validate checks invariants the engine depends on.
func (c *Config) Validate() error {
	if c.DetectorConfig.SwingWindow < 1 {
		return fmt.Errorf("detectors.swing_window must be >= 1, got %d", c.DetectorConfig.SwingWindow)
	}
	if c.EntryConfig.TooLatePercent < 0 {
		return fmt.Errorf("entry.too_late_percent must be >= 0")
	}
	if c.EntryConfig.TooLatePercent >= c.EntryConfig.NearPercent ||
		c.EntryConfig.NearPercent >= c.EntryConfig.WaitPercent {
		return fmt.Errorf("entry distance buckets must be strictly increasing: %.2f/%.2f/%.2f",
			c.EntryConfig.TooLatePercent, c.EntryConfig.NearPercent, c.EntryConfig.WaitPercent)
	}
	if c.ConfidenceConfig.MinimumConfidence < 0 || c.ConfidenceConfig.MinimumConfidence > 100 {
		return fmt.Errorf("confidence.minimum_confidence must be in [0,100]")
	}
	if c.CooldownConfig.Backend != "memory" && c.CooldownConfig.Backend != "redis" {
		return fmt.Errorf("cooldown.backend must be \"memory\" or \"redis\", got %q", c.CooldownConfig.Backend)
	}
	if c.EngineConfig.CandleLimit < 50 {
		return fmt.Errorf("engine.candle_limit must be >= 50 to satisfy detector windows")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides; these take
// precedence over config.json.
func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)

	if v := os.Getenv("ENGINE_SYMBOLS"); v != "" {
		cfg.EngineConfig.Symbols = splitAndTrim(v)
	}
	if v := os.Getenv("ENGINE_TIMEFRAMES"); v != "" {
		cfg.EngineConfig.SignalTimeframes = splitAndTrim(v)
	}
	cfg.EngineConfig.Enabled = getEnvBool("ENGINE_ENABLED", cfg.EngineConfig.Enabled)

	cfg.ServerConfig.Enabled = getEnvBool("SERVER_ENABLED", cfg.ServerConfig.Enabled)
	cfg.ServerConfig.Port = getEnvInt("SERVER_PORT", cfg.ServerConfig.Port)

	cfg.DatabaseConfig.Enabled = getEnvBool("DATABASE_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)

	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.CooldownConfig.Backend = getEnvOrDefault("COOLDOWN_BACKEND", cfg.CooldownConfig.Backend)
	cfg.CooldownConfig.MinIntervalMinutes = getEnvInt("COOLDOWN_MINUTES", cfg.CooldownConfig.MinIntervalMinutes)

	cfg.NotificationConfig.Enabled = getEnvBool("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.WebhookURL = getEnvOrDefault("NOTIFICATION_WEBHOOK_URL", cfg.NotificationConfig.WebhookURL)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvBool("LOG_PRETTY", cfg.LoggingConfig.Pretty)
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
