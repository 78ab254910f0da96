// Package config loads the core's configuration surface (spec.md §6):
// per-chain endpoints and thresholds, warming, stream, and breaker
// sections. Scalar values follow the teacher's env-var convention
// (getEnv/getEnvAsInt/getEnvAsBool/getEnvAsDuration); the per-chain map
// is a nested structure that does not fit flat env vars, so it is loaded
// from a JSON file instead (path itself given by an env var), decoded
// with jsoniter for consistency with the other JSON users in this core
// (internal/chain's static pair loader, internal/dlqstore).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Config is the root configuration object assembled by Load.
type Config struct {
	Chains  map[string]ChainConfig
	Warming WarmingConfig
	Stream  StreamConfig
	Breaker BreakerConfig
	Redis   RedisConfig
	L3      L3Config
	Logging LoggingConfig
	Ops     OpsConfig
	DlqArchive DlqArchiveConfig
}

// ChainConfig is one entry of spec.md §6's per-chain configuration map.
type ChainConfig struct {
	ChainID          string
	WSPrimary        string
	WSFallbacks      []string
	MinProfitBps     int64
	WhaleThresholdUsd float64
	ExpiryMillis     int64
	GasEstimate      int64 // gas cost in input-token units, fed to bigmath.GasCostBps
	BlockTimeMillis  int64
	StalenessMillis  int64

	// PairsConfigFile points at a JSON file of chain.StaticPairSpec used
	// to seed this chain's Pair Repository before subscribing (spec.md
	// §3 "Created on factory discovery or static config"). Empty means
	// no pairs are pre-registered.
	PairsConfigFile string
}

// WarmingConfig configures the Predictive Warmer (C7) and its strategy.
type WarmingConfig struct {
	Strategy            string // topN | threshold | timeBased | adaptive
	TopN                int
	MinPairs            int // Adaptive strategy bound
	MaxPairsPerWarm      int
	MinCorrelationScore  float64
	TimeoutMillis        int64
	Enabled              bool
	AsyncWarming         bool
	RecencyWindowMillis  int64 // TimeBased strategy window
	RecencyWeight        float64 // TimeBased strategy w_recency
	CorrelationWeight    float64 // TimeBased strategy w_corr
	TargetHitRate        float64 // Adaptive strategy target
	AdjustmentFactor     float64 // Adaptive strategy step
	CleanupIntervalMillis int64
	MaxPendingAgeMillis   int64
}

// StreamConfig configures the Stream Client/Consumer (C8/C9).
type StreamConfig struct {
	BatchSize             int64
	BlockMillis           int64
	MaxStreamLen          int64
	DuplicateWindowMillis int64
	ClaimAgeMillis        int64
}

// BreakerConfig configures the Coordinator's circuit breaker (C11).
type BreakerConfig struct {
	FailureThreshold int64
	WindowMillis     int64
	CooldownMillis   int64
}

// RedisConfig configures the distributed KV/stream backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// L3Config configures the optional persistent cache tier; disabled by
// default (spec.md §4.4: "L3: optional persistent store; disabled by
// default").
type L3Config struct {
	Enabled  bool
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// LoggingConfig mirrors the teacher's logging section verbatim.
type LoggingConfig struct {
	Level  string
	Format string
}

// DlqArchiveConfig configures the optional Postgres archival of DLQ'd
// stream entries (internal/dlqstore); disabled by default, since the
// in-stream DLQ already satisfies spec.md §4.7's retention requirement
// on its own.
type DlqArchiveConfig struct {
	Enabled         bool
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	RetentionDays   int
}

// OpsConfig configures the ambient health/metrics HTTP surface
// (spec.md §1: "HTTP admin/metrics surfaces... external collaborators" —
// but the surface itself is ambient, see internal/opsserver).
type OpsConfig struct {
	Port int
	Host string
}

// Load assembles Config from the environment, plus an optional
// CHAINS_CONFIG_FILE JSON file for the per-chain map.
func Load() (*Config, error) {
	cfg := &Config{
		Warming: WarmingConfig{
			Strategy:              getEnv("WARMING_STRATEGY", "topN"),
			TopN:                  getEnvAsInt("WARMING_TOP_N", 3),
			MinPairs:              getEnvAsInt("WARMING_MIN_PAIRS", 1),
			MaxPairsPerWarm:       getEnvAsInt("WARMING_MAX_PAIRS", 10),
			MinCorrelationScore:   getEnvAsFloat("WARMING_MIN_SCORE", 0.3),
			TimeoutMillis:         getEnvAsInt64("WARMING_TIMEOUT_MS", 50),
			Enabled:               getEnvAsBool("WARMING_ENABLED", true),
			AsyncWarming:          getEnvAsBool("WARMING_ASYNC", true),
			RecencyWindowMillis:   getEnvAsInt64("WARMING_RECENCY_WINDOW_MS", 60_000),
			RecencyWeight:         getEnvAsFloat("WARMING_RECENCY_WEIGHT", 0.3),
			CorrelationWeight:     getEnvAsFloat("WARMING_CORRELATION_WEIGHT", 0.7),
			TargetHitRate:         getEnvAsFloat("WARMING_TARGET_HIT_RATE", 0.8),
			AdjustmentFactor:      getEnvAsFloat("WARMING_ADJUSTMENT_FACTOR", 0.2),
			CleanupIntervalMillis: getEnvAsInt64("WARMING_CLEANUP_INTERVAL_MS", 30_000),
			MaxPendingAgeMillis:   getEnvAsInt64("WARMING_MAX_PENDING_AGE_MS", 30_000),
		},
		Stream: StreamConfig{
			BatchSize:             getEnvAsInt64("STREAM_BATCH_SIZE", 50),
			BlockMillis:           getEnvAsInt64("STREAM_BLOCK_MS", 1000),
			MaxStreamLen:          getEnvAsInt64("STREAM_MAX_LEN", 10_000),
			DuplicateWindowMillis: getEnvAsInt64("STREAM_DUPLICATE_WINDOW_MS", 5000),
			ClaimAgeMillis:        getEnvAsInt64("STREAM_CLAIM_AGE_MS", 24*60*60*1000),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvAsInt64("BREAKER_FAILURE_THRESHOLD", 5),
			WindowMillis:     getEnvAsInt64("BREAKER_WINDOW_MS", 60_000),
			CooldownMillis:   getEnvAsInt64("BREAKER_COOLDOWN_MS", 30_000),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		L3: L3Config{
			Enabled:  getEnvAsBool("L3_ENABLED", false),
			Driver:   getEnv("L3_DRIVER", "postgres"),
			Host:     getEnv("L3_HOST", "localhost"),
			Port:     getEnvAsInt("L3_PORT", 5432),
			Name:     getEnv("L3_NAME", "dexarb"),
			User:     getEnv("L3_USER", "dexarb"),
			Password: getEnv("L3_PASSWORD", ""),
			SSLMode:  getEnv("L3_SSL_MODE", "disable"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Ops: OpsConfig{
			Port: getEnvAsInt("OPS_PORT", 9090),
			Host: getEnv("OPS_HOST", "0.0.0.0"),
		},
		DlqArchive: DlqArchiveConfig{
			Enabled:       getEnvAsBool("DLQ_ARCHIVE_ENABLED", false),
			Host:          getEnv("DLQ_ARCHIVE_HOST", "localhost"),
			Port:          getEnvAsInt("DLQ_ARCHIVE_PORT", 5432),
			Name:          getEnv("DLQ_ARCHIVE_NAME", "dexarb"),
			User:          getEnv("DLQ_ARCHIVE_USER", "dexarb"),
			Password:      getEnv("DLQ_ARCHIVE_PASSWORD", ""),
			SSLMode:       getEnv("DLQ_ARCHIVE_SSL_MODE", "disable"),
			RetentionDays: getEnvAsInt("DLQ_ARCHIVE_RETENTION_DAYS", 30),
		},
	}

	chains, err := loadChains(getEnv("CHAINS_CONFIG_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("loading chain config: %w", err)
	}
	cfg.Chains = chains

	if cfg.L3.Enabled && cfg.L3.Password == "" {
		return nil, fmt.Errorf("L3_PASSWORD is required when L3_ENABLED=true")
	}
	if cfg.DlqArchive.Enabled && cfg.DlqArchive.Password == "" {
		return nil, fmt.Errorf("DLQ_ARCHIVE_PASSWORD is required when DLQ_ARCHIVE_ENABLED=true")
	}

	return cfg, nil
}

func loadChains(path string) (map[string]ChainConfig, error) {
	if path == "" {
		return defaultChains(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var chains map[string]ChainConfig
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &chains); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return chains, nil
}

// defaultChains provides a single-chain fallback (ethereum mainnet-shaped
// defaults) so the core can start without a config file in development.
func defaultChains() map[string]ChainConfig {
	return map[string]ChainConfig{
		"1": {
			ChainID:           "1",
			MinProfitBps:      10,
			WhaleThresholdUsd: 100_000,
			ExpiryMillis:      3000,
			GasEstimate:       150_000,
			BlockTimeMillis:   12_000,
			StalenessMillis:   15_000,
		},
	}
}

// Вспомогательные функции для чтения переменных окружения (как в teacher's
// internal/config/config.go).

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
