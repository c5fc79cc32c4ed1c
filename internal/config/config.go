// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/halldis/tokensight/internal/analytics"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Security
	OperatorKey  string // Bearer key authorizing register/transfer writes
	RateLimitRPS int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)

	// Engine tunables
	RiskHighThreshold  uint64
	MaxTransfersPerDay uint64
	WhaleThreshold     uint64
	DormancyPeriod     uint64
	MinHoldTime        uint64
	BlocksPerDay       uint64
}

const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultRateLimit = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", DefaultPort),
		Env:          getEnv("ENV", DefaultEnv),
		LogLevel:     getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:    getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:  os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OperatorKey:  os.Getenv("OPERATOR_KEY"), // Required, no default
		RateLimitRPS: int(getEnvUint64("RATE_LIMIT_RPS", DefaultRateLimit)),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),

		RiskHighThreshold:  getEnvUint64("RISK_HIGH_THRESHOLD", analytics.DefaultRiskHighThreshold),
		MaxTransfersPerDay: getEnvUint64("MAX_TRANSFERS_PER_DAY", analytics.DefaultMaxTransfersPerDay),
		WhaleThreshold:     getEnvUint64("WHALE_THRESHOLD", analytics.DefaultWhaleThreshold),
		DormancyPeriod:     getEnvUint64("DORMANCY_PERIOD", analytics.DefaultDormancyPeriod),
		MinHoldTime:        getEnvUint64("MIN_HOLD_TIME", analytics.DefaultMinHoldTime),
		BlocksPerDay:       getEnvUint64("BLOCKS_PER_DAY", analytics.DefaultBlocksPerDay),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.OperatorKey == "" {
		return fmt.Errorf("OPERATOR_KEY is required")
	}
	if len(c.OperatorKey) < 16 {
		return fmt.Errorf("OPERATOR_KEY must be at least 16 characters")
	}
	if c.BlocksPerDay == 0 {
		return fmt.Errorf("BLOCKS_PER_DAY must be greater than zero")
	}
	if c.RiskHighThreshold > 100 {
		return fmt.Errorf("RISK_HIGH_THRESHOLD must be at most 100")
	}
	return nil
}

// EngineParams maps the configured tunables onto engine parameters.
func (c *Config) EngineParams() analytics.Params {
	p := analytics.DefaultParams()
	p.RiskHighThreshold = c.RiskHighThreshold
	p.MaxTransfersPerDay = c.MaxTransfersPerDay
	p.WhaleThreshold = c.WhaleThreshold
	p.DormancyPeriod = c.DormancyPeriod
	p.MinHoldTimeForLoyalty = c.MinHoldTime
	p.BlocksPerDay = c.BlocksPerDay
	return p
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
