package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL    string         `json:"-"` // env only, never in the file
	ServerConfig   ServerConfig   `json:"server"`
	PollerConfig   PollerConfig   `json:"poller"`
	CacheConfig    CacheConfig    `json:"cache"`
	BackfillConfig BackfillConfig `json:"backfill"`
	RegistryConfig RegistryConfig `json:"registry"`
	UpstreamConfig UpstreamConfig `json:"upstream"`
	RedisConfig    RedisConfig    `json:"redis"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int    `json:"http_port"`
	Host           string `json:"host"`
	ProductionMode bool   `json:"production_mode"`
}

// PollerConfig holds the polling cadence
type PollerConfig struct {
	IntervalOpen   int  `json:"poll_interval_open"`   // seconds, market open
	IntervalClosed int  `json:"poll_interval_closed"` // seconds, market closed
	MTMTodayOnly   bool `json:"mtm_today_only"`       // restrict mark-to-market to today's positions
}

// CacheConfig holds the quote freshness windows
type CacheConfig struct {
	TTLPoller int `json:"cache_ttl_poller"` // seconds
	TTLAPI    int `json:"cache_ttl_api"`    // seconds
}

// BackfillConfig holds the historical backfill parameters
type BackfillConfig struct {
	Symbols       []string `json:"backfill_symbols"`
	Days          int      `json:"backfill_days"`
	WatermarkFile string   `json:"watermark_file"`
}

// RegistryConfig holds the instrument universe
type RegistryConfig struct {
	Universe        []string `json:"universe"`
	InstrumentsFile string   `json:"instruments_file"`
}

// UpstreamConfig holds the quote provider connection settings
type UpstreamConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RedisConfig holds the optional quote mirror settings
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

func Load() (*Config, error) {
	return LoadFrom("config.json")
}

// LoadFrom reads the optional config file over the built-in defaults and
// then applies environment overrides.
func LoadFrom(filename string) (*Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(filename); err == nil {
		// Keys absent from the file keep their defaults
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate reports fatal configuration problems.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.ServerConfig.Port <= 0 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.ServerConfig.Port)
	}
	if c.BackfillConfig.Days <= 0 {
		return fmt.Errorf("backfill days must be positive")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Port: 8888,
			Host: "0.0.0.0",
		},
		PollerConfig: PollerConfig{
			IntervalOpen:   2,
			IntervalClosed: 5,
			MTMTodayOnly:   true,
		},
		CacheConfig: CacheConfig{
			TTLPoller: 2,
			TTLAPI:    5,
		},
		BackfillConfig: BackfillConfig{
			Symbols:       []string{"EURUSD", "GBPUSD", "USDJPY", "GOLD", "BTCUSD"},
			Days:          7,
			WatermarkFile: ".last_history_load",
		},
		UpstreamConfig: UpstreamConfig{
			BaseURL:        "http://localhost:9000",
			TimeoutSeconds: 10,
		},
		RedisConfig: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		LoggingConfig: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)

	cfg.ServerConfig.Port = getEnvIntOrDefault("HTTP_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("HTTP_HOST", cfg.ServerConfig.Host)
	if v := os.Getenv("PRODUCTION_MODE"); v != "" {
		cfg.ServerConfig.ProductionMode = v == "true"
	}

	cfg.PollerConfig.IntervalOpen = getEnvIntOrDefault("POLL_INTERVAL_OPEN", cfg.PollerConfig.IntervalOpen)
	cfg.PollerConfig.IntervalClosed = getEnvIntOrDefault("POLL_INTERVAL_CLOSED", cfg.PollerConfig.IntervalClosed)
	if v := os.Getenv("MTM_TODAY_ONLY"); v != "" {
		cfg.PollerConfig.MTMTodayOnly = v == "true"
	}

	cfg.CacheConfig.TTLPoller = getEnvIntOrDefault("CACHE_TTL_POLLER", cfg.CacheConfig.TTLPoller)
	cfg.CacheConfig.TTLAPI = getEnvIntOrDefault("CACHE_TTL_API", cfg.CacheConfig.TTLAPI)

	cfg.BackfillConfig.Symbols = getEnvListOrDefault("BACKFILL_SYMBOLS", cfg.BackfillConfig.Symbols)
	cfg.BackfillConfig.Days = getEnvIntOrDefault("BACKFILL_DAYS", cfg.BackfillConfig.Days)
	cfg.BackfillConfig.WatermarkFile = getEnvOrDefault("BACKFILL_WATERMARK_FILE", cfg.BackfillConfig.WatermarkFile)

	cfg.RegistryConfig.Universe = getEnvListOrDefault("UNIVERSE", cfg.RegistryConfig.Universe)
	cfg.RegistryConfig.InstrumentsFile = getEnvOrDefault("INSTRUMENTS_FILE", cfg.RegistryConfig.InstrumentsFile)

	cfg.UpstreamConfig.BaseURL = getEnvOrDefault("QUOTE_PROVIDER_URL", cfg.UpstreamConfig.BaseURL)
	cfg.UpstreamConfig.TimeoutSeconds = getEnvIntOrDefault("QUOTE_PROVIDER_TIMEOUT", cfg.UpstreamConfig.TimeoutSeconds)

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.LoggingConfig.Pretty = v == "true"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
