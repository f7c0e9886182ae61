package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MarketConfig   MarketConfig   `json:"market"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	ServerConfig   ServerConfig   `json:"server"`
	RiskConfig     RiskConfig     `json:"risk"`
	ScannerConfig  ScannerConfig  `json:"scanner"`
	AIConfig       AIConfig       `json:"ai"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// MarketConfig holds the market data provider configuration
type MarketConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for candle caching
type RedisConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// RiskConfig mirrors the risk engine policy
type RiskConfig struct {
	DefaultRiskPercent float64 `json:"default_risk_percent"`
	MaxRiskPercent     float64 `json:"max_risk_percent"`
	MaxPositionSize    float64 `json:"max_position_size"`
	MaxPositionPercent float64 `json:"max_position_percent"`
	MinPortfolioSize   float64 `json:"min_portfolio_size"`
}

type ScannerConfig struct {
	Enabled             bool    `json:"enabled"`
	TickIntervalSeconds int     `json:"tick_interval_seconds"`
	WorkerCount         int     `json:"worker_count"`
	MaxScansPerTick     int     `json:"max_scans_per_tick"`
	PortfolioSize       float64 `json:"portfolio_size"`
	RiskPercent         float64 `json:"risk_percent"`
	MinConfidence       float64 `json:"min_confidence"`
}

type AIConfig struct {
	Enabled              bool    `json:"enabled"`
	Provider             string  `json:"provider"` // claude or openai
	APIKey               string  `json:"api_key"`
	Model                string  `json:"model"`
	MaxTokens            int     `json:"max_tokens"`
	Temperature          float64 `json:"temperature"`
	MaxConcurrentCalls   int     `json:"max_concurrent_calls"`
	CallDelaySeconds     int     `json:"call_delay_seconds"`
	PauseStart           string  `json:"pause_start"` // "HH:MM" UTC
	PauseEnd             string  `json:"pause_end"`
	RequestTimeoutSecond int     `json:"request_timeout_seconds"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

func Load(path string) (*Config, error) {
	cfg, err := loadFromFile(path)
	if err != nil {
		// No config file, start from defaults
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MarketConfig.BaseURL == "" {
		cfg.MarketConfig.BaseURL = "https://api.binance.com"
	}
	if cfg.MarketConfig.TimeoutSeconds <= 0 {
		cfg.MarketConfig.TimeoutSeconds = 10
	}

	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.TTLSeconds <= 0 {
		cfg.RedisConfig.TTLSeconds = 60
	}

	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}

	if cfg.RiskConfig.DefaultRiskPercent <= 0 {
		cfg.RiskConfig.DefaultRiskPercent = 1
	}
	if cfg.RiskConfig.MaxRiskPercent <= 0 {
		cfg.RiskConfig.MaxRiskPercent = 5
	}
	if cfg.RiskConfig.MaxPositionSize <= 0 {
		cfg.RiskConfig.MaxPositionSize = 1000000
	}
	if cfg.RiskConfig.MaxPositionPercent <= 0 {
		cfg.RiskConfig.MaxPositionPercent = 25
	}
	if cfg.RiskConfig.MinPortfolioSize <= 0 {
		cfg.RiskConfig.MinPortfolioSize = 100
	}

	if cfg.ScannerConfig.TickIntervalSeconds <= 0 {
		cfg.ScannerConfig.TickIntervalSeconds = 60
	}
	if cfg.ScannerConfig.WorkerCount <= 0 {
		cfg.ScannerConfig.WorkerCount = 4
	}
	if cfg.ScannerConfig.MaxScansPerTick <= 0 {
		cfg.ScannerConfig.MaxScansPerTick = 50
	}
	if cfg.ScannerConfig.PortfolioSize <= 0 {
		cfg.ScannerConfig.PortfolioSize = 100000
	}
	if cfg.ScannerConfig.RiskPercent <= 0 {
		cfg.ScannerConfig.RiskPercent = 1
	}
	if cfg.ScannerConfig.MinConfidence <= 0 {
		cfg.ScannerConfig.MinConfidence = 60
	}

	if cfg.AIConfig.Provider == "" {
		cfg.AIConfig.Provider = "claude"
	}
	if cfg.AIConfig.MaxTokens <= 0 {
		cfg.AIConfig.MaxTokens = 1024
	}
	if cfg.AIConfig.Temperature <= 0 {
		cfg.AIConfig.Temperature = 0.3
	}
	if cfg.AIConfig.MaxConcurrentCalls <= 0 {
		cfg.AIConfig.MaxConcurrentCalls = 1
	}
	if cfg.AIConfig.CallDelaySeconds <= 0 {
		cfg.AIConfig.CallDelaySeconds = 1
	}
	if cfg.AIConfig.RequestTimeoutSecond <= 0 {
		cfg.AIConfig.RequestTimeoutSecond = 30
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over the config file.
func applyEnvOverrides(cfg *Config) {
	cfg.MarketConfig.BaseURL = getEnvOrDefault("MARKET_BASE_URL", cfg.MarketConfig.BaseURL)

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)

	if v := os.Getenv("SCANNER_ENABLED"); v != "" {
		cfg.ScannerConfig.Enabled = v == "true"
	}
	cfg.ScannerConfig.TickIntervalSeconds = getEnvIntOrDefault("SCANNER_TICK_INTERVAL", cfg.ScannerConfig.TickIntervalSeconds)
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKERS", cfg.ScannerConfig.WorkerCount)
	cfg.ScannerConfig.PortfolioSize = getEnvFloatOrDefault("SCANNER_PORTFOLIO_SIZE", cfg.ScannerConfig.PortfolioSize)

	if v := os.Getenv("AI_ENABLED"); v != "" {
		cfg.AIConfig.Enabled = v == "true"
	}
	cfg.AIConfig.Provider = getEnvOrDefault("AI_PROVIDER", cfg.AIConfig.Provider)
	cfg.AIConfig.APIKey = getEnvOrDefault("AI_API_KEY", cfg.AIConfig.APIKey)
	cfg.AIConfig.Model = getEnvOrDefault("AI_MODEL", cfg.AIConfig.Model)
	cfg.AIConfig.MaxConcurrentCalls = getEnvIntOrDefault("AI_MAX_CONCURRENT_CALLS", cfg.AIConfig.MaxConcurrentCalls)
	cfg.AIConfig.CallDelaySeconds = getEnvIntOrDefault("AI_CALL_DELAY", cfg.AIConfig.CallDelaySeconds)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LoggingConfig.JSONFormat = v == "true"
	}
}

// Validate checks config consistency after defaults and env overrides.
func (c *Config) Validate() error {
	if c.RiskConfig.DefaultRiskPercent > c.RiskConfig.MaxRiskPercent {
		return fmt.Errorf("default risk percent %.2f exceeds max %.2f",
			c.RiskConfig.DefaultRiskPercent, c.RiskConfig.MaxRiskPercent)
	}
	if c.AIConfig.Enabled && c.AIConfig.APIKey == "" {
		return fmt.Errorf("AI enabled but no API key configured")
	}
	return nil
}

// TickInterval returns the scanner tick interval as a duration
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.ScannerConfig.TickIntervalSeconds) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
