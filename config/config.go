// Package config loads bot configuration from a JSON file with
// environment variable overrides. Environment values take precedence over
// the file so deployments can tune settings without editing it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ExchangeConfig  ExchangeConfig  `json:"exchange"`
	TradingConfig   TradingConfig   `json:"trading"`
	BrainConfig     BrainConfig     `json:"brain"`
	CircuitConfig   CircuitConfig   `json:"circuit_breaker"`
	SchedulerConfig SchedulerConfig `json:"scheduler"`
	ServerConfig    ServerConfig    `json:"server"`
	AuthConfig      AuthConfig      `json:"auth"`
	RedisConfig     RedisConfig     `json:"redis"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	VaultConfig     VaultConfig     `json:"vault"`
	LoggingConfig   LoggingConfig   `json:"logging"`
}

// ExchangeConfig holds exchange connection settings. PaperMode routes all
// orders through the in-process simulator.
type ExchangeConfig struct {
	PaperMode      bool    `json:"paper_mode"`
	APIKey         string  `json:"api_key"`
	SecretKey      string  `json:"secret_key"`
	TestNet        bool    `json:"testnet"`
	InitialBalance float64 `json:"initial_balance"` // paper mode starting balance
}

type TradingConfig struct {
	Pairs         []string `json:"pairs"`
	Strategies    []string `json:"strategies"`
	KlineInterval string   `json:"kline_interval"`
	KlineLimit    int      `json:"kline_limit"`
	Leverage      int      `json:"leverage"`
	RetrySeconds  int      `json:"retry_seconds"`
	AutoStart     bool     `json:"auto_start"`
}

type BrainConfig struct {
	SaveEveryCycles int `json:"save_every_cycles"`
}

type CircuitConfig struct {
	Enabled              bool    `json:"enabled"`
	MaxLossPerHour       float64 `json:"max_loss_per_hour"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	CooldownMinutes      int     `json:"cooldown_minutes"`
	MaxDailyLoss         float64 `json:"max_daily_loss"`
}

type SchedulerConfig struct {
	CycleSeconds  int `json:"cycle_seconds"`
	HealthSeconds int `json:"health_seconds"`
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

type AuthConfig struct {
	Enabled       bool          `json:"enabled"`
	JWTSecret     string        `json:"jwt_secret"`
	TokenDuration time.Duration `json:"token_duration"`
	Username      string        `json:"username"`
	PasswordHash  string        `json:"password_hash"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or console
	Output string `json:"output"` // stdout, stderr, or file path
}

// Load reads config.json if present, then applies environment overrides
// and defaults.
func Load() (*Config, error) {
	return LoadFile("config.json")
}

// LoadFile reads the named JSON file if present, then applies environment
// overrides and defaults.
func LoadFile(filename string) (*Config, error) {
	cfg, err := loadFromFile(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	// Exchange
	cfg.ExchangeConfig.PaperMode = getEnvBoolOrDefault("EXCHANGE_PAPER_MODE", cfg.ExchangeConfig.PaperMode)
	cfg.ExchangeConfig.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.ExchangeConfig.APIKey)
	cfg.ExchangeConfig.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.ExchangeConfig.SecretKey)
	cfg.ExchangeConfig.TestNet = getEnvBoolOrDefault("EXCHANGE_TESTNET", cfg.ExchangeConfig.TestNet)

	// Trading
	cfg.TradingConfig.KlineInterval = getEnvOrDefault("TRADING_KLINE_INTERVAL", cfg.TradingConfig.KlineInterval)
	cfg.TradingConfig.Leverage = getEnvIntOrDefault("TRADING_LEVERAGE", cfg.TradingConfig.Leverage)
	cfg.TradingConfig.AutoStart = getEnvBoolOrDefault("TRADING_AUTO_START", cfg.TradingConfig.AutoStart)

	// Circuit breaker
	cfg.CircuitConfig.Enabled = getEnvBoolOrDefault("CIRCUIT_BREAKER_ENABLED", cfg.CircuitConfig.Enabled)
	cfg.CircuitConfig.MaxLossPerHour = getEnvFloatOrDefault("CIRCUIT_MAX_LOSS_PER_HOUR", cfg.CircuitConfig.MaxLossPerHour)
	cfg.CircuitConfig.MaxConsecutiveLosses = getEnvIntOrDefault("CIRCUIT_MAX_CONSECUTIVE_LOSSES", cfg.CircuitConfig.MaxConsecutiveLosses)
	cfg.CircuitConfig.CooldownMinutes = getEnvIntOrDefault("CIRCUIT_COOLDOWN_MINUTES", cfg.CircuitConfig.CooldownMinutes)
	cfg.CircuitConfig.MaxDailyLoss = getEnvFloatOrDefault("CIRCUIT_MAX_DAILY_LOSS", cfg.CircuitConfig.MaxDailyLoss)

	// Scheduler
	cfg.SchedulerConfig.CycleSeconds = getEnvIntOrDefault("SCHEDULER_CYCLE_SECONDS", cfg.SchedulerConfig.CycleSeconds)
	cfg.SchedulerConfig.HealthSeconds = getEnvIntOrDefault("SCHEDULER_HEALTH_SECONDS", cfg.SchedulerConfig.HealthSeconds)

	// Server
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	// Auth
	cfg.AuthConfig.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.TokenDuration = getEnvDurationOrDefault("AUTH_TOKEN_DURATION", cfg.AuthConfig.TokenDuration)
	cfg.AuthConfig.Username = getEnvOrDefault("AUTH_USERNAME", cfg.AuthConfig.Username)
	cfg.AuthConfig.PasswordHash = getEnvOrDefault("AUTH_PASSWORD_HASH", cfg.AuthConfig.PasswordHash)

	// Redis
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Database
	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Vault
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Format = getEnvOrDefault("LOG_FORMAT", cfg.LoggingConfig.Format)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
}

func applyDefaults(cfg *Config) {
	if len(cfg.TradingConfig.Pairs) == 0 {
		cfg.TradingConfig.Pairs = []string{"BTCUSDT", "ETHUSDT"}
	}
	if len(cfg.TradingConfig.Strategies) == 0 {
		cfg.TradingConfig.Strategies = []string{"trend_follow", "mean_revert", "breakout"}
	}
	if cfg.TradingConfig.KlineInterval == "" {
		cfg.TradingConfig.KlineInterval = "5m"
	}
	if cfg.TradingConfig.KlineLimit <= 0 {
		cfg.TradingConfig.KlineLimit = 100
	}
	if cfg.TradingConfig.Leverage <= 0 {
		cfg.TradingConfig.Leverage = 3
	}
	if cfg.TradingConfig.RetrySeconds <= 0 {
		cfg.TradingConfig.RetrySeconds = 2
	}

	if cfg.ExchangeConfig.InitialBalance <= 0 {
		cfg.ExchangeConfig.InitialBalance = 10000
	}

	if cfg.BrainConfig.SaveEveryCycles <= 0 {
		cfg.BrainConfig.SaveEveryCycles = 60
	}

	if cfg.CircuitConfig.MaxLossPerHour <= 0 {
		cfg.CircuitConfig.MaxLossPerHour = 3.0
	}
	if cfg.CircuitConfig.MaxConsecutiveLosses <= 0 {
		cfg.CircuitConfig.MaxConsecutiveLosses = 5
	}
	if cfg.CircuitConfig.CooldownMinutes <= 0 {
		cfg.CircuitConfig.CooldownMinutes = 30
	}
	if cfg.CircuitConfig.MaxDailyLoss <= 0 {
		cfg.CircuitConfig.MaxDailyLoss = 5.0
	}

	if cfg.SchedulerConfig.CycleSeconds <= 0 {
		cfg.SchedulerConfig.CycleSeconds = 5
	}
	if cfg.SchedulerConfig.HealthSeconds <= 0 {
		cfg.SchedulerConfig.HealthSeconds = 15
	}

	if cfg.ServerConfig.Port <= 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout <= 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout <= 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout <= 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if cfg.AuthConfig.TokenDuration <= 0 {
		cfg.AuthConfig.TokenDuration = 24 * time.Hour
	}
	if cfg.AuthConfig.Username == "" {
		cfg.AuthConfig.Username = "admin"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}

	if cfg.DatabaseConfig.Port <= 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	if cfg.VaultConfig.Address == "" {
		cfg.VaultConfig.Address = "http://localhost:8200"
	}
	if cfg.VaultConfig.SecretPath == "" {
		cfg.VaultConfig.SecretPath = "secret/data/trading-bot/exchange"
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.LoggingConfig.Format == "" {
		cfg.LoggingConfig.Format = "json"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.AuthConfig.Enabled {
		if c.AuthConfig.JWTSecret == "" {
			return fmt.Errorf("auth enabled but jwt_secret is empty")
		}
		if c.AuthConfig.PasswordHash == "" {
			return fmt.Errorf("auth enabled but password_hash is empty")
		}
	}
	if !c.ExchangeConfig.PaperMode && !c.VaultConfig.Enabled {
		if c.ExchangeConfig.APIKey == "" || c.ExchangeConfig.SecretKey == "" {
			return fmt.Errorf("live trading requires exchange credentials or vault")
		}
	}
	if len(c.TradingConfig.Pairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true"
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
