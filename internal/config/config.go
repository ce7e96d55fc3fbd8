package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Binance       BinanceConfig       `mapstructure:"binance"`
	Risk          RiskConfig          `mapstructure:"risk"`
	Sync          SyncConfig          `mapstructure:"sync"`
	API           APIConfig           `mapstructure:"api"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Alerts        AlertsConfig        `mapstructure:"alerts"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"` // price history cache lifetime
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"` // "riskd" -> riskd.reports.completed
}

// BinanceConfig contains Binance market data settings
type BinanceConfig struct {
	APIKey            string `mapstructure:"api_key"`
	SecretKey         string `mapstructure:"secret_key"`
	Testnet           bool   `mapstructure:"testnet"`
	Quote             string `mapstructure:"quote"` // quote asset appended to tickers, e.g. "USDT"
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
	Burst             int    `mapstructure:"burst"`
}

// RiskConfig contains risk engine settings
type RiskConfig struct {
	Confidence     float64 `mapstructure:"confidence"`      // 0.90, 0.95 or 0.99
	DefaultCapital float64 `mapstructure:"default_capital"` // capital assumed when a request omits it
	HistoryDays    int     `mapstructure:"history_days"`    // trading days of history pulled per report
	ScenarioFile   string  `mapstructure:"scenario_file"`   // YAML catalog overriding the built-in scenarios
}

// SyncConfig contains price sync settings
type SyncConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Tickers         []string `mapstructure:"tickers"`
	IntervalMinutes int      `mapstructure:"interval_minutes"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// AlertsConfig contains alerting settings
type AlertsConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	TelegramToken      string  `mapstructure:"telegram_token"`
	TelegramChatID     int64   `mapstructure:"telegram_chat_id"`
	MinSeverity        string  `mapstructure:"min_severity"`         // info, warning or critical
	ThrottleMinutes    int     `mapstructure:"throttle_minutes"`     // repeat suppression per alert title
	VaRCapitalFraction float64 `mapstructure:"var_capital_fraction"` // VaR share of capital that triggers a critical alert
	StressLossFraction float64 `mapstructure:"stress_loss_fraction"` // stress loss share of capital that triggers a critical alert
}

// GetThrottle returns the repeat-suppression window as time.Duration
func (c *AlertsConfig) GetThrottle() time.Duration {
	return time.Duration(c.ThrottleMinutes) * time.Minute
}

// NotificationsConfig contains push notification settings
type NotificationsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file"` // Firebase service account JSON
	MockMode        bool   `mapstructure:"mock_mode"`        // log instead of sending
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides, RISKD_DATABASE_HOST style
	v.AutomaticEnv()
	v.SetEnvPrefix("RISKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration using comprehensive validation
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "riskd")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "riskd")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl_seconds", 300)

	// NATS defaults
	v.SetDefault("nats.url", fmt.Sprintf("nats://localhost:%d", NATSPort))
	v.SetDefault("nats.subject_prefix", "riskd")

	// Binance defaults
	v.SetDefault("binance.testnet", false)
	v.SetDefault("binance.quote", "USDT")
	v.SetDefault("binance.requests_per_second", 10)
	v.SetDefault("binance.burst", 20)

	// Risk defaults
	v.SetDefault("risk.confidence", 0.95)
	v.SetDefault("risk.default_capital", 1000000.0)
	v.SetDefault("risk.history_days", 252)

	// Sync defaults
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.tickers", []string{"BTC", "ETH", "SOL"})
	v.SetDefault("sync.interval_minutes", 60)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", APIServerPort)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)

	// Alerts defaults
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.telegram_chat_id", 0)
	v.SetDefault("alerts.min_severity", "info")
	v.SetDefault("alerts.throttle_minutes", 10)
	v.SetDefault("alerts.var_capital_fraction", 0.10)
	v.SetDefault("alerts.stress_loss_fraction", 0.25)

	// Notifications defaults
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.mock_mode", true)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetCacheTTL returns the price cache lifetime as time.Duration
func (c *RedisConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetInterval returns the sync interval as time.Duration
func (c *SyncConfig) GetInterval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
