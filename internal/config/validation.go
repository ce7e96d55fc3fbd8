package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	// Validate App configuration
	errors = append(errors, c.validateApp()...)

	// Validate Database configuration
	errors = append(errors, c.validateDatabase()...)

	// Validate Redis configuration
	errors = append(errors, c.validateRedis()...)

	// Validate NATS configuration
	errors = append(errors, c.validateNATS()...)

	// Validate Binance configuration
	errors = append(errors, c.validateBinance()...)

	// Validate Risk configuration
	errors = append(errors, c.validateRisk()...)

	// Validate Sync configuration
	errors = append(errors, c.validateSync()...)

	// Validate API configuration
	errors = append(errors, c.validateAPI()...)

	// Validate environment-specific requirements
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}

	if c.Database.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: "Database port is required",
		})
	} else if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Database.Port),
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "Database user is required",
		})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}

	// Warn about missing password in non-development environments
	if c.Database.Password == "" && c.App.Environment != "development" {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in non-development environments",
		})
	}

	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.pool_size",
			Message: "Database pool size must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		})
	}

	if c.Redis.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: "Redis port is required",
		})
	} else if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Redis.Port),
		})
	}

	if c.Redis.CacheTTLSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.cache_ttl_seconds",
			Message: "Cache TTL must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required",
		})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL must start with 'nats://'",
		})
	}

	if c.NATS.SubjectPrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.subject_prefix",
			Message: "NATS subject prefix is required",
		})
	}

	return errors
}

func (c *Config) validateBinance() ValidationErrors {
	var errors ValidationErrors

	if c.Binance.Quote == "" {
		errors = append(errors, ValidationError{
			Field:   "binance.quote",
			Message: "Quote asset is required (e.g. USDT)",
		})
	}

	if c.Binance.RequestsPerSecond < 1 {
		errors = append(errors, ValidationError{
			Field:   "binance.requests_per_second",
			Message: "Requests per second must be at least 1",
		})
	}

	if c.Binance.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "binance.burst",
			Message: "Burst must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateRisk() ValidationErrors {
	var errors ValidationErrors

	if c.Risk.Confidence <= 0 || c.Risk.Confidence >= 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.confidence",
			Message: fmt.Sprintf("Invalid confidence %.2f. Must be between 0-1 (exclusive)", c.Risk.Confidence),
		})
	}

	if c.Risk.DefaultCapital <= 0 {
		errors = append(errors, ValidationError{
			Field:   "risk.default_capital",
			Message: "Default capital must be greater than 0",
		})
	}

	// The engine needs at least 30 aligned observations to produce a report
	if c.Risk.HistoryDays < 30 {
		errors = append(errors, ValidationError{
			Field:   "risk.history_days",
			Message: fmt.Sprintf("Invalid history_days %d. Must be at least 30", c.Risk.HistoryDays),
		})
	}

	return errors
}

func (c *Config) validateSync() ValidationErrors {
	var errors ValidationErrors

	if !c.Sync.Enabled {
		return errors
	}

	if len(c.Sync.Tickers) == 0 {
		errors = append(errors, ValidationError{
			Field:   "sync.tickers",
			Message: "At least one ticker is required when sync is enabled",
		})
	}

	if c.Sync.IntervalMinutes < 1 {
		errors = append(errors, ValidationError{
			Field:   "sync.interval_minutes",
			Message: "Sync interval must be at least 1 minute",
		})
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	if c.API.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: "API port is required",
		})
	} else if c.API.Port < 1 || c.API.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.API.Port),
		})
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	// Alerts need a token and chat regardless of environment
	if c.Alerts.Enabled {
		if c.Alerts.TelegramToken == "" {
			errors = append(errors, ValidationError{
				Field:   "alerts.telegram_token",
				Message: "Telegram bot token is required when alerts are enabled",
			})
		}
		if c.Alerts.TelegramChatID == 0 {
			errors = append(errors, ValidationError{
				Field:   "alerts.telegram_chat_id",
				Message: "Telegram chat ID is required when alerts are enabled",
			})
		}
	}

	switch c.Alerts.MinSeverity {
	case "", "info", "warning", "critical":
	default:
		errors = append(errors, ValidationError{
			Field:   "alerts.min_severity",
			Message: fmt.Sprintf("Invalid severity %q. Must be info, warning or critical", c.Alerts.MinSeverity),
		})
	}

	if c.Alerts.VaRCapitalFraction <= 0 || c.Alerts.VaRCapitalFraction >= 1 {
		errors = append(errors, ValidationError{
			Field:   "alerts.var_capital_fraction",
			Message: fmt.Sprintf("VaR alert fraction must be between 0 and 1 exclusive, got %g", c.Alerts.VaRCapitalFraction),
		})
	}

	if c.Alerts.StressLossFraction <= 0 || c.Alerts.StressLossFraction >= 1 {
		errors = append(errors, ValidationError{
			Field:   "alerts.stress_loss_fraction",
			Message: fmt.Sprintf("Stress alert fraction must be between 0 and 1 exclusive, got %g", c.Alerts.StressLossFraction),
		})
	}

	if c.Notifications.Enabled && !c.Notifications.MockMode && c.Notifications.CredentialsFile == "" {
		errors = append(errors, ValidationError{
			Field:   "notifications.credentials_file",
			Message: "Firebase credentials file is required when notifications leave mock mode",
		})
	}

	// Production-specific validations
	if c.App.Environment == "production" {
		// Validate production secrets strength
		secretErrors := ValidateProductionSecrets(c)
		errors = append(errors, secretErrors...)

		// Ensure no testnet prices feed production reports
		if c.Binance.Testnet {
			errors = append(errors, ValidationError{
				Field:   "binance.testnet",
				Message: "Testnet mode must be disabled in production",
			})
		}

		// Ensure SSL for database in production
		if c.Database.SSLMode == "disable" {
			errors = append(errors, ValidationError{
				Field:   "database.ssl_mode",
				Message: "SSL must be enabled for database in production",
			})
		}
	}

	// Check critical environment variables
	criticalEnvVars := []string{
		"DATABASE_URL", // Can be constructed from config, but should be set
	}

	for _, envVar := range criticalEnvVars {
		if os.Getenv(envVar) == "" && c.App.Environment == "production" {
			// DATABASE_URL is optional if database config is complete
			if envVar == "DATABASE_URL" {
				if c.Database.Host != "" && c.Database.Database != "" {
					continue // Config is complete, no need for DATABASE_URL
				}
			}

			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("env.%s", envVar),
				Message: fmt.Sprintf("Environment variable %s is required in production", envVar),
			})
		}
	}

	return errors
}

// ValidateAndLoad loads and validates configuration
// Returns the loaded config and any validation errors
// configPath can be empty to use default config locations
func ValidateAndLoad(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validation is already called within Load(), but we can call it again
	// for explicit validation if Load() is modified in the future
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
