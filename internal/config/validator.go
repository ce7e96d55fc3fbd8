package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ValidatorOptions contains options for configuration validation
type ValidatorOptions struct {
	VerifyConnectivity bool // Check database/Redis connectivity
	VerifyEndpoints    bool // Verify external endpoints (Binance) are reachable
	Timeout            time.Duration
}

// DefaultValidatorOptions returns default validator options for startup
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		VerifyConnectivity: true,
		VerifyEndpoints:    false, // Disabled by default (enabled with --verify-endpoints flag)
		Timeout:            5 * time.Second,
	}
}

// Validator handles configuration validation at startup
type Validator struct {
	config  *Config
	options ValidatorOptions
}

// NewValidator creates a new configuration validator
func NewValidator(config *Config, options ValidatorOptions) *Validator {
	return &Validator{
		config:  config,
		options: options,
	}
}

// ValidateStartup performs comprehensive startup validation
// This should be called before starting any services
func (v *Validator) ValidateStartup(ctx context.Context) error {
	log.Info().Msg("Validating configuration...")

	// Step 0: Check production environment requirements
	if err := v.validateProductionRequirements(); err != nil {
		return fmt.Errorf("production requirements validation failed: %w", err)
	}

	// Step 1: Validate required connection settings
	if err := v.validateConnectionSettings(); err != nil {
		return fmt.Errorf("connection settings validation failed: %w", err)
	}

	// Step 2: Validate API keys presence (not testing, just checking they exist)
	if err := v.validateAPIKeysPresence(); err != nil {
		return fmt.Errorf("API key validation failed: %w", err)
	}

	// Step 3: Check database connectivity (if enabled)
	if v.options.VerifyConnectivity {
		if err := v.checkDatabaseConnectivity(ctx); err != nil {
			return fmt.Errorf("database connectivity check failed: %w", err)
		}
	}

	// Step 4: Check Redis connectivity (if enabled)
	if v.options.VerifyConnectivity {
		if err := v.checkRedisConnectivity(ctx); err != nil {
			return fmt.Errorf("redis connectivity check failed: %w", err)
		}
	}

	// Step 5: Verify external endpoints (if enabled with --verify-endpoints flag)
	if v.options.VerifyEndpoints {
		if err := v.verifyBinanceEndpoint(ctx); err != nil {
			return fmt.Errorf("endpoint verification failed: %w", err)
		}
	}

	log.Info().Msg("Configuration validation completed successfully")
	return nil
}

// validateProductionRequirements checks production-specific security requirements
func (v *Validator) validateProductionRequirements() error {
	// Check if we're running in production
	appEnv := strings.ToLower(os.Getenv("RISKD_APP_ENVIRONMENT"))
	if appEnv == "" {
		appEnv = strings.ToLower(v.config.App.Environment)
	}
	isProduction := appEnv == "production" || appEnv == "prod"

	if !isProduction {
		// Not production, skip validation
		log.Info().Str("environment", appEnv).Msg("Non-production environment detected, skipping production requirements")
		return nil
	}

	log.Info().Msg("Production environment detected - enforcing production security requirements")

	var errors []string

	// 1. Vault must be enabled in production
	vaultEnabled := strings.ToLower(os.Getenv("VAULT_ENABLED"))
	if vaultEnabled != "true" && vaultEnabled != "1" {
		errors = append(errors, "Vault must be enabled in production (set VAULT_ENABLED=true)")
	}

	// 2. Check that Vault configuration is provided
	if vaultEnabled == "true" || vaultEnabled == "1" {
		vaultAddr := os.Getenv("VAULT_ADDR")
		if vaultAddr == "" {
			errors = append(errors, "VAULT_ADDR must be set when Vault is enabled")
		}

		vaultAuthMethod := os.Getenv("VAULT_AUTH_METHOD")
		if vaultAuthMethod == "" {
			errors = append(errors, "VAULT_AUTH_METHOD must be set when Vault is enabled (kubernetes, token, or approle)")
		}

		// Validate auth method specific requirements
		switch vaultAuthMethod {
		case "kubernetes":
			// Kubernetes auth requires K8s service account token
			tokenPath := "/var/run/secrets/kubernetes.io/serviceaccount/token"
			if _, err := os.Stat(tokenPath); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Kubernetes service account token not found at %s", tokenPath))
			}
		case "token":
			vaultToken := os.Getenv("VAULT_TOKEN")
			if vaultToken == "" {
				errors = append(errors, "VAULT_TOKEN must be set when using token auth method")
			}
		case "approle":
			roleID := os.Getenv("VAULT_ROLE_ID")
			secretID := os.Getenv("VAULT_SECRET_ID")
			if roleID == "" || secretID == "" {
				errors = append(errors, "VAULT_ROLE_ID and VAULT_SECRET_ID must be set when using approle auth method")
			}
		default:
			errors = append(errors, fmt.Sprintf("Unknown VAULT_AUTH_METHOD: %s (must be kubernetes, token, or approle)", vaultAuthMethod))
		}
	}

	// 3. TLS/SSL must be enforced for database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL != "" {
		if strings.Contains(databaseURL, "sslmode=disable") {
			errors = append(errors, "Database SSL cannot be disabled in production (sslmode=disable found in DATABASE_URL)")
		}
		if !strings.Contains(databaseURL, "sslmode=") {
			errors = append(errors, "Database SSL mode must be explicitly set in production (add sslmode=require to DATABASE_URL)")
		}
	}

	// 4. TLS/SSL must be enforced for Redis
	redisURL := os.Getenv("REDIS_URL")
	if redisURL != "" {
		if strings.HasPrefix(redisURL, "redis://") && !strings.HasPrefix(redisURL, "rediss://") {
			errors = append(errors, "Redis TLS must be enabled in production (use rediss:// instead of redis://)")
		}
	}

	// 5. Default credentials check
	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword != "" && isPlaceholderValue(postgresPassword) {
		errors = append(errors, "POSTGRES_PASSWORD cannot be a placeholder value in production")
	}

	grafanaPassword := os.Getenv("GRAFANA_ADMIN_PASSWORD")
	if grafanaPassword != "" && isPlaceholderValue(grafanaPassword) {
		errors = append(errors, "GRAFANA_ADMIN_PASSWORD cannot be a placeholder value in production")
	}

	if len(errors) > 0 {
		var errMsg strings.Builder
		errMsg.WriteString("\n==========================================================\n")
		errMsg.WriteString("PRODUCTION SECURITY REQUIREMENTS NOT MET\n")
		errMsg.WriteString("==========================================================\n\n")
		errMsg.WriteString("The following production security requirements must be addressed:\n\n")
		for i, err := range errors {
			errMsg.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err))
		}
		errMsg.WriteString("\n")
		errMsg.WriteString("Production deployment cannot proceed until these issues are resolved.\n")
		errMsg.WriteString("==========================================================\n")
		return fmt.Errorf("%s", errMsg.String())
	}

	log.Info().Msg("Production security requirements validated successfully")
	return nil
}

// validateConnectionSettings checks that connection settings are configured
func (v *Validator) validateConnectionSettings() error {
	missing := make(map[string]string)

	// Database connection (can be DATABASE_URL or individual components)
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// If DATABASE_URL is not set, check individual components
		if v.config.Database.Host == "" {
			missing["DATABASE_URL or database.host"] = "Database host is not configured"
		}
	}

	// Redis connection
	if v.config.Redis.Host == "" {
		missing["redis.host"] = "Redis host is not configured"
	}

	// NATS connection
	if v.config.NATS.URL == "" {
		missing["nats.url"] = "NATS URL is not configured"
	}

	if len(missing) > 0 {
		var errMsg strings.Builder
		errMsg.WriteString("Required connection settings are missing:\n\n")
		for name, description := range missing {
			errMsg.WriteString(fmt.Sprintf("  - %s: %s\n", name, description))
		}
		errMsg.WriteString("\nPlease set these values and try again.\n")
		return fmt.Errorf("%s", errMsg.String())
	}

	log.Info().Msg("Connection settings validation passed")
	return nil
}

// validateAPIKeysPresence checks that configured API keys are not placeholders.
// Binance keys are optional because daily klines are public, but a placeholder
// key is always a mistake.
func (v *Validator) validateAPIKeysPresence() error {
	var errors []string

	if v.config.Binance.APIKey != "" && isPlaceholderValue(v.config.Binance.APIKey) {
		errors = append(errors, "Binance API key appears to be a placeholder value")
	}
	if v.config.Binance.SecretKey != "" && isPlaceholderValue(v.config.Binance.SecretKey) {
		errors = append(errors, "Binance API secret appears to be a placeholder value")
	}
	if v.config.Alerts.Enabled && isPlaceholderValue(v.config.Alerts.TelegramToken) {
		errors = append(errors, "Telegram bot token appears to be a placeholder value")
	}

	if len(errors) > 0 {
		var errMsg strings.Builder
		errMsg.WriteString("API key validation failed:\n\n")
		for _, err := range errors {
			errMsg.WriteString(fmt.Sprintf("  - %s\n", err))
		}
		errMsg.WriteString("\nPlease provide valid API keys and try again.\n")
		return fmt.Errorf("%s", errMsg.String())
	}

	log.Info().Msg("API key presence validation passed")
	return nil
}

// checkDatabaseConnectivity tests database connection with timeout
func (v *Validator) checkDatabaseConnectivity(ctx context.Context) error {
	log.Info().Msg("Checking database connectivity...")

	// Create context with timeout
	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	// Build connection string
	var connString string
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		connString = dbURL
	} else {
		connString = v.config.Database.GetDSN()
	}

	// Attempt connection
	pool, err := pgxpool.New(connCtx, connString)
	if err != nil {
		return fmt.Errorf("failed to create database connection pool: %w\n\nPlease check:\n  - Database is running\n  - Connection details are correct\n  - Network connectivity is available", err)
	}
	defer pool.Close()

	// Ping database
	if err := pool.Ping(connCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w\n\nPlease check:\n  - Database is running and accepting connections\n  - Credentials are correct\n  - Network connectivity is available", err)
	}

	// Verify database name
	var dbName string
	err = pool.QueryRow(connCtx, "SELECT current_database()").Scan(&dbName)
	if err != nil {
		return fmt.Errorf("failed to verify database: %w", err)
	}

	log.Info().
		Str("database", dbName).
		Str("host", v.config.Database.Host).
		Int("port", v.config.Database.Port).
		Msg("Database connectivity check passed")

	return nil
}

// checkRedisConnectivity tests Redis connection with timeout
func (v *Validator) checkRedisConnectivity(ctx context.Context) error {
	log.Info().Msg("Checking Redis connectivity...")

	// Create context with timeout
	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	// Create Redis client
	client := redis.NewClient(&redis.Options{
		Addr:     v.config.Redis.GetRedisAddr(),
		Password: v.config.Redis.Password,
		DB:       v.config.Redis.DB,
	})
	defer client.Close()

	// Ping Redis
	if err := client.Ping(connCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w\n\nPlease check:\n  - Redis is running and accepting connections\n  - Connection details are correct\n  - Network connectivity is available", err)
	}

	log.Info().
		Str("addr", v.config.Redis.GetRedisAddr()).
		Int("db", v.config.Redis.DB).
		Msg("Redis connectivity check passed")

	return nil
}

// verifyBinanceEndpoint tests Binance reachability with a lightweight API call
func (v *Validator) verifyBinanceEndpoint(ctx context.Context) error {
	// Use a simple endpoint that doesn't require authentication
	baseURL := "https://api.binance.com"
	if v.config.Binance.Testnet {
		baseURL = "https://testnet.binance.vision"
	}

	pingURL := baseURL + "/api/v3/ping"

	reqCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", pingURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to ping Binance API: %w (check network connectivity)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Binance API ping failed with status: %d", resp.StatusCode)
	}

	log.Info().
		Str("base_url", baseURL).
		Bool("testnet", v.config.Binance.Testnet).
		Msg("Binance API connectivity verified")

	return nil
}

// isPlaceholderValue checks if a value is likely a placeholder
func isPlaceholderValue(value string) bool {
	lowerValue := strings.ToLower(value)
	placeholders := []string{
		"your_api_key",
		"your_secret",
		"changeme",
		"placeholder",
		"example",
		"test",
		"sample",
		"demo",
	}

	for _, placeholder := range placeholders {
		if strings.Contains(lowerValue, placeholder) {
			return true
		}
	}

	return false
}
