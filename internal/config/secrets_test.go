package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSecret_Empty(t *testing.T) {
	result := ValidateSecret("", "test_secret", 12, true)
	assert.False(t, result.IsValid)
	assert.Equal(t, SecretStrengthWeak, result.Strength)
	assert.Contains(t, result.Errors[0], "cannot be empty")
}

func TestValidateSecret_Placeholders(t *testing.T) {
	placeholders := []string{
		"changeme",
		"CHANGEME",
		"please_change_me",
		"your_api_key",
		"test123",
		"password",
		"admin123",
	}

	for _, placeholder := range placeholders {
		t.Run(placeholder, func(t *testing.T) {
			result := ValidateSecret(placeholder, "test_secret", 12, true)
			assert.False(t, result.IsValid)
			assert.Equal(t, SecretStrengthWeak, result.Strength)
			assert.NotEmpty(t, result.Errors)
		})
	}
}

func TestValidateSecret_CommonWeakPasswords(t *testing.T) {
	weakPasswords := []string{
		"123456",
		"12345678",
		"qwerty",
		"letmein",
	}

	for _, weak := range weakPasswords {
		t.Run(weak, func(t *testing.T) {
			result := ValidateSecret(weak, "test_secret", 12, true)
			assert.False(t, result.IsValid)
			assert.Equal(t, SecretStrengthWeak, result.Strength)
			// Should contain either "weak password" or "placeholder" (both are caught)
			assert.NotEmpty(t, result.Errors)
		})
	}
}

func TestValidateSecret_TooShort(t *testing.T) {
	result := ValidateSecret("short", "test_secret", 12, true)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0], "at least 12 characters")
}

func TestValidateSecret_WeakStrength(t *testing.T) {
	// Only lowercase, meets length but weak composition
	result := ValidateSecret("kqmzwvbhjrtn", "test_secret", 12, true)
	assert.False(t, result.IsValid)
	assert.Equal(t, SecretStrengthWeak, result.Strength)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateSecret_MediumStrength(t *testing.T) {
	// 12 chars, 2 types (lowercase + numbers) - no sequential chars
	result := ValidateSecret("h7j2p9k4m6q8", "test_secret", 12, false)
	assert.True(t, result.IsValid)
	assert.Equal(t, SecretStrengthMedium, result.Strength)
}

func TestValidateSecret_StrongPassword(t *testing.T) {
	strongPasswords := []string{
		"Tr0ng_Phr@se_2024!x",
		"aB3$fG7*jK9@mN2pQr",
		"Vivid!Garden#Hum99",
	}

	for _, strong := range strongPasswords {
		t.Run(strong, func(t *testing.T) {
			result := ValidateSecret(strong, "test_secret", 12, true)
			assert.True(t, result.IsValid, "Password should be valid: %v", result.Errors)
			assert.Equal(t, SecretStrengthStrong, result.Strength)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestValidateSecret_SequentialChars(t *testing.T) {
	tests := []struct {
		name     string
		password string
		hasWarn  bool
	}{
		{"sequential numbers", "MyGr8t123flux", true},
		{"sequential letters", "MyGr8tabcflux", true},
		{"no sequential", "MyGr8t!flux#", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSecret(tt.password, "test_secret", 12, false)
			if tt.hasWarn {
				assert.NotEmpty(t, result.Warnings)
				assert.Contains(t, result.Warnings[0], "sequential")
			} else {
				for _, w := range result.Warnings {
					assert.NotContains(t, w, "sequential")
				}
			}
		})
	}
}

func TestValidateSecret_RepeatedChars(t *testing.T) {
	result := ValidateSecret("MyGr8aaaflux", "test_secret", 12, false)
	assert.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[len(result.Warnings)-1], "repeated")
}

func TestValidateSecret_NotRequireStrong(t *testing.T) {
	// Weak composition passes when strength is not required
	result := ValidateSecret("kqmzwvbhjrtn", "test_secret", 12, false)
	assert.True(t, result.IsValid)
	assert.Equal(t, SecretStrengthWeak, result.Strength)
}

func TestValidateProductionSecrets(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *Config
		expectError bool
		errorField  string
	}{
		{
			name: "valid production secrets",
			cfg: &Config{
				App: AppConfig{Environment: "production"},
				Database: DatabaseConfig{
					Password: "MyStr0ng_Phr@se!x",
				},
				Redis: RedisConfig{
					Password: "RedisStr0ng_Phr@se!",
				},
				Binance: BinanceConfig{
					APIKey:    "bI9nX4pQ2vL7mR5wK8zF3g",
					SecretKey: "sK9tY4qP2hL7nR5wJ8zC3m",
				},
			},
			expectError: false,
		},
		{
			name: "weak database password",
			cfg: &Config{
				App: AppConfig{Environment: "production"},
				Database: DatabaseConfig{
					Password: "weak",
				},
			},
			expectError: true,
			errorField:  "database.password",
		},
		{
			name: "placeholder database password",
			cfg: &Config{
				App: AppConfig{Environment: "production"},
				Database: DatabaseConfig{
					Password: "changeme",
				},
			},
			expectError: true,
			errorField:  "database.password",
		},
		{
			name: "weak redis password",
			cfg: &Config{
				App: AppConfig{Environment: "production"},
				Database: DatabaseConfig{
					Password: "MyStr0ng_Phr@se!x",
				},
				Redis: RedisConfig{
					Password: "123456",
				},
			},
			expectError: true,
			errorField:  "redis.password",
		},
		{
			name: "placeholder binance key",
			cfg: &Config{
				App: AppConfig{Environment: "production"},
				Database: DatabaseConfig{
					Password: "MyStr0ng_Phr@se!x",
				},
				Binance: BinanceConfig{
					APIKey:    "test",
					SecretKey: "sK9tY4qP2hL7nR5wJ8zC3m",
				},
			},
			expectError: true,
			errorField:  "binance.api_key",
		},
		{
			name: "placeholder telegram token",
			cfg: &Config{
				App: AppConfig{Environment: "production"},
				Database: DatabaseConfig{
					Password: "MyStr0ng_Phr@se!x",
				},
				Alerts: AlertsConfig{
					TelegramToken: "demo",
				},
			},
			expectError: true,
			errorField:  "alerts.telegram_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := ValidateProductionSecrets(tt.cfg)
			if tt.expectError {
				assert.NotEmpty(t, errors)
				found := false
				for _, err := range errors {
					if err.Field == tt.errorField {
						found = true
						break
					}
				}
				assert.True(t, found, "Expected error for field %s", tt.errorField)
			} else {
				assert.Empty(t, errors)
			}
		})
	}
}

func TestHasSequentialChars(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"abc", true},
		{"123", true},
		{"xyz", true},
		{"789", true},
		{"ABC", true},
		{"a1b2c3", false},
		{"korv", false},
		{"135", false},
		{"ba", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, hasSequentialChars(tt.input))
		})
	}
}

func TestHasRepeatedChars(t *testing.T) {
	tests := []struct {
		input    string
		n        int
		expected bool
	}{
		{"aaa", 3, true},
		{"aabaa", 3, false},
		{"xaaax", 3, true},
		{"111", 3, true},
		{"ababab", 3, false},
		{"ab", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, hasRepeatedChars(tt.input, tt.n))
		})
	}
}

func TestGetSecretStrengthDescription(t *testing.T) {
	assert.Equal(t, "Weak", GetSecretStrengthDescription(SecretStrengthWeak))
	assert.Equal(t, "Medium", GetSecretStrengthDescription(SecretStrengthMedium))
	assert.Equal(t, "Strong", GetSecretStrengthDescription(SecretStrengthStrong))
	assert.Equal(t, "Unknown", GetSecretStrengthDescription(SecretStrength(99)))
}

func TestGetVaultConfigFromEnv(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		t.Setenv("VAULT_ENABLED", "")
		cfg := GetVaultConfigFromEnv()
		assert.False(t, cfg.Enabled)
	})

	t.Run("enabled with defaults", func(t *testing.T) {
		t.Setenv("VAULT_ENABLED", "true")
		t.Setenv("VAULT_ADDR", "")
		t.Setenv("VAULT_TOKEN", "")
		t.Setenv("VAULT_AUTH_METHOD", "")
		t.Setenv("VAULT_MOUNT_PATH", "")
		t.Setenv("VAULT_SECRET_PATH", "")

		cfg := GetVaultConfigFromEnv()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "http://localhost:8200", cfg.Address)
		assert.Equal(t, "token", cfg.AuthMethod)
		assert.Equal(t, "secret", cfg.MountPath)
		assert.Equal(t, "riskd/production", cfg.SecretPath)
	})

	t.Run("explicit values win", func(t *testing.T) {
		t.Setenv("VAULT_ENABLED", "true")
		t.Setenv("VAULT_ADDR", "https://vault.internal:8200")
		t.Setenv("VAULT_AUTH_METHOD", "kubernetes")
		t.Setenv("VAULT_SECRET_PATH", "riskd/staging")

		cfg := GetVaultConfigFromEnv()
		assert.Equal(t, "https://vault.internal:8200", cfg.Address)
		assert.Equal(t, "kubernetes", cfg.AuthMethod)
		assert.Equal(t, "riskd/staging", cfg.SecretPath)
	})
}

func TestNewVaultClientDisabled(t *testing.T) {
	_, err := NewVaultClient(VaultConfig{Enabled: false})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")
}
