// Package config provides configuration management for riskd.
// This file centralizes all port constants to avoid duplication and ensure consistency.
package config

// Port Allocation Strategy:
//   8080-8099: API servers and web services
//   8200-8299: Infrastructure services (Vault, etc.)
//   9100-9199: Prometheus metrics endpoints

// API and Web Service Ports
const (
	// APIServerPort is the port for the main REST API server.
	APIServerPort = 8080

	// WebSocketPort is the port for WebSocket connections (uses same as API).
	WebSocketPort = APIServerPort
)

// Infrastructure Service Ports
const (
	// VaultPort is the default port for HashiCorp Vault.
	VaultPort = 8200

	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222
)

// Monitoring Service Ports
const (
	// MetricsPort is the port where riskd exposes Prometheus metrics.
	MetricsPort = 9100
)
