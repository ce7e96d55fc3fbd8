// Package api exposes the risk engine over HTTP: report and stress
// computation, the scenario catalog, the asset registry with price
// history, and device registration for push alerts.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/alerts"
	"github.com/quantfolio/riskd/internal/db"
	"github.com/quantfolio/riskd/internal/events"
	"github.com/quantfolio/riskd/internal/metrics"
	"github.com/quantfolio/riskd/internal/notifications"
	"github.com/quantfolio/riskd/internal/risk"
	"github.com/quantfolio/riskd/internal/scenarios"
)

// PriceSource resolves price history for report requests. Satisfied by
// *marketdata.Source.
type PriceSource interface {
	History(ctx context.Context, ticker string, days int) ([]risk.PricePoint, error)
	FetchBasket(ctx context.Context, tickers []string, days int) (map[string][]risk.PricePoint, error)
}

// AssetStore is the slice of the database the API reads directly.
// Satisfied by *db.DB.
type AssetStore interface {
	ListAssets(ctx context.Context) ([]db.Asset, error)
	DailyCloses(ctx context.Context, ticker string, limit int) ([]risk.PricePoint, error)
	Stats(ctx context.Context, ticker string) (*db.PriceStats, error)
	Health(ctx context.Context) error
}

// DeviceRegistry manages push-notification device tokens. Satisfied by
// *notifications.Service.
type DeviceRegistry interface {
	RegisterDevice(ctx context.Context, deviceToken string, platform notifications.Platform, label string) error
	UnregisterDevice(ctx context.Context, deviceToken string) error
	ListDevices(ctx context.Context) ([]notifications.Device, error)
}

// Server represents the REST API server
type Server struct {
	router   *gin.Engine
	engine   *risk.Engine
	prices   PriceSource
	store    AssetStore
	catalog  *scenarios.Catalog
	events   events.Publisher
	alerts   *alerts.Manager
	rules    alerts.RuleConfig
	devices  DeviceRegistry
	lookback int
	addr     string
	server   *http.Server
}

// Config contains server configuration. Engine, Catalog and Events fall
// back to defaults when unset; Prices, Store, Alerts and Devices are
// optional and their endpoints degrade when absent.
type Config struct {
	Host         string
	Port         int
	Engine       *risk.Engine
	Prices       PriceSource
	Store        AssetStore
	Catalog      *scenarios.Catalog
	Events       events.Publisher
	Alerts       *alerts.Manager
	AlertRules   alerts.RuleConfig
	Devices      DeviceRegistry
	LookbackDays int
	// Middleware runs after the built-in middleware, before route
	// registration.
	Middleware []gin.HandlerFunc
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // TODO: Configure allowed origins
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	for _, mw := range config.Middleware {
		router.Use(mw)
	}

	engine := config.Engine
	if engine == nil {
		engine = risk.NewEngine(risk.DefaultConfig())
	}

	catalog := config.Catalog
	if catalog == nil {
		catalog = scenarios.Default()
	}

	publisher := config.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	lookback := config.LookbackDays
	if lookback <= 0 {
		lookback = 252
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	server := &Server{
		router:   router,
		engine:   engine,
		prices:   config.Prices,
		store:    config.Store,
		catalog:  catalog,
		events:   publisher,
		alerts:   config.Alerts,
		rules:    config.AlertRules,
		devices:  config.Devices,
		lookback: lookback,
		addr:     addr,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Router returns the underlying gin engine so callers can mount extra
// handlers, the WebSocket endpoint among them.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// RequestIDMiddleware tags every request with an ID, honoring one the
// client already supplied.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()
	}
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Log request
		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		logEvent := log.Info().
			Str("method", method).
			Str("path", path).
			Str("query", query).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", clientIP).
			Str("request_id", c.GetString("request_id"))

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
