package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/alerts"
	"github.com/quantfolio/riskd/internal/api"
	"github.com/quantfolio/riskd/internal/config"
	"github.com/quantfolio/riskd/internal/db"
	"github.com/quantfolio/riskd/internal/events"
	"github.com/quantfolio/riskd/internal/marketdata"
	"github.com/quantfolio/riskd/internal/metrics"
	"github.com/quantfolio/riskd/internal/notifications"
	"github.com/quantfolio/riskd/internal/risk"
	"github.com/quantfolio/riskd/internal/scenarios"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logFormat := "json"
	if cfg.App.Environment == "development" {
		logFormat = "console"
	}
	config.InitLogger(cfg.App.LogLevel, logFormat)

	log.Info().
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting riskd API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if vaultCfg := config.GetVaultConfigFromEnv(); vaultCfg.Enabled {
		if err := config.LoadSecretsFromVault(ctx, cfg, vaultCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to load secrets from Vault")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Database (optional: inline-price reports work without it)
	database, err := db.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Warn().Err(err).Msg("Database unavailable, continuing without stored history")
		database = nil
	}
	defer func() {
		if database != nil {
			database.Close()
		}
	}()

	// Redis price cache (optional)
	var redisMetrics *metrics.RedisMetrics
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, provider responses will not be cached")
		redisClient.Close()
	} else {
		redisMetrics = metrics.NewRedisMetrics(redisClient)
		defer redisClient.Close()
	}
	pingCancel()

	// Event bus (optional)
	var publisher events.Publisher = events.NopPublisher{}
	bus, err := events.Connect(events.BusConfig{
		URL:    cfg.NATS.URL,
		Prefix: cfg.NATS.SubjectPrefix,
	})
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, report events disabled")
	} else {
		publisher = bus
		defer bus.Close()
	}

	// Provider chain: Binance, optionally behind the Redis cache
	var provider marketdata.Provider = marketdata.NewBinanceProvider(marketdata.BinanceConfig{
		APIKey:            cfg.Binance.APIKey,
		SecretKey:         cfg.Binance.SecretKey,
		Quote:             cfg.Binance.Quote,
		RequestsPerSecond: float64(cfg.Binance.RequestsPerSecond),
		Burst:             cfg.Binance.Burst,
		Testnet:           cfg.Binance.Testnet,
	})
	if redisMetrics != nil {
		provider = marketdata.NewCachedProvider(provider, redisMetrics, cfg.Redis.GetCacheTTL())
	}

	// Price source and sync need the store
	var priceSource api.PriceSource
	var store api.AssetStore
	var syncService *marketdata.SyncService
	if database != nil {
		store = database
		priceSource = marketdata.NewSource(database, provider, marketdata.NewBreakerManager())

		if cfg.Sync.Enabled {
			syncService = marketdata.NewSyncService(provider, database, cfg.Sync.Tickers, cfg.Sync.GetInterval())
			go func() {
				if err := syncService.Start(ctx); err != nil {
					log.Error().Err(err).Msg("Price sync service stopped")
				}
			}()
			defer syncService.Stop()
		}
	}

	// Metrics endpoint and database gauges
	if cfg.Monitoring.EnableMetrics {
		metricsServer := metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to stop metrics server")
			}
		}()

		if database != nil {
			updater := metrics.NewUpdater(database.PgxPool(), time.Minute)
			go updater.Start(ctx)
			defer updater.Stop()
		}
	}

	// Push notifications (needs the database for the device registry)
	var deviceRegistry api.DeviceRegistry
	var pushService *notifications.Service
	if cfg.Notifications.Enabled && database != nil {
		credentials := cfg.Notifications.CredentialsFile
		if cfg.Notifications.MockMode {
			credentials = ""
		}
		backend, err := notifications.NewFCMBackend(ctx, credentials)
		if err != nil {
			log.Warn().Err(err).Msg("FCM backend unavailable, push notifications disabled")
		} else {
			pushService = notifications.NewService(database.PgxPool(), backend)
			deviceRegistry = pushService
			defer pushService.Close()
		}
	}

	// WebSocket hub bridging report events and alerts to dashboards
	hub := NewHub()
	go hub.Run()

	// Alert channels
	var alertManager *alerts.Manager
	alertRules := alerts.DefaultRuleConfig()
	if cfg.Alerts.Enabled {
		alerters := []alerts.Alerter{alerts.NewLogAlerter(), NewHubAlerter(hub)}

		if cfg.Alerts.TelegramToken != "" {
			telegram, err := alerts.NewTelegramAlerter(cfg.Alerts.TelegramToken, []int64{cfg.Alerts.TelegramChatID})
			if err != nil {
				log.Warn().Err(err).Msg("Telegram alerter unavailable")
			} else {
				alerters = append(alerters, telegram)
			}
		}

		if pushService != nil {
			alerters = append(alerters, notifications.NewPushAlerter(pushService))
		}

		alertManager = alerts.NewManager(alerters...).
			WithMinSeverity(alerts.ParseSeverity(cfg.Alerts.MinSeverity)).
			WithThrottle(cfg.Alerts.GetThrottle())

		alertRules = alerts.RuleConfig{
			VaRCapitalFraction: cfg.Alerts.VaRCapitalFraction,
			StressLossFraction: cfg.Alerts.StressLossFraction,
		}
	}

	// Risk engine
	engineConfig := risk.DefaultConfig()
	engineConfig.DefaultConfidence = cfg.Risk.Confidence
	engine := risk.NewEngine(engineConfig)

	// Scenario catalog: built-in ladder unless a file is configured
	catalog := scenarios.Default()
	if cfg.Risk.ScenarioFile != "" {
		imported, err := scenarios.ImportFromFile(cfg.Risk.ScenarioFile, scenarios.DefaultImportOptions())
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Risk.ScenarioFile).Msg("Failed to load scenario catalog")
		}
		catalog = imported
		log.Info().
			Str("name", catalog.Metadata.Name).
			Int("scenarios", len(catalog.Scenarios)).
			Msg("Loaded scenario catalog")
	}

	// Rate limiting
	rateLimiter := NewRateLimiterMiddleware(DefaultRateLimiterConfig())
	rateLimiter.StartCleanupWorker(5 * time.Minute)

	server := api.NewServer(api.Config{
		Host:         cfg.API.Host,
		Port:         cfg.API.Port,
		Engine:       engine,
		Prices:       priceSource,
		Store:        store,
		Catalog:      catalog,
		Events:       publisher,
		Alerts:       alertManager,
		AlertRules:   alertRules,
		Devices:      deviceRegistry,
		LookbackDays: cfg.Risk.HistoryDays,
		Middleware: []gin.HandlerFunc{
			rateLimiter.GlobalMiddleware(),
			rateLimiter.ComputeMiddleware(),
		},
	})

	server.Router().GET("/ws", func(c *gin.Context) {
		serveWs(hub, c.Writer, c.Request)
	})

	if bus != nil {
		if _, err := bus.SubscribeReportCompleted(func(event *events.ReportEvent) {
			if err := hub.Broadcast(MessageTypeReportCompleted, event); err != nil {
				log.Warn().Err(err).Msg("Failed to broadcast report event")
			}
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to subscribe to report events")
		}
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}

	log.Info().Msg("Server stopped successfully")
}
