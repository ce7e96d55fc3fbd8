package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Root handler
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "riskd API",
		"version": "1.0.0",
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

// handleGetStatus returns comprehensive system status
func (s *Server) handleGetStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Check database connection
	dbStatus := "healthy"
	if s.store != nil {
		if err := s.store.Health(c.Request.Context()); err != nil {
			dbStatus = "unhealthy"
			log.Warn().Err(err).Msg("Database health check failed")
		}
	} else {
		dbStatus = "not_configured"
	}

	// Determine overall system status
	systemStatus := "healthy"
	if dbStatus == "unhealthy" {
		systemStatus = "degraded"
	}

	status := gin.H{
		"status":    systemStatus,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startTime).Seconds(),
		"version":   "1.0.0",
		"components": gin.H{
			"database": gin.H{
				"status": dbStatus,
			},
			"event_bus": s.events.Stats(),
			"scenario_catalog": gin.H{
				"name":           s.catalog.Metadata.Name,
				"schema_version": s.catalog.Metadata.SchemaVersion,
				"scenarios":      len(s.catalog.Scenarios),
			},
			"price_source": gin.H{
				"status": configuredStatus(s.prices != nil),
			},
			"alerting": gin.H{
				"status": configuredStatus(s.alerts != nil),
			},
			"device_registry": gin.H{
				"status": configuredStatus(s.devices != nil),
			},
		},
		"system": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":       toMB(memStats.Alloc),
				"total_alloc_mb": toMB(memStats.TotalAlloc),
				"sys_mb":         toMB(memStats.Sys),
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		},
	}

	c.JSON(http.StatusOK, status)
}

// handleGetHealth returns a simple health check (for load balancers)
func (s *Server) handleGetHealth(c *gin.Context) {
	// Quick health check - just verify database connectivity
	if s.store != nil {
		if err := s.store.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// Utility functions

var startTime = time.Now()

func toMB(bytes uint64) uint64 {
	return bytes / 1024 / 1024
}

func configuredStatus(configured bool) string {
	if configured {
		return "configured"
	}
	return "not_configured"
}
