package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// handleListAssets returns the asset registry with stored-history
// coverage per ticker.
func (s *Server) handleListAssets(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "database not available",
		})
		return
	}

	assets, err := s.store.ListAssets(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list assets")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to retrieve assets",
		})
		return
	}

	out := make([]gin.H, 0, len(assets))
	for _, asset := range assets {
		entry := gin.H{
			"ticker":     asset.Ticker,
			"name":       asset.Name,
			"weight":     asset.Weight,
			"created_at": asset.CreatedAt,
			"updated_at": asset.UpdatedAt,
		}
		if stats, err := s.store.Stats(c.Request.Context(), asset.Ticker); err == nil {
			entry["history"] = stats
		} else {
			log.Warn().Err(err).Str("ticker", asset.Ticker).Msg("Failed to load price stats")
		}
		out = append(out, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"assets": out,
		"total":  len(out),
	})
}

// handleGetPrices returns stored daily closes for one ticker.
func (s *Server) handleGetPrices(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "database not available",
		})
		return
	}

	ticker := strings.ToUpper(c.Param("ticker"))

	daysStr := c.DefaultQuery("days", "252")
	days, err := strconv.Atoi(daysStr)
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "days must be a positive integer",
		})
		return
	}

	points, err := s.store.DailyCloses(c.Request.Context(), ticker, days)
	if err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("Failed to load price history")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to retrieve prices",
		})
		return
	}

	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("no price history for %s", ticker),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker": ticker,
		"points": points,
		"total":  len(points),
	})
}
