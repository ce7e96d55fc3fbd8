package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/notifications"
)

// RegisterDeviceRequest is the body of POST /api/v1/devices.
type RegisterDeviceRequest struct {
	DeviceToken string `json:"device_token" binding:"required"`
	Platform    string `json:"platform" binding:"required"`
	Label       string `json:"label"`
}

func (s *Server) handleRegisterDevice(c *gin.Context) {
	if s.devices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "device registry not configured",
		})
		return
	}

	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	if !notifications.ValidateToken(req.DeviceToken) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid device token",
		})
		return
	}

	platform := notifications.Platform(strings.ToLower(req.Platform))
	if !notifications.ValidPlatform(platform) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "platform must be ios, android or web",
		})
		return
	}

	if err := s.devices.RegisterDevice(c.Request.Context(), req.DeviceToken, platform, req.Label); err != nil {
		log.Error().Err(err).Msg("Failed to register device")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to register device",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":   "registered",
		"platform": platform,
	})
}

func (s *Server) handleUnregisterDevice(c *gin.Context) {
	if s.devices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "device registry not configured",
		})
		return
	}

	token := c.Param("token")

	if err := s.devices.UnregisterDevice(c.Request.Context(), token); err != nil {
		if errors.Is(err, notifications.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "device not found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to unregister device")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to unregister device",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "unregistered",
	})
}

func (s *Server) handleListDevices(c *gin.Context) {
	if s.devices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "device registry not configured",
		})
		return
	}

	devices, err := s.devices.ListDevices(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list devices")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to retrieve devices",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"total":   len(devices),
	})
}
