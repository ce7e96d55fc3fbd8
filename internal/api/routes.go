package api

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// API v1 group
	v1 := s.router.Group("/api/v1")
	{
		// Status endpoint
		v1.GET("/status", s.handleGetStatus)

		// Risk endpoints
		riskGroup := v1.Group("/risk")
		{
			riskGroup.POST("/report", s.handleComputeReport)
			riskGroup.POST("/stress", s.handleStressTest)
			riskGroup.GET("/scenarios", s.handleListScenarios)
		}

		// Asset registry endpoints
		assets := v1.Group("/assets")
		{
			assets.GET("", s.handleListAssets)
			assets.GET("/:ticker/prices", s.handleGetPrices)
		}

		// Device registry endpoints
		devices := v1.Group("/devices")
		{
			devices.GET("", s.handleListDevices)
			devices.POST("", s.handleRegisterDevice)
			devices.DELETE("/:token", s.handleUnregisterDevice)
		}
	}

	// Liveness endpoint (for load balancers)
	s.router.GET("/health", s.handleGetHealth)

	// Root endpoint
	s.router.GET("/", s.handleRoot)
}
