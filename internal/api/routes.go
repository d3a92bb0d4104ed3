package api

import (
	"firesmoke-api/internal/api/middleware"
)

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.ServiceInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)
	s.router.GET("/system/stats", s.systemHandler.GetStats)

	optionalKey := middleware.OptionalAPIKey(s.deps.Keys)
	requireKey := middleware.RequireAPIKey(s.deps.Keys)

	// Legacy path kept for existing webcam clients
	s.router.POST("/roboflow/detect", middleware.RateLimit(s.detectLimiter), optionalKey, s.detectHandler.Detect)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/detect", middleware.RateLimit(s.detectLimiter), optionalKey, s.detectHandler.Detect)
		v1.POST("/detect/batch", middleware.RateLimit(s.batchLimiter), optionalKey, s.detectHandler.DetectBatch)
		v1.POST("/detect/video", middleware.RateLimit(s.videoLimiter), optionalKey, s.videoHandler.DetectVideo)

		auth := v1.Group("/auth")
		{
			auth.POST("/register", s.authHandler.Register)
			auth.POST("/login", s.authHandler.Login)
		}

		keys := v1.Group("/keys", middleware.RequireUser(s.deps.Keys, s.deps.Users))
		{
			keys.GET("", s.authHandler.ListKeys)
			keys.POST("", s.authHandler.CreateKey)
		}

		authed := v1.Group("", requireKey)
		{
			authed.GET("/history", s.historyHandler.GetHistory)
			authed.GET("/analytics", s.historyHandler.GetAnalytics)

			authed.GET("/webhooks", s.webhookHandler.ListWebhooks)
			authed.POST("/webhooks", s.webhookHandler.CreateWebhook)
			authed.DELETE("/webhooks/:id", s.webhookHandler.DeleteWebhook)

			authed.GET("/alerts/settings", s.settingsHandler.GetSettings)
			authed.PUT("/alerts/settings", s.settingsHandler.UpdateSettings)
		}
	}
}
