package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"firesmoke-api/docs"
)

func (s *Server) setupSwagger() {
	docs.SwaggerInfo.Host = s.config.SwaggerHost
	docs.SwaggerInfo.Version = s.config.Version

	s.router.GET("/api/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"title":       docs.SwaggerInfo.Title,
			"version":     s.config.Version,
			"description": docs.SwaggerInfo.Description,
			"swagger_ui":  "/docs/index.html",
			"endpoints": gin.H{
				"health":    "/health",
				"detect":    "/api/v1/detect",
				"batch":     "/api/v1/detect/batch",
				"video":     "/api/v1/detect/video",
				"history":   "/api/v1/history",
				"analytics": "/api/v1/analytics",
				"webhooks":  "/api/v1/webhooks",
				"auth":      "/api/v1/auth",
				"keys":      "/api/v1/keys",
				"settings":  "/api/v1/alerts/settings",
			},
			"instance_id": s.config.InstanceID,
			"port":        s.config.Port,
		})
	})

	s.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})
}
