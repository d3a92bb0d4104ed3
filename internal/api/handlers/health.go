package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/config"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping() error
}

// ConnectionChecker reports whether a client connection is up
type ConnectionChecker interface {
	IsConnected() bool
}

type HealthHandler struct {
	cfg  *config.Config
	db   Pinger
	nats ConnectionChecker // nil when NATS is disabled
}

func NewHealthHandler(cfg *config.Config, db Pinger, nats ConnectionChecker) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, nats: nats}
}

type HealthResponse struct {
	Status            string          `json:"status" example:"healthy"`
	Version           string          `json:"version" example:"1.0.0"`
	InstanceID        string          `json:"instance_id" example:"firesmoke-1"`
	Features          []string        `json:"features"`
	APIKeysConfigured map[string]bool `json:"api_keys_configured"`
	Database          string          `json:"database" example:"ok"`
	EventBus          string          `json:"event_bus" example:"disabled"`
}

type ServiceInfoResponse struct {
	Name       string            `json:"name" example:"Fire & Smoke Detection API"`
	Version    string            `json:"version" example:"1.0.0"`
	InstanceID string            `json:"instance_id" example:"firesmoke-1"`
	Docs       string            `json:"docs" example:"/docs/index.html"`
	Endpoints  map[string]string `json:"endpoints"`
}

var features = []string{
	"single_detection",
	"batch_processing",
	"video_detection",
	"weather_context",
	"webhooks",
	"email_alerts",
	"sms_alerts",
	"detection_history",
	"api_authentication",
	"analytics",
}

// @Summary Health check
// @Description Report service health and which integrations are configured
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:     "healthy",
		Version:    h.cfg.Version,
		InstanceID: h.cfg.InstanceID,
		Features:   features,
		APIKeysConfigured: map[string]bool{
			"roboflow":    h.cfg.InferenceAPIKey != "",
			"openweather": h.cfg.WeatherAPIKey != "",
			"sendgrid":    h.cfg.SendGridAPIKey != "",
			"twilio":      h.cfg.TwilioAccountSID != "" && h.cfg.TwilioAuthToken != "",
		},
		Database: "ok",
		EventBus: "disabled",
	}

	status := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			resp.Status = "degraded"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	if h.nats != nil {
		resp.EventBus = "connected"
		if !h.nats.IsConnected() {
			resp.EventBus = "disconnected"
		}
	}

	c.JSON(status, resp)
}

// @Summary Service information
// @Description Basic service information and entry points
// @Tags health
// @Produce json
// @Success 200 {object} ServiceInfoResponse
// @Router / [get]
func (h *HealthHandler) ServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, ServiceInfoResponse{
		Name:       "Fire & Smoke Detection API",
		Version:    h.cfg.Version,
		InstanceID: h.cfg.InstanceID,
		Docs:       "/docs/index.html",
		Endpoints: map[string]string{
			"health":    "/health",
			"detect":    "/api/v1/detect",
			"batch":     "/api/v1/detect/batch",
			"video":     "/api/v1/detect/video",
			"history":   "/api/v1/history",
			"analytics": "/api/v1/analytics",
			"webhooks":  "/api/v1/webhooks",
			"settings":  "/api/v1/alerts/settings",
			"keys":      "/api/v1/keys",
		},
	})
}
