package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/api/handlers"
	"firesmoke-api/internal/api/middleware"
	"firesmoke-api/internal/config"
	"firesmoke-api/internal/services"
)

// KeyStore issues, lists and verifies API keys
type KeyStore interface {
	handlers.KeyStore
	middleware.KeyVerifier
}

// Dependencies are the services behind the HTTP API
type Dependencies struct {
	DB       handlers.Pinger
	Events   handlers.ConnectionChecker // nil when NATS is disabled
	Detector handlers.Detector
	Batch    handlers.BatchRunner
	Video    handlers.VideoRunner
	History  handlers.HistoryStore
	Webhooks handlers.WebhookStore
	Users    handlers.UserStore
	Keys     KeyStore
	Settings handlers.SettingsStore
}

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server
	deps   Dependencies

	detectLimiter *middleware.RateLimiter
	batchLimiter  *middleware.RateLimiter
	videoLimiter  *middleware.RateLimiter

	healthHandler   *handlers.HealthHandler
	systemHandler   *handlers.SystemHandler
	detectHandler   *handlers.DetectHandler
	videoHandler    *handlers.VideoHandler
	historyHandler  *handlers.HistoryHandler
	webhookHandler  *handlers.WebhookHandler
	authHandler     *handlers.AuthHandler
	settingsHandler *handlers.SettingsHandler
}

// NewServer wires the API to the service container
func NewServer(cfg *config.Config, sc *services.ServiceContainer) *Server {
	deps := Dependencies{
		DB:       sc.Store.DB,
		Detector: sc.DetectionSvc,
		Batch:    sc.BatchSvc,
		Video:    sc.VideoSvc,
		History:  sc.Store.Detections,
		Webhooks: sc.Store.Webhooks,
		Users:    sc.Store.Users,
		Keys:     sc.Store.APIKeys,
		Settings: sc.Store.AlertSettings,
	}
	if sc.Messaging != nil {
		deps.Events = sc.Messaging
	}
	return NewServerWithDependencies(cfg, deps)
}

// NewServerWithDependencies creates a server over explicit dependencies
func NewServerWithDependencies(cfg *config.Config, deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		config:          cfg,
		router:          router,
		deps:            deps,
		detectLimiter:   middleware.NewRateLimiter(cfg.DetectRateLimit),
		batchLimiter:    middleware.NewRateLimiter(cfg.BatchRateLimit),
		videoLimiter:    middleware.NewRateLimiter(cfg.VideoRateLimit),
		healthHandler:   handlers.NewHealthHandler(cfg, deps.DB, deps.Events),
		systemHandler:   handlers.NewSystemHandler(cfg.InstanceID),
		detectHandler:   handlers.NewDetectHandler(cfg, deps.Detector, deps.Batch),
		videoHandler:    handlers.NewVideoHandler(cfg, deps.Video),
		historyHandler:  handlers.NewHistoryHandler(deps.History),
		webhookHandler:  handlers.NewWebhookHandler(deps.Webhooks),
		authHandler:     handlers.NewAuthHandler(deps.Users, deps.Keys),
		settingsHandler: handlers.NewSettingsHandler(deps.Settings, cfg.DefaultMinConfidence),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

// Router exposes the engine for in-process requests
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting Fire & Smoke Detection API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping Fire & Smoke Detection API")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
