package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/services/alerts"
	"firesmoke-api/internal/services/batch"
	"firesmoke-api/internal/services/detection"
	"firesmoke-api/internal/services/frames"
	"firesmoke-api/internal/services/inference"
	"firesmoke-api/internal/services/messaging"
	"firesmoke-api/internal/services/video"
	"firesmoke-api/internal/services/weather"
	"firesmoke-api/internal/storage/sqlite"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config       *config.Config
	Store        *sqlite.Store
	Inference    *inference.Client
	Weather      *weather.Client
	Adjuster     *weather.Adjuster
	DetectionSvc *detection.Service
	BatchSvc     *batch.Detector
	VideoSvc     *video.Pipeline
	Dispatcher   *alerts.Dispatcher
	Messaging    *messaging.Service // nil when NATS is disabled or unreachable
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")

	sc := &ServiceContainer{
		Config:    cfg,
		Store:     store,
		Inference: inference.NewClient(cfg),
		Weather:   weather.NewClient(cfg),
		Adjuster:  weather.NewAdjuster(cfg),
	}

	// NATS is optional; alerts still go out over the direct channels without it
	var publisher models.MessagePublisher
	if cfg.NatsEnabled {
		msgSvc, err := messaging.NewService(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, alert events will not be published")
		} else {
			sc.Messaging = msgSvc
			publisher = msgSvc
		}
	}

	sc.Dispatcher = alerts.NewDispatcher(cfg, publisher)
	sc.BatchSvc = batch.NewDetector(cfg, sc.Inference)
	sc.VideoSvc = video.NewPipeline(cfg, frames.NewSampler(cfg), sc.BatchSvc)
	sc.DetectionSvc = detection.NewService(cfg, detection.Dependencies{
		Inference:  sc.Inference,
		Weather:    sc.Weather,
		Adjuster:   sc.Adjuster,
		Recorder:   store.Detections,
		Webhooks:   store.Webhooks,
		Settings:   store.AlertSettings,
		Dispatcher: sc.Dispatcher,
	})

	return sc, nil
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down messaging")
		}
	}

	if sc.Store != nil {
		if err := sc.Store.Close(); err != nil {
			return err
		}
	}

	return nil
}
