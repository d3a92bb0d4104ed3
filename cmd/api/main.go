package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/api"
	"firesmoke-api/internal/config"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/services"
)

// @title Fire & Smoke Detection API
// @version 1.0.0
// @description Fire and smoke detection over images, image batches and video, with weather-aware confidence adjustment and multi-channel alerting
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @securityDefinitions.basic BasicAuth
func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = log.Output(console)

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogdyEnabled {
		logdyWriter, url, err := logging.StartLogdy(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to start Logdy, continuing with console logging")
		} else {
			log.Logger = log.Output(zerolog.MultiLevelWriter(console, logdyWriter))
			log.Info().Str("url", url).Msg("Logs mirrored to Logdy")
		}
	}

	cfg.Validate()

	log.Info().
		Str("instance_id", cfg.InstanceID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("model", cfg.DefaultModelID).
		Int("max_workers", cfg.MaxWorkers).
		Bool("nats_enabled", cfg.NatsEnabled).
		Msg("Starting Fire & Smoke Detection API")

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	server := api.NewServer(cfg, container)
	if err := server.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var healthServer *api.HealthServer
	if cfg.GRPCHealthPort > 0 {
		healthServer = api.NewHealthServer(cfg.GRPCHealthPort, container.Store.DB)
		if err := healthServer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to start gRPC health server")
			healthServer = nil
		}
	}

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if healthServer != nil {
		healthServer.Stop(shutdownCtx)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down services")
	} else {
		log.Info().Msg("Server shutdown complete")
	}
}
