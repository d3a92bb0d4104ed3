package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/config"
)

// NewServiceLogger returns the global logger tagged with the instance and service name
func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("instance_id", cfg.InstanceID).Str("service", service).Logger()
}

// WithBatch tags a logger with a batch or video job identifier
func WithBatch(base zerolog.Logger, batchID string) zerolog.Logger {
	return base.With().Str("batch_id", batchID).Logger()
}
