package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/models"
)

// Header names set on every alert message
const (
	HeaderInstanceID  = "Instance-Id"
	HeaderContentType = "Content-Type"
)

// Service publishes alert events to NATS for downstream consumers
type Service struct {
	conn       *nats.Conn
	instanceID string
}

// NewService connects to NATS. Reconnects are handled by the client library.
func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name("firesmoke-api-" + cfg.InstanceID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NatsURL, err)
	}

	log.Info().Str("url", cfg.NatsURL).Str("subject", cfg.AlertsSubject).Msg("NATS connection established")

	return &Service{conn: conn, instanceID: cfg.InstanceID}, nil
}

// NewMessage builds the NATS message for data. Alert events carry their id
// in the Nats-Msg-Id header so a JetStream consumer can drop duplicates.
func NewMessage(subject, instanceID string, data interface{}) (*nats.Msg, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(HeaderContentType, "application/json")
	if instanceID != "" {
		msg.Header.Set(HeaderInstanceID, instanceID)
	}

	switch event := data.(type) {
	case models.AlertEvent:
		msg.Header.Set(nats.MsgIdHdr, event.ID)
	case *models.AlertEvent:
		if event != nil {
			msg.Header.Set(nats.MsgIdHdr, event.ID)
		}
	}
	return msg, nil
}

// Publish sends data as JSON on subject
func (s *Service) Publish(subject string, data interface{}) error {
	if s.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}
	msg, err := NewMessage(subject, s.instanceID, data)
	if err != nil {
		return err
	}
	return s.conn.PublishMsg(msg)
}

// IsConnected reports whether the connection is currently up
func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Shutdown drains pending publishes, closing immediately if draining fails
func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
		s.conn.Close()
	}
	return nil
}
