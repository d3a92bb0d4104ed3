package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"firesmoke-api/internal/api/handlers"
)

// ServiceName is the gRPC health service name reported for the API
const ServiceName = "firesmoke.api"

// HealthServer exposes the standard gRPC health protocol for orchestrators.
// Status follows the database ping.
type HealthServer struct {
	port       int
	db         handlers.Pinger
	interval   time.Duration
	health     *health.Server
	grpcServer *grpc.Server
	listener   net.Listener
	cancel     context.CancelFunc
}

// NewHealthServer creates a health server on port
func NewHealthServer(port int, db handlers.Pinger) *HealthServer {
	return &HealthServer{
		port:     port,
		db:       db,
		interval: 15 * time.Second,
		health:   health.NewServer(),
	}
}

// Start listens and serves in the background
func (s *HealthServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.update()

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			log.Error().Err(err).Msg("gRPC health server error")
		}
	}()

	ctx, s.cancel = context.WithCancel(ctx)
	go s.monitor(ctx)

	log.Info().Int("port", s.port).Msg("gRPC health server started")
	return nil
}

func (s *HealthServer) update() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			log.Warn().Err(err).Msg("Database ping failed, reporting NOT_SERVING")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *HealthServer) monitor(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.update()
		}
	}
}

// Stop reports NOT_SERVING and stops gracefully unless ctx expires first
func (s *HealthServer) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.health.Shutdown()

	if s.grpcServer == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info().Msg("gRPC health server stopped gracefully")
	case <-ctx.Done():
		s.grpcServer.Stop()
		log.Warn().Msg("gRPC health server force stopped")
	}
}
