// Package grpcsvc hosts the engine-to-engine liveness surface: the standard
// gRPC health service, answering SERVING while the store is reachable and
// this engine's own heartbeat row is fresh. Peers and load balancers probe
// it instead of scraping the health_registry table directly.
package grpcsvc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/clustermgr/engine/internal/models"
)

// HeartbeatReader is the slice of store.HealthRegistryStore the probe needs.
type HeartbeatReader interface {
	GetHeartbeat(ctx context.Context, engineID string) (*models.HealthRegistry, error)
}

// Server wraps a grpc.Server carrying the health service.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	store    HeartbeatReader
	engineID string
	interval time.Duration
	log      *slog.Logger

	stopCh chan struct{}
}

// New builds the liveness server. interval is the engine heartbeat interval;
// the probe degrades to NOT_SERVING when this engine's own row goes stale,
// which is exactly the condition under which peers may steal its locks.
func New(store HeartbeatReader, engineID string, interval time.Duration, log *slog.Logger) *Server {
	s := &Server{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		store:    store,
		engineID: engineID,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// Serve listens on addr and blocks until Stop.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go s.probeLoop(ctx)
	s.log.Info("grpc liveness service listening", "addr", addr)
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	close(s.stopCh)
	s.grpc.GracefulStop()
}

func (s *Server) probeLoop(ctx context.Context) {
	interval := s.interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_SERVING
		h, err := s.store.GetHeartbeat(ctx, s.engineID)
		if err != nil || h.IsStale(time.Now().UTC(), interval) {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus("", status)

		select {
		case <-ticker.C:
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
