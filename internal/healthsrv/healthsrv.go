// Package healthsrv exposes readiness over the standard grpc.health.v1
// service for orchestrators that probe gRPC instead of HTTP.
package healthsrv

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
)

// ServiceName is the name reported alongside the overall ("") status.
const ServiceName = "merchantapi"

// Checker reports whether the service can take traffic.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// Server mirrors a Checker into a grpc health server.
type Server struct {
	health  *health.Server
	checker Checker
}

func New(checker Checker) *Server {
	return &Server{health: health.NewServer(), checker: checker}
}

// Register adds the health service to gs.
func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.health)
}

// Refresh runs the checker once and publishes the result.
func (s *Server) Refresh(ctx context.Context) bool {
	status := healthpb.HealthCheckResponse_SERVING
	err := s.checker.Check(ctx)
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		obs.Warn("readiness_failed", map[string]any{"error": err.Error()})
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	obs.SetReady(err == nil)
	return err == nil
}

// Watch refreshes every interval until ctx ends, then marks the service
// as shutting down.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
