package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	apphealth "task-tracker/backend/internal/health"
)

// Server publishes readiness from a health.Checker through the standard gRPC health service.
type Server struct {
	checker  *apphealth.Checker
	hs       *health.Server
	services []string
}

// NewServer returns a Server reporting for the overall server ("") and each named service.
func NewServer(checker *apphealth.Checker, services ...string) *Server {
	return &Server{
		checker:  checker,
		hs:       health.NewServer(),
		services: append([]string{""}, services...),
	}
}

// Register attaches the grpc.health.v1.Health service to gs.
func (s *Server) Register(gs grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(gs, s.hs)
}

// Refresh runs the checks once and updates every service status. Returns the report.
func (s *Server) Refresh(ctx context.Context) apphealth.Report {
	report := s.checker.Check(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	for _, name := range s.services {
		s.hs.SetServingStatus(name, status)
	}
	return report
}

// Run refreshes the status every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before the listener closes.
func (s *Server) Shutdown() {
	s.hs.Shutdown()
}
