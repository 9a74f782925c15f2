// Package health exposes the standard gRPC health service for the override service.
package health

import (
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to health checkers.
const ServiceName = "pioverride"

// Server serves grpc.health.v1 and starts out NOT_SERVING.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	logger *zap.Logger
}

// NewServer creates a health server.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: grpchealth.NewServer(),
		logger: logger.Named("health"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetReady(false)
	return s
}

// SetReady flips the reported status for ServiceName and the overall server.
func (s *Server) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	s.logger.Debug("health status changed", zap.Stringer("status", status))
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("serving health checks", zap.String("address", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks the service as shutting down and stops the gRPC server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
