// Package health exposes the monitor's liveness over the standard gRPC
// health checking protocol.
package health

import (
	"errors"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name clients pass to Check/Watch for the capture
// session status.  The empty name reports overall server health.
const ServiceName = "portunus.monitor"

type Server struct {
	logger *log.Logger
	grpc   *grpc.Server
	health *grpchealth.Server
}

// New returns a health server.  The monitor service starts NOT_SERVING and
// flips to SERVING while a capture session runs.
func New(logger *log.Logger) *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{logger: logger, grpc: gs, health: hs}
}

// SetServing implements service.StatusReporter.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
	s.logger.Printf("health %s=%s", ServiceName, st)
}

// Checker returns the in-process health service, for tests and callers
// that do not go through the network.
func (s *Server) Checker() healthpb.HealthServer { return s.health }

// Serve accepts connections on addr until Stop.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health listen %s: %w", addr, err)
	}
	s.logger.Printf("health listening on %s", lis.Addr())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains open streams.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
