// Package grpc serves the standard gRPC health service. The link service
// reports SERVING while the home vehicle link is up.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmw "github.com/autopeer-io/groundpeer/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/groundpeer/pkg/log"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

// LinkService is the health service name tracking the pairing link.
const LinkService = "groundpeer.link"

type Server struct {
	server  *grpc.Server
	health  *health.Server
	options *options.GrpcOptions
}

func NewServer(opts *options.GrpcOptions) (*Server, error) {
	s := grpc.NewServer(grpc.UnaryInterceptor(grpcmw.UnaryTimeoutInterceptor(opts.Timeout)))
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(LinkService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s) // Enable grpc_cli support

	return &Server{
		server:  s,
		health:  hs,
		options: opts,
	}, nil
}

// SetLinked updates the link service status.
func (s *Server) SetLinked(linked bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if linked {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(LinkService, status)
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	log.Info("Starting gRPC Server", "addr", s.options.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	}
}
