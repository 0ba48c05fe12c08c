package grpc

import (
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type ServerConfig struct {
	RequestTimeout time.Duration
}

// NewServer builds the gRPC server with the admin service and the standard
// health service registered. The health server starts out SERVING.
func NewServer(admin AdminServiceServer, checker credentialChecker, cfg ServerConfig, log *slog.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RequestTimeoutInterceptor(cfg.RequestTimeout),
			AdminAuthInterceptor(checker, log),
		),
	)
	RegisterAdminServiceServer(s, admin)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(AdminServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s, hs
}
