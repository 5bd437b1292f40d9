// Package grpc provides health serving and dialing helpers for the
// service's gRPC health endpoint.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer wraps a gRPC server that only exposes the standard health API.
// Orchestration probes and sibling processes use it for readiness checks.
type HealthServer struct {
	grpcServer   *gogrpc.Server
	healthServer *health.Server
}

// NewHealthServer creates a health-only gRPC server with OTel stats handling.
func NewHealthServer() *HealthServer {
	grpcServer := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	return &HealthServer{grpcServer: grpcServer, healthServer: healthServer}
}

// SetServing marks the named service as SERVING.
func (s *HealthServer) SetServing(service string) {
	if s == nil || s.healthServer == nil {
		return
	}
	s.healthServer.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
}

// SetNotServing marks the named service as NOT_SERVING.
func (s *HealthServer) SetNotServing(service string) {
	if s == nil || s.healthServer == nil {
		return
	}
	s.healthServer.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Serve blocks serving health checks on the listener until Stop is called.
func (s *HealthServer) Serve(listener net.Listener) error {
	if s == nil || s.grpcServer == nil {
		return fmt.Errorf("health server is not configured")
	}
	if listener == nil {
		return fmt.Errorf("listener is required")
	}
	return s.grpcServer.Serve(listener)
}

// Stop gracefully stops the health server.
func (s *HealthServer) Stop() {
	if s == nil || s.grpcServer == nil {
		return
	}
	s.healthServer.Shutdown()
	s.grpcServer.GracefulStop()
}

// WaitForHealth blocks until the gRPC health check reports SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			if logf != nil {
				logf("gRPC health check is SERVING")
			}
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for gRPC health: %v", err)
			} else {
				logf("waiting for gRPC health: status %s", response.GetStatus().String())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < time.Second {
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}
}
