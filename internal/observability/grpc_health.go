package observability

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// GRPCHealth serves grpc.health.v1 with a status that follows the readiness checks.
// The overall service ("") is SERVING only when every check passes; each check
// is also published under its own name.
type GRPCHealth struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]HealthCheckFunc
	interval time.Duration
	logger   zerolog.Logger
}

// NewGRPCHealth creates the gRPC server and registers the health service
func NewGRPCHealth(checks map[string]HealthCheckFunc, interval time.Duration, logger zerolog.Logger) *GRPCHealth {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCHealth{
		server:   server,
		health:   hs,
		checks:   checks,
		interval: interval,
		logger:   logger,
	}
}

// Evaluate runs the checks once and publishes the result
func (g *GRPCHealth) Evaluate(ctx context.Context) bool {
	dependencies, allHealthy := RunChecks(ctx, g.checks)
	for name, dep := range dependencies {
		g.health.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	g.health.SetServingStatus("", servingStatus(allHealthy))
	return allHealthy
}

// Run re-evaluates the checks until ctx is done
func (g *GRPCHealth) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if !g.Evaluate(checkCtx) {
			g.logger.Warn().Msg("Readiness checks failing, gRPC health set to NOT_SERVING")
		}
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Serve blocks serving gRPC on lis
func (g *GRPCHealth) Serve(lis net.Listener) error {
	return g.server.Serve(lis)
}

// Check answers a health request in-process
func (g *GRPCHealth) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Stop marks every service NOT_SERVING and drains the server
func (g *GRPCHealth) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
