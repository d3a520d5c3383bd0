package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthMonitor keeps the gRPC health status in line with store
// reachability.
type HealthMonitor struct {
	health   *health.Server
	store    Pinger
	interval time.Duration
	logger   *slog.Logger
}

// NewHealthMonitor returns a monitor that pings store every interval.
func NewHealthMonitor(hs *health.Server, store Pinger, interval time.Duration, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{health: hs, store: store, interval: interval, logger: logger}
}

// Run checks once immediately and then on every tick until ctx is done,
// when both services are marked NOT_SERVING.
func (m *HealthMonitor) Run(ctx context.Context) {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.health.Shutdown()
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *HealthMonitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := m.store.Ping(pingCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("store unreachable", "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.health.SetServingStatus("", status)
	m.health.SetServingStatus(ServiceName, status)
}
