package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type flipPinger struct{ down atomic.Bool }

func (p *flipPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("down")
	}
	return nil
}

func servingStatus(t *testing.T, hs *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		// Not registered until the first check runs.
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}
	return resp.GetStatus()
}

func TestHealthMonitor(t *testing.T) {
	hs := health.NewServer()
	p := &flipPinger{}
	m := NewHealthMonitor(hs, p, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return servingStatus(t, hs) == healthpb.HealthCheckResponse_SERVING })
	p.down.Store(true)
	waitFor(t, func() bool { return servingStatus(t, hs) == healthpb.HealthCheckResponse_NOT_SERVING })
	p.down.Store(false)
	waitFor(t, func() bool { return servingStatus(t, hs) == healthpb.HealthCheckResponse_SERVING })

	cancel()
	<-done
	if got := servingStatus(t, hs); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after shutdown = %v", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
