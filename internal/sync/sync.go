// Package sync periodically exports registry snapshots to S3 and/or a git
// repository.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Destination stores snapshots. Implementations that also satisfy
// fmt.Stringer are named by it in errors.
type Destination interface {
	// Write stores one JSONL snapshot.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic syncs to one or more destinations.
type Scheduler struct {
	source       Source
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports a registry snapshot to the
// given destinations at the specified interval.
func NewScheduler(src Source, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       src,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start syncs once right away and then on every interval tick, until ctx
// is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop cancels the loop and waits for an in-flight sync to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.syncOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce exports one snapshot and writes it to every destination in
// parallel. A failed export writes nothing. The returned error joins the
// export failure or every destination failure.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.source, &buf); err != nil {
		return fmt.Errorf("sync export: %w", err)
	}
	data := buf.Bytes()

	errs := make([]error, len(s.destinations))
	var wg sync.WaitGroup
	for i, dest := range s.destinations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dest.Write(ctx, data); err != nil {
				errs[i] = fmt.Errorf("%s: %w", destinationName(i, dest), err)
			}
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("sync completed", "destinations", len(s.destinations), "bytes", len(data))
	return nil
}

func (s *Scheduler) syncOnce(ctx context.Context) {
	if err := s.SyncOnce(ctx); err != nil {
		s.logger.Error("sync failed", "err", err)
	}
}

func destinationName(i int, dest Destination) string {
	if s, ok := dest.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("destination %d", i)
}
