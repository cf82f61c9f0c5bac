// Package scheduler runs the pipeline on a fixed interval with an immediate
// first pass and a single-flight guard against overlapping runs.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"obs/reversal-watcher/internal/logging"
	"obs/reversal-watcher/internal/pipeline"
)

// Runner is the unit of work the scheduler drives.
type Runner interface {
	Run(ctx context.Context) pipeline.Summary
}

// Scheduler triggers the pipeline periodically and on demand. Triggers that
// arrive while a run is in flight are dropped, not queued; the next tick
// picks up whatever the skipped run would have seen.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      logging.Logger
	running  atomic.Bool
}

// New creates a scheduler for the given runner.
func New(runner Runner, interval time.Duration, log logging.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      log,
	}
}

// Start blocks, running the pipeline immediately and then on every tick,
// until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Scheduler starting",
		logging.Field{Key: "interval", Value: s.interval.String()})

	s.TryRun(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopping")
			return
		case <-ticker.C:
			s.TryRun(ctx)
		}
	}
}

// TryRun executes one pipeline pass unless one is already in flight.
// It reports whether the run was started.
func (s *Scheduler) TryRun(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Run already in flight, skipping trigger")
		return false
	}
	defer s.running.Store(false)

	s.runner.Run(ctx)
	return true
}

// TryRunAsync starts a run in the background unless one is already in
// flight. Used by the manual HTTP trigger, which must not block on a full
// pass.
func (s *Scheduler) TryRunAsync(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Run already in flight, skipping trigger")
		return false
	}
	go func() {
		defer s.running.Store(false)
		s.runner.Run(ctx)
	}()
	return true
}
