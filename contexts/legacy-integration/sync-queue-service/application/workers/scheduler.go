package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

const (
	defaultPollInterval        = 5 * time.Second
	defaultMaintenanceInterval = 10 * time.Minute
)

// WakeSignal coalesces wake requests into a single pending signal. It is the
// in-process Waker; Wake never blocks.
type WakeSignal struct {
	ch chan struct{}
}

func NewWakeSignal() *WakeSignal {
	return &WakeSignal{ch: make(chan struct{}, 1)}
}

func (s *WakeSignal) Wake(_ context.Context, _ string) error {
	select {
	case s.ch <- struct{}{}:
	default:
	}
	return nil
}

func (s *WakeSignal) C() <-chan struct{} {
	return s.ch
}

var _ ports.Waker = (*WakeSignal)(nil)

// Scheduler is the guaranteed fallback path: it fires the Processor on a fixed
// interval, or sooner when woken, and runs maintenance on a slower interval.
type Scheduler struct {
	Queue               ports.QueueStore
	Processor           Processor
	Cleanup             CleanupJob
	Sweeper             StalenessSweeper
	Wake                *WakeSignal
	Clock               ports.Clock
	PollInterval        time.Duration
	MaintenanceInterval time.Duration
	Logger              *slog.Logger
}

// Tick runs the Processor once unless nothing is claimable. The bool reports
// whether the Processor ran.
func (s Scheduler) Tick(ctx context.Context) (ProcessResult, bool, error) {
	logger := application.ResolveLogger(s.Logger)
	pending, err := s.Queue.HasPending(ctx, s.now())
	if err != nil {
		logger.Error("pending check failed",
			"event", "sync_scheduler_pending_check_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return ProcessResult{}, false, err
	}
	if !pending {
		return ProcessResult{}, false, nil
	}
	result, err := s.Processor.ProcessPendingQueue(ctx, 0)
	return result, true, err
}

// Maintain sweeps stale claims back to pending and then runs retention
// cleanup. A failed sweep does not skip cleanup; both errors are returned.
func (s Scheduler) Maintain(ctx context.Context) error {
	sweepErr := s.Sweeper.RunOnce(ctx)
	cleanupErr := s.Cleanup.RunOnce(ctx)
	return errors.Join(sweepErr, cleanupErr)
}

// Run blocks until ctx is cancelled. Tick and maintenance errors are logged
// and retried on the next interval.
func (s Scheduler) Run(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	logger.Info("sync scheduler started",
		"event", "sync_scheduler_started",
		"module", application.ModuleName,
		"layer", "worker",
		"poll_interval", s.pollInterval().String(),
		"maintenance_interval", s.maintenanceInterval().String(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		ticker := time.NewTicker(s.pollInterval())
		defer ticker.Stop()
		var wake <-chan struct{}
		if s.Wake != nil {
			wake = s.Wake.C()
		}
		for {
			// Errors are already logged at their source.
			_, _, _ = s.Tick(groupCtx)
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
			case <-wake:
			}
		}
	})
	group.Go(func() error {
		ticker := time.NewTicker(s.maintenanceInterval())
		defer ticker.Stop()
		for {
			_ = s.Maintain(groupCtx)
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	err := group.Wait()

	logger.Info("sync scheduler stopped",
		"event", "sync_scheduler_stopped",
		"module", application.ModuleName,
		"layer", "worker",
	)
	return err
}

func (s Scheduler) pollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return defaultPollInterval
	}
	return s.PollInterval
}

func (s Scheduler) maintenanceInterval() time.Duration {
	if s.MaintenanceInterval <= 0 {
		return defaultMaintenanceInterval
	}
	return s.MaintenanceInterval
}

func (s Scheduler) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
