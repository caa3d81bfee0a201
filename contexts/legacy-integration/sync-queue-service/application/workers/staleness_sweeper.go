package workers

import (
	"context"
	"log/slog"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

const defaultStaleTimeout = 15 * time.Minute

// StalenessSweeper returns items abandoned in processing by a crashed worker
// to pending. The attempt count is left alone so the item keeps its budget.
type StalenessSweeper struct {
	Queue   ports.QueueStore
	Clock   ports.Clock
	Timeout time.Duration
	Logger  *slog.Logger
}

func (s StalenessSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultStaleTimeout
	}

	requeued, err := s.Queue.RequeueStale(ctx, now.Add(-timeout), now)
	if err != nil {
		logger.Error("stale claim sweep failed",
			"event", "sync_queue_stale_sweep_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	for _, item := range requeued {
		staleErr := &domainerrors.StaleClaimError{ItemID: item.ID, ClaimedBy: item.ClaimedBy}
		if item.ClaimedAt != nil {
			staleErr.ClaimedAt = *item.ClaimedAt
		}
		logger.Warn("stale claim returned to pending",
			"event", "sync_queue_stale_claim_requeued",
			"module", application.ModuleName,
			"layer", "worker",
			"item_id", item.ID,
			"correlation_id", item.CorrelationID,
			"claimed_by", item.ClaimedBy,
			"error", staleErr.Error(),
		)
	}
	return nil
}
