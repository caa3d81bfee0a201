package workers

import (
	"context"
	"log/slog"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

const (
	defaultRetention = 7 * 24 * time.Hour
	defaultReviewAge = 24 * time.Hour
)

// CleanupJob deletes completed items past retention and flags aged failed
// items for operator review. Failed items are never deleted.
type CleanupJob struct {
	Queue     ports.QueueStore
	Alerts    ports.AlertPublisher
	Clock     ports.Clock
	Retention time.Duration
	ReviewAge time.Duration
	Logger    *slog.Logger
}

func (j CleanupJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}

	deleted, err := j.Queue.DeleteCompletedBefore(ctx, now.Add(-j.retention()))
	if err != nil {
		logger.Error("completed item cleanup failed",
			"event", "sync_queue_cleanup_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if deleted > 0 {
		logger.Info("completed items deleted",
			"event", "sync_queue_cleanup_completed",
			"module", application.ModuleName,
			"layer", "worker",
			"deleted_count", deleted,
		)
	}

	flagged, err := j.Queue.FlagFailedBefore(ctx, now.Add(-j.reviewAge()), now)
	if err != nil {
		logger.Error("aged failure flagging failed",
			"event", "sync_queue_flag_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	for _, item := range flagged {
		logger.Warn("failed item flagged for review",
			"event", "sync_queue_item_flagged",
			"module", application.ModuleName,
			"layer", "worker",
			"item_id", item.ID,
			"correlation_id", item.CorrelationID,
			"target", item.Target,
			"record_id", item.RecordID,
			"error", item.LastError,
		)
		if j.Alerts == nil {
			continue
		}
		alert := ports.DeadLetterAlert{
			ItemID:        item.ID,
			CorrelationID: item.CorrelationID,
			Sequence:      item.Sequence,
			Target:        item.Target,
			RecordID:      item.RecordID,
			Operation:     item.Operation,
			AttemptCount:  item.AttemptCount,
			LastError:     item.LastError,
			Reason:        ports.AlertReasonAgedForReview,
			OccurredAt:    now,
		}
		if err := j.Alerts.PublishDeadLetter(ctx, alert); err != nil {
			logger.Error("review alert publish failed",
				"event", "sync_queue_alert_publish_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"item_id", item.ID,
				"error", err.Error(),
			)
		}
	}
	return nil
}

func (j CleanupJob) retention() time.Duration {
	if j.Retention <= 0 {
		return defaultRetention
	}
	return j.Retention
}

func (j CleanupJob) reviewAge() time.Duration {
	if j.ReviewAge <= 0 {
		return defaultReviewAge
	}
	return j.ReviewAge
}
