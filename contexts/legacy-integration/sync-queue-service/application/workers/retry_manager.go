package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

type Resolution int

const (
	ResolutionRetryScheduled Resolution = iota + 1
	ResolutionDeadLettered
)

// RetryManager decides what happens to an item whose workflow attempt did not
// succeed: back off and retry, or fail it and alert an operator.
type RetryManager struct {
	Queue  ports.QueueStore
	Alerts ports.AlertPublisher
	Policy services.BackoffPolicy
	Clock  ports.Clock
	Logger *slog.Logger
}

func (m RetryManager) Resolve(ctx context.Context, item entities.QueueItem, outcome entities.SyncOutcome) (Resolution, error) {
	logger := application.ResolveLogger(m.Logger)
	now := m.now()
	attempt := item.AttemptCount + 1
	lastError := outcome.ErrorText()

	reason := ""
	switch {
	case outcome.Kind == entities.OutcomeFatal:
		reason = ports.AlertReasonFatalError
	case m.Policy.Exhausted(attempt):
		reason = ports.AlertReasonAttemptsExhausted
	}

	if reason == "" {
		nextEligibleAt := m.Policy.NextEligibleAt(now, attempt)
		if err := m.Queue.MarkRetry(ctx, item.ID, item.ClaimedBy, lastError, nextEligibleAt, now); err != nil {
			if errors.Is(err, domainerrors.ErrClaimLost) {
				return 0, err
			}
			logger.Error("schedule retry failed",
				"event", "sync_queue_retry_schedule_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"item_id", item.ID,
				"error", err.Error(),
			)
			return 0, err
		}
		logger.Warn("sync attempt failed, retry scheduled",
			"event", "sync_queue_retry_scheduled",
			"module", application.ModuleName,
			"layer", "worker",
			"item_id", item.ID,
			"correlation_id", item.CorrelationID,
			"sequence", item.Sequence,
			"attempt", attempt,
			"stage", string(outcome.Stage),
			"next_eligible_at", nextEligibleAt.Format(time.RFC3339),
			"error", lastError,
		)
		return ResolutionRetryScheduled, nil
	}

	if err := m.Queue.MarkFailed(ctx, item.ID, item.ClaimedBy, lastError, now); err != nil {
		if errors.Is(err, domainerrors.ErrClaimLost) {
			return 0, err
		}
		logger.Error("mark failed failed",
			"event", "sync_queue_mark_failed_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"item_id", item.ID,
			"error", err.Error(),
		)
		return 0, err
	}

	alert := ports.DeadLetterAlert{
		ItemID:        item.ID,
		CorrelationID: item.CorrelationID,
		Sequence:      item.Sequence,
		Target:        item.Target,
		RecordID:      item.RecordID,
		Operation:     item.Operation,
		AttemptCount:  attempt,
		Stage:         outcome.Stage,
		LastError:     lastError,
		Reason:        reason,
		OccurredAt:    now,
	}
	m.raise(ctx, alert)
	return ResolutionDeadLettered, nil
}

// raise logs the alert at error level and publishes it. A publish failure is
// logged only; the item is already failed and queryable.
func (m RetryManager) raise(ctx context.Context, alert ports.DeadLetterAlert) {
	logger := application.ResolveLogger(m.Logger)
	logger.Error("sync item dead-lettered",
		"event", "sync_queue_item_dead_lettered",
		"module", application.ModuleName,
		"layer", "worker",
		"item_id", alert.ItemID,
		"correlation_id", alert.CorrelationID,
		"sequence", alert.Sequence,
		"target", alert.Target,
		"record_id", alert.RecordID,
		"operation", string(alert.Operation),
		"attempt_count", alert.AttemptCount,
		"stage", string(alert.Stage),
		"reason", alert.Reason,
		"error", alert.LastError,
	)
	if m.Alerts == nil {
		return
	}
	if err := m.Alerts.PublishDeadLetter(ctx, alert); err != nil {
		logger.Error("dead-letter alert publish failed",
			"event", "sync_queue_alert_publish_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"item_id", alert.ItemID,
			"error", err.Error(),
		)
	}
}

func (m RetryManager) now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock.Now().UTC()
}
