package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

type RetryFailedItemCommand struct {
	ItemID string
}

// RetryFailedItemUseCase is the operator action that gives a dead-lettered
// item a fresh attempt budget. A confirmed push is not repeated, but canonical
// state is read back again. A wake failure is only logged; the next poll picks
// the item up.
type RetryFailedItemUseCase struct {
	Queue  ports.QueueStore
	Waker  ports.Waker
	Clock  ports.Clock
	Logger *slog.Logger
}

func (u RetryFailedItemUseCase) Execute(ctx context.Context, cmd RetryFailedItemCommand) (entities.QueueItem, error) {
	logger := application.ResolveLogger(u.Logger)
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return entities.QueueItem{}, domainerrors.NewValidationError("item_id", "is required")
	}

	now := time.Now().UTC()
	if u.Clock != nil {
		now = u.Clock.Now().UTC()
	}
	item, err := u.Queue.ResetFailed(ctx, itemID, now)
	if err != nil {
		logger.Error("retry failed item rejected",
			"event", "sync_queue_manual_retry_failed",
			"module", application.ModuleName,
			"layer", "application",
			"item_id", itemID,
			"error", err.Error(),
		)
		return entities.QueueItem{}, err
	}

	logger.Info("failed item reset for retry",
		"event", "sync_queue_manual_retry",
		"module", application.ModuleName,
		"layer", "application",
		"item_id", item.ID,
		"correlation_id", item.CorrelationID,
		"sequence", item.Sequence,
	)
	if u.Waker != nil {
		if err := u.Waker.Wake(ctx, item.CorrelationID); err != nil {
			logger.Warn("processor wake failed",
				"event", "sync_queue_wake_failed",
				"module", application.ModuleName,
				"layer", "application",
				"item_id", item.ID,
				"correlation_id", item.CorrelationID,
				"error", err.Error(),
			)
		}
	}
	return item, nil
}
