package commands

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

const maxItemsPerEnqueue = 100

type EnqueueCommand struct {
	CorrelationID string
	Items         []entities.NewItemSpec
}

type EnqueueResult struct {
	CorrelationID string
	Accepted      int
	// Persisted is false when the store rejected the batch. The caller's local
	// write still stands; the failure is logged for reconciliation.
	Persisted bool
}

type EnqueueUseCase struct {
	Queue       ports.QueueStore
	Waker       ports.Waker
	IDGenerator ports.IDGenerator
	Clock       ports.Clock
	Logger      *slog.Logger
}

// Execute is called right after a local mutation commits. Malformed input is
// returned as a ValidationError; storage and wake failures are only logged.
func (u EnqueueUseCase) Execute(ctx context.Context, cmd EnqueueCommand) (EnqueueResult, error) {
	logger := application.ResolveLogger(u.Logger)
	if len(cmd.Items) == 0 {
		return EnqueueResult{}, domainerrors.NewValidationError("items", "at least one item is required")
	}
	if len(cmd.Items) > maxItemsPerEnqueue {
		return EnqueueResult{}, domainerrors.NewValidationError("items", "at most %d items per enqueue", maxItemsPerEnqueue)
	}

	specs := append([]entities.NewItemSpec(nil), cmd.Items...)
	sort.SliceStable(specs, func(i, j int) bool { return specs[i].Sequence < specs[j].Sequence })
	for i, spec := range specs {
		if spec.Sequence != i+1 {
			return EnqueueResult{}, domainerrors.NewValidationError("sequence",
				"sequences must be contiguous from 1, got %d at position %d", spec.Sequence, i+1)
		}
	}

	correlationID := strings.TrimSpace(cmd.CorrelationID)
	if correlationID == "" {
		generated, err := u.newID(ctx)
		if err != nil {
			return EnqueueResult{}, err
		}
		correlationID = generated
	}

	now := u.now()
	items := make([]entities.QueueItem, 0, len(specs))
	for _, spec := range specs {
		id, err := u.newID(ctx)
		if err != nil {
			return EnqueueResult{}, err
		}
		item, err := entities.NewQueueItem(id, correlationID, uuid.NewString(), spec, now)
		if err != nil {
			return EnqueueResult{}, err
		}
		items = append(items, item)
	}

	result := EnqueueResult{CorrelationID: correlationID, Accepted: len(items)}
	if err := u.Queue.Enqueue(ctx, correlationID, items); err != nil {
		logger.Error("sync enqueue failed",
			"event", "sync_queue_enqueue_failed",
			"module", application.ModuleName,
			"layer", "application",
			"correlation_id", correlationID,
			"item_count", len(items),
			"error", err.Error(),
		)
		return result, nil
	}
	result.Persisted = true

	logger.Info("sync items enqueued",
		"event", "sync_queue_enqueued",
		"module", application.ModuleName,
		"layer", "application",
		"correlation_id", correlationID,
		"item_count", len(items),
	)

	if u.Waker != nil {
		if err := u.Waker.Wake(ctx, correlationID); err != nil {
			logger.Warn("processor wake failed",
				"event", "sync_queue_wake_failed",
				"module", application.ModuleName,
				"layer", "application",
				"correlation_id", correlationID,
				"error", err.Error(),
			)
		}
	}
	return result, nil
}

func (u EnqueueUseCase) newID(ctx context.Context) (string, error) {
	if u.IDGenerator == nil {
		return uuid.NewString(), nil
	}
	return u.IDGenerator.NewID(ctx)
}

func (u EnqueueUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
