package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

var errStillPresent = errors.New("legacy object still present after delete")

// AtomicSync runs push, read-back and reconcile for one claimed item.
type AtomicSync struct {
	Queue   ports.QueueStore
	Legacy  ports.LegacyPlatform
	Primary ports.PrimaryStore
	Config  ports.SyncConfigProvider
	Clock   ports.Clock
	Logger  *slog.Logger
}

// Execute resumes from the item's checkpoint, so a retry after a read-back
// or reconcile failure never pushes the operation a second time:
// 1) push with the item's idempotency token and checkpoint the legacy id
// 2) read back canonical state by legacy id and checkpoint it
// 3) map and upsert into the primary database, backfilling the legacy id.
func (w AtomicSync) Execute(ctx context.Context, item entities.QueueItem) entities.SyncOutcome {
	logger := application.ResolveLogger(w.Logger)

	mapping, err := w.Config.Mapping(item.Target)
	if err != nil {
		return entities.FatalFailure(entities.StagePush, fmt.Errorf("target %q: %w", item.Target, err))
	}

	checkpoint := item.Checkpoint
	if checkpoint.Stage == entities.CheckpointNone {
		legacyID, outcome, ok := w.push(ctx, item, mapping)
		if !ok {
			return outcome
		}
		checkpoint = entities.Checkpoint{Stage: entities.CheckpointPushed, LegacyID: legacyID}
		if err := w.Queue.SaveCheckpoint(ctx, item.ID, item.ClaimedBy, checkpoint, w.now()); err != nil {
			return entities.RetryableFailure(entities.StagePush, fmt.Errorf("save push checkpoint: %w", err))
		}
		logger.Info("legacy push confirmed",
			"event", "sync_workflow_pushed",
			"module", application.ModuleName,
			"layer", "application",
			"item_id", item.ID,
			"correlation_id", item.CorrelationID,
			"target", item.Target,
			"operation", string(item.Operation),
			"legacy_id", legacyID,
		)
	}

	if checkpoint.Stage == entities.CheckpointPushed {
		canonical, outcome, ok := w.readBack(ctx, item, mapping, checkpoint.LegacyID)
		if !ok {
			return outcome
		}
		checkpoint = entities.Checkpoint{
			Stage:     entities.CheckpointReadBack,
			LegacyID:  checkpoint.LegacyID,
			Canonical: canonical,
		}
		if err := w.Queue.SaveCheckpoint(ctx, item.ID, item.ClaimedBy, checkpoint, w.now()); err != nil {
			return entities.RetryableFailure(entities.StageReadBack, fmt.Errorf("save read-back checkpoint: %w", err))
		}
	}

	if outcome, ok := w.reconcile(ctx, item, mapping, checkpoint); !ok {
		return outcome
	}

	logger.Info("sync workflow completed",
		"event", "sync_workflow_completed",
		"module", application.ModuleName,
		"layer", "application",
		"item_id", item.ID,
		"correlation_id", item.CorrelationID,
		"sequence", item.Sequence,
		"target", item.Target,
		"record_id", item.RecordID,
		"legacy_id", checkpoint.LegacyID,
	)
	return entities.Succeeded(checkpoint.LegacyID)
}

func (w AtomicSync) push(
	ctx context.Context,
	item entities.QueueItem,
	mapping entities.EntityMapping,
) (string, entities.SyncOutcome, bool) {
	legacyID := ""
	if item.Operation != entities.OperationCreate {
		resolved, err := w.resolveLegacyID(ctx, item, mapping)
		if err != nil {
			return "", Classify(entities.StagePush, err), false
		}
		legacyID = resolved
	}

	result, err := w.Legacy.Push(ctx, ports.PushRequest{
		Mapping:          mapping,
		Operation:        item.Operation,
		LegacyID:         legacyID,
		IdempotencyToken: item.IdempotencyToken,
		Body:             item.Payload.Data(),
	})
	if err != nil {
		return "", Classify(entities.StagePush, err), false
	}

	if item.Operation == entities.OperationCreate {
		if result.LegacyID == "" {
			err := &domainerrors.LegacyAPIError{Op: "push", StatusCode: http.StatusBadGateway, Body: "create returned no identifier"}
			return "", Classify(entities.StagePush, err), false
		}
		legacyID = result.LegacyID
	}
	return legacyID, entities.SyncOutcome{}, true
}

// resolveLegacyID finds the legacy id for update and delete operations: the
// checkpoint, then the payload, then the originating primary row.
func (w AtomicSync) resolveLegacyID(ctx context.Context, item entities.QueueItem, mapping entities.EntityMapping) (string, error) {
	if legacyID := item.KnownLegacyID(); legacyID != "" {
		return legacyID, nil
	}
	legacyID, found, err := w.Primary.LookupLegacyID(ctx, mapping, item.RecordID)
	if err != nil {
		return "", &domainerrors.ReconciliationError{Target: item.Target, RecordID: item.RecordID, Err: err}
	}
	if !found {
		return "", fmt.Errorf("%s %s: %w", item.Target, item.RecordID, domainerrors.ErrMissingLegacyReference)
	}
	return legacyID, nil
}

func (w AtomicSync) readBack(
	ctx context.Context,
	item entities.QueueItem,
	mapping entities.EntityMapping,
	legacyID string,
) (map[string]any, entities.SyncOutcome, bool) {
	canonical, err := w.Legacy.ReadBack(ctx, mapping, legacyID)
	if item.Operation == entities.OperationDelete {
		switch {
		case errors.Is(err, domainerrors.ErrLegacyObjectNotFound):
			return nil, entities.SyncOutcome{}, true
		case err != nil:
			return nil, Classify(entities.StageReadBack, err), false
		default:
			return nil, entities.RetryableFailure(entities.StageReadBack, fmt.Errorf("%s %s: %w", mapping.LegacyType, legacyID, errStillPresent)), false
		}
	}
	if err != nil {
		return nil, Classify(entities.StageReadBack, err), false
	}
	return canonical, entities.SyncOutcome{}, true
}

func (w AtomicSync) reconcile(
	ctx context.Context,
	item entities.QueueItem,
	mapping entities.EntityMapping,
	checkpoint entities.Checkpoint,
) (entities.SyncOutcome, bool) {
	now := w.now()
	if item.Operation == entities.OperationDelete {
		if err := w.Primary.MarkLegacyDeleted(ctx, mapping, item.RecordID, checkpoint.LegacyID, now); err != nil {
			return Classify(entities.StageReconcile, &domainerrors.ReconciliationError{Target: item.Target, RecordID: item.RecordID, Err: err}), false
		}
		return entities.SyncOutcome{}, true
	}

	columns, err := services.MapCanonical(mapping, checkpoint.Canonical)
	if err != nil {
		return entities.FatalFailure(entities.StageReconcile, err), false
	}
	err = w.Primary.UpsertCanonical(ctx, ports.UpsertRequest{
		Mapping:  mapping,
		RecordID: item.RecordID,
		LegacyID: checkpoint.LegacyID,
		Columns:  columns,
		At:       now,
	})
	if err != nil {
		return Classify(entities.StageReconcile, &domainerrors.ReconciliationError{Target: item.Target, RecordID: item.RecordID, Err: err}), false
	}
	return entities.SyncOutcome{}, true
}

func (w AtomicSync) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock.Now().UTC()
}
