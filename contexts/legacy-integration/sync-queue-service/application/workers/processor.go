package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

const defaultBatchSize = 25

// Executor runs the sync workflow for one claimed item.
type Executor interface {
	Execute(ctx context.Context, item entities.QueueItem) entities.SyncOutcome
}

type ProcessResult struct {
	Processed    int
	Completed    int
	Failed       int
	Skipped      int
	DeadLettered int
}

// Processor claims a batch and drives each item through the workflow in
// (correlation id, sequence) order. Items run sequentially.
type Processor struct {
	Queue     ports.QueueStore
	Workflow  Executor
	Retries   RetryManager
	Clock     ports.Clock
	WorkerID  string
	BatchSize int
	Logger    *slog.Logger
}

func (p Processor) RunOnce(ctx context.Context) error {
	_, err := p.ProcessPendingQueue(ctx, 0)
	return err
}

// ProcessPendingQueue claims up to limit items (the configured batch size when
// limit <= 0) and resolves each one. Only a failed claim is returned as an
// error; per-item failures are counted and logged.
func (p Processor) ProcessPendingQueue(ctx context.Context, limit int) (ProcessResult, error) {
	logger := application.ResolveLogger(p.Logger)
	if limit <= 0 {
		limit = p.batchSize()
	}
	workerID := p.workerID()

	items, err := p.Queue.ClaimBatch(ctx, workerID, limit, p.now())
	if err != nil {
		logger.Error("claim batch failed",
			"event", "sync_queue_claim_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"worker_id", workerID,
			"error", err.Error(),
		)
		return ProcessResult{}, err
	}
	if len(items) == 0 {
		return ProcessResult{}, nil
	}
	services.SortForProcessing(items)

	logger.Info("sync batch claimed",
		"event", "sync_queue_batch_claimed",
		"module", application.ModuleName,
		"layer", "worker",
		"worker_id", workerID,
		"claimed", len(items),
	)

	var result ProcessResult
	gate := services.NewGroupGate()
	released := make(map[string]struct{})
	for i, item := range items {
		if _, ok := released[item.ID]; ok {
			continue
		}
		if ctx.Err() != nil {
			// Shutting down: hand the unexecuted rest of the batch back.
			p.release(ctx, item, "shutdown")
			result.Skipped++
			continue
		}
		if gate.Blocked(item.CorrelationID) {
			p.release(ctx, item, "group_blocked")
			result.Skipped++
			continue
		}
		unsettled, err := p.Queue.CountUnsettledPredecessors(ctx, item.CorrelationID, item.Sequence)
		if err != nil || unsettled > 0 {
			// Another worker still holds an earlier item of this group.
			gate.Block(item.CorrelationID)
			p.release(ctx, item, "predecessor_unsettled")
			result.Skipped++
			continue
		}

		outcome := p.Workflow.Execute(ctx, item)
		result.Processed++
		if outcome.IsSuccess() {
			if err := p.Queue.MarkCompleted(ctx, item.ID, item.ClaimedBy, p.now()); err != nil {
				gate.Block(item.CorrelationID)
				if errors.Is(err, domainerrors.ErrClaimLost) {
					p.claimLost(item, err)
					result.Skipped++
					continue
				}
				logger.Error("mark completed failed",
					"event", "sync_queue_mark_completed_failed",
					"module", application.ModuleName,
					"layer", "worker",
					"item_id", item.ID,
					"error", err.Error(),
				)
				result.Failed++
				continue
			}
			result.Completed++
			continue
		}

		gate.Block(item.CorrelationID)
		for _, later := range services.LaterInGroup(items, i) {
			p.release(ctx, later, "group_blocked")
			released[later.ID] = struct{}{}
			result.Skipped++
		}
		resolution, err := p.Retries.Resolve(ctx, item, outcome)
		if errors.Is(err, domainerrors.ErrClaimLost) {
			// The sweeper requeued this item while it ran; its new owner
			// settles it.
			p.claimLost(item, err)
			result.Skipped++
			continue
		}
		result.Failed++
		if err == nil && resolution == ResolutionDeadLettered {
			result.DeadLettered++
		}
	}

	logger.Info("sync batch processed",
		"event", "sync_queue_batch_processed",
		"module", application.ModuleName,
		"layer", "worker",
		"worker_id", workerID,
		"processed", result.Processed,
		"completed", result.Completed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"dead_lettered", result.DeadLettered,
	)
	return result, nil
}

func (p Processor) release(ctx context.Context, item entities.QueueItem, reason string) {
	logger := application.ResolveLogger(p.Logger)
	if err := p.Queue.ReleaseClaim(context.WithoutCancel(ctx), item.ID, item.ClaimedBy, p.now()); err != nil {
		if errors.Is(err, domainerrors.ErrClaimLost) {
			p.claimLost(item, err)
			return
		}
		logger.Error("release claim failed",
			"event", "sync_queue_release_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"item_id", item.ID,
			"reason", reason,
			"error", err.Error(),
		)
		return
	}
	logger.Debug("claimed item skipped",
		"event", "sync_queue_item_skipped",
		"module", application.ModuleName,
		"layer", "worker",
		"item_id", item.ID,
		"correlation_id", item.CorrelationID,
		"sequence", item.Sequence,
		"reason", reason,
	)
}

func (p Processor) claimLost(item entities.QueueItem, err error) {
	application.ResolveLogger(p.Logger).Warn("claim lost, result dropped",
		"event", "sync_queue_claim_lost",
		"module", application.ModuleName,
		"layer", "worker",
		"item_id", item.ID,
		"correlation_id", item.CorrelationID,
		"sequence", item.Sequence,
		"worker_id", item.ClaimedBy,
		"error", err.Error(),
	)
}

func (p Processor) batchSize() int {
	if p.BatchSize <= 0 {
		return defaultBatchSize
	}
	return p.BatchSize
}

func (p Processor) workerID() string {
	if p.WorkerID != "" {
		return p.WorkerID
	}
	return "worker-" + uuid.NewString()[:8]
}

func (p Processor) now() time.Time {
	if p.Clock == nil {
		return time.Now().UTC()
	}
	return p.Clock.Now().UTC()
}
