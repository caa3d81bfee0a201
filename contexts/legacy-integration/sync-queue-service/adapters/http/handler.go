package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/application/commands"
	"rentbridge/contexts/legacy-integration/sync-queue-service/application/queries"
	"rentbridge/contexts/legacy-integration/sync-queue-service/application/workers"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
	httptransport "rentbridge/contexts/legacy-integration/sync-queue-service/transport/http"
)

const maxProcessLimit = 500

type Handler struct {
	Enqueue     commands.EnqueueUseCase
	RetryItem   commands.RetryFailedItemUseCase
	Status      queries.GetQueueStatusUseCase
	DeadLetters queries.ListDeadLettersUseCase
	Processor   workers.Processor
	Logger      *slog.Logger
}

// ProcessQueueHandler godoc
// @Summary Run the sync processor once
// @Description Claims a batch of pending sync items and drives each through push, read-back and reconcile.
// @Tags legacy-sync-queue
// @Accept json
// @Produce json
// @Param request body httptransport.ProcessQueueRequest false "Processor invocation"
// @Success 200 {object} httptransport.ProcessQueueResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/sync/queue/process [post]
func (h Handler) ProcessQueueHandler(ctx context.Context, req httptransport.ProcessQueueRequest) (httptransport.ProcessQueueResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	if req.Action != "" && req.Action != httptransport.ActionProcessQueue {
		return httptransport.ProcessQueueResponse{}, domainerrors.ErrInvalidProcessAction
	}
	limit := req.Limit
	if limit < 0 {
		return httptransport.ProcessQueueResponse{}, domainerrors.NewValidationError("limit", "must not be negative")
	}
	if limit > maxProcessLimit {
		limit = maxProcessLimit
	}

	logger.Info("process queue request received",
		"event", "http_sync_process_received",
		"module", application.ModuleName,
		"layer", "transport",
		"limit", limit,
	)
	result, err := h.Processor.ProcessPendingQueue(ctx, limit)
	if err != nil {
		return httptransport.ProcessQueueResponse{}, err
	}
	return httptransport.ProcessQueueResponse{
		Processed:    result.Processed,
		Completed:    result.Completed,
		Failed:       result.Failed,
		Skipped:      result.Skipped,
		DeadLettered: result.DeadLettered,
	}, nil
}

// EnqueueHandler godoc
// @Summary Enqueue sync operations
// @Description Queues ordered operations of one logical transaction for replay against the legacy platform.
// @Tags legacy-sync-queue
// @Accept json
// @Produce json
// @Param request body httptransport.EnqueueRequest true "Ordered operations"
// @Success 202 {object} httptransport.EnqueueResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/sync/queue/enqueue [post]
func (h Handler) EnqueueHandler(ctx context.Context, req httptransport.EnqueueRequest) (httptransport.EnqueueResponse, error) {
	specs := make([]entities.NewItemSpec, 0, len(req.Items))
	for _, item := range req.Items {
		var payload entities.Payload
		if len(item.Payload) == 0 {
			return httptransport.EnqueueResponse{}, domainerrors.NewValidationError("payload", "is required")
		}
		if err := json.Unmarshal(item.Payload, &payload); err != nil {
			var validation *domainerrors.ValidationError
			if errors.As(err, &validation) {
				return httptransport.EnqueueResponse{}, validation
			}
			return httptransport.EnqueueResponse{}, domainerrors.NewValidationError("payload", "malformed payload: %v", err)
		}
		specs = append(specs, entities.NewItemSpec{
			Sequence:  item.Sequence,
			Target:    item.Target,
			RecordID:  item.RecordID,
			Operation: entities.Operation(item.Operation),
			Payload:   payload,
		})
	}

	result, err := h.Enqueue.Execute(ctx, commands.EnqueueCommand{
		CorrelationID: req.CorrelationID,
		Items:         specs,
	})
	if err != nil {
		return httptransport.EnqueueResponse{}, err
	}
	return httptransport.EnqueueResponse{
		CorrelationID: result.CorrelationID,
		Accepted:      result.Accepted,
		Persisted:     result.Persisted,
	}, nil
}

// RetryItemHandler godoc
// @Summary Retry a dead-lettered item
// @Description Resets a failed item to pending with a fresh attempt budget.
// @Tags legacy-sync-queue
// @Produce json
// @Param item_id path string true "Queue item id"
// @Success 200 {object} httptransport.RetryItemResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/sync/queue/items/{item_id}/retry [post]
func (h Handler) RetryItemHandler(ctx context.Context, itemID string) (httptransport.RetryItemResponse, error) {
	item, err := h.RetryItem.Execute(ctx, commands.RetryFailedItemCommand{ItemID: itemID})
	if err != nil {
		return httptransport.RetryItemResponse{}, err
	}
	return httptransport.RetryItemResponse{Item: MapItem(item)}, nil
}

// QueueStatusHandler godoc
// @Summary Queue status
// @Description Returns item counts per status and the age of the oldest pending item.
// @Tags legacy-sync-queue
// @Produce json
// @Success 200 {object} httptransport.QueueStatusResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/sync/queue/status [get]
func (h Handler) QueueStatusHandler(ctx context.Context) (httptransport.QueueStatusResponse, error) {
	status, err := h.Status.Execute(ctx)
	if err != nil {
		return httptransport.QueueStatusResponse{}, err
	}
	return MapStatus(status), nil
}

// DeadLettersHandler godoc
// @Summary List dead-lettered items
// @Description Returns failed items with their error context, most recent first.
// @Tags legacy-sync-queue
// @Produce json
// @Param limit query int false "Maximum items (default 50, max 500)"
// @Success 200 {object} httptransport.DeadLettersResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/sync/queue/dead-letters [get]
func (h Handler) DeadLettersHandler(ctx context.Context, limit int) (httptransport.DeadLettersResponse, error) {
	items, err := h.DeadLetters.Execute(ctx, queries.ListDeadLettersQuery{Limit: limit})
	if err != nil {
		return httptransport.DeadLettersResponse{}, err
	}
	dtos := make([]httptransport.QueueItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, MapItem(item))
	}
	return httptransport.DeadLettersResponse{Items: dtos}, nil
}

func MapStatus(status ports.QueueStatus) httptransport.QueueStatusResponse {
	return httptransport.QueueStatusResponse{
		Pending:                 status.Pending,
		Processing:              status.Processing,
		Completed:               status.Completed,
		Failed:                  status.Failed,
		OldestPendingAgeSeconds: status.OldestPendingAgeSeconds,
	}
}

func MapItem(item entities.QueueItem) httptransport.QueueItemDTO {
	return httptransport.QueueItemDTO{
		ID:            item.ID,
		CorrelationID: item.CorrelationID,
		Sequence:      item.Sequence,
		Target:        item.Target,
		RecordID:      item.RecordID,
		Operation:     string(item.Operation),
		Status:        string(item.Status),
		AttemptCount:  item.AttemptCount,
		LastError:     item.LastError,
		LegacyID:      item.Checkpoint.LegacyID,
		Checkpoint:    string(item.Checkpoint.Stage),
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
		ProcessedAt:   formatOptional(item.ProcessedAt),
		FlaggedAt:     formatOptional(item.FlaggedAt),
	}
}

func MapAlert(alert ports.DeadLetterAlert) httptransport.AlertDTO {
	return httptransport.AlertDTO{
		ItemID:        alert.ItemID,
		CorrelationID: alert.CorrelationID,
		Sequence:      alert.Sequence,
		Target:        alert.Target,
		RecordID:      alert.RecordID,
		Operation:     string(alert.Operation),
		AttemptCount:  alert.AttemptCount,
		Stage:         string(alert.Stage),
		LastError:     alert.LastError,
		Reason:        alert.Reason,
		OccurredAt:    alert.OccurredAt.UTC().Format(time.RFC3339),
	}
}

func formatOptional(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
