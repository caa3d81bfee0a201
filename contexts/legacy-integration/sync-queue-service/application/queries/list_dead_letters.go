package queries

import (
	"context"
	"log/slog"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

type ListDeadLettersQuery struct {
	Limit int
}

type ListDeadLettersUseCase struct {
	Queue  ports.QueueStore
	Logger *slog.Logger
}

// Execute returns failed items, most recently failed first.
func (u ListDeadLettersUseCase) Execute(ctx context.Context, query ListDeadLettersQuery) ([]entities.QueueItem, error) {
	logger := application.ResolveLogger(u.Logger)
	limit := query.Limit
	if limit <= 0 {
		limit = defaultDeadLetterLimit
	}
	if limit > maxDeadLetterLimit {
		limit = maxDeadLetterLimit
	}

	items, err := u.Queue.ListFailed(ctx, limit)
	if err != nil {
		logger.Error("list dead letters failed",
			"event", "sync_queue_dead_letters_failed",
			"module", application.ModuleName,
			"layer", "application",
			"error", err.Error(),
		)
		return nil, err
	}
	return items, nil
}
