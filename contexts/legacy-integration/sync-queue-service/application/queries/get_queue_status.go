package queries

import (
	"context"
	"log/slog"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

type GetQueueStatusUseCase struct {
	Queue  ports.QueueStore
	Clock  ports.Clock
	Logger *slog.Logger
}

func (u GetQueueStatusUseCase) Execute(ctx context.Context) (ports.QueueStatus, error) {
	logger := application.ResolveLogger(u.Logger)
	now := time.Now().UTC()
	if u.Clock != nil {
		now = u.Clock.Now().UTC()
	}

	status, err := u.Queue.StatusCounts(ctx, now)
	if err != nil {
		logger.Error("queue status failed",
			"event", "sync_queue_status_failed",
			"module", application.ModuleName,
			"layer", "application",
			"error", err.Error(),
		)
		return ports.QueueStatus{}, err
	}
	return status, nil
}
