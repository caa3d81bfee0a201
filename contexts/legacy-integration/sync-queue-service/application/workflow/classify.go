package workflow

import (
	"context"
	"errors"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
)

// Classify turns a stage error into a tagged outcome. Errors that are not
// recognised are retried so no item is failed on an unknown condition.
func Classify(stage entities.WorkflowStage, err error) entities.SyncOutcome {
	if err == nil {
		return entities.SyncOutcome{}
	}

	var (
		apiErr       *domainerrors.LegacyAPIError
		networkErr   *domainerrors.TransientNetworkError
		reconcileErr *domainerrors.ReconciliationError
	)
	switch {
	case errors.As(err, &apiErr), errors.As(err, &networkErr), errors.As(err, &reconcileErr):
		// Legacy rejections of any status are retried up to the attempt cap.
		return entities.RetryableFailure(stage, err)
	case errors.Is(err, domainerrors.ErrMissingLegacyReference),
		errors.Is(err, domainerrors.ErrLegacyObjectNotFound),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return entities.RetryableFailure(stage, err)
	case domainerrors.IsValidation(err), errors.Is(err, domainerrors.ErrUnknownEntity):
		return entities.FatalFailure(stage, err)
	default:
		return entities.RetryableFailure(stage, err)
	}
}
