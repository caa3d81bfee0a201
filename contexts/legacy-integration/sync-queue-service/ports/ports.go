package ports

import (
	"context"
	"time"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/internal/shared/events"
)

// QueueStore is the durable record of sync work and the only coordination
// point between concurrent workers.
type QueueStore interface {
	// Enqueue must persist every item or none of them.
	Enqueue(ctx context.Context, correlationID string, items []entities.QueueItem) error
	// ClaimBatch moves up to limit claimable items to processing. Rows locked
	// by another worker are skipped, never waited on.
	ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]entities.QueueItem, error)
	// The transitions below only apply while workerID holds the processing
	// claim. Once the claim was requeued or taken over they return
	// ErrClaimLost and leave the item untouched.
	MarkCompleted(ctx context.Context, itemID string, workerID string, now time.Time) error
	// MarkFailed records the final attempt and makes the item terminal.
	MarkFailed(ctx context.Context, itemID string, workerID string, lastError string, now time.Time) error
	// MarkRetry increments the attempt count and returns the item to pending,
	// claimable no earlier than nextEligibleAt.
	MarkRetry(ctx context.Context, itemID string, workerID string, lastError string, nextEligibleAt time.Time, now time.Time) error
	// ReleaseClaim returns an unexecuted claimed item to pending without
	// consuming an attempt.
	ReleaseClaim(ctx context.Context, itemID string, workerID string, now time.Time) error
	SaveCheckpoint(ctx context.Context, itemID string, workerID string, checkpoint entities.Checkpoint, now time.Time) error
	// CountUnsettledPredecessors counts earlier items of the group that are not completed.
	CountUnsettledPredecessors(ctx context.Context, correlationID string, sequence int) (int, error)
	GetItem(ctx context.Context, itemID string) (entities.QueueItem, error)
	// ResetFailed moves a failed item back to pending with a fresh attempt
	// budget. A read-back snapshot is dropped so the retry reads again.
	ResetFailed(ctx context.Context, itemID string, now time.Time) (entities.QueueItem, error)
	HasPending(ctx context.Context, now time.Time) (bool, error)
	StatusCounts(ctx context.Context, now time.Time) (QueueStatus, error)
	ListFailed(ctx context.Context, limit int) ([]entities.QueueItem, error)
	// RequeueStale returns items processing since before claimedBefore to pending.
	RequeueStale(ctx context.Context, claimedBefore time.Time, now time.Time) ([]entities.QueueItem, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)
	// FlagFailedBefore marks unflagged failed items last touched before cutoff
	// and returns the newly flagged ones.
	FlagFailedBefore(ctx context.Context, cutoff time.Time, now time.Time) ([]entities.QueueItem, error)
}

// QueueStatus is the operator-facing queue snapshot.
type QueueStatus struct {
	Pending                 int
	Processing              int
	Completed               int
	Failed                  int
	OldestPendingAgeSeconds int64
}

// PushRequest is one operation replayed against the legacy platform.
type PushRequest struct {
	Mapping          entities.EntityMapping
	Operation        entities.Operation
	LegacyID         string
	IdempotencyToken string
	Body             any
}

// PushResult carries the legacy-assigned identifier for creates and the
// confirmed identifier for updates and deletes.
type PushResult struct {
	LegacyID string
}

// LegacyPlatform is the client for the external authoritative system.
type LegacyPlatform interface {
	Push(ctx context.Context, req PushRequest) (PushResult, error)
	// ReadBack fetches canonical state; ErrLegacyObjectNotFound when absent.
	ReadBack(ctx context.Context, mapping entities.EntityMapping, legacyID string) (map[string]any, error)
}

// UpsertRequest is one full-overwrite reconciliation write.
type UpsertRequest struct {
	Mapping  entities.EntityMapping
	RecordID string
	LegacyID string
	Columns  map[string]any
	At       time.Time
}

// PrimaryStore is the primary database client used for reconciliation.
type PrimaryStore interface {
	// UpsertCanonical writes mapped columns by primary id and sets the
	// legacy-id column only when it is still empty.
	UpsertCanonical(ctx context.Context, req UpsertRequest) error
	// MarkLegacyDeleted records a confirmed legacy deletion without touching the legacy id.
	MarkLegacyDeleted(ctx context.Context, mapping entities.EntityMapping, recordID string, legacyID string, at time.Time) error
	LookupLegacyID(ctx context.Context, mapping entities.EntityMapping, recordID string) (string, bool, error)
}

// SyncConfigProvider exposes the read-only entity mapping rules.
type SyncConfigProvider interface {
	Mapping(target string) (entities.EntityMapping, error)
}

// Waker nudges the processor after an enqueue. Implementations must not block.
type Waker interface {
	Wake(ctx context.Context, correlationID string) error
}

// DeadLetterAlert is the operator-visible record of a terminal failure.
type DeadLetterAlert struct {
	ItemID        string
	CorrelationID string
	Sequence      int
	Target        string
	RecordID      string
	Operation     entities.Operation
	AttemptCount  int
	Stage         entities.WorkflowStage
	LastError     string
	Reason        string
	OccurredAt    time.Time
}

const (
	AlertReasonFatalError        = "fatal_error"
	AlertReasonAttemptsExhausted = "attempts_exhausted"
	AlertReasonAgedForReview     = "aged_for_review"
)

type AlertPublisher interface {
	PublishDeadLetter(ctx context.Context, alert DeadLetterAlert) error
}

// AlertSink receives alerts consumed back off the event bus.
type AlertSink interface {
	DeliverAlert(ctx context.Context, alert DeadLetterAlert) error
}

// Clock allows deterministic testing of backoff and retention rules.
type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
