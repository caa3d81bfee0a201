package entities

import (
	"strings"
	"time"

	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
)

type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}

type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

func (s ItemStatus) Terminal() bool {
	return s == ItemStatusCompleted || s == ItemStatusFailed
}

// CheckpointStage records how far the sync workflow got for an item, so a
// retry resumes instead of replaying the legacy push.
type CheckpointStage string

const (
	CheckpointNone     CheckpointStage = ""
	CheckpointPushed   CheckpointStage = "pushed"
	CheckpointReadBack CheckpointStage = "read_back"
)

type Checkpoint struct {
	Stage     CheckpointStage
	LegacyID  string
	Canonical map[string]any
}

// Rewound is the checkpoint a manually retried item resumes from. A pushed
// legacy id survives, a read-back snapshot does not, so the retry reads
// canonical state again.
func (c Checkpoint) Rewound() Checkpoint {
	if c.Stage == CheckpointReadBack {
		return Checkpoint{Stage: CheckpointPushed, LegacyID: c.LegacyID}
	}
	return c
}

// QueueItem is one durable unit of synchronization work.
type QueueItem struct {
	ID               string
	CorrelationID    string
	Sequence         int
	Target           string
	RecordID         string
	Operation        Operation
	Payload          Payload
	Status           ItemStatus
	AttemptCount     int
	LastError        string
	IdempotencyToken string
	Checkpoint       Checkpoint
	NextEligibleAt   time.Time
	ClaimedAt        *time.Time
	ClaimedBy        string
	FlaggedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ProcessedAt      *time.Time
}

// NewItemSpec is one ordered logical operation handed to the enqueuer.
type NewItemSpec struct {
	Sequence  int
	Target    string
	RecordID  string
	Operation Operation
	Payload   Payload
}

func NewQueueItem(
	id string,
	correlationID string,
	idempotencyToken string,
	spec NewItemSpec,
	now time.Time,
) (QueueItem, error) {
	if strings.TrimSpace(id) == "" {
		return QueueItem{}, domainerrors.NewValidationError("id", "is required")
	}
	if err := spec.Validate(); err != nil {
		return QueueItem{}, err
	}
	now = now.UTC()
	return QueueItem{
		ID:               id,
		CorrelationID:    correlationID,
		Sequence:         spec.Sequence,
		Target:           spec.Target,
		RecordID:         spec.RecordID,
		Operation:        spec.Operation,
		Payload:          spec.Payload,
		Status:           ItemStatusPending,
		IdempotencyToken: idempotencyToken,
		NextEligibleAt:   now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s NewItemSpec) Validate() error {
	if s.Sequence < 1 {
		return domainerrors.NewValidationError("sequence", "must be >= 1, got %d", s.Sequence)
	}
	if strings.TrimSpace(s.Target) == "" {
		return domainerrors.NewValidationError("target", "is required")
	}
	if strings.TrimSpace(s.RecordID) == "" {
		return domainerrors.NewValidationError("record_id", "is required")
	}
	if !s.Operation.Valid() {
		return domainerrors.NewValidationError("operation", "unsupported operation %q", s.Operation)
	}
	if s.Payload.Kind != EntityKind(s.Target) {
		return domainerrors.NewValidationError("payload.kind", "kind %q does not match target %q", s.Payload.Kind, s.Target)
	}
	return s.Payload.Validate(s.Operation)
}

// EligibleAt reports whether a pending item may be claimed at now.
func (i QueueItem) EligibleAt(now time.Time) bool {
	return i.Status == ItemStatusPending && !now.UTC().Before(i.NextEligibleAt.UTC())
}

// KnownLegacyID resolves the legacy identifier from the checkpoint first and
// then from the payload.
func (i QueueItem) KnownLegacyID() string {
	if i.Checkpoint.LegacyID != "" {
		return i.Checkpoint.LegacyID
	}
	return i.Payload.LegacyID()
}
