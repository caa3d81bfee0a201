package httptransport

import "encoding/json"

const ActionProcessQueue = "processQueue"

type ProcessQueueRequest struct {
	Action string `json:"action,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ProcessQueueResponse struct {
	Processed    int `json:"processed"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	DeadLettered int `json:"dead_lettered"`
}

type EnqueueItemRequest struct {
	Sequence  int             `json:"sequence"`
	Target    string          `json:"target"`
	RecordID  string          `json:"record_id"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload" swaggertype:"object"`
}

type EnqueueRequest struct {
	CorrelationID string               `json:"correlation_id,omitempty"`
	Items         []EnqueueItemRequest `json:"items"`
}

type EnqueueResponse struct {
	CorrelationID string `json:"correlation_id"`
	Accepted      int    `json:"accepted"`
	Persisted     bool   `json:"persisted"`
}

type QueueItemDTO struct {
	ID            string `json:"id"`
	CorrelationID string `json:"correlation_id"`
	Sequence      int    `json:"sequence"`
	Target        string `json:"target"`
	RecordID      string `json:"record_id"`
	Operation     string `json:"operation"`
	Status        string `json:"status"`
	AttemptCount  int    `json:"attempt_count"`
	LastError     string `json:"last_error,omitempty"`
	LegacyID      string `json:"legacy_id,omitempty"`
	Checkpoint    string `json:"checkpoint,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
	FlaggedAt     string `json:"flagged_at,omitempty"`
}

type RetryItemResponse struct {
	Item QueueItemDTO `json:"item"`
}

type QueueStatusResponse struct {
	Pending                 int   `json:"pending"`
	Processing              int   `json:"processing"`
	Completed               int   `json:"completed"`
	Failed                  int   `json:"failed"`
	OldestPendingAgeSeconds int64 `json:"oldest_pending_age_seconds"`
}

type DeadLettersResponse struct {
	Items []QueueItemDTO `json:"items"`
}

// AlertDTO is an operator alert pushed on the status stream.
type AlertDTO struct {
	ItemID        string `json:"item_id"`
	CorrelationID string `json:"correlation_id"`
	Sequence      int    `json:"sequence"`
	Target        string `json:"target"`
	RecordID      string `json:"record_id"`
	Operation     string `json:"operation"`
	AttemptCount  int    `json:"attempt_count"`
	Stage         string `json:"stage,omitempty"`
	LastError     string `json:"last_error"`
	Reason        string `json:"reason"`
	OccurredAt    string `json:"occurred_at"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
