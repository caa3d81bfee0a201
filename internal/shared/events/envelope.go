package events

import (
	"encoding/json"
	"time"
)

// Envelope is the shared event shape published on the internal bus.
// Keep it backward compatible: consumers decode Data by EventType and SchemaVersion.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	SourceService string          `json:"source_service"`
	CorrelationID string          `json:"correlation_id"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	SchemaVersion int             `json:"schema_version"`
	PartitionKey  string          `json:"partition_key"`
	Data          json.RawMessage `json:"data"`
}

const (
	TopicQueueWake      = "legacy_sync.queue.wake"
	TopicItemDeadLetter = "legacy_sync.item.dead_lettered"
	TopicItemFlagged    = "legacy_sync.item.flagged_for_review"
	SourceSyncQueue     = "legacy-sync-queue-service"
)
