package eventsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
	"rentbridge/internal/shared/events"
)

const (
	eventTypeQueueWake  = "legacy_sync.queue.wake_requested"
	eventTypeDeadLetter = "legacy_sync.item.dead_lettered"
	eventTypeFlagged    = "legacy_sync.item.flagged_for_review"
)

// Publisher puts wake signals and operator alerts on the event bus.
type Publisher struct {
	Bus   ports.EventPublisher
	Clock ports.Clock
}

func (p Publisher) Wake(ctx context.Context, correlationID string) error {
	return p.Bus.Publish(ctx, events.TopicQueueWake, ports.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventTypeQueueWake,
		OccurredAt:    p.now(),
		SourceService: events.SourceSyncQueue,
		CorrelationID: correlationID,
		EntityType:    "correlation_group",
		EntityID:      correlationID,
		SchemaVersion: 1,
		PartitionKey:  correlationID,
		Data:          json.RawMessage(`{}`),
	})
}

type alertData struct {
	ItemID        string    `json:"item_id"`
	CorrelationID string    `json:"correlation_id"`
	Sequence      int       `json:"sequence"`
	Target        string    `json:"target"`
	RecordID      string    `json:"record_id"`
	Operation     string    `json:"operation"`
	AttemptCount  int       `json:"attempt_count"`
	Stage         string    `json:"stage,omitempty"`
	LastError     string    `json:"last_error"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (p Publisher) PublishDeadLetter(ctx context.Context, alert ports.DeadLetterAlert) error {
	data, err := json.Marshal(alertData{
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
		OccurredAt:    alert.OccurredAt.UTC(),
	})
	if err != nil {
		return err
	}

	topic, eventType := events.TopicItemDeadLetter, eventTypeDeadLetter
	if alert.Reason == ports.AlertReasonAgedForReview {
		topic, eventType = events.TopicItemFlagged, eventTypeFlagged
	}
	return p.Bus.Publish(ctx, topic, ports.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		OccurredAt:    p.now(),
		SourceService: events.SourceSyncQueue,
		CorrelationID: alert.CorrelationID,
		EntityType:    alert.Target,
		EntityID:      alert.RecordID,
		SchemaVersion: 1,
		PartitionKey:  alert.CorrelationID,
		Data:          data,
	})
}

// SubscribeAlerts delivers dead-letter and review alerts from the bus to sink.
// An undecodable event is logged and acknowledged.
func SubscribeAlerts(ctx context.Context, subscriber ports.EventSubscriber, consumerGroup string, sink ports.AlertSink, logger *slog.Logger) error {
	logger = application.ResolveLogger(logger)
	handler := func(ctx context.Context, event ports.EventEnvelope) error {
		alert, err := decodeAlert(event)
		if err != nil {
			logger.Warn("alert event dropped",
				"event", "sync_queue_alert_decode_failed",
				"module", application.ModuleName,
				"layer", "adapter",
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return nil
		}
		return sink.DeliverAlert(ctx, alert)
	}
	for _, topic := range []string{events.TopicItemDeadLetter, events.TopicItemFlagged} {
		if err := subscriber.Subscribe(ctx, topic, consumerGroup, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func decodeAlert(event ports.EventEnvelope) (ports.DeadLetterAlert, error) {
	var data alertData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return ports.DeadLetterAlert{}, err
	}
	return ports.DeadLetterAlert{
		ItemID:        data.ItemID,
		CorrelationID: data.CorrelationID,
		Sequence:      data.Sequence,
		Target:        data.Target,
		RecordID:      data.RecordID,
		Operation:     entities.Operation(data.Operation),
		AttemptCount:  data.AttemptCount,
		Stage:         entities.WorkflowStage(data.Stage),
		LastError:     data.LastError,
		Reason:        data.Reason,
		OccurredAt:    data.OccurredAt,
	}, nil
}

// AlertLog writes every consumed alert as an operator-facing log line.
type AlertLog struct {
	Logger *slog.Logger
}

func (l AlertLog) DeliverAlert(_ context.Context, alert ports.DeadLetterAlert) error {
	application.ResolveLogger(l.Logger).Error("operator attention required",
		"event", "sync_queue_operator_alert",
		"module", application.ModuleName,
		"layer", "adapter",
		"reason", alert.Reason,
		"item_id", alert.ItemID,
		"correlation_id", alert.CorrelationID,
		"sequence", alert.Sequence,
		"target", alert.Target,
		"record_id", alert.RecordID,
		"attempt_count", alert.AttemptCount,
		"error", alert.LastError,
	)
	return nil
}

// SubscribeWake forwards bus wake events to waker, typically the scheduler's
// in-process wake signal.
func SubscribeWake(ctx context.Context, subscriber ports.EventSubscriber, waker ports.Waker, logger *slog.Logger) error {
	logger = application.ResolveLogger(logger)
	return subscriber.Subscribe(ctx, events.TopicQueueWake, "legacy-sync-processor", func(ctx context.Context, event ports.EventEnvelope) error {
		logger.Debug("wake event received",
			"event", "sync_queue_wake_received",
			"module", application.ModuleName,
			"layer", "adapter",
			"correlation_id", event.CorrelationID,
		)
		return waker.Wake(ctx, event.CorrelationID)
	})
}

func (p Publisher) now() time.Time {
	if p.Clock == nil {
		return time.Now().UTC()
	}
	return p.Clock.Now().UTC()
}

var (
	_ ports.Waker          = Publisher{}
	_ ports.AlertPublisher = Publisher{}
	_ ports.AlertSink      = AlertLog{}
)
