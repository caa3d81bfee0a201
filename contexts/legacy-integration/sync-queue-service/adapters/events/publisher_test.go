package eventsadapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbridge/contexts/legacy-integration/sync-queue-service/application/workers"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
	"rentbridge/internal/platform/messaging"
	"rentbridge/internal/shared/events"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func collect(t *testing.T, bus *messaging.Bus, topic string) <-chan events.Envelope {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	received := make(chan events.Envelope, 4)
	require.NoError(t, bus.Subscribe(ctx, topic, "test", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}))
	return received
}

func receive(t *testing.T, ch <-chan events.Envelope) events.Envelope {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return events.Envelope{}
	}
}

func TestDeadLetterAndReviewAlertsUseSeparateTopics(t *testing.T) {
	bus := messaging.NewBus(nil)
	deadLetters := collect(t, bus, events.TopicItemDeadLetter)
	flagged := collect(t, bus, events.TopicItemFlagged)
	now := time.Date(2026, time.April, 2, 15, 0, 0, 0, time.UTC)
	publisher := Publisher{Bus: bus, Clock: fixedClock{now: now}}

	alert := ports.DeadLetterAlert{
		ItemID:        "item-1",
		CorrelationID: "txn-1",
		Sequence:      2,
		Target:        "booking",
		RecordID:      "booking-1",
		Operation:     entities.OperationUpdate,
		AttemptCount:  5,
		Stage:         entities.StagePush,
		LastError:     "push: status 503",
		Reason:        ports.AlertReasonAttemptsExhausted,
		OccurredAt:    now,
	}
	require.NoError(t, publisher.PublishDeadLetter(context.Background(), alert))

	event := receive(t, deadLetters)
	assert.Equal(t, "legacy_sync.item.dead_lettered", event.EventType)
	assert.Equal(t, events.SourceSyncQueue, event.SourceService)
	assert.Equal(t, "txn-1", event.PartitionKey)
	assert.Equal(t, "booking-1", event.EntityID)
	assert.Equal(t, now, event.OccurredAt)

	var data map[string]any
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, "item-1", data["item_id"])
	assert.Equal(t, "attempts_exhausted", data["reason"])
	assert.Equal(t, float64(5), data["attempt_count"])

	alert.Reason = ports.AlertReasonAgedForReview
	require.NoError(t, publisher.PublishDeadLetter(context.Background(), alert))
	assert.Equal(t, "legacy_sync.item.flagged_for_review", receive(t, flagged).EventType)
}

func TestWakeEventsReachTheSchedulerSignal(t *testing.T) {
	bus := messaging.NewBus(nil)
	signal := workers.NewWakeSignal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, SubscribeWake(ctx, bus, signal, nil))

	require.NoError(t, Publisher{Bus: bus}.Wake(context.Background(), "txn-9"))

	select {
	case <-signal.C():
	case <-time.After(2 * time.Second):
		t.Fatal("wake event did not reach the signal")
	}
}

type channelSink chan ports.DeadLetterAlert

func (s channelSink) DeliverAlert(_ context.Context, alert ports.DeadLetterAlert) error {
	s <- alert
	return nil
}

func TestPublishedAlertsReachSubscribedSink(t *testing.T) {
	bus := messaging.NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := make(channelSink, 2)
	require.NoError(t, SubscribeAlerts(ctx, bus, "test-alerts", sink, nil))

	now := time.Date(2026, time.April, 3, 9, 30, 0, 0, time.UTC)
	publisher := Publisher{Bus: bus, Clock: fixedClock{now: now}}
	alert := ports.DeadLetterAlert{
		ItemID:        "item-7",
		CorrelationID: "txn-7",
		Sequence:      1,
		Target:        "customer",
		RecordID:      "customer-7",
		Operation:     entities.OperationCreate,
		AttemptCount:  1,
		Stage:         entities.StageReconcile,
		LastError:     "reconcile: missing email",
		Reason:        ports.AlertReasonFatalError,
		OccurredAt:    now,
	}
	require.NoError(t, publisher.PublishDeadLetter(context.Background(), alert))
	flagged := alert
	flagged.Reason = ports.AlertReasonAgedForReview
	require.NoError(t, publisher.PublishDeadLetter(context.Background(), flagged))

	got := make(map[string]ports.DeadLetterAlert)
	for range 2 {
		select {
		case delivered := <-sink:
			got[delivered.Reason] = delivered
		case <-time.After(2 * time.Second):
			t.Fatal("alert did not reach the sink")
		}
	}
	assert.Equal(t, alert, got[ports.AlertReasonFatalError])
	assert.Equal(t, flagged, got[ports.AlertReasonAgedForReview])
}

func TestUndecodableAlertIsDropped(t *testing.T) {
	bus := messaging.NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := make(channelSink, 1)
	require.NoError(t, SubscribeAlerts(ctx, bus, "test-alerts", sink, nil))

	require.NoError(t, bus.Publish(context.Background(), events.TopicItemDeadLetter, events.Envelope{EventID: "evt-bad", Data: json.RawMessage(`"not an alert"`)}))

	select {
	case alert := <-sink:
		t.Fatalf("expected the malformed event to be dropped, got %+v", alert)
	case <-time.After(50 * time.Millisecond):
	}
}
