package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentbridge/internal/shared/events"
)

func TestBusDeliversToEverySubscriberOfTopic(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan string, 1)
	second := make(chan string, 1)
	other := make(chan string, 1)
	subscribe := func(topic string, sink chan string) {
		if err := bus.Subscribe(ctx, topic, "test", func(_ context.Context, event events.Envelope) error {
			sink <- event.EventID
			return nil
		}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	subscribe(events.TopicQueueWake, first)
	subscribe(events.TopicQueueWake, second)
	subscribe(events.TopicItemDeadLetter, other)

	if err := bus.Publish(context.Background(), events.TopicQueueWake, events.Envelope{EventID: "evt-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, sink := range map[string]chan string{"first": first, "second": second} {
		select {
		case id := <-sink:
			if id != "evt-1" {
				t.Fatalf("%s subscriber got %s", name, id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s subscriber got nothing", name)
		}
	}
	select {
	case id := <-other:
		t.Fatalf("subscriber of another topic received %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusHandlerErrorsDoNotStopDelivery(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan string, 2)
	if err := bus.Subscribe(ctx, events.TopicQueueWake, "test", func(_ context.Context, event events.Envelope) error {
		seen <- event.EventID
		return errors.New("handler failed")
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for _, id := range []string{"evt-1", "evt-2"} {
		if err := bus.Publish(context.Background(), events.TopicQueueWake, events.Envelope{EventID: id}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for _, want := range []string{"evt-1", "evt-2"} {
		select {
		case got := <-seen:
			if got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %s to be delivered", want)
		}
	}
}

func TestBusPublishHonoursCancelledContext(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bus.Publish(ctx, events.TopicQueueWake, events.Envelope{EventID: "evt-1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestBusUnsubscribesWhenContextEnds(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := bus.Subscribe(ctx, events.TopicQueueWake, "test", func(context.Context, events.Envelope) error { return nil }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.mu.RLock()
		remaining := len(bus.subscribers[events.TopicQueueWake])
		bus.mu.RUnlock()
		if remaining == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber was not removed after cancel")
}
