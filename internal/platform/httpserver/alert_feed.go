package httpserver

import (
	"context"
	"sync"

	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

const alertFeedBuffer = 16

// AlertFeed fans operator alerts out to connected status stream clients. A
// client that falls a full buffer behind misses alerts rather than blocking
// the bus.
type AlertFeed struct {
	mu          sync.Mutex
	subscribers map[chan ports.DeadLetterAlert]struct{}
}

func NewAlertFeed() *AlertFeed {
	return &AlertFeed{subscribers: make(map[chan ports.DeadLetterAlert]struct{})}
}

func (f *AlertFeed) DeliverAlert(_ context.Context, alert ports.DeadLetterAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- alert:
		default:
		}
	}
	return nil
}

// subscribe registers a stream client. The returned func unregisters it.
func (f *AlertFeed) subscribe() (<-chan ports.DeadLetterAlert, func()) {
	ch := make(chan ports.DeadLetterAlert, alertFeedBuffer)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()
	return ch, func() {
		f.mu.Lock()
		delete(f.subscribers, ch)
		f.mu.Unlock()
	}
}

var _ ports.AlertSink = (*AlertFeed)(nil)
