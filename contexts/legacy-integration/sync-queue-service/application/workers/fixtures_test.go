package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rentbridge/contexts/legacy-integration/sync-queue-service/adapters/memory"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

var testStart = time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC)

// scriptedExecutor succeeds unless an outcome is scripted for the item id.
type scriptedExecutor struct {
	mu       sync.Mutex
	outcomes map[string]entities.SyncOutcome
	calls    []string
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{outcomes: make(map[string]entities.SyncOutcome)}
}

func (e *scriptedExecutor) Execute(_ context.Context, item entities.QueueItem) entities.SyncOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, item.ID)
	if outcome, ok := e.outcomes[item.ID]; ok {
		return outcome
	}
	return entities.Succeeded("legacy-" + item.ID)
}

func (e *scriptedExecutor) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

type recordingAlerts struct {
	mu     sync.Mutex
	alerts []ports.DeadLetterAlert
	err    error
}

func (r *recordingAlerts) PublishDeadLetter(_ context.Context, alert ports.DeadLetterAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

func (r *recordingAlerts) Alerts() []ports.DeadLetterAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.DeadLetterAlert(nil), r.alerts...)
}

// enqueueGroup stores size customer updates for correlationID with item ids
// "<correlationID>-<sequence>".
func enqueueGroup(t *testing.T, store *memory.Store, correlationID string, size int, now time.Time) []entities.QueueItem {
	t.Helper()
	items := make([]entities.QueueItem, 0, size)
	for seq := 1; seq <= size; seq++ {
		spec := entities.NewItemSpec{
			Sequence:  seq,
			Target:    "customer",
			RecordID:  fmt.Sprintf("customer-%s-%d", correlationID, seq),
			Operation: entities.OperationUpdate,
			Payload:   entities.NewCustomerPayload(entities.CustomerPayload{FullName: "Guest", LegacyID: "guest-1"}),
		}
		id := fmt.Sprintf("%s-%d", correlationID, seq)
		item, err := entities.NewQueueItem(id, correlationID, id+"-token", spec, now)
		if err != nil {
			t.Fatalf("new queue item: %v", err)
		}
		items = append(items, item)
	}
	if err := store.Enqueue(context.Background(), correlationID, items); err != nil {
		t.Fatalf("enqueue %s: %v", correlationID, err)
	}
	return items
}

const fixtureWorker = "worker-fixture"

func claimAll(t *testing.T, store *memory.Store, now time.Time) []entities.QueueItem {
	t.Helper()
	claimed, err := store.ClaimBatch(context.Background(), fixtureWorker, 100, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	return claimed
}

func getItem(t *testing.T, store *memory.Store, itemID string) entities.QueueItem {
	t.Helper()
	item, err := store.GetItem(context.Background(), itemID)
	if err != nil {
		t.Fatalf("get item %s: %v", itemID, err)
	}
	return item
}
