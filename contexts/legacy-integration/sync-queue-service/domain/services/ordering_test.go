package services

import (
	"testing"
	"time"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
)

func TestSortForProcessingOrdersByGroupThenSequence(t *testing.T) {
	base := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	items := []entities.QueueItem{
		{ID: "b2", CorrelationID: "txn-b", Sequence: 2, CreatedAt: base},
		{ID: "a2", CorrelationID: "txn-a", Sequence: 2, CreatedAt: base},
		{ID: "b1", CorrelationID: "txn-b", Sequence: 1, CreatedAt: base.Add(time.Second)},
		{ID: "a1", CorrelationID: "txn-a", Sequence: 1, CreatedAt: base.Add(time.Minute)},
	}

	SortForProcessing(items)

	want := []string{"a1", "a2", "b1", "b2"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
}

func TestLaterInGroupAndGate(t *testing.T) {
	items := []entities.QueueItem{
		{ID: "a1", CorrelationID: "txn-a", Sequence: 1},
		{ID: "a2", CorrelationID: "txn-a", Sequence: 2},
		{ID: "b1", CorrelationID: "txn-b", Sequence: 1},
		{ID: "a3", CorrelationID: "txn-a", Sequence: 3},
	}

	later := LaterInGroup(items, 0)
	if len(later) != 2 || later[0].ID != "a2" || later[1].ID != "a3" {
		t.Fatalf("expected a2 and a3, got %+v", later)
	}
	if got := LaterInGroup(items, 2); len(got) != 0 {
		t.Fatalf("expected nothing after b1, got %+v", got)
	}

	gate := NewGroupGate()
	if gate.Blocked("txn-a") {
		t.Fatalf("fresh gate must not block")
	}
	gate.Block("txn-a")
	if !gate.Blocked("txn-a") || gate.Blocked("txn-b") {
		t.Fatalf("expected only txn-a blocked")
	}
}
