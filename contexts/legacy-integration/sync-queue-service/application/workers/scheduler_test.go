package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentbridge/contexts/legacy-integration/sync-queue-service/adapters/memory"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
)

func TestWakeSignalCoalesces(t *testing.T) {
	signal := NewWakeSignal()
	for i := 0; i < 3; i++ {
		if err := signal.Wake(context.Background(), "txn-1"); err != nil {
			t.Fatalf("wake: %v", err)
		}
	}

	select {
	case <-signal.C():
	default:
		t.Fatalf("expected a pending wake")
	}
	select {
	case <-signal.C():
		t.Fatalf("expected wakes to coalesce into one")
	default:
	}
}

func TestSchedulerTickSkipsWhenNothingIsClaimable(t *testing.T) {
	clock := memory.NewManualClock(testStart)
	store := memory.NewStore(nil)
	executor := newScriptedExecutor()
	scheduler := Scheduler{Queue: store, Processor: newProcessor(store, executor, nil, clock), Clock: clock}

	if _, ran, err := scheduler.Tick(context.Background()); err != nil || ran {
		t.Fatalf("expected idle tick on empty queue, ran=%v err=%v", ran, err)
	}

	enqueueGroup(t, store, "txn-tick", 1, clock.Now())
	executor.outcomes["txn-tick-1"] = entities.RetryableFailure(entities.StagePush, errors.New("unreachable"))
	result, ran, err := scheduler.Tick(context.Background())
	if err != nil || !ran || result.Failed != 1 {
		t.Fatalf("expected tick to run the processor, result=%+v ran=%v err=%v", result, ran, err)
	}

	if _, ran, _ := scheduler.Tick(context.Background()); ran {
		t.Fatalf("expected no run while the only item backs off")
	}

	delete(executor.outcomes, "txn-tick-1")
	clock.Advance(time.Minute)
	result, ran, err = scheduler.Tick(context.Background())
	if err != nil || !ran || result.Completed != 1 {
		t.Fatalf("expected completion after backoff, result=%+v ran=%v err=%v", result, ran, err)
	}
}

func TestSchedulerRunProcessesOnStartAndOnWake(t *testing.T) {
	store := memory.NewStore(nil)
	enqueueGroup(t, store, "txn-run-a", 1, time.Now().UTC())

	wake := NewWakeSignal()
	scheduler := Scheduler{
		Queue:               store,
		Processor:           newProcessor(store, newScriptedExecutor(), nil, nil),
		Cleanup:             CleanupJob{Queue: store},
		Sweeper:             StalenessSweeper{Queue: store},
		Wake:                wake,
		PollInterval:        time.Hour,
		MaintenanceInterval: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	waitForStatus(t, store, "txn-run-a-1", entities.ItemStatusCompleted)

	enqueueGroup(t, store, "txn-run-b", 1, time.Now().UTC())
	if err := wake.Wake(context.Background(), "txn-run-b"); err != nil {
		t.Fatalf("wake: %v", err)
	}
	waitForStatus(t, store, "txn-run-b-1", entities.ItemStatusCompleted)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}
}

func waitForStatus(t *testing.T, store *memory.Store, itemID string, status entities.ItemStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		item, err := store.GetItem(context.Background(), itemID)
		if err == nil && item.Status == status {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("item %s did not reach %s", itemID, status)
}

func TestSchedulerMaintainSweepsThenCleans(t *testing.T) {
	clock := memory.NewManualClock(testStart)
	store := memory.NewStore(nil)
	enqueueGroup(t, store, "txn-maint", 1, clock.Now())
	claimAll(t, store, clock.Now())
	clock.Advance(time.Hour)

	scheduler := Scheduler{
		Queue:   store,
		Cleanup: CleanupJob{Queue: store, Clock: clock},
		Sweeper: StalenessSweeper{Queue: store, Clock: clock, Timeout: 15 * time.Minute},
	}
	if err := scheduler.Maintain(context.Background()); err != nil {
		t.Fatalf("maintain: %v", err)
	}
	if got := getItem(t, store, "txn-maint-1"); got.Status != entities.ItemStatusPending {
		t.Fatalf("expected stale claim requeued, got %s", got.Status)
	}
}

type failingSweepStore struct {
	*memory.Store
	err error
}

func (s failingSweepStore) RequeueStale(context.Context, time.Time, time.Time) ([]entities.QueueItem, error) {
	return nil, s.err
}

func TestSchedulerMaintainCleansEvenWhenSweepFails(t *testing.T) {
	ctx := context.Background()
	clock := memory.NewManualClock(testStart)
	store := memory.NewStore(nil)
	enqueueGroup(t, store, "txn-done", 1, clock.Now())
	claimAll(t, store, clock.Now())
	if err := store.MarkCompleted(ctx, "txn-done-1", fixtureWorker, clock.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	clock.Advance(2 * time.Hour)

	errSweep := errors.New("lock timeout")
	scheduler := Scheduler{
		Queue:   store,
		Cleanup: CleanupJob{Queue: store, Clock: clock, Retention: time.Hour},
		Sweeper: StalenessSweeper{Queue: failingSweepStore{Store: store, err: errSweep}, Clock: clock},
	}
	if err := scheduler.Maintain(ctx); !errors.Is(err, errSweep) {
		t.Fatalf("expected the sweep error to be reported, got %v", err)
	}
	if _, err := store.GetItem(ctx, "txn-done-1"); err == nil {
		t.Fatalf("expected retention cleanup to run after the failed sweep")
	}
}
