package workers

import (
	"context"
	"testing"
	"time"

	"rentbridge/contexts/legacy-integration/sync-queue-service/adapters/memory"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

func TestCleanupDeletesExpiredCompletedAndFlagsAgedFailures(t *testing.T) {
	ctx := context.Background()
	clock := memory.NewManualClock(testStart)
	store := memory.NewStore(nil)

	enqueueGroup(t, store, "txn-old", 1, clock.Now())
	enqueueGroup(t, store, "txn-failed", 1, clock.Now())
	claimAll(t, store, clock.Now())
	if err := store.MarkCompleted(ctx, "txn-old-1", fixtureWorker, clock.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := store.MarkFailed(ctx, "txn-failed-1", fixtureWorker, "push: status 422", clock.Now()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	clock.Advance(8 * 24 * time.Hour)
	enqueueGroup(t, store, "txn-fresh", 1, clock.Now())
	claimAll(t, store, clock.Now())
	if err := store.MarkCompleted(ctx, "txn-fresh-1", fixtureWorker, clock.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	alerts := &recordingAlerts{}
	job := CleanupJob{
		Queue:     store,
		Alerts:    alerts,
		Clock:     clock,
		Retention: 7 * 24 * time.Hour,
		ReviewAge: 24 * time.Hour,
	}
	if err := job.RunOnce(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := store.GetItem(ctx, "txn-old-1"); err == nil {
		t.Fatalf("expected expired completed item deleted")
	}
	if _, err := store.GetItem(ctx, "txn-fresh-1"); err != nil {
		t.Fatalf("expected fresh completed item kept: %v", err)
	}
	failed := getItem(t, store, "txn-failed-1")
	if failed.Status != entities.ItemStatusFailed || failed.FlaggedAt == nil {
		t.Fatalf("expected failed item kept and flagged, got %+v", failed)
	}

	raised := alerts.Alerts()
	if len(raised) != 1 || raised[0].Reason != ports.AlertReasonAgedForReview || raised[0].LastError != "push: status 422" {
		t.Fatalf("expected one review alert, got %+v", raised)
	}

	if err := job.RunOnce(ctx); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if len(alerts.Alerts()) != 1 {
		t.Fatalf("expected flagged item not to be alerted twice")
	}
}

func TestStalenessSweeperRequeuesOnlyExpiredClaims(t *testing.T) {
	ctx := context.Background()
	clock := memory.NewManualClock(testStart)
	store := memory.NewStore(nil)

	enqueueGroup(t, store, "txn-crashed", 1, clock.Now())
	claimAll(t, store, clock.Now())
	clock.Advance(15 * time.Minute)
	enqueueGroup(t, store, "txn-busy", 1, clock.Now())
	claimAll(t, store, clock.Now())
	clock.Advance(5 * time.Minute)

	sweeper := StalenessSweeper{Queue: store, Clock: clock, Timeout: 15 * time.Minute}
	if err := sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	crashed := getItem(t, store, "txn-crashed-1")
	if crashed.Status != entities.ItemStatusPending || crashed.ClaimedBy != "" || crashed.AttemptCount != 0 {
		t.Fatalf("expected abandoned claim back to pending with budget intact, got %+v", crashed)
	}
	if busy := getItem(t, store, "txn-busy-1"); busy.Status != entities.ItemStatusProcessing {
		t.Fatalf("expected live claim untouched, got %s", busy.Status)
	}
}
