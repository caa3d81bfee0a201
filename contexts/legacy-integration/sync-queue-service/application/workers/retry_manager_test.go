package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentbridge/contexts/legacy-integration/sync-queue-service/adapters/memory"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

func TestRetryManagerBacksOffUntilBudgetIsSpent(t *testing.T) {
	clock := memory.NewManualClock(testStart)
	store := memory.NewStore(nil)
	enqueueGroup(t, store, "txn-retry", 1, clock.Now())
	alerts := &recordingAlerts{}
	manager := RetryManager{
		Queue:  store,
		Alerts: alerts,
		Policy: services.BackoffPolicy{Base: time.Minute, Max: time.Hour, MaxAttempts: 3},
		Clock:  clock,
	}
	outcome := entities.RetryableFailure(entities.StageReconcile, errors.New("deadlock detected"))

	wantDelays := []time.Duration{time.Minute, 2 * time.Minute}
	for i, delay := range wantDelays {
		claimed := claimAll(t, store, clock.Now())
		if len(claimed) != 1 {
			t.Fatalf("attempt %d: expected item claimable, got %d", i+1, len(claimed))
		}
		resolution, err := manager.Resolve(context.Background(), claimed[0], outcome)
		if err != nil || resolution != ResolutionRetryScheduled {
			t.Fatalf("attempt %d: expected retry scheduled, got %v (%v)", i+1, resolution, err)
		}
		item := getItem(t, store, "txn-retry-1")
		if item.AttemptCount != i+1 || !item.NextEligibleAt.Equal(clock.Now().Add(delay)) {
			t.Fatalf("attempt %d: unexpected retry state %+v", i+1, item)
		}
		clock.Advance(delay)
	}

	claimed := claimAll(t, store, clock.Now())
	resolution, err := manager.Resolve(context.Background(), claimed[0], outcome)
	if err != nil || resolution != ResolutionDeadLettered {
		t.Fatalf("expected dead letter on final attempt, got %v (%v)", resolution, err)
	}
	item := getItem(t, store, "txn-retry-1")
	if item.Status != entities.ItemStatusFailed || item.AttemptCount != 3 || item.LastError != "reconcile: deadlock detected" {
		t.Fatalf("unexpected failed item %+v", item)
	}

	raised := alerts.Alerts()
	if len(raised) != 1 {
		t.Fatalf("expected one alert, got %d", len(raised))
	}
	alert := raised[0]
	if alert.Reason != ports.AlertReasonAttemptsExhausted || alert.AttemptCount != 3 || alert.Stage != entities.StageReconcile {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if alert.CorrelationID != "txn-retry" || alert.Sequence != 1 || alert.Target != "customer" {
		t.Fatalf("alert lost item identity: %+v", alert)
	}
}

func TestRetryManagerAlertFailureDoesNotFailResolution(t *testing.T) {
	clock := memory.NewManualClock(testStart)
	store := memory.NewStore(nil)
	enqueueGroup(t, store, "txn-alert", 1, clock.Now())
	claimed := claimAll(t, store, clock.Now())

	manager := RetryManager{
		Queue:  store,
		Alerts: &recordingAlerts{err: errors.New("bus closed")},
		Clock:  clock,
	}
	resolution, err := manager.Resolve(context.Background(), claimed[0], entities.FatalFailure(entities.StagePush, errors.New("status 400")))
	if err != nil || resolution != ResolutionDeadLettered {
		t.Fatalf("expected dead letter despite alert failure, got %v (%v)", resolution, err)
	}
	if got := getItem(t, store, "txn-alert-1"); got.Status != entities.ItemStatusFailed {
		t.Fatalf("expected failed item, got %s", got.Status)
	}
}

func TestRetryManagerReturnsStoreError(t *testing.T) {
	store := memory.NewStore(nil)
	manager := RetryManager{Queue: store}

	_, err := manager.Resolve(context.Background(), entities.QueueItem{ID: "missing"}, entities.RetryableFailure(entities.StagePush, errors.New("x")))
	if err == nil {
		t.Fatalf("expected error for unknown item")
	}
}
