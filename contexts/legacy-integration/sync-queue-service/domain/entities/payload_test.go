package entities

import (
	"encoding/json"
	"testing"
	"time"

	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
)

func TestPayloadValidatePerOperation(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
		op      Operation
		valid   bool
	}{
		{"listing create", NewListingPayload(ListingPayload{Title: "Loft", HostID: "host-1"}), OperationCreate, true},
		{"listing create without title", NewListingPayload(ListingPayload{HostID: "host-1"}), OperationCreate, false},
		{"listing update without title", NewListingPayload(ListingPayload{City: "Porto"}), OperationUpdate, true},
		{"listing bad currency", NewListingPayload(ListingPayload{Currency: "EURO"}), OperationUpdate, false},
		{"booking create", NewBookingPayload(BookingPayload{ListingID: "l-1", CustomerID: "c-1", CheckIn: "2026-05-01", CheckOut: "2026-05-04"}), OperationCreate, true},
		{"booking reversed dates", NewBookingPayload(BookingPayload{CheckIn: "2026-05-04", CheckOut: "2026-05-01"}), OperationUpdate, false},
		{"booking malformed date", NewBookingPayload(BookingPayload{CheckIn: "05/01/2026"}), OperationUpdate, false},
		{"customer bad email", NewCustomerPayload(CustomerPayload{Email: "nobody"}), OperationCreate, false},
		{"delete without data", Payload{Kind: EntityCustomer, Version: CurrentPayloadVersion}, OperationDelete, true},
		{"update without data", Payload{Kind: EntityCustomer, Version: CurrentPayloadVersion}, OperationUpdate, false},
		{"unknown kind", Payload{Kind: "invoice", Version: CurrentPayloadVersion}, OperationDelete, false},
		{"future version", Payload{Kind: EntityCustomer, Version: 2, Customer: &CustomerPayload{Email: "a@b.test"}}, OperationCreate, false},
		{"mismatched variant", Payload{Kind: EntityListing, Version: CurrentPayloadVersion, Customer: &CustomerPayload{Email: "a@b.test"}}, OperationUpdate, false},
	}

	for _, tc := range cases {
		err := tc.payload.Validate(tc.op)
		if tc.valid && err != nil {
			t.Fatalf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.valid && !domainerrors.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestPayloadJSONRoundTrip(t *testing.T) {
	original := NewBookingPayload(BookingPayload{ListingID: "l-1", CustomerID: "c-1", Guests: 2, TotalCents: 45000})
	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Payload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if decoded.Kind != EntityBooking || decoded.Booking == nil || *decoded.Booking != *original.Booking {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestPayloadUnmarshalRejectsUnknownData(t *testing.T) {
	var payload Payload
	err := json.Unmarshal([]byte(`{"kind":"customer","version":1,"data":{"email":"a@b.test","vip":true}}`), &payload)
	if !domainerrors.IsValidation(err) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}

	err = json.Unmarshal([]byte(`{"kind":"invoice","version":1,"data":{"total":1}}`), &payload)
	if !domainerrors.IsValidation(err) {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}

	if err := json.Unmarshal([]byte(`{"kind":"listing","version":1,"data":null}`), &payload); err != nil {
		t.Fatalf("null data should decode as empty variant: %v", err)
	}
	if payload.Data() != nil {
		t.Fatalf("expected no variant, got %+v", payload.Data())
	}
}

func TestNewQueueItem(t *testing.T) {
	now := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	spec := NewItemSpec{
		Sequence:  1,
		Target:    "customer",
		RecordID:  "customer-1",
		Operation: OperationCreate,
		Payload:   NewCustomerPayload(CustomerPayload{Email: "guest@example.test", LegacyID: "guest-7"}),
	}

	item, err := NewQueueItem("item-1", "txn-1", "token-1", spec, now)
	if err != nil {
		t.Fatalf("new queue item: %v", err)
	}
	if item.Status != ItemStatusPending || item.AttemptCount != 0 {
		t.Fatalf("expected fresh pending item, got %+v", item)
	}
	if !item.EligibleAt(now) || item.EligibleAt(now.Add(-time.Second)) {
		t.Fatalf("expected item claimable from its creation time")
	}
	if item.KnownLegacyID() != "guest-7" {
		t.Fatalf("expected payload legacy id, got %q", item.KnownLegacyID())
	}
	item.Checkpoint = Checkpoint{Stage: CheckpointPushed, LegacyID: "guest-8"}
	if item.KnownLegacyID() != "guest-8" {
		t.Fatalf("expected checkpoint legacy id to win, got %q", item.KnownLegacyID())
	}

	bad := spec
	bad.Sequence = 0
	if _, err := NewQueueItem("item-2", "txn-1", "token-2", bad, now); !domainerrors.IsValidation(err) {
		t.Fatalf("expected sequence validation error, got %v", err)
	}
	bad = spec
	bad.Target = "listing"
	if _, err := NewQueueItem("item-3", "txn-1", "token-3", bad, now); !domainerrors.IsValidation(err) {
		t.Fatalf("expected kind mismatch validation error, got %v", err)
	}
	bad = spec
	bad.Operation = "upsert"
	if _, err := NewQueueItem("item-4", "txn-1", "token-4", bad, now); !domainerrors.IsValidation(err) {
		t.Fatalf("expected operation validation error, got %v", err)
	}
}
