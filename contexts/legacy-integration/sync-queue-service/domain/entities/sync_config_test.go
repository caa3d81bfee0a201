package entities

import (
	"errors"
	"testing"

	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
)

func TestNewSyncConfigAppliesDefaults(t *testing.T) {
	cfg, err := NewSyncConfig([]EntityMapping{{
		Entity:       EntityCustomer,
		Endpoint:     "/guests",
		PrimaryTable: "customers",
		Fields:       []FieldMapping{{LegacyField: "email", PrimaryColumn: "email"}},
	}})
	if err != nil {
		t.Fatalf("new sync config: %v", err)
	}

	mapping, err := cfg.Mapping(" customer ")
	if err != nil {
		t.Fatalf("mapping lookup: %v", err)
	}
	if mapping.PrimaryKey != "id" || mapping.LegacyIDColumn != "legacy_id" || mapping.LegacyType != "customer" {
		t.Fatalf("expected defaults applied, got %+v", mapping)
	}
	if _, err := cfg.Mapping("listing"); !errors.Is(err, domainerrors.ErrUnknownEntity) {
		t.Fatalf("expected unknown entity, got %v", err)
	}
	if kinds := cfg.Entities(); len(kinds) != 1 || kinds[0] != EntityCustomer {
		t.Fatalf("unexpected entities %v", kinds)
	}
}

func TestNewSyncConfigRejectsBadMappings(t *testing.T) {
	valid := EntityMapping{Entity: EntityListing, Endpoint: "/properties", PrimaryTable: "listings"}

	cases := map[string][]EntityMapping{
		"duplicate entity": {valid, valid},
		"missing endpoint": {{Entity: EntityListing, PrimaryTable: "listings"}},
		"unknown entity":   {{Entity: "invoice", Endpoint: "/invoices", PrimaryTable: "invoices"}},
		"managed column": {{
			Entity: EntityListing, Endpoint: "/properties", PrimaryTable: "listings",
			Fields: []FieldMapping{{LegacyField: "id", PrimaryColumn: "legacy_id"}},
		}},
		"column mapped twice": {{
			Entity: EntityListing, Endpoint: "/properties", PrimaryTable: "listings",
			Fields: []FieldMapping{
				{LegacyField: "title", PrimaryColumn: "title"},
				{LegacyField: "name", PrimaryColumn: "title"},
			},
		}},
	}
	for name, mappings := range cases {
		if _, err := NewSyncConfig(mappings); !domainerrors.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
