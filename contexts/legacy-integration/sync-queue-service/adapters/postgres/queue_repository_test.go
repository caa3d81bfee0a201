package postgresadapter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
)

func TestQueueItemModelRoundTrip(t *testing.T) {
	now := time.Date(2026, time.March, 9, 7, 30, 0, 0, time.FixedZone("WET", 0))
	claimedAt := now.Add(time.Minute)
	item := entities.QueueItem{
		ID:               "item-1",
		CorrelationID:    "txn-1",
		Sequence:         2,
		Target:           "listing",
		RecordID:         "listing-1",
		Operation:        entities.OperationUpdate,
		Payload:          entities.NewListingPayload(entities.ListingPayload{LegacyID: "property-7", Bedrooms: 3}),
		Status:           entities.ItemStatusProcessing,
		AttemptCount:     1,
		LastError:        "push: timeout",
		IdempotencyToken: "token-1",
		Checkpoint: entities.Checkpoint{
			Stage:     entities.CheckpointReadBack,
			LegacyID:  "property-7",
			Canonical: map[string]any{"id": "property-7", "bedrooms": int64(3)},
		},
		NextEligibleAt: now,
		ClaimedAt:      &claimedAt,
		ClaimedBy:      "worker-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	model, err := queueItemModelFromEntity(item)
	require.NoError(t, err)
	assert.Equal(t, "read_back", model.CheckpointStage)
	assert.JSONEq(t, `{"kind":"listing","version":1,"data":{"legacy_id":"property-7","bedrooms":3}}`, string(model.Payload))

	decoded, err := model.toEntity()
	require.NoError(t, err)
	assert.Equal(t, item.Payload, decoded.Payload)
	assert.Equal(t, item.Checkpoint, decoded.Checkpoint)
	assert.Equal(t, time.UTC, decoded.CreatedAt.Location())
	assert.True(t, decoded.ClaimedAt.Equal(claimedAt))
	assert.Nil(t, decoded.ProcessedAt)
}

func TestToEntityRejectsCorruptPayload(t *testing.T) {
	_, err := queueItemModel{ID: "item-1", Payload: []byte(`{"kind":"listing","version":1,"data":{"rooms":2}}`)}.toEntity()
	assert.Error(t, err)
}

func TestSchemaStatementsAlterOnlySafeTables(t *testing.T) {
	mappings := []entities.EntityMapping{
		{Entity: entities.EntityListing, PrimaryTable: "listings", PrimaryKey: "id", LegacyIDColumn: "legacy_id"},
		{Entity: entities.EntityBooking, PrimaryTable: "bookings; drop table users", PrimaryKey: "id", LegacyIDColumn: "legacy_id"},
	}

	statements := SchemaStatements(mappings)
	require.NotEmpty(t, statements)
	assert.True(t, strings.HasPrefix(statements[0], "CREATE TABLE IF NOT EXISTS legacy_sync_queue"))

	var alters []string
	for _, statement := range statements {
		assert.False(t, strings.HasSuffix(statement, ";"))
		if strings.HasPrefix(statement, "ALTER TABLE") {
			alters = append(alters, statement)
		}
	}
	require.Len(t, alters, 1)
	assert.Contains(t, alters[0], "ALTER TABLE IF EXISTS listings ADD COLUMN IF NOT EXISTS legacy_id text")
	assert.Contains(t, alters[0], "legacy_synced_at timestamptz")
	assert.Contains(t, alters[0], "legacy_deleted_at timestamptz")
}

func TestCheckIdentifiers(t *testing.T) {
	mapping := entities.EntityMapping{Entity: entities.EntityCustomer, PrimaryTable: "customers", PrimaryKey: "id", LegacyIDColumn: "legacy_id"}
	assert.NoError(t, checkIdentifiers(mapping, map[string]any{"email": "a@b.test", "full_name": "A"}))
	assert.Error(t, checkIdentifiers(mapping, map[string]any{`email"; --`: "x"}))
}

func TestNormalizeValueEncodesNestedValues(t *testing.T) {
	nested, err := normalizeValue(map[string]any{"city": "Porto"})
	require.NoError(t, err)
	assert.Equal(t, `{"city":"Porto"}`, nested)

	list, err := normalizeValue([]any{"wifi", "pool"})
	require.NoError(t, err)
	assert.Equal(t, `["wifi","pool"]`, list)

	scalar, err := normalizeValue(int64(4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), scalar)
}

func TestUniqueViolationDetection(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "legacy_sync_queue_group_sequence"})
	assert.True(t, isUniqueViolation(err))
	assert.Equal(t, "legacy_sync_queue_group_sequence", constraintName(err))
	assert.False(t, isUniqueViolation(errors.New("timeout")))
}
