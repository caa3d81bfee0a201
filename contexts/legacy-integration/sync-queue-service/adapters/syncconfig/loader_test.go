package syncconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
)

func TestDefaultCoversEveryEntityKind(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []entities.EntityKind{entities.EntityBooking, entities.EntityCustomer, entities.EntityListing}, cfg.Entities())

	listing, err := cfg.Mapping("listing")
	require.NoError(t, err)
	assert.Equal(t, "property", listing.LegacyType)
	assert.Equal(t, "listings", listing.PrimaryTable)
	assert.Equal(t, []string{"id", "title"}, listing.RequiredOnRead)
	assert.Contains(t, listing.Fields, entities.FieldMapping{LegacyField: "updated_at", PrimaryColumn: "legacy_updated_at"})
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte(`
entities:
  - entity: customer
    endpoint: /guests
    primary_table: customers
    retries: 3
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries")
}

func TestParseRejectsEmptyAndInvalidConfigs(t *testing.T) {
	_, err := Parse([]byte("entities: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(`
entities:
  - entity: invoice
    endpoint: /invoices
    primary_table: invoices
`))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entities:
  - entity: customer
    legacy_type: member
    endpoint: /members
    primary_table: members
    fields:
      - {legacy: mail, column: email}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	mapping, err := cfg.Mapping("customer")
	require.NoError(t, err)
	assert.Equal(t, "member", mapping.LegacyType)
	assert.Equal(t, "legacy_id", mapping.LegacyIDColumn)
	assert.Equal(t, []entities.FieldMapping{{LegacyField: "mail", PrimaryColumn: "email"}}, mapping.Fields)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	fallback, err := Load("")
	require.NoError(t, err)
	assert.Len(t, fallback.Entities(), 3)
}
