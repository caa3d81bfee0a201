package postgresadapter

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"

	"gorm.io/gorm"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the queue table and adds the reconciliation columns to
// every primary table named in mappings. All statements are idempotent.
func EnsureSchema(ctx context.Context, db *gorm.DB, mappings []entities.EntityMapping) error {
	statements := SchemaStatements(mappings)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, statement := range statements {
			if err := tx.Exec(statement).Error; err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}

func SchemaStatements(mappings []entities.EntityMapping) []string {
	statements := make([]string, 0)
	for _, statement := range strings.Split(schemaSQL, ";") {
		if trimmed := strings.TrimSpace(statement); trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	for _, mapping := range mappings {
		if checkIdentifiers(mapping, nil) != nil {
			continue
		}
		statements = append(statements, fmt.Sprintf(
			"ALTER TABLE IF EXISTS %s ADD COLUMN IF NOT EXISTS %s text, ADD COLUMN IF NOT EXISTS %s timestamptz, ADD COLUMN IF NOT EXISTS %s timestamptz",
			mapping.PrimaryTable, mapping.LegacyIDColumn, syncedAtColumn, deletedAtColumn,
		))
	}
	return statements
}
