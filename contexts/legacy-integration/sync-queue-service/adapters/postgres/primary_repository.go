package postgresadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	application "rentbridge/contexts/legacy-integration/sync-queue-service/application"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	syncedAtColumn  = "legacy_synced_at"
	deletedAtColumn = "legacy_deleted_at"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PrimaryRepository writes reconciled legacy state into the primary tables
// named by the sync config.
type PrimaryRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewPrimaryRepository(db *gorm.DB, logger *slog.Logger) *PrimaryRepository {
	return &PrimaryRepository{
		db:     db,
		logger: application.ResolveLogger(logger),
	}
}

// UpsertCanonical overwrites every mapped column by primary id. The legacy-id
// column keeps its existing value and is only filled when empty.
func (r *PrimaryRepository) UpsertCanonical(ctx context.Context, req ports.UpsertRequest) error {
	mapping := req.Mapping
	if err := checkIdentifiers(mapping, req.Columns); err != nil {
		return err
	}

	values := map[string]any{
		mapping.PrimaryKey: req.RecordID,
		syncedAtColumn:     req.At.UTC(),
	}
	if req.LegacyID != "" {
		values[mapping.LegacyIDColumn] = req.LegacyID
	}
	columns := make([]string, 0, len(req.Columns))
	for column, value := range req.Columns {
		normalized, err := normalizeValue(value)
		if err != nil {
			return fmt.Errorf("column %s: %w", column, err)
		}
		values[column] = normalized
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := clause.AssignmentColumns(append(columns, syncedAtColumn))
	if req.LegacyID != "" {
		assignments = append(assignments, clause.Assignment{
			Column: clause.Column{Name: mapping.LegacyIDColumn},
			Value: gorm.Expr("COALESCE(NULLIF(?, ''), EXCLUDED.?)",
				clause.Column{Table: mapping.PrimaryTable, Name: mapping.LegacyIDColumn},
				clause.Column{Name: mapping.LegacyIDColumn},
			),
		})
	}

	err := r.db.WithContext(ctx).
		Table(mapping.PrimaryTable).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: mapping.PrimaryKey}},
			DoUpdates: assignments,
		}).
		Create(values).
		Error
	if err != nil {
		r.logger.Error("primary upsert failed",
			"event", "sync_primary_upsert_failed",
			"module", application.ModuleName,
			"layer", "adapter",
			"table", mapping.PrimaryTable,
			"record_id", req.RecordID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// MarkLegacyDeleted stamps the originating row. A row already removed locally
// is not an error.
func (r *PrimaryRepository) MarkLegacyDeleted(
	ctx context.Context,
	mapping entities.EntityMapping,
	recordID string,
	legacyID string,
	at time.Time,
) error {
	if err := checkIdentifiers(mapping, nil); err != nil {
		return err
	}
	updates := map[string]any{
		deletedAtColumn: at.UTC(),
		syncedAtColumn:  at.UTC(),
	}
	if legacyID != "" {
		updates[mapping.LegacyIDColumn] = gorm.Expr("COALESCE(NULLIF(?, ''), ?)",
			clause.Column{Name: mapping.LegacyIDColumn}, legacyID)
	}
	return r.db.WithContext(ctx).
		Table(mapping.PrimaryTable).
		Where(clause.Eq{Column: clause.Column{Name: mapping.PrimaryKey}, Value: recordID}).
		Updates(updates).
		Error
}

func (r *PrimaryRepository) LookupLegacyID(ctx context.Context, mapping entities.EntityMapping, recordID string) (string, bool, error) {
	if err := checkIdentifiers(mapping, nil); err != nil {
		return "", false, err
	}
	var rows []sql.NullString
	if err := r.db.WithContext(ctx).
		Table(mapping.PrimaryTable).
		Where(clause.Eq{Column: clause.Column{Name: mapping.PrimaryKey}, Value: recordID}).
		Limit(1).
		Pluck(mapping.LegacyIDColumn, &rows).
		Error; err != nil {
		return "", false, err
	}
	if len(rows) == 0 || !rows[0].Valid || rows[0].String == "" {
		return "", false, nil
	}
	return rows[0].String, true, nil
}

func checkIdentifiers(mapping entities.EntityMapping, columns map[string]any) error {
	names := []string{mapping.PrimaryTable, mapping.PrimaryKey, mapping.LegacyIDColumn}
	for column := range columns {
		names = append(names, column)
	}
	for _, name := range names {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("invalid sql identifier %q in %s mapping", name, mapping.Entity)
		}
	}
	return nil
}

// normalizeValue encodes nested legacy values as JSON so they land in json
// or text columns.
func normalizeValue(value any) (any, error) {
	switch value.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	default:
		return value, nil
	}
}

var _ ports.PrimaryStore = (*PrimaryRepository)(nil)
