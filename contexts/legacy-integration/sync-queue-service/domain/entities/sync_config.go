package entities

import (
	"sort"
	"strings"

	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
)

// FieldMapping copies one legacy field into one primary-database column.
type FieldMapping struct {
	LegacyField   string
	PrimaryColumn string
}

// EntityMapping holds the endpoint and field rules for one entity type.
type EntityMapping struct {
	Entity         EntityKind
	LegacyType     string
	Endpoint       string
	PrimaryTable   string
	PrimaryKey     string
	LegacyIDColumn string
	Fields         []FieldMapping
	RequiredOnRead []string
}

// SyncConfig is read-only after load.
type SyncConfig struct {
	entities map[EntityKind]EntityMapping
}

func NewSyncConfig(mappings []EntityMapping) (SyncConfig, error) {
	cfg := SyncConfig{entities: make(map[EntityKind]EntityMapping, len(mappings))}
	for _, mapping := range mappings {
		if err := mapping.validate(); err != nil {
			return SyncConfig{}, err
		}
		if _, exists := cfg.entities[mapping.Entity]; exists {
			return SyncConfig{}, domainerrors.NewValidationError("sync_config", "entity %q configured twice", mapping.Entity)
		}
		mapping = mapping.withDefaults()
		for _, field := range mapping.Fields {
			if field.PrimaryColumn == mapping.PrimaryKey || field.PrimaryColumn == mapping.LegacyIDColumn {
				return SyncConfig{}, domainerrors.NewValidationError("sync_config.fields", "column %q is managed by the queue on %s", field.PrimaryColumn, mapping.Entity)
			}
		}
		cfg.entities[mapping.Entity] = mapping
	}
	return cfg, nil
}

func (c SyncConfig) Mapping(target string) (EntityMapping, error) {
	mapping, ok := c.entities[EntityKind(strings.TrimSpace(target))]
	if !ok {
		return EntityMapping{}, domainerrors.ErrUnknownEntity
	}
	return mapping, nil
}

func (c SyncConfig) Entities() []EntityKind {
	kinds := make([]EntityKind, 0, len(c.entities))
	for kind := range c.entities {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (m EntityMapping) validate() error {
	if !m.Entity.Valid() {
		return domainerrors.NewValidationError("sync_config.entity", "unknown entity kind %q", m.Entity)
	}
	if strings.TrimSpace(m.Endpoint) == "" {
		return domainerrors.NewValidationError("sync_config.endpoint", "is required for %s", m.Entity)
	}
	if strings.TrimSpace(m.PrimaryTable) == "" {
		return domainerrors.NewValidationError("sync_config.primary_table", "is required for %s", m.Entity)
	}
	seen := make(map[string]struct{}, len(m.Fields))
	for _, field := range m.Fields {
		if field.LegacyField == "" || field.PrimaryColumn == "" {
			return domainerrors.NewValidationError("sync_config.fields", "empty mapping on %s", m.Entity)
		}
		if _, dup := seen[field.PrimaryColumn]; dup {
			return domainerrors.NewValidationError("sync_config.fields", "column %q mapped twice on %s", field.PrimaryColumn, m.Entity)
		}
		seen[field.PrimaryColumn] = struct{}{}
	}
	return nil
}

func (m EntityMapping) withDefaults() EntityMapping {
	if m.PrimaryKey == "" {
		m.PrimaryKey = "id"
	}
	if m.LegacyIDColumn == "" {
		m.LegacyIDColumn = "legacy_id"
	}
	if m.LegacyType == "" {
		m.LegacyType = string(m.Entity)
	}
	m.Fields = append([]FieldMapping(nil), m.Fields...)
	m.RequiredOnRead = append([]string(nil), m.RequiredOnRead...)
	return m
}

// Mappings returns every entity mapping ordered by entity kind.
func (c SyncConfig) Mappings() []EntityMapping {
	mappings := make([]EntityMapping, 0, len(c.entities))
	for _, kind := range c.Entities() {
		mappings = append(mappings, c.entities[kind])
	}
	return mappings
}
