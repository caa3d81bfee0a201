package syncconfig

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
)

//go:embed default.yaml
var defaultYAML []byte

type fileConfig struct {
	Entities []entityConfig `yaml:"entities"`
}

type entityConfig struct {
	Entity         string        `yaml:"entity"`
	LegacyType     string        `yaml:"legacy_type"`
	Endpoint       string        `yaml:"endpoint"`
	PrimaryTable   string        `yaml:"primary_table"`
	PrimaryKey     string        `yaml:"primary_key"`
	LegacyIDColumn string        `yaml:"legacy_id_column"`
	RequiredOnRead []string      `yaml:"required_on_read"`
	Fields         []fieldConfig `yaml:"fields"`
}

type fieldConfig struct {
	Legacy string `yaml:"legacy"`
	Column string `yaml:"column"`
}

// Load reads the sync config at path, or the embedded defaults when path is empty.
func Load(path string) (entities.SyncConfig, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entities.SyncConfig{}, fmt.Errorf("read sync config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return entities.SyncConfig{}, fmt.Errorf("sync config %s: %w", path, err)
	}
	return cfg, nil
}

func Default() (entities.SyncConfig, error) {
	return Parse(defaultYAML)
}

// Parse decodes YAML strictly; unknown keys are rejected.
func Parse(data []byte) (entities.SyncConfig, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file fileConfig
	if err := decoder.Decode(&file); err != nil {
		return entities.SyncConfig{}, fmt.Errorf("decode: %w", err)
	}
	if len(file.Entities) == 0 {
		return entities.SyncConfig{}, fmt.Errorf("no entities configured")
	}

	mappings := make([]entities.EntityMapping, 0, len(file.Entities))
	for _, entity := range file.Entities {
		mappings = append(mappings, entity.toMapping())
	}
	return entities.NewSyncConfig(mappings)
}

func (e entityConfig) toMapping() entities.EntityMapping {
	fields := make([]entities.FieldMapping, 0, len(e.Fields))
	for _, field := range e.Fields {
		fields = append(fields, entities.FieldMapping{LegacyField: field.Legacy, PrimaryColumn: field.Column})
	}
	return entities.EntityMapping{
		Entity:         entities.EntityKind(e.Entity),
		LegacyType:     e.LegacyType,
		Endpoint:       e.Endpoint,
		PrimaryTable:   e.PrimaryTable,
		PrimaryKey:     e.PrimaryKey,
		LegacyIDColumn: e.LegacyIDColumn,
		Fields:         fields,
		RequiredOnRead: e.RequiredOnRead,
	}
}
