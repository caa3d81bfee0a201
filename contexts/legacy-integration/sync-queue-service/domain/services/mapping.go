package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
)

// MapCanonical transforms a canonical legacy object into primary-database
// column values. Every mapped column is present in the result so the upsert
// is a full overwrite; absent legacy fields become nil. Legacy field names may
// address nested objects with dots ("address.city").
func MapCanonical(mapping entities.EntityMapping, canonical map[string]any) (map[string]any, error) {
	if canonical == nil {
		return nil, fmt.Errorf("canonical %s object is empty", mapping.Entity)
	}
	for _, field := range mapping.RequiredOnRead {
		if value, ok := lookupPath(canonical, field); !ok || value == nil {
			return nil, fmt.Errorf("canonical %s object missing required field %q", mapping.Entity, field)
		}
	}

	columns := make(map[string]any, len(mapping.Fields))
	for _, field := range mapping.Fields {
		value, _ := lookupPath(canonical, field.LegacyField)
		columns[field.PrimaryColumn] = value
	}
	return columns, nil
}

func lookupPath(object map[string]any, path string) (any, bool) {
	current := any(object)
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// DecodeObject decodes a JSON object, keeping integral numbers as int64 so
// they survive the round trip into integer columns.
func DecodeObject(raw []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var object map[string]any
	if err := decoder.Decode(&object); err != nil {
		return nil, err
	}
	normalized, _ := normalizeNumbers(object).(map[string]any)
	return normalized, nil
}

func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case map[string]any:
		for key, nested := range typed {
			typed[key] = normalizeNumbers(nested)
		}
		return typed
	case []any:
		for i, nested := range typed {
			typed[i] = normalizeNumbers(nested)
		}
		return typed
	default:
		return value
	}
}
