package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, root string, rel string, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRepositoryContextsRespectBoundaries(t *testing.T) {
	violations, err := collectViolations(filepath.Join("..", "contexts"))
	if err != nil {
		t.Fatalf("collect violations: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s:%d imports %q (%s)", v.File, v.Line, v.Import, v.Rule)
	}
}

func TestDetectsLayerAndServiceViolations(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "billing/invoice-service/domain/entities/invoice.go", `package entities

import (
	"time"

	"gorm.io/gorm"
)

var _ = time.Now
var _ *gorm.DB
`)
	writeSource(t, root, "billing/invoice-service/application/commands/issue.go", `package commands

import (
	"rentbridge/contexts/billing/invoice-service/adapters/postgres"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
	"rentbridge/contexts/billing/invoice-service/domain/entities"
)
`)
	writeSource(t, root, "billing/invoice-service/adapters/postgres/repo.go", `package postgres

import "gorm.io/gorm"

var _ *gorm.DB
`)

	violations, err := collectViolations(root)
	if err != nil {
		t.Fatalf("collect violations: %v", err)
	}
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %+v", len(violations), violations)
	}

	want := map[string]string{}
	want["gorm.io/gorm"] = "domain import is outside explicit allowlist"
	want["rentbridge/contexts/billing/invoice-service/adapters/postgres"] = "application import is outside explicit allowlist"
	want["rentbridge/contexts/legacy-integration/sync-queue-service/ports"] = "cross-service imports are forbidden"
	for _, v := range violations {
		if want[v.Import] != v.Rule {
			t.Fatalf("unexpected violation %+v", v)
		}
	}
}

func TestUnparsableFileIsReported(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "billing/invoice-service/domain/broken.go", "package entities\nimport (")

	violations, err := collectViolations(root)
	if err != nil {
		t.Fatalf("collect violations: %v", err)
	}
	if len(violations) != 1 || violations[0].Rule != "file must parse" {
		t.Fatalf("expected parse violation, got %+v", violations)
	}
}
