package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedFS_ContainsMigrationFiles(t *testing.T) {
	// Given: The embedded filesystem
	// When: We read the directory
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("failed to read embedded FS: %v", err)
	}

	// Then: It contains both schema migrations
	want := map[string]bool{
		"001_initial_schema.sql": false,
		"002_sync_outbox.sql":    false,
	}
	for _, entry := range entries {
		if _, ok := want[entry.Name()]; ok {
			want[entry.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s not found in embedded FS", name)
		}
	}
}

func TestEmbeddedFS_MigrationFilesHaveGooseDirectives(t *testing.T) {
	for _, name := range []string{"001_initial_schema.sql", "002_sync_outbox.sql"} {
		content, err := FS.ReadFile(name)
		if err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}

		s := string(content)
		if !strings.Contains(s, "-- +goose Up") {
			t.Errorf("%s missing '-- +goose Up' directive", name)
		}
		if !strings.Contains(s, "-- +goose Down") {
			t.Errorf("%s missing '-- +goose Down' directive", name)
		}
	}
}

func TestEmbeddedFS_InitialSchemaCreatesAllEntityTables(t *testing.T) {
	content, err := FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("failed to read migration file: %v", err)
	}

	tables := []string{
		"customers", "suppliers", "agents", "car_types", "branches", "reservations",
		"payments", "commission_rules", "card_stubs", "requests", "car_sales",
	}
	for _, table := range tables {
		if !strings.Contains(string(content), "CREATE TABLE "+table+" (") {
			t.Errorf("migration missing %s table creation", table)
		}
	}
}
