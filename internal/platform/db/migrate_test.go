package db

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

var migrationName = regexp.MustCompile(`^\d{5}_[a-z_]+\.sql$`)

func TestEmbeddedMigrations_Layout(t *testing.T) {
	fsys, err := migrationFS()
	if err != nil {
		t.Fatalf("migrationFS: %v", err)
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for _, e := range entries {
		if !migrationName.MatchString(e.Name()) {
			t.Errorf("unexpected migration file name %q", e.Name())
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		body := string(data)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Errorf("%s is missing goose annotations", e.Name())
		}
	}
}

func TestEmbeddedMigrations_AppointmentSlotIndex(t *testing.T) {
	fsys, err := migrationFS()
	if err != nil {
		t.Fatalf("migrationFS: %v", err)
	}
	data, err := fs.ReadFile(fsys, "00002_appointment.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(data)
	if !strings.Contains(sql, "CREATE UNIQUE INDEX "+AppointmentSlotConstraint) {
		t.Error("expected partial unique index on active appointment slots")
	}
	if !strings.Contains(sql, "WHERE status <> 'cancelled'") {
		t.Error("expected cancelled appointments to be excluded from the slot index")
	}
}
