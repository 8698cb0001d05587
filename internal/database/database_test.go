package database

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"shopping_items", "settings", "backups"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenFileTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quickyshoppy.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO shopping_items (name, category, isCompleted, createdAt) VALUES ('Milk', 'Dairy', 0, 1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	// Already migrated: reopening keeps the data.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM shopping_items`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	var mode string
	db.QueryRow(`PRAGMA journal_mode`).Scan(&mode)
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal mode = %q, want wal", mode)
	}
}

func TestDSN(t *testing.T) {
	got := dsn("x.db")
	if !strings.HasPrefix(got, "x.db?_pragma=journal_mode(WAL)&") || !strings.Contains(got, "_pragma=foreign_keys(1)") {
		t.Errorf("dsn = %q", got)
	}
}
