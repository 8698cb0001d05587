package store

import (
	"testing"
	"time"

	"github.com/kroslabs/quickyshoppy/internal/database"
	"github.com/kroslabs/quickyshoppy/internal/model"
)

func setupBackupTestDB(t *testing.T) *BackupStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBackupStore(db)
}

func TestBackupCreate(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, err := bs.Create("backup-2026.db.enc", "quickyshoppy/backup-2026.db.enc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID == 0 {
		t.Error("expected non-zero id")
	}
	if b.Status != model.BackupStatusPending || b.Done() {
		t.Errorf("status = %q, want pending", b.Status)
	}

	got, err := bs.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ObjectKey != "quickyshoppy/backup-2026.db.enc" {
		t.Errorf("get = %+v", got)
	}

	if _, err := bs.Create("dup.db.enc", "quickyshoppy/backup-2026.db.enc"); err == nil {
		t.Error("expected error on duplicate object key")
	}
	if missing, _ := bs.GetByID(9999); missing != nil {
		t.Errorf("expected nil for missing id, got %+v", missing)
	}
}

func TestBackupCompleted(t *testing.T) {
	bs := setupBackupTestDB(t)
	b, _ := bs.Create("a.db.enc", "k/a.db.enc")

	if err := bs.MarkUploading(b.ID); err != nil {
		t.Fatalf("mark uploading: %v", err)
	}
	got, _ := bs.GetByID(b.ID)
	if got.Status != model.BackupStatusUploading {
		t.Errorf("status = %q, want uploading", got.Status)
	}

	if err := bs.MarkCompleted(b.ID, 4096, 12); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	got, _ = bs.GetByID(b.ID)
	if !got.Done() || got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.SizeBytes != 4096 || got.ItemCount != 12 {
		t.Errorf("size = %d items = %d, want 4096 and 12", got.SizeBytes, got.ItemCount)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestBackupFailed(t *testing.T) {
	bs := setupBackupTestDB(t)
	b, _ := bs.Create("b.db.enc", "k/b.db.enc")

	if err := bs.MarkFailed(b.ID, "upload failed"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ := bs.GetByID(b.ID)
	if got.Status != model.BackupStatusFailed || got.ErrorMessage != "upload failed" {
		t.Errorf("got = %+v", got)
	}
	if got.CompletedAt != nil {
		t.Error("failed backup must not have completed_at")
	}
}

func TestBackupListAndExpire(t *testing.T) {
	bs := setupBackupTestDB(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	bs.now = func() time.Time { return start }
	bs.Create("old.db.enc", "k/old")
	bs.now = func() time.Time { return start.Add(48 * time.Hour) }
	bs.Create("new.db.enc", "k/new")

	list, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Filename != "new.db.enc" {
		t.Fatalf("list = %+v, want newest first", list)
	}
	if limited, _ := bs.List(1); len(limited) != 1 {
		t.Errorf("limit ignored: %d records", len(limited))
	}

	keys, err := bs.Expire(start.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(keys) != 1 || keys[0] != "k/old" {
		t.Errorf("expired keys = %v, want [k/old]", keys)
	}
	list, _ = bs.List(10)
	if len(list) != 1 || list[0].Filename != "new.db.enc" {
		t.Errorf("remaining = %+v", list)
	}

	keys, _ = bs.Expire(start)
	if len(keys) != 0 {
		t.Errorf("second expire removed %v", keys)
	}
}
