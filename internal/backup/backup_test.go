package backup

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kroslabs/quickyshoppy/internal/database"
	"github.com/kroslabs/quickyshoppy/internal/model"
	"github.com/kroslabs/quickyshoppy/internal/secret"
	"github.com/kroslabs/quickyshoppy/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func testConfig() Config {
	return Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Region: "auto"},
		Passphrase: "backup passphrase",
		Retention:  time.Hour,
	}
}

func setupManager(t *testing.T, cfg Config) (*Manager, *mockS3Client, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(cfg, db, store.NewBackupStore(db), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	mock := newMockS3()
	if m.client != nil {
		m.client = mock
	}
	return m, mock, db
}

func TestManagerStateLifecycle(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, nil)
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}

	// Storage without a passphrase stays disabled.
	cfg := testConfig()
	cfg.Passphrase = ""
	if NewManager(cfg, nil, nil, nil, nil).Enabled() {
		t.Error("expected disabled without passphrase")
	}

	m2 := NewManager(testConfig(), nil, nil, nil, nil)
	if m2.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m2.Status().State, StateIdle)
	}
}

func TestRunNowDisabled(t *testing.T) {
	m, _, _ := setupManager(t, Config{})
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	m, mock, db := setupManager(t, testConfig())
	items := store.NewItemStore(db)
	items.Add("Milk", "1L")

	var states []State
	m.callback = func(s Status) { states = append(states, s.State) }

	record, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if record.Status != model.BackupStatusCompleted || record.SizeBytes == 0 {
		t.Errorf("record = %+v", record)
	}
	if record.ItemCount != 1 {
		t.Errorf("item count = %d, want 1", record.ItemCount)
	}
	if len(states) != 2 || states[0] != StateRunning || states[1] != StateIdle {
		t.Errorf("states = %v", states)
	}
	if m.Status().LastBackup == nil {
		t.Error("expected last backup time")
	}

	sealed, ok := mock.objects[record.ObjectKey]
	if !ok {
		t.Fatalf("object %q not uploaded", record.ObjectKey)
	}
	plain, err := secret.Decrypt(sealed, "backup passphrase")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	// The snapshot is a working database with the item in it.
	path := filepath.Join(t.TempDir(), "restored.db")
	if err := os.WriteFile(path, plain, 0o600); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	restored, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer restored.Close()
	var name string
	if err := restored.QueryRow(`SELECT name FROM shopping_items`).Scan(&name); err != nil {
		t.Fatalf("query snapshot: %v", err)
	}
	if name != "Milk" {
		t.Errorf("name = %q, want Milk", name)
	}

	stored, _ := m.backupStore.GetByID(record.ID)
	if stored.Status != model.BackupStatusCompleted {
		t.Errorf("stored status = %q", stored.Status)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m, mock, _ := setupManager(t, testConfig())
	mock.putErr = errors.New("bucket unreachable")

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	st := m.Status()
	if st.State != StateError || st.InProgress {
		t.Errorf("status = %+v", st)
	}

	list, _ := m.List(10)
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Fatalf("records = %+v", list)
	}
	if list[0].ErrorMessage == "" {
		t.Error("expected error message on record")
	}

	// A failed run does not block the next one.
	mock.putErr = nil
	if _, err := m.RunNow(context.Background()); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestRunNowRejectsConcurrentRun(t *testing.T) {
	m, _, _ := setupManager(t, testConfig())
	m.status.InProgress = true

	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrInProgress) {
		t.Errorf("err = %v, want ErrInProgress", err)
	}
}

func TestCleanup(t *testing.T) {
	m, mock, db := setupManager(t, testConfig())

	record, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	// Age the record past retention.
	if _, err := db.Exec(`UPDATE backups SET created_at = ? WHERE id = ?`, time.Now().UTC().Add(-2*time.Hour), record.ID); err != nil {
		t.Fatalf("age record: %v", err)
	}

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, ok := mock.objects[record.ObjectKey]; ok {
		t.Error("expected object deleted")
	}
	if list, _ := m.List(10); len(list) != 0 {
		t.Errorf("expected no records, got %d", len(list))
	}
}

func TestCleanupIgnoresObjectErrors(t *testing.T) {
	m, mock, db := setupManager(t, testConfig())
	record, _ := m.RunNow(context.Background())
	db.Exec(`UPDATE backups SET created_at = ? WHERE id = ?`, time.Now().UTC().Add(-2*time.Hour), record.ID)
	mock.delErr = errors.New("denied")

	if err := m.Cleanup(context.Background()); err != nil {
		t.Errorf("cleanup: %v", err)
	}
}
