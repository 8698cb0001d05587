// Package backup uploads encrypted snapshots of the SQLite database to
// S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/kroslabs/quickyshoppy/internal/metrics"
	"github.com/kroslabs/quickyshoppy/internal/model"
	"github.com/kroslabs/quickyshoppy/internal/secret"
	"github.com/kroslabs/quickyshoppy/internal/store"
)

var (
	ErrDisabled   = errors.New("backup not configured")
	ErrInProgress = errors.New("backup already running")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3         S3Config
	Prefix     string        // object key prefix
	Passphrase string        // encrypts every snapshot
	Interval   time.Duration // zero disables scheduled backups
	Retention  time.Duration // zero keeps everything
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager runs encrypted backups on demand and on a schedule.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	db          *sql.DB
	backupStore *store.BackupStore
	client      s3Client
	logger      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, logger *slog.Logger, callback StatusCallback) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "quickyshoppy"
	}
	m := &Manager{
		cfg:         cfg,
		db:          db,
		backupStore: bs,
		callback:    callback,
		logger:      logger,
		status:      Status{State: StateDisabled},
	}
	if cfg.S3.complete() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether storage and a passphrase are configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled backup loop when an interval is configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.client == nil || m.cfg.Interval <= 0 {
		m.mu.Unlock()
		return
	}
	interval := m.cfg.Interval
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
				if err := m.Cleanup(ctx); err != nil {
					m.logger.Error("backup cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the scheduled loop and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel, done := m.cancel, m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// List returns the most recent backup records.
func (m *Manager) List(limit int) ([]model.Backup, error) {
	return m.backupStore.List(limit)
}

// RunNow snapshots the database, encrypts it and uploads it.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	m.mu.Lock()
	client := m.client
	if client == nil {
		m.mu.Unlock()
		return nil, ErrDisabled
	}
	if m.status.InProgress {
		m.mu.Unlock()
		return nil, ErrInProgress
	}
	last := m.status.LastBackup
	m.status = Status{State: StateRunning, InProgress: true, LastBackup: last}
	status := m.status
	bucket, prefix, passphrase := m.cfg.S3.Bucket, m.cfg.Prefix, m.cfg.Passphrase
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(status)
	}

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("backup-%s.db.enc", timestamp)
	key := prefix + "/" + filename

	record, err := m.backupStore.Create(filename, key)
	if err != nil {
		return nil, m.fail(0, last, fmt.Errorf("create backup record: %w", err))
	}
	if err := m.backupStore.MarkUploading(record.ID); err != nil {
		m.logger.Warn("mark backup uploading", "backup_id", record.ID, "error", err)
	}

	data, itemCount, err := m.snapshot(ctx, record.ID)
	if err != nil {
		return nil, m.fail(record.ID, last, err)
	}

	sealed, err := secret.Encrypt(data, passphrase)
	if err != nil {
		return nil, m.fail(record.ID, last, fmt.Errorf("encrypt: %w", err))
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return nil, m.fail(record.ID, last, fmt.Errorf("upload to s3: %w", err))
	}

	size := int64(len(sealed))
	if err := m.backupStore.MarkCompleted(record.ID, size, itemCount); err != nil {
		m.logger.Error("mark backup completed", "backup_id", record.ID, "error", err)
	}
	record.Status = model.BackupStatusCompleted
	record.SizeBytes = size
	record.ItemCount = itemCount

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	metrics.BackupsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	m.logger.Info("backup uploaded", "key", key, "size", size, "items", itemCount)
	return record, nil
}

// snapshot writes a consistent copy of the live database with VACUUM INTO
// and reads it back.
// snapshot copies the live database with VACUUM INTO and returns the file
// contents along with the number of shopping items it holds.
func (m *Manager) snapshot(ctx context.Context, id int64) ([]byte, int, error) {
	dir, err := os.MkdirTemp("", "quickyshoppy-backup-")
	if err != nil {
		return nil, 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, fmt.Sprintf("backup-%d.db", id))
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, 0, fmt.Errorf("vacuum into: %w", err)
	}

	count, err := countItems(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read snapshot: %w", err)
	}
	return data, count, nil
}

func countItems(ctx context.Context, path string) (int, error) {
	snap, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Close()

	var n int
	if err := snap.QueryRowContext(ctx, `SELECT COUNT(*) FROM shopping_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshot items: %w", err)
	}
	return n, nil
}

func (m *Manager) fail(id int64, last *time.Time, err error) error {
	if id != 0 {
		if serr := m.backupStore.MarkFailed(id, err.Error()); serr != nil {
			m.logger.Warn("mark backup failed", "backup_id", id, "error", serr)
		}
	}
	m.setStatus(Status{State: StateError, Error: err.Error(), LastBackup: last})
	metrics.BackupsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
	return err
}

// Cleanup deletes backups older than the retention period, records first and
// then objects. Object deletion failures are logged and skipped.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	retention := m.cfg.Retention
	m.mu.RUnlock()

	if client == nil || retention <= 0 {
		return nil
	}

	keys, err := m.backupStore.Expire(time.Now().UTC().Add(-retention))
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}
	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	return nil
}
