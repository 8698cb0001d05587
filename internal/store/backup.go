package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kroslabs/quickyshoppy/internal/model"
)

// BackupStore keeps the history of database snapshots sent to object storage.
type BackupStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db, now: time.Now}
}

const backupCols = `id, filename, object_key, size_bytes, item_count, status, error_message, completed_at, created_at`

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var errMsg sql.NullString
	var completedAt sql.NullTime
	if err := scanner.Scan(&b.ID, &b.Filename, &b.ObjectKey, &b.SizeBytes, &b.ItemCount,
		&b.Status, &errMsg, &completedAt, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return &b, nil
}

// Create inserts a pending record for a snapshot about to be taken.
func (s *BackupStore) Create(filename, objectKey string) (*model.Backup, error) {
	now := s.now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO backups (filename, object_key, status, created_at) VALUES (?, ?, ?, ?)`,
		filename, objectKey, model.BackupStatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Backup{
		ID:        id,
		Filename:  filename,
		ObjectKey: objectKey,
		Status:    model.BackupStatusPending,
		CreatedAt: now,
	}, nil
}

func (s *BackupStore) GetByID(id int64) (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	return b, nil
}

// List returns at most limit records, newest first.
func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	backups := []model.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) MarkUploading(id int64) error {
	return s.setStatus(id, model.BackupStatusUploading, nil)
}

func (s *BackupStore) MarkFailed(id int64, reason string) error {
	return s.setStatus(id, model.BackupStatusFailed, &reason)
}

func (s *BackupStore) setStatus(id int64, status model.BackupStatus, reason *string) error {
	if _, err := s.db.Exec(`UPDATE backups SET status = ?, error_message = ? WHERE id = ?`, status, reason, id); err != nil {
		return fmt.Errorf("set backup %d %s: %w", id, status, err)
	}
	return nil
}

// MarkCompleted records the uploaded size and the number of items captured.
func (s *BackupStore) MarkCompleted(id, sizeBytes int64, itemCount int) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, item_count = ?, error_message = NULL, completed_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, itemCount, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("complete backup %d: %w", id, err)
	}
	return nil
}

// Expire removes records created before cutoff and returns their object keys
// so the caller can delete the objects.
func (s *BackupStore) Expire(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(`DELETE FROM backups WHERE created_at < ? RETURNING object_key`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("expire backups: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
