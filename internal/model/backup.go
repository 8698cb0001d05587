package model

import "time"

// BackupStatus tracks one snapshot from creation to upload.
type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup records an encrypted snapshot of the shopping list database pushed
// to object storage. ObjectKey is the key inside the bucket.
type Backup struct {
	ID           int64        `json:"id"`
	Filename     string       `json:"filename"`
	ObjectKey    string       `json:"object_key"`
	SizeBytes    int64        `json:"size_bytes"`
	ItemCount    int          `json:"item_count"`
	Status       BackupStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Done reports whether the backup reached a final status.
func (b Backup) Done() bool {
	return b.Status == BackupStatusCompleted || b.Status == BackupStatusFailed
}
