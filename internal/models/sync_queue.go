package models

import "time"

// QueueOperation is the kind of work a sync queue item carries.
type QueueOperation string

const (
	QueueOpUpload QueueOperation = "upload"
	QueueOpDelete QueueOperation = "delete"
	QueueOpSync   QueueOperation = "sync"
	QueueOpVerify QueueOperation = "verify"
)

// Valid reports whether the operation is a known kind.
func (op QueueOperation) Valid() bool {
	switch op {
	case QueueOpUpload, QueueOpDelete, QueueOpSync, QueueOpVerify:
		return true
	}
	return false
}

// QueueStatus is the lifecycle state of a sync queue item.
// Transitions: pending -> processing -> {completed, failed};
// processing -> pending is the retry edge, only while attempts < max.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// SyncQueueItem is one durable unit of tier migration work. RemotePath
// carries the provider object key for delete operations whose placement
// rows are removed before the queue drains.
type SyncQueueItem struct {
	ID           string         `db:"id" json:"id"`
	FileID       string         `db:"file_id" json:"file_id"`
	VersionID    string         `db:"version_id" json:"version_id"`
	Operation    QueueOperation `db:"operation" json:"operation"`
	FromTier     *Tier          `db:"from_tier" json:"from_tier,omitempty"`
	ToTier       Tier           `db:"to_tier" json:"to_tier"`
	RemotePath   *string        `db:"remote_path" json:"remote_path,omitempty"`
	Priority     int            `db:"priority" json:"priority"`
	Status       QueueStatus    `db:"status" json:"status"`
	Attempts     int            `db:"attempts" json:"attempts"`
	MaxAttempts  int            `db:"max_attempts" json:"max_attempts"`
	Reason       *string        `db:"reason" json:"reason,omitempty"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	ScheduledAt  time.Time      `db:"scheduled_at" json:"scheduled_at"`
	StartedAt    *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// QueueStats reports item counts per status.
type QueueStats struct {
	Pending    int `db:"pending" json:"pending"`
	Processing int `db:"processing" json:"processing"`
	Completed  int `db:"completed" json:"completed"`
	Failed     int `db:"failed" json:"failed"`
}
