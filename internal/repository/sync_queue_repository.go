package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// SyncQueueRepository persists the durable tier-migration queue.
type SyncQueueRepository struct {
	db *sqlx.DB
}

// NewSyncQueueRepository constructs the repository.
func NewSyncQueueRepository(db *sqlx.DB) *SyncQueueRepository {
	return &SyncQueueRepository{db: db}
}

const queueColumns = `id, file_id, version_id, operation, from_tier, to_tier, remote_path, priority, status,
attempts, max_attempts, reason, error_message, scheduled_at, started_at, completed_at, created_at`

// Insert enqueues a pending item.
func (r *SyncQueueRepository) Insert(ctx context.Context, item *models.SyncQueueItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	if item.ScheduledAt.IsZero() {
		item.ScheduledAt = now
	}
	item.Status = models.QueueStatusPending
	const query = `INSERT INTO sync_queue (id, file_id, version_id, operation, from_tier, to_tier, remote_path, priority, status,
attempts, max_attempts, reason, error_message, scheduled_at, started_at, completed_at, created_at)
VALUES (:id, :file_id, :version_id, :operation, :from_tier, :to_tier, :remote_path, :priority, :status,
:attempts, :max_attempts, :reason, :error_message, :scheduled_at, :started_at, :completed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("insert sync queue item: %w", err)
	}
	return nil
}

// GetByID fetches one item.
func (r *SyncQueueRepository) GetByID(ctx context.Context, id string) (*models.SyncQueueItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM sync_queue WHERE id = $1`, queueColumns)
	var item models.SyncQueueItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListDue returns up to limit pending, due, under-attempted items ordered
// by priority then age.
func (r *SyncQueueRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.SyncQueueItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM sync_queue
WHERE status = 'pending' AND scheduled_at <= $1 AND attempts < max_attempts
ORDER BY priority DESC, created_at ASC
LIMIT $2`, queueColumns)
	var items []models.SyncQueueItem
	if err := r.db.SelectContext(ctx, &items, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due sync queue items: %w", err)
	}
	return items, nil
}

// Claim atomically transitions a pending item to processing and bumps the
// attempt counter. It reports false when another worker won the race.
func (r *SyncQueueRepository) Claim(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE sync_queue
SET status = 'processing', attempts = attempts + 1, started_at = $2
WHERE id = $1 AND status = 'pending' AND attempts < max_attempts`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim sync queue item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim sync queue item: %w", err)
	}
	return affected == 1, nil
}

// MarkCompleted terminalizes a processing item as completed.
func (r *SyncQueueRepository) MarkCompleted(ctx context.Context, id string) error {
	const query = `UPDATE sync_queue SET status = 'completed', completed_at = $2, error_message = NULL
WHERE id = $1 AND status = 'processing'`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("complete sync queue item: %w", err)
	}
	return nil
}

// MarkFailed terminalizes a processing item as failed, preserving the error.
func (r *SyncQueueRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	const query = `UPDATE sync_queue SET status = 'failed', completed_at = $2, error_message = $3
WHERE id = $1 AND status = 'processing'`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), errMsg); err != nil {
		return fmt.Errorf("fail sync queue item: %w", err)
	}
	return nil
}

// Reschedule returns a processing item to pending with a pushed-forward
// schedule, keeping the failure message for diagnosis.
func (r *SyncQueueRepository) Reschedule(ctx context.Context, id string, at time.Time, errMsg string) error {
	const query = `UPDATE sync_queue SET status = 'pending', scheduled_at = $2, error_message = $3
WHERE id = $1 AND status = 'processing'`
	if _, err := r.db.ExecContext(ctx, query, id, at, errMsg); err != nil {
		return fmt.Errorf("reschedule sync queue item: %w", err)
	}
	return nil
}

// Stats counts items per status.
func (r *SyncQueueRepository) Stats(ctx context.Context) (*models.QueueStats, error) {
	const query = `SELECT
COUNT(*) FILTER (WHERE status = 'pending') AS pending,
COUNT(*) FILTER (WHERE status = 'processing') AS processing,
COUNT(*) FILTER (WHERE status = 'completed') AS completed,
COUNT(*) FILTER (WHERE status = 'failed') AS failed
FROM sync_queue`
	var stats models.QueueStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("sync queue stats: %w", err)
	}
	return &stats, nil
}

// Clean purges terminal items completed before the cutoff and returns the
// number of rows removed.
func (r *SyncQueueRepository) Clean(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM sync_queue
WHERE status IN ('completed', 'failed') AND completed_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clean sync queue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clean sync queue: %w", err)
	}
	return affected, nil
}

// DeleteByFile removes queue items referencing a file (hard delete path).
func (r *SyncQueueRepository) DeleteByFile(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete sync queue items: %w", err)
	}
	return nil
}
