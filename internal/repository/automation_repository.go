package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// AutomationRepository persists tier-move decisions and answers the
// scanner's usage queries.
type AutomationRepository struct {
	db *sqlx.DB
}

// NewAutomationRepository constructs the repository.
func NewAutomationRepository(db *sqlx.DB) *AutomationRepository {
	return &AutomationRepository{db: db}
}

// AppendLog records one tier move decision.
func (r *AutomationRepository) AppendLog(ctx context.Context, entry *models.AutomationLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO automation_log (id, file_id, preset, from_tier, to_tier, reason, created_at)
VALUES (:id, :file_id, :preset, :from_tier, :to_tier, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append automation log: %w", err)
	}
	return nil
}

// ListLog returns recent decisions, newest first.
func (r *AutomationRepository) ListLog(ctx context.Context, limit int) ([]models.AutomationLogEntry, error) {
	const query = `SELECT id, file_id, preset, from_tier, to_tier, reason, created_at
FROM automation_log ORDER BY created_at DESC LIMIT $1`
	var entries []models.AutomationLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list automation log: %w", err)
	}
	return entries, nil
}

// ListFileUsage returns, for every live file, its current version and the
// highest-priority tier holding a synced copy of it. Access counters are
// overlaid from Redis by the caller.
func (r *AutomationRepository) ListFileUsage(ctx context.Context, limit int) ([]models.FileUsage, error) {
	const query = `SELECT f.id AS file_id, f.current_version_id AS version_id, f.is_public,
(
    SELECT l.tier FROM locations l
    WHERE l.version_id = f.current_version_id AND l.sync_status = 'synced'
    ORDER BY CASE l.tier WHEN 'cdn' THEN 0 WHEN 'cloud' THEN 1 WHEN 'cache' THEN 2 ELSE 3 END
    LIMIT 1
) AS current_tier
FROM files f
WHERE f.deleted_at IS NULL AND f.current_version_id IS NOT NULL
ORDER BY f.created_at ASC
LIMIT $1`
	type row struct {
		FileID      string       `db:"file_id"`
		VersionID   string       `db:"version_id"`
		IsPublic    bool         `db:"is_public"`
		CurrentTier *models.Tier `db:"current_tier"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list file usage: %w", err)
	}
	usage := make([]models.FileUsage, 0, len(rows))
	for _, rw := range rows {
		if rw.CurrentTier == nil {
			continue
		}
		usage = append(usage, models.FileUsage{
			FileID:      rw.FileID,
			VersionID:   rw.VersionID,
			IsPublic:    rw.IsPublic,
			CurrentTier: *rw.CurrentTier,
		})
	}
	return usage, nil
}
