package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// PermissionRepository persists file permission entries.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionColumns = `id, file_id, type, subject, can_read, can_write, can_execute,
inherit_to_children, expires_at, created_at`

// Upsert writes a permission entry, replacing an existing entry of the
// same category (and subject, for group entries). This keeps the
// one-owner/one-world and unique-per-workspace invariants.
func (r *PermissionRepository) Upsert(ctx context.Context, entry *models.PermissionEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin permission tx: %w", err)
	}
	switch entry.Type {
	case models.PermissionGroup:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM permissions WHERE file_id = $1 AND type = $2 AND subject = $3`,
			entry.FileID, entry.Type, entry.Subject); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("replace group permission: %w", err)
		}
	default:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM permissions WHERE file_id = $1 AND type = $2`,
			entry.FileID, entry.Type); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("replace permission: %w", err)
		}
	}
	const insert = `INSERT INTO permissions (id, file_id, type, subject, can_read, can_write, can_execute,
inherit_to_children, expires_at, created_at)
VALUES (:id, :file_id, :type, :subject, :can_read, :can_write, :can_execute,
:inherit_to_children, :expires_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, entry); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert permission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit permission tx: %w", err)
	}
	return nil
}

// ListByFile returns every permission entry on a file.
func (r *PermissionRepository) ListByFile(ctx context.Context, fileID string) ([]models.PermissionEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM permissions WHERE file_id = $1 ORDER BY type ASC, created_at ASC`, permissionColumns)
	var entries []models.PermissionEntry
	if err := r.db.SelectContext(ctx, &entries, query, fileID); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return entries, nil
}

// DeleteByFile removes every permission entry on a file.
func (r *PermissionRepository) DeleteByFile(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete permissions: %w", err)
	}
	return nil
}
