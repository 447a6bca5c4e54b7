package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// FileRepository persists file records.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, filename, original_filename, mime_type, size, checksum_md5, checksum_sha256,
folder_path, workspace_id, is_public, current_version_id, protection, override_capability,
entity_type, category, created_by, created_at, updated_at, deleted_at`

// Create inserts a new file row.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	file.CreatedAt = now
	file.UpdatedAt = now
	if file.Protection == "" {
		file.Protection = models.ProtectionNone
	}
	const query = `INSERT INTO files (id, filename, original_filename, mime_type, size, checksum_md5, checksum_sha256,
folder_path, workspace_id, is_public, current_version_id, protection, override_capability,
entity_type, category, created_by, created_at, updated_at, deleted_at)
VALUES (:id, :filename, :original_filename, :mime_type, :size, :checksum_md5, :checksum_sha256,
:folder_path, :workspace_id, :is_public, :current_version_id, :protection, :override_capability,
:entity_type, :category, :created_by, :created_at, :updated_at, :deleted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetByID fetches a file including soft-deleted rows.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// FindByChecksum returns the oldest live file matching the MD5 digest,
// optionally confirming with SHA256.
func (r *FileRepository) FindByChecksum(ctx context.Context, md5, sha256 string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files
WHERE checksum_md5 = $1 AND ($2 = '' OR checksum_sha256 = $2) AND deleted_at IS NULL
ORDER BY created_at ASC LIMIT 1`, fileColumns)
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, md5, sha256); err != nil {
		return nil, err
	}
	return &file, nil
}

// ListByChecksumGroups returns all live files whose MD5 digest occurs more
// than once, ordered so callers can group adjacent rows.
func (r *FileRepository) ListByChecksumGroups(ctx context.Context) ([]models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files
WHERE deleted_at IS NULL AND checksum_md5 IN (
    SELECT checksum_md5 FROM files WHERE deleted_at IS NULL GROUP BY checksum_md5 HAVING COUNT(*) > 1
)
ORDER BY checksum_md5 ASC, created_at ASC`, fileColumns)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query); err != nil {
		return nil, fmt.Errorf("list duplicate files: %w", err)
	}
	return files, nil
}

// SetCurrentVersion moves the file's current-version pointer.
func (r *FileRepository) SetCurrentVersion(ctx context.Context, fileID, versionID string, size int64, md5, sha256 string) error {
	const query = `UPDATE files SET current_version_id = $2, size = $3, checksum_md5 = $4, checksum_sha256 = $5, updated_at = $6
WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, fileID, versionID, size, md5, sha256, time.Now().UTC()); err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	return nil
}

// SetProtection updates the protection level and its override capability.
func (r *FileRepository) SetProtection(ctx context.Context, fileID string, level models.ProtectionLevel, overrideCap *string) error {
	const query = `UPDATE files SET protection = $2, override_capability = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, fileID, level, overrideCap, time.Now().UTC()); err != nil {
		return fmt.Errorf("set protection: %w", err)
	}
	return nil
}

// SetVisibility flips the public flag.
func (r *FileRepository) SetVisibility(ctx context.Context, fileID string, isPublic bool) error {
	const query = `UPDATE files SET is_public = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, fileID, isPublic, time.Now().UTC()); err != nil {
		return fmt.Errorf("set visibility: %w", err)
	}
	return nil
}

// SoftDelete stamps the deletion timestamp without removing rows.
func (r *FileRepository) SoftDelete(ctx context.Context, fileID string) error {
	const query = `UPDATE files SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, fileID, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete file: %w", err)
	}
	return nil
}

// HardDelete removes the file row. Dependent rows are removed by their
// own repositories before this is called.
func (r *FileRepository) HardDelete(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, fileID); err != nil {
		return fmt.Errorf("hard delete file: %w", err)
	}
	return nil
}
