package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// VersionRepository persists file versions.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

const versionColumns = `id, file_id, number, size, checksum_md5, checksum_sha256, note, uploaded_by, is_current, created_at`

// CreateCurrent demotes every other version of the file and inserts the
// new current version inside one transaction, serialising the flip.
func (r *VersionRepository) CreateCurrent(ctx context.Context, version *models.Version) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	version.IsCurrent = true
	version.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE versions SET is_current = FALSE WHERE file_id = $1 AND is_current = TRUE`, version.FileID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("demote versions: %w", err)
	}
	const insert = `INSERT INTO versions (id, file_id, number, size, checksum_md5, checksum_sha256, note, uploaded_by, is_current, created_at)
VALUES (:id, :file_id, :number, :size, :checksum_md5, :checksum_sha256, :note, :uploaded_by, :is_current, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version tx: %w", err)
	}
	return nil
}

// GetByID fetches a version.
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM versions WHERE id = $1`, versionColumns)
	var version models.Version
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// GetByNumber fetches one version of a file by its number.
func (r *VersionRepository) GetByNumber(ctx context.Context, fileID string, number int) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM versions WHERE file_id = $1 AND number = $2`, versionColumns)
	var version models.Version
	if err := r.db.GetContext(ctx, &version, query, fileID, number); err != nil {
		return nil, err
	}
	return &version, nil
}

// GetCurrent fetches the file's current version.
func (r *VersionRepository) GetCurrent(ctx context.Context, fileID string) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM versions WHERE file_id = $1 AND is_current = TRUE`, versionColumns)
	var version models.Version
	if err := r.db.GetContext(ctx, &version, query, fileID); err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByFile returns all versions of a file, newest number first.
func (r *VersionRepository) ListByFile(ctx context.Context, fileID string) ([]models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM versions WHERE file_id = $1 ORDER BY number DESC`, versionColumns)
	var versions []models.Version
	if err := r.db.SelectContext(ctx, &versions, query, fileID); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// MaxNumber returns the highest version number for a file, 0 when none.
func (r *VersionRepository) MaxNumber(ctx context.Context, fileID string) (int, error) {
	var max int
	if err := r.db.GetContext(ctx, &max, `SELECT COALESCE(MAX(number), 0) FROM versions WHERE file_id = $1`, fileID); err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return max, nil
}

// Delete removes one version row.
func (r *VersionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM versions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	return nil
}

// DeleteByFile removes every version of a file.
func (r *VersionRepository) DeleteByFile(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM versions WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	return nil
}
