package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// LocationRepository persists tier placements. It is the single source of
// truth for "where is this file"; rows are written only after the tier
// operation is confirmed.
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository constructs the repository.
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

const locationColumns = `id, file_id, version_id, tier, provider, provider_file_id, remote_path,
url, cdn_url, sync_status, last_synced_at, last_verified_at, created_at`

// Create inserts a placement. A partial unique index on
// (file_id, version_id, tier) WHERE sync_status = 'synced' enforces the
// at-most-one-synced invariant at the database level.
func (r *LocationRepository) Create(ctx context.Context, loc *models.Location) error {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	loc.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO locations (id, file_id, version_id, tier, provider, provider_file_id, remote_path,
url, cdn_url, sync_status, last_synced_at, last_verified_at, created_at)
VALUES (:id, :file_id, :version_id, :tier, :provider, :provider_file_id, :remote_path,
:url, :cdn_url, :sync_status, :last_synced_at, :last_verified_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, loc); err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// GetByID fetches one placement.
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	query := fmt.Sprintf(`SELECT %s FROM locations WHERE id = $1`, locationColumns)
	var loc models.Location
	if err := r.db.GetContext(ctx, &loc, query, id); err != nil {
		return nil, err
	}
	return &loc, nil
}

// FindSynced returns the synced placement for (file, version, tier).
func (r *LocationRepository) FindSynced(ctx context.Context, fileID, versionID string, tier models.Tier) (*models.Location, error) {
	query := fmt.Sprintf(`SELECT %s FROM locations
WHERE file_id = $1 AND version_id = $2 AND tier = $3 AND sync_status = 'synced'`, locationColumns)
	var loc models.Location
	if err := r.db.GetContext(ctx, &loc, query, fileID, versionID, tier); err != nil {
		return nil, err
	}
	return &loc, nil
}

// ListByVersion returns every placement of one version.
func (r *LocationRepository) ListByVersion(ctx context.Context, versionID string) ([]models.Location, error) {
	query := fmt.Sprintf(`SELECT %s FROM locations WHERE version_id = $1 ORDER BY created_at ASC`, locationColumns)
	var locs []models.Location
	if err := r.db.SelectContext(ctx, &locs, query, versionID); err != nil {
		return nil, fmt.Errorf("list locations by version: %w", err)
	}
	return locs, nil
}

// ListByFile returns every placement of a file across all versions.
func (r *LocationRepository) ListByFile(ctx context.Context, fileID string) ([]models.Location, error) {
	query := fmt.Sprintf(`SELECT %s FROM locations WHERE file_id = $1 ORDER BY created_at ASC`, locationColumns)
	var locs []models.Location
	if err := r.db.SelectContext(ctx, &locs, query, fileID); err != nil {
		return nil, fmt.Errorf("list locations by file: %w", err)
	}
	return locs, nil
}

// UpdateStatus moves a placement's sync status, stamping last_synced_at
// when the status becomes synced.
func (r *LocationRepository) UpdateStatus(ctx context.Context, id string, status models.SyncStatus) error {
	now := time.Now().UTC()
	var query string
	if status == models.SyncStatusSynced {
		query = `UPDATE locations SET sync_status = $2, last_synced_at = $3 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, id, status, now); err != nil {
			return fmt.Errorf("update location status: %w", err)
		}
		return nil
	}
	query = `UPDATE locations SET sync_status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update location status: %w", err)
	}
	return nil
}

// CountRefs counts placements of the same object in the same tier held by
// other versions. Reverted versions share objects with their source, so a
// prune must not remove an object that is still referenced.
func (r *LocationRepository) CountRefs(ctx context.Context, tier models.Tier, providerFileID, excludeVersionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM locations
WHERE tier = $1 AND provider_file_id = $2 AND version_id <> $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tier, providerFileID, excludeVersionID); err != nil {
		return 0, fmt.Errorf("count location refs: %w", err)
	}
	return count, nil
}

// MarkVerified stamps a successful verify pass.
func (r *LocationRepository) MarkVerified(ctx context.Context, id string) error {
	const query = `UPDATE locations SET last_verified_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark location verified: %w", err)
	}
	return nil
}

// Delete removes one placement row.
func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

// DeleteByVersion removes every placement of one version.
func (r *LocationRepository) DeleteByVersion(ctx context.Context, versionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE version_id = $1`, versionID); err != nil {
		return fmt.Errorf("delete locations by version: %w", err)
	}
	return nil
}

// DeleteByFile removes every placement of a file.
func (r *LocationRepository) DeleteByFile(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete locations by file: %w", err)
	}
	return nil
}
