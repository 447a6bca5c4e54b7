package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// CacheEntryRepository tracks local cache-tier copies.
type CacheEntryRepository struct {
	db *sqlx.DB
}

// NewCacheEntryRepository constructs the repository.
func NewCacheEntryRepository(db *sqlx.DB) *CacheEntryRepository {
	return &CacheEntryRepository{db: db}
}

const cacheColumns = `id, file_id, version_id, local_path, size, hit_count, last_accessed_at, expires_at, valid, created_at`

// Upsert writes a cache entry for (file, version), replacing a prior one.
func (r *CacheEntryRepository) Upsert(ctx context.Context, entry *models.CacheEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	if entry.LastAccessedAt.IsZero() {
		entry.LastAccessedAt = now
	}
	const query = `INSERT INTO cache_entries (id, file_id, version_id, local_path, size, hit_count, last_accessed_at, expires_at, valid, created_at)
VALUES (:id, :file_id, :version_id, :local_path, :size, :hit_count, :last_accessed_at, :expires_at, :valid, :created_at)
ON CONFLICT (file_id, version_id)
DO UPDATE SET local_path = EXCLUDED.local_path, size = EXCLUDED.size,
              last_accessed_at = EXCLUDED.last_accessed_at, expires_at = EXCLUDED.expires_at,
              valid = EXCLUDED.valid`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// GetByFileVersion fetches the cache entry for (file, version).
func (r *CacheEntryRepository) GetByFileVersion(ctx context.Context, fileID, versionID string) (*models.CacheEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM cache_entries WHERE file_id = $1 AND version_id = $2`, cacheColumns)
	var entry models.CacheEntry
	if err := r.db.GetContext(ctx, &entry, query, fileID, versionID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Touch records a cache hit.
func (r *CacheEntryRepository) Touch(ctx context.Context, id string) error {
	const query = `UPDATE cache_entries SET hit_count = hit_count + 1, last_accessed_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch cache entry: %w", err)
	}
	return nil
}

// InvalidateByFile flips every entry of a file to invalid.
func (r *CacheEntryRepository) InvalidateByFile(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE cache_entries SET valid = FALSE WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("invalidate cache entries: %w", err)
	}
	return nil
}

// ListEvictable returns invalid or expired entries plus, when the live
// entry count exceeds maxEntries, the least-recently-used overflow.
func (r *CacheEntryRepository) ListEvictable(ctx context.Context, now time.Time, maxEntries int) ([]models.CacheEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM cache_entries
WHERE valid = FALSE OR (expires_at IS NOT NULL AND expires_at < $1)
   OR id IN (
       SELECT id FROM cache_entries
       WHERE valid = TRUE AND (expires_at IS NULL OR expires_at >= $1)
       ORDER BY last_accessed_at DESC
       OFFSET $2
   )`, cacheColumns)
	var entries []models.CacheEntry
	if err := r.db.SelectContext(ctx, &entries, query, now, maxEntries); err != nil {
		return nil, fmt.Errorf("list evictable cache entries: %w", err)
	}
	return entries, nil
}

// Delete removes a cache entry row.
func (r *CacheEntryRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// DeleteByFile removes every cache entry of a file.
func (r *CacheEntryRepository) DeleteByFile(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete cache entries: %w", err)
	}
	return nil
}
