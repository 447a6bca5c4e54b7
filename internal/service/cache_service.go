package service

import (
	"context"
	"database/sql"
	"errors"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/internal/tier"
	"github.com/harborview/dms-storage-api/pkg/config"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type cacheEntryStore interface {
	Upsert(ctx context.Context, entry *models.CacheEntry) error
	GetByFileVersion(ctx context.Context, fileID, versionID string) (*models.CacheEntry, error)
	Touch(ctx context.Context, id string) error
	InvalidateByFile(ctx context.Context, fileID string) error
	ListEvictable(ctx context.Context, now time.Time, maxEntries int) ([]models.CacheEntry, error)
	Delete(ctx context.Context, id string) error
	DeleteByFile(ctx context.Context, fileID string) error
}

type cacheLocationStore interface {
	Create(ctx context.Context, loc *models.Location) error
	FindSynced(ctx context.Context, fileID, versionID string, t models.Tier) (*models.Location, error)
	Delete(ctx context.Context, id string) error
}

type cacheBackend interface {
	Name() string
	Upload(ctx context.Context, localPath string, in tier.UploadInput) (*tier.UploadResult, error)
	Delete(ctx context.Context, providerFileID string) error
}

// CacheService manages the on-disk cache tier: admission, hit tracking,
// invalidation and the LRU/TTL sweep. Cached copies are also recorded as
// placements so the read path finds them through the normal tier walk.
type CacheService struct {
	entries    cacheEntryStore
	locations  cacheLocationStore
	backend    cacheBackend
	maxEntries int
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewCacheService constructs a CacheService.
func NewCacheService(entries cacheEntryStore, locations cacheLocationStore, backend cacheBackend, cfg config.CacheConfig, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &CacheService{
		entries:    entries,
		locations:  locations,
		backend:    backend,
		maxEntries: maxEntries,
		defaultTTL: ttl,
		logger:     logger,
	}
}

// Store admits one version's content into the cache from a local file.
func (s *CacheService) Store(ctx context.Context, file *models.File, versionID, sourcePath string) (*models.CacheEntry, error) {
	result, err := s.backend.Upload(ctx, sourcePath, tier.UploadInput{
		Folder:   path.Join(file.ID, versionID),
		Filename: file.Filename,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "failed to store cache copy")
	}

	expires := time.Now().UTC().Add(s.defaultTTL)
	entry := &models.CacheEntry{
		FileID:    file.ID,
		VersionID: versionID,
		LocalPath: result.Path,
		Size:      file.Size,
		ExpiresAt: &expires,
		Valid:     true,
	}
	if err := s.entries.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record cache entry")
	}

	if _, err := s.locations.FindSynced(ctx, file.ID, versionID, models.TierCache); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cache placement")
		}
		loc := &models.Location{
			FileID:         file.ID,
			VersionID:      versionID,
			Tier:           models.TierCache,
			Provider:       s.backend.Name(),
			ProviderFileID: result.ProviderFileID,
			RemotePath:     result.Path,
			SyncStatus:     models.SyncStatusSynced,
		}
		now := time.Now().UTC()
		loc.LastSyncedAt = &now
		if err := s.locations.Create(ctx, loc); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record cache placement")
		}
	}
	return entry, nil
}

// Fetch returns the local path of a cached copy, counting the hit. A
// missing, invalid or expired entry is a miss, not an error.
func (s *CacheService) Fetch(ctx context.Context, fileID, versionID string) (string, bool, error) {
	entry, err := s.entries.GetByFileVersion(ctx, fileID, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cache entry")
	}
	if !entry.Valid || entry.Expired(time.Now().UTC()) {
		return "", false, nil
	}
	if err := s.entries.Touch(ctx, entry.ID); err != nil {
		s.logger.Warn("failed to record cache hit", zap.String("file_id", fileID), zap.Error(err))
	}
	return entry.LocalPath, true, nil
}

// Invalidate marks every cached copy of a file stale. The sweep removes
// the bytes later.
func (s *CacheService) Invalidate(ctx context.Context, fileID string) error {
	if err := s.entries.InvalidateByFile(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate cache")
	}
	return nil
}

// DeleteByFile drops a file's cache entry rows. The hard delete path
// removes the bytes themselves through queued tier deletes.
func (s *CacheService) DeleteByFile(ctx context.Context, fileID string) error {
	if err := s.entries.DeleteByFile(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop cache entries")
	}
	return nil
}

// Sweep evicts invalid, expired and LRU-overflow entries, removing their
// bytes and placement rows. It returns the number of evicted entries.
func (s *CacheService) Sweep(ctx context.Context) (int, error) {
	evictable, err := s.entries.ListEvictable(ctx, time.Now().UTC(), s.maxEntries)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evictable cache entries")
	}

	evicted := 0
	for _, entry := range evictable {
		if err := s.backend.Delete(ctx, entry.LocalPath); err != nil {
			s.logger.Warn("failed to remove cached bytes",
				zap.String("file_id", entry.FileID), zap.String("path", entry.LocalPath), zap.Error(err))
			continue
		}
		if loc, err := s.locations.FindSynced(ctx, entry.FileID, entry.VersionID, models.TierCache); err == nil {
			if err := s.locations.Delete(ctx, loc.ID); err != nil {
				s.logger.Warn("failed to remove cache placement", zap.String("file_id", entry.FileID), zap.Error(err))
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to look up cache placement", zap.String("file_id", entry.FileID), zap.Error(err))
		}
		if err := s.entries.Delete(ctx, entry.ID); err != nil {
			s.logger.Warn("failed to remove cache entry", zap.String("file_id", entry.FileID), zap.Error(err))
			continue
		}
		evicted++
	}
	return evicted, nil
}
