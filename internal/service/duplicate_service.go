package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

// DuplicateAction selects what an upload does when its checksum already
// exists.
type DuplicateAction string

const (
	DuplicateSkip     DuplicateAction = "skip"
	DuplicateReplace  DuplicateAction = "replace"
	DuplicateLink     DuplicateAction = "link"
	DuplicateKeepBoth DuplicateAction = "keep_both"
	DuplicateWarn     DuplicateAction = "warn"
)

// Valid reports whether the action is a known duplicate policy.
func (a DuplicateAction) Valid() bool {
	switch a {
	case DuplicateSkip, DuplicateReplace, DuplicateLink, DuplicateKeepBoth, DuplicateWarn:
		return true
	}
	return false
}

// MergeStrategy selects the survivor when collapsing a duplicate group.
type MergeStrategy string

const (
	MergeKeepOldest   MergeStrategy = "oldest"
	MergeKeepNewest   MergeStrategy = "newest"
	MergeKeepLargest  MergeStrategy = "largest"
	MergeKeepSmallest MergeStrategy = "smallest"
)

// DuplicateGroup is one set of live files sharing a checksum.
type DuplicateGroup struct {
	ChecksumMD5 string        `json:"checksum_md5"`
	Files       []models.File `json:"files"`
	WastedSize  int64         `json:"wasted_size"`
}

// MergeResult reports the outcome of collapsing one duplicate group.
type MergeResult struct {
	Survivor *models.File `json:"survivor"`
	Removed  []string     `json:"removed"`
}

type duplicateFileStore interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
	FindByChecksum(ctx context.Context, md5, sha256 string) (*models.File, error)
	ListByChecksumGroups(ctx context.Context) ([]models.File, error)
	SoftDelete(ctx context.Context, fileID string) error
}

type duplicateLocationReader interface {
	ListByFile(ctx context.Context, fileID string) ([]models.Location, error)
	CountRefs(ctx context.Context, tier models.Tier, providerFileID, excludeVersionID string) (int, error)
}

type duplicateEnqueuer interface {
	EnqueueDelete(ctx context.Context, fileID, versionID string, tier models.Tier, remotePath, reason string) error
}

type duplicateCacheInvalidator interface {
	Invalidate(ctx context.Context, fileID string) error
}

// DuplicateService detects content-identical files by checksum and
// collapses duplicate groups.
type DuplicateService struct {
	files     duplicateFileStore
	locations duplicateLocationReader
	queue     duplicateEnqueuer
	cache     duplicateCacheInvalidator
	logger    *zap.Logger
}

// NewDuplicateService constructs a DuplicateService.
func NewDuplicateService(files duplicateFileStore, locations duplicateLocationReader, queue duplicateEnqueuer, cache duplicateCacheInvalidator, logger *zap.Logger) *DuplicateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateService{files: files, locations: locations, queue: queue, cache: cache, logger: logger}
}

// Detect returns the oldest live file carrying the checksum pair, or nil
// when the content is new.
func (s *DuplicateService) Detect(ctx context.Context, md5, sha256 string) (*models.File, error) {
	file, err := s.files.FindByChecksum(ctx, md5, sha256)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for duplicates")
	}
	return file, nil
}

// FindAllGroups returns every checksum shared by more than one live file.
func (s *DuplicateService) FindAllGroups(ctx context.Context) ([]DuplicateGroup, error) {
	files, err := s.files.ListByChecksumGroups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list duplicate files")
	}

	var groups []DuplicateGroup
	for _, file := range files {
		if len(groups) == 0 || groups[len(groups)-1].ChecksumMD5 != file.ChecksumMD5 {
			groups = append(groups, DuplicateGroup{ChecksumMD5: file.ChecksumMD5})
		}
		g := &groups[len(groups)-1]
		g.Files = append(g.Files, file)
		if len(g.Files) > 1 {
			g.WastedSize += file.Size
		}
	}
	return groups, nil
}

// Merge collapses one checksum group onto a single survivor. The losers
// are soft-deleted, their caches invalidated and their unshared tier
// copies scheduled for removal.
func (s *DuplicateService) Merge(ctx context.Context, checksumMD5 string, strategy MergeStrategy) (*MergeResult, error) {
	groups, err := s.FindAllGroups(ctx)
	if err != nil {
		return nil, err
	}
	var group *DuplicateGroup
	for i := range groups {
		if groups[i].ChecksumMD5 == checksumMD5 {
			group = &groups[i]
			break
		}
	}
	if group == nil || len(group.Files) < 2 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no duplicate group for checksum")
	}

	survivor, err := pickSurvivor(group.Files, strategy)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{Survivor: survivor}
	for i := range group.Files {
		file := &group.Files[i]
		if file.ID == survivor.ID {
			continue
		}
		if err := s.retire(ctx, file); err != nil {
			return result, err
		}
		result.Removed = append(result.Removed, file.ID)
	}
	return result, nil
}

func (s *DuplicateService) retire(ctx context.Context, file *models.File) error {
	locations, err := s.locations.ListByFile(ctx, file.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	reason := fmt.Sprintf("merged duplicate of checksum %s", file.ChecksumMD5)
	for _, loc := range locations {
		if loc.SyncStatus != models.SyncStatusSynced {
			continue
		}
		refs, err := s.locations.CountRefs(ctx, loc.Tier, loc.ProviderFileID, loc.VersionID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count placement refs")
		}
		if refs > 0 {
			continue
		}
		if err := s.queue.EnqueueDelete(ctx, file.ID, loc.VersionID, loc.Tier, loc.ProviderFileID, reason); err != nil {
			s.logger.Warn("failed to enqueue tier delete for merged duplicate",
				zap.String("file_id", file.ID), zap.String("tier", string(loc.Tier)), zap.Error(err))
		}
	}
	if err := s.cache.Invalidate(ctx, file.ID); err != nil {
		s.logger.Warn("failed to invalidate cache for merged duplicate", zap.String("file_id", file.ID), zap.Error(err))
	}
	if err := s.files.SoftDelete(ctx, file.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire duplicate file")
	}
	return nil
}

func pickSurvivor(files []models.File, strategy MergeStrategy) (*models.File, error) {
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty duplicate group")
	}
	switch strategy {
	case MergeKeepOldest, MergeKeepNewest, MergeKeepLargest, MergeKeepSmallest:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported merge strategy")
	}
	best := &files[0]
	for i := 1; i < len(files); i++ {
		f := &files[i]
		switch strategy {
		case MergeKeepOldest:
			if f.CreatedAt.Before(best.CreatedAt) {
				best = f
			}
		case MergeKeepNewest:
			if f.CreatedAt.After(best.CreatedAt) {
				best = f
			}
		case MergeKeepLargest:
			if f.Size > best.Size {
				best = f
			}
		case MergeKeepSmallest:
			if f.Size < best.Size {
				best = f
			}
		}
	}
	return best, nil
}
