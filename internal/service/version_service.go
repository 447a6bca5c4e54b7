package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/pkg/checksum"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

// milestoneNumbers are version numbers pruning always keeps, so the
// long-range history of a document survives aggressive retention.
var milestoneNumbers = map[int]struct{}{
	1: {}, 5: {}, 10: {}, 50: {}, 100: {}, 500: {}, 1000: {},
}

type versionStore interface {
	CreateCurrent(ctx context.Context, version *models.Version) error
	GetByNumber(ctx context.Context, fileID string, number int) (*models.Version, error)
	GetCurrent(ctx context.Context, fileID string) (*models.Version, error)
	ListByFile(ctx context.Context, fileID string) ([]models.Version, error)
	MaxNumber(ctx context.Context, fileID string) (int, error)
	Delete(ctx context.Context, id string) error
}

type versionFileStore interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
	SetCurrentVersion(ctx context.Context, fileID, versionID string, size int64, md5, sha256 string) error
}

type versionLocationStore interface {
	Create(ctx context.Context, loc *models.Location) error
	ListByVersion(ctx context.Context, versionID string) ([]models.Location, error)
	CountRefs(ctx context.Context, tier models.Tier, providerFileID, excludeVersionID string) (int, error)
	DeleteByVersion(ctx context.Context, versionID string) error
}

type versionSyncEnqueuer interface {
	EnqueueDelete(ctx context.Context, fileID, versionID string, tier models.Tier, remotePath, reason string) error
}

type versionAccessChecker interface {
	CanAccess(ctx context.Context, fileID string, claims *models.JWTClaims, bit models.PermissionBit) (bool, error)
}

// VersionService owns the version history of files: appends, reverts,
// pruning and read-only comparisons.
type VersionService struct {
	versions    versionStore
	files       versionFileStore
	locations   versionLocationStore
	queue       versionSyncEnqueuer
	permissions versionAccessChecker
	protection  protectionChecker
	logger      *zap.Logger
}

// NewVersionService constructs a VersionService.
func NewVersionService(versions versionStore, files versionFileStore, locations versionLocationStore, queue versionSyncEnqueuer, permissions versionAccessChecker, protection protectionChecker, logger *zap.Logger) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionService{versions: versions, files: files, locations: locations, queue: queue, permissions: permissions, protection: protection, logger: logger}
}

// Append creates the next version of a file and flips the current flag to
// it. The caller has already stored the bytes; this only moves metadata.
func (s *VersionService) Append(ctx context.Context, fileID string, sums checksum.Sums, size int64, note *string, uploadedBy string) (*models.Version, error) {
	if _, err := s.requireFile(ctx, fileID); err != nil {
		return nil, err
	}
	max, err := s.versions.MaxNumber(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to number version")
	}
	version := &models.Version{
		FileID:         fileID,
		Number:         max + 1,
		Size:           size,
		ChecksumMD5:    sums.MD5,
		ChecksumSHA256: sums.SHA256,
		Note:           note,
		UploadedBy:     uploadedBy,
	}
	if err := s.versions.CreateCurrent(ctx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create version")
	}
	if err := s.files.SetCurrentVersion(ctx, fileID, version.ID, size, sums.MD5, sums.SHA256); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move current version pointer")
	}
	return version, nil
}

// Revert makes a historical version current again by appending a new
// version with the old content. The stored copies are reused: the target
// version's placements are duplicated onto the new version, so no bytes
// move through any tier.
func (s *VersionService) Revert(ctx context.Context, fileID string, number int, note *string, actor *models.JWTClaims) (*models.Version, error) {
	if _, err := s.authorizeMutation(ctx, fileID, models.ActionReplace, actor); err != nil {
		return nil, err
	}
	target, err := s.versions.GetByNumber(ctx, fileID, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("version %d not found", number))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	if target.IsCurrent {
		return nil, appErrors.Clone(appErrors.ErrConflict, "version is already current")
	}

	if note == nil {
		text := fmt.Sprintf("reverted to version %d", number)
		note = &text
	}
	uploadedBy := target.UploadedBy
	if actor != nil {
		uploadedBy = actor.UserID
	}
	reverted, err := s.Append(ctx, fileID, checksum.Sums{MD5: target.ChecksumMD5, SHA256: target.ChecksumSHA256}, target.Size, note, uploadedBy)
	if err != nil {
		return nil, err
	}

	locations, err := s.locations.ListByVersion(ctx, target.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	for _, loc := range locations {
		if loc.SyncStatus != models.SyncStatusSynced {
			continue
		}
		copied := loc
		copied.ID = ""
		copied.VersionID = reverted.ID
		if err := s.locations.Create(ctx, &copied); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to copy placement")
		}
	}
	return reverted, nil
}

// Prune removes old versions, keeping the newest keep versions, the
// current version, and every milestone number. Tier copies of removed
// versions are deleted through the sync queue.
func (s *VersionService) Prune(ctx context.Context, fileID string, keep int, claims *models.JWTClaims) ([]int, error) {
	if keep < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "keep must be at least 1")
	}
	if _, err := s.authorizeMutation(ctx, fileID, models.ActionDelete, claims); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByFile(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}

	var pruned []int
	for i, version := range versions {
		if i < keep || version.IsCurrent {
			continue
		}
		if _, milestone := milestoneNumbers[version.Number]; milestone {
			continue
		}
		if err := s.dropVersion(ctx, &version); err != nil {
			return pruned, err
		}
		pruned = append(pruned, version.Number)
	}
	return pruned, nil
}

// Compare diffs two versions of the same file.
func (s *VersionService) Compare(ctx context.Context, fileID string, numberA, numberB int, claims *models.JWTClaims) (*models.VersionComparison, error) {
	if _, err := s.authorizeRead(ctx, fileID, claims); err != nil {
		return nil, err
	}
	a, err := s.versions.GetByNumber(ctx, fileID, numberA)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("version %d not found", numberA))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	b, err := s.versions.GetByNumber(ctx, fileID, numberB)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("version %d not found", numberB))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	return &models.VersionComparison{
		FileID:       fileID,
		NumberA:      a.Number,
		NumberB:      b.Number,
		SizeDelta:    b.Size - a.Size,
		TimeDelta:    b.CreatedAt.Sub(a.CreatedAt),
		SameChecksum: a.ChecksumMD5 == b.ChecksumMD5 && a.ChecksumSHA256 == b.ChecksumSHA256,
		UploaderA:    a.UploadedBy,
		UploaderB:    b.UploadedBy,
	}, nil
}

// List returns a file's versions, newest first.
func (s *VersionService) List(ctx context.Context, fileID string, claims *models.JWTClaims) ([]models.Version, error) {
	if _, err := s.authorizeRead(ctx, fileID, claims); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByFile(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// Summary aggregates a file's version history.
func (s *VersionService) Summary(ctx context.Context, fileID string, claims *models.JWTClaims) (*models.VersionHistorySummary, error) {
	versions, err := s.List(ctx, fileID, claims)
	if err != nil {
		return nil, err
	}
	summary := &models.VersionHistorySummary{FileID: fileID, VersionCount: len(versions)}
	uploaders := make(map[string]struct{})
	for i := range versions {
		v := &versions[i]
		summary.TotalSize += v.Size
		uploaders[v.UploadedBy] = struct{}{}
		if v.IsCurrent {
			summary.CurrentNumber = v.Number
		}
		created := v.CreatedAt
		if summary.FirstUpload == nil || created.Before(*summary.FirstUpload) {
			t := created
			summary.FirstUpload = &t
		}
		if summary.LastUpload == nil || created.After(*summary.LastUpload) {
			t := created
			summary.LastUpload = &t
		}
	}
	summary.UploaderCount = len(uploaders)
	return summary, nil
}

func (s *VersionService) dropVersion(ctx context.Context, version *models.Version) error {
	locations, err := s.locations.ListByVersion(ctx, version.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	reason := fmt.Sprintf("pruned version %d", version.Number)
	for _, loc := range locations {
		if loc.SyncStatus != models.SyncStatusSynced {
			continue
		}
		refs, err := s.locations.CountRefs(ctx, loc.Tier, loc.ProviderFileID, version.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count placement refs")
		}
		if refs > 0 {
			// A reverted version still serves from this object.
			continue
		}
		if err := s.queue.EnqueueDelete(ctx, version.FileID, version.ID, loc.Tier, loc.ProviderFileID, reason); err != nil {
			s.logger.Warn("failed to enqueue tier delete for pruned version",
				zap.String("file_id", version.FileID), zap.Int("number", version.Number),
				zap.String("tier", string(loc.Tier)), zap.Error(err))
		}
	}
	if err := s.locations.DeleteByVersion(ctx, version.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete placements")
	}
	if err := s.versions.Delete(ctx, version.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete version")
	}
	return nil
}

func (s *VersionService) authorizeRead(ctx context.Context, fileID string, claims *models.JWTClaims) (*models.File, error) {
	ok, err := s.permissions.CanAccess(ctx, fileID, claims, models.BitRead)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "read access denied")
	}
	return s.requireFile(ctx, fileID)
}

func (s *VersionService) authorizeMutation(ctx context.Context, fileID string, action models.ProtectedAction, claims *models.JWTClaims) (*models.File, error) {
	ok, err := s.permissions.CanAccess(ctx, fileID, claims, models.BitWrite)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "write access denied")
	}
	file, err := s.requireFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.protection.CheckAction(file, action, claims); err != nil {
		return nil, err
	}
	return file, nil
}

func (s *VersionService) requireFile(ctx context.Context, fileID string) (*models.File, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.Deleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return file, nil
}
