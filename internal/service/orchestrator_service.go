package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/internal/tier"
	"github.com/harborview/dms-storage-api/pkg/checksum"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

// EventType classifies orchestrator notifications.
type EventType string

const (
	EventUploaded EventType = "uploaded"
	EventReplaced EventType = "replaced"
	EventDeleted  EventType = "deleted"
)

// Event is emitted after an orchestrator operation has fully committed.
type Event struct {
	Type      EventType
	FileID    string
	VersionID string
}

// TierOutcome reports how one tier placement ended: synced, queued for a
// later retry, or failed outright.
type TierOutcome struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// UploadOutcome reports what an upload did, including duplicate handling
// and the per-tier placement results.
type UploadOutcome struct {
	File      *models.File                `json:"file"`
	Version   *models.Version             `json:"version,omitempty"`
	Duplicate *models.File                `json:"duplicate,omitempty"`
	Action    DuplicateAction             `json:"action,omitempty"`
	Warning   string                      `json:"warning,omitempty"`
	Tiers     map[models.Tier]TierOutcome `json:"tiers,omitempty"`
}

// ServeResult is a resolved serving URL plus the tier that answered.
type ServeResult struct {
	URL       string      `json:"url"`
	Tier      models.Tier `json:"tier"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

type orchestratorFileStore interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	SetVisibility(ctx context.Context, fileID string, isPublic bool) error
	SoftDelete(ctx context.Context, fileID string) error
	HardDelete(ctx context.Context, fileID string) error
}

type orchestratorLocationStore interface {
	Create(ctx context.Context, loc *models.Location) error
	FindSynced(ctx context.Context, fileID, versionID string, t models.Tier) (*models.Location, error)
	ListByVersion(ctx context.Context, versionID string) ([]models.Location, error)
	ListByFile(ctx context.Context, fileID string) ([]models.Location, error)
	CountRefs(ctx context.Context, tier models.Tier, providerFileID, excludeVersionID string) (int, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

type orchestratorVersionStore interface {
	GetCurrent(ctx context.Context, fileID string) (*models.Version, error)
	GetByNumber(ctx context.Context, fileID string, number int) (*models.Version, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

type versionAppender interface {
	Append(ctx context.Context, fileID string, sums checksum.Sums, size int64, note *string, uploadedBy string) (*models.Version, error)
}

type accessChecker interface {
	CanAccess(ctx context.Context, fileID string, claims *models.JWTClaims, bit models.PermissionBit) (bool, error)
	SetOwner(ctx context.Context, fileID, userID string, req dto.PermissionBitsRequest, claims *models.JWTClaims) error
	GrantGroup(ctx context.Context, fileID, workspaceID string, req dto.PermissionBitsRequest, inherit bool, claims *models.JWTClaims) error
	DeleteByFile(ctx context.Context, fileID string) error
}

type protectionChecker interface {
	CheckAction(file *models.File, action models.ProtectedAction, claims *models.JWTClaims) error
}

type duplicateDetector interface {
	Detect(ctx context.Context, md5, sha256 string) (*models.File, error)
}

type orchestratorCache interface {
	Store(ctx context.Context, file *models.File, versionID, sourcePath string) (*models.CacheEntry, error)
	Fetch(ctx context.Context, fileID, versionID string) (string, bool, error)
	Invalidate(ctx context.Context, fileID string) error
	DeleteByFile(ctx context.Context, fileID string) error
}

type orchestratorQueue interface {
	EnqueueSync(ctx context.Context, fileID, versionID string, fromTier *models.Tier, toTier models.Tier, priority int, reason string) error
	EnqueueDelete(ctx context.Context, fileID, versionID string, t models.Tier, remotePath, reason string) error
	PurgeFile(ctx context.Context, fileID string) error
}

type usageRecorder interface {
	RecordAccess(ctx context.Context, fileID string)
	Reset(ctx context.Context, fileID string)
}

// OrchestratorService is the multi-tier engine: it decides which tiers an
// upload lands in, which tier serves a read, and how deletions propagate.
type OrchestratorService struct {
	files       orchestratorFileStore
	locations   orchestratorLocationStore
	versions    orchestratorVersionStore
	appender    versionAppender
	permissions accessChecker
	protection  protectionChecker
	duplicates  duplicateDetector
	cache       orchestratorCache
	queue       orchestratorQueue
	usage       usageRecorder
	tiers       tierRegistry
	validator   *validator.Validate
	logger      *zap.Logger

	subscribers []func(Event)
}

// NewOrchestratorService constructs the engine.
func NewOrchestratorService(
	files orchestratorFileStore,
	locations orchestratorLocationStore,
	versions orchestratorVersionStore,
	appender versionAppender,
	permissions accessChecker,
	protection protectionChecker,
	duplicates duplicateDetector,
	cache orchestratorCache,
	queue orchestratorQueue,
	usage usageRecorder,
	tiers tierRegistry,
	validate *validator.Validate,
	logger *zap.Logger,
) *OrchestratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestratorService{
		files:       files,
		locations:   locations,
		versions:    versions,
		appender:    appender,
		permissions: permissions,
		protection:  protection,
		duplicates:  duplicates,
		cache:       cache,
		queue:       queue,
		usage:       usage,
		tiers:       tiers,
		validator:   validate,
		logger:      logger,
	}
}

// Subscribe registers a callback invoked after committed operations.
func (s *OrchestratorService) Subscribe(fn func(Event)) {
	s.subscribers = append(s.subscribers, fn)
}

func (s *OrchestratorService) publish(event Event) {
	for _, fn := range s.subscribers {
		fn(event)
	}
}

// Upload ingests a staged local file. The cloud tier placement is
// mandatory; CDN (for public files) and backup placements are best-effort
// and fall back to the sync queue, so a partially placed upload still
// succeeds once the primary copy is durable.
func (s *OrchestratorService) Upload(ctx context.Context, localPath, originalFilename, mimeType string, req dto.UploadFileRequest, claims *models.JWTClaims) (*UploadOutcome, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}

	sums, size, err := checksum.File(localPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to checksum upload")
	}

	action := DuplicateAction(req.DuplicateAction)
	if action == "" {
		action = DuplicateWarn
	}
	if !action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported duplicate action")
	}

	duplicate, err := s.duplicates.Detect(ctx, sums.MD5, sums.SHA256)
	if err != nil {
		return nil, err
	}

	outcome := &UploadOutcome{Action: action}
	if duplicate != nil {
		outcome.Duplicate = duplicate
		switch action {
		case DuplicateSkip:
			age := time.Since(duplicate.CreatedAt).Round(time.Second)
			return nil, appErrors.Clone(appErrors.ErrDuplicateDetected,
				fmt.Sprintf("identical content already stored as file %s, uploaded %s ago", duplicate.ID, age))
		case DuplicateReplace:
			version, err := s.replaceContent(ctx, duplicate, localPath, sums, size, req.Note, claims)
			if err != nil {
				return nil, err
			}
			outcome.File = duplicate
			outcome.Version = version
			return outcome, nil
		case DuplicateLink:
			return nil, appErrors.Clone(appErrors.ErrDuplicateDetected,
				"identical content already stored as file "+duplicate.ID+"; reference the existing file instead of uploading")
		case DuplicateWarn:
			outcome.Warning = "identical content already stored as file " + duplicate.ID
		case DuplicateKeepBoth:
		}
	}

	file := s.newFileRecord(originalFilename, mimeType, size, sums, req, claims)
	if duplicate != nil && action == DuplicateKeepBoth {
		file.Filename = disambiguatedFilename(file.Filename)
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create file record")
	}
	version, err := s.appender.Append(ctx, file.ID, sums, size, req.Note, claims.UserID)
	if err != nil {
		return nil, err
	}
	file.CurrentVersionID = &version.ID

	tiers, err := s.placeUpload(ctx, file, version.ID, localPath)
	if err != nil {
		return nil, err
	}
	if err := s.grantDefaultPermissions(ctx, file, claims); err != nil {
		return nil, err
	}

	outcome.File = file
	outcome.Version = version
	outcome.Tiers = tiers
	s.publish(Event{Type: EventUploaded, FileID: file.ID, VersionID: version.ID})
	return outcome, nil
}

// Replace stores new content as the next version of an existing file.
func (s *OrchestratorService) Replace(ctx context.Context, fileID, localPath string, note *string, claims *models.JWTClaims) (*models.Version, error) {
	file, err := s.authorizeMutation(ctx, fileID, models.ActionReplace, claims)
	if err != nil {
		return nil, err
	}
	sums, size, err := checksum.File(localPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to checksum upload")
	}
	version, err := s.replaceContent(ctx, file, localPath, sums, size, note, claims)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Type: EventReplaced, FileID: file.ID, VersionID: version.ID})
	return version, nil
}

// ServeURL resolves the best serving URL for a file version, walking
// tiers in read priority order. A zero versionNumber means the current
// version. Access is counted.
func (s *OrchestratorService) ServeURL(ctx context.Context, fileID string, versionNumber int, claims *models.JWTClaims, opts tier.URLOptions) (*ServeResult, error) {
	file, err := s.authorizeRead(ctx, fileID, claims)
	if err != nil {
		return nil, err
	}
	var version *models.Version
	if versionNumber > 0 {
		version, err = s.versions.GetByNumber(ctx, file.ID, versionNumber)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
		}
	} else {
		version, err = s.currentVersion(ctx, file)
		if err != nil {
			return nil, err
		}
	}

	locations, err := s.locations.ListByVersion(ctx, version.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	byTier := make(map[models.Tier]*models.Location, len(locations))
	for i := range locations {
		loc := &locations[i]
		if loc.SyncStatus == models.SyncStatusSynced {
			if _, ok := byTier[loc.Tier]; !ok {
				byTier[loc.Tier] = loc
			}
		}
	}

	for _, t := range models.ReadPriority {
		loc, ok := byTier[t]
		if !ok {
			continue
		}
		if t == models.TierCDN && loc.CDNURL != nil && *loc.CDNURL != "" {
			s.usage.RecordAccess(ctx, file.ID)
			return &ServeResult{URL: *loc.CDNURL, Tier: t}, nil
		}
		adapter, err := s.tiers.Get(t)
		if err != nil {
			continue
		}
		urlCtx, cancel := s.tiers.OperationContext(ctx)
		url, err := adapter.GetURL(urlCtx, loc.ProviderFileID, opts)
		cancel()
		if err != nil {
			s.logger.Warn("tier failed to produce a serving url",
				zap.String("file_id", file.ID), zap.String("tier", string(t)), zap.Error(err))
			continue
		}
		s.usage.RecordAccess(ctx, file.ID)
		result := &ServeResult{URL: url, Tier: t}
		if opts.Expires > 0 {
			expires := time.Now().UTC().Add(opts.Expires)
			result.ExpiresAt = &expires
		}
		return result, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNoLocationAvailable, "no tier can serve this file")
}

// Fetch stages the current version's bytes locally, preferring the cache
// tier and admitting cache misses on the way out.
func (s *OrchestratorService) Fetch(ctx context.Context, fileID string, claims *models.JWTClaims) (string, error) {
	file, err := s.authorizeRead(ctx, fileID, claims)
	if err != nil {
		return "", err
	}
	version, err := s.currentVersion(ctx, file)
	if err != nil {
		return "", err
	}

	if local, hit, err := s.cache.Fetch(ctx, fileID, version.ID); err == nil && hit {
		s.usage.RecordAccess(ctx, fileID)
		return local, nil
	} else if err != nil {
		s.logger.Warn("cache lookup failed", zap.String("file_id", fileID), zap.Error(err))
	}

	locations, err := s.locations.ListByVersion(ctx, version.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	for _, t := range models.ReadPriority {
		if t == models.TierCache {
			continue
		}
		var loc *models.Location
		for i := range locations {
			if locations[i].Tier == t && locations[i].SyncStatus == models.SyncStatusSynced {
				loc = &locations[i]
				break
			}
		}
		if loc == nil {
			continue
		}
		adapter, err := s.tiers.Get(t)
		if err != nil {
			continue
		}
		fetchCtx, cancel := s.tiers.OperationContext(ctx)
		local, err := adapter.Download(fetchCtx, loc.ProviderFileID, "")
		cancel()
		if err != nil {
			s.logger.Warn("tier read failed, falling through",
				zap.String("file_id", fileID), zap.String("tier", string(t)), zap.Error(err))
			continue
		}
		if _, err := s.cache.Store(ctx, file, version.ID, local); err != nil {
			s.logger.Warn("cache admission failed", zap.String("file_id", fileID), zap.Error(err))
		}
		s.usage.RecordAccess(ctx, fileID)
		return local, nil
	}
	return "", appErrors.Clone(appErrors.ErrNoLocationAvailable, "no tier holds a readable copy")
}

// Get returns file metadata with its placements, gated on read access.
func (s *OrchestratorService) Get(ctx context.Context, fileID string, claims *models.JWTClaims) (*models.File, []models.Location, error) {
	file, err := s.authorizeRead(ctx, fileID, claims)
	if err != nil {
		return nil, nil, err
	}
	locations, err := s.locations.ListByFile(ctx, fileID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
	return file, locations, nil
}

// SetVisibility flips a file's public flag. Going public schedules a CDN
// placement; going private schedules CDN removal.
func (s *OrchestratorService) SetVisibility(ctx context.Context, fileID string, isPublic bool, claims *models.JWTClaims) error {
	file, err := s.authorizeMutation(ctx, fileID, models.ActionEdit, claims)
	if err != nil {
		return err
	}
	if file.IsPublic == isPublic {
		return nil
	}
	if err := s.files.SetVisibility(ctx, fileID, isPublic); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visibility")
	}
	version, err := s.currentVersion(ctx, file)
	if err != nil {
		return nil
	}
	if isPublic {
		if err := s.queue.EnqueueSync(ctx, fileID, version.ID, nil, models.TierCDN, 5, "file made public"); err != nil {
			s.logger.Warn("failed to schedule cdn placement", zap.String("file_id", fileID), zap.Error(err))
		}
		return nil
	}
	if loc, err := s.locations.FindSynced(ctx, fileID, version.ID, models.TierCDN); err == nil {
		if err := s.queue.EnqueueDelete(ctx, fileID, version.ID, models.TierCDN, loc.ProviderFileID, "file made private"); err != nil {
			s.logger.Warn("failed to schedule cdn removal", zap.String("file_id", fileID), zap.Error(err))
		}
	}
	return nil
}

// Delete removes a file. Soft deletion hides the record and invalidates
// caches; hard deletion also removes every tier copy and dependent row.
func (s *OrchestratorService) Delete(ctx context.Context, fileID string, hard bool, claims *models.JWTClaims) error {
	file, err := s.authorizeMutation(ctx, fileID, models.ActionDelete, claims)
	if err != nil {
		return err
	}

	if !hard {
		if err := s.files.SoftDelete(ctx, fileID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
		}
		if err := s.cache.Invalidate(ctx, fileID); err != nil {
			s.logger.Warn("failed to invalidate cache on delete", zap.String("file_id", fileID), zap.Error(err))
		}
		s.publish(Event{Type: EventDeleted, FileID: fileID})
		return nil
	}

	if err := s.queue.PurgeFile(ctx, fileID); err != nil {
		return err
	}
	locations, err := s.locations.ListByFile(ctx, fileID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list placements")
	}
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
		if err := s.queue.EnqueueDelete(ctx, fileID, loc.VersionID, loc.Tier, loc.ProviderFileID, "file hard-deleted"); err != nil {
			s.logger.Warn("failed to schedule tier removal",
				zap.String("file_id", fileID), zap.String("tier", string(loc.Tier)), zap.Error(err))
		}
	}

	if err := s.cache.DeleteByFile(ctx, fileID); err != nil {
		s.logger.Warn("failed to drop cache entries", zap.String("file_id", fileID), zap.Error(err))
	}
	if err := s.permissions.DeleteByFile(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop permissions")
	}
	if err := s.locations.DeleteByFile(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop placements")
	}
	if err := s.versions.DeleteByFile(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop versions")
	}
	if err := s.files.HardDelete(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
	}
	s.usage.Reset(ctx, fileID)
	s.publish(Event{Type: EventDeleted, FileID: file.ID})
	return nil
}

func (s *OrchestratorService) newFileRecord(originalFilename, mimeType string, size int64, sums checksum.Sums, req dto.UploadFileRequest, claims *models.JWTClaims) *models.File {
	return &models.File{
		Filename:         path.Base(originalFilename),
		OriginalFilename: originalFilename,
		MimeType:         mimeType,
		Size:             size,
		ChecksumMD5:      sums.MD5,
		ChecksumSHA256:   sums.SHA256,
		FolderPath:       req.FolderPath,
		WorkspaceID:      req.WorkspaceID,
		IsPublic:         req.IsPublic,
		Protection:       models.ProtectionNone,
		EntityType:       req.EntityType,
		Category:         req.Category,
		CreatedBy:        claims.UserID,
	}
}

// placeUpload writes the mandatory cloud copy synchronously, then places
// CDN and backup copies, degrading to queued retries on failure. The
// returned map reports what happened per tier.
func (s *OrchestratorService) placeUpload(ctx context.Context, file *models.File, versionID, localPath string) (map[models.Tier]TierOutcome, error) {
	tiers := make(map[models.Tier]TierOutcome, 3)
	if _, err := s.placeTier(ctx, file, versionID, localPath, models.TierCloud); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, "cloud placement failed")
	}
	tiers[models.TierCloud] = TierOutcome{Status: "synced"}
	if file.IsPublic {
		tiers[models.TierCDN] = s.placeBestEffort(ctx, file, versionID, localPath, models.TierCDN, 5)
	}
	tiers[models.TierBackup] = s.placeBestEffort(ctx, file, versionID, localPath, models.TierBackup, 1)
	return tiers, nil
}

func (s *OrchestratorService) placeBestEffort(ctx context.Context, file *models.File, versionID, localPath string, t models.Tier, priority int) TierOutcome {
	if _, err := s.placeTier(ctx, file, versionID, localPath, t); err != nil {
		s.logger.Warn("tier placement failed, queueing retry",
			zap.String("file_id", file.ID), zap.String("tier", string(t)), zap.Error(err))
		if qErr := s.queue.EnqueueSync(ctx, file.ID, versionID, nil, t, priority, string(t)+" placement retry"); qErr != nil {
			s.logger.Error("failed to queue placement retry",
				zap.String("file_id", file.ID), zap.String("tier", string(t)), zap.Error(qErr))
			return TierOutcome{Status: "failed", Error: err.Error()}
		}
		return TierOutcome{Status: "queued", Error: err.Error()}
	}
	return TierOutcome{Status: "synced"}
}

func (s *OrchestratorService) placeTier(ctx context.Context, file *models.File, versionID, localPath string, t models.Tier) (*models.Location, error) {
	adapter, err := s.tiers.Get(t)
	if err != nil {
		return nil, err
	}
	uploadCtx, cancel := s.tiers.OperationContext(ctx)
	result, err := adapter.Upload(uploadCtx, localPath, tier.UploadInput{
		Folder:   path.Join(file.ID, versionID),
		Filename: file.Filename,
		Public:   file.IsPublic,
	})
	cancel()
	if err != nil {
		return nil, err
	}

	loc := &models.Location{
		FileID:         file.ID,
		VersionID:      versionID,
		Tier:           t,
		Provider:       adapter.Name(),
		ProviderFileID: result.ProviderFileID,
		RemotePath:     result.Path,
		SyncStatus:     models.SyncStatusSynced,
	}
	now := time.Now().UTC()
	loc.LastSyncedAt = &now
	if result.URL != "" {
		loc.URL = &result.URL
	}
	if result.CDNURL != "" {
		loc.CDNURL = &result.CDNURL
	}
	if err := s.locations.Create(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

func (s *OrchestratorService) replaceContent(ctx context.Context, file *models.File, localPath string, sums checksum.Sums, size int64, note *string, claims *models.JWTClaims) (*models.Version, error) {
	version, err := s.appender.Append(ctx, file.ID, sums, size, note, claims.UserID)
	if err != nil {
		return nil, err
	}
	file.Size = size
	file.ChecksumMD5 = sums.MD5
	file.ChecksumSHA256 = sums.SHA256
	if _, err := s.placeUpload(ctx, file, version.ID, localPath); err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, file.ID); err != nil {
		s.logger.Warn("failed to invalidate cache after replace", zap.String("file_id", file.ID), zap.Error(err))
	}
	return version, nil
}

// disambiguatedFilename appends a short random suffix before the
// extension so two files with identical content can coexist by name.
func disambiguatedFilename(filename string) string {
	ext := path.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	return fmt.Sprintf("%s-%s%s", stem, uuid.NewString()[:8], ext)
}

// grantDefaultPermissions gives the creator full owner bits and, when the
// file lives in a workspace, read access to that workspace's members.
func (s *OrchestratorService) grantDefaultPermissions(ctx context.Context, file *models.File, claims *models.JWTClaims) error {
	if err := s.permissions.SetOwner(ctx, file.ID, claims.UserID, dto.PermissionBitsRequest{Read: true, Write: true, Execute: true}, claims); err != nil {
		return err
	}
	if file.WorkspaceID != nil {
		if err := s.permissions.GrantGroup(ctx, file.ID, *file.WorkspaceID, dto.PermissionBitsRequest{Read: true}, false, claims); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrchestratorService) authorizeRead(ctx context.Context, fileID string, claims *models.JWTClaims) (*models.File, error) {
	ok, err := s.permissions.CanAccess(ctx, fileID, claims, models.BitRead)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "read access denied")
	}
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

func (s *OrchestratorService) authorizeMutation(ctx context.Context, fileID string, action models.ProtectedAction, claims *models.JWTClaims) (*models.File, error) {
	ok, err := s.permissions.CanAccess(ctx, fileID, claims, models.BitWrite)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "write access denied")
	}
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
	if err := s.protection.CheckAction(file, action, claims); err != nil {
		return nil, err
	}
	return file, nil
}

func (s *OrchestratorService) currentVersion(ctx context.Context, file *models.File) (*models.Version, error) {
	version, err := s.versions.GetCurrent(ctx, file.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConsistency, "file has no current version")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current version")
	}
	return version, nil
}
