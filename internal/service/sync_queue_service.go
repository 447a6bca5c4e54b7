package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/internal/tier"
	"github.com/harborview/dms-storage-api/pkg/config"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type syncQueueStore interface {
	Insert(ctx context.Context, item *models.SyncQueueItem) error
	GetByID(ctx context.Context, id string) (*models.SyncQueueItem, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.SyncQueueItem, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	Reschedule(ctx context.Context, id string, at time.Time, errMsg string) error
	Stats(ctx context.Context) (*models.QueueStats, error)
	Clean(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

type syncLocationStore interface {
	Create(ctx context.Context, loc *models.Location) error
	FindSynced(ctx context.Context, fileID, versionID string, t models.Tier) (*models.Location, error)
	ListByVersion(ctx context.Context, versionID string) ([]models.Location, error)
	MarkVerified(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.SyncStatus) error
	Delete(ctx context.Context, id string) error
}

type syncFileStore interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
}

type syncVersionStore interface {
	GetByID(ctx context.Context, id string) (*models.Version, error)
}

type tierRegistry interface {
	Get(t models.Tier) (tier.Adapter, error)
	OperationContext(ctx context.Context) (context.Context, context.CancelFunc)
}

type cacheAdmitter interface {
	Store(ctx context.Context, file *models.File, versionID, sourcePath string) (*models.CacheEntry, error)
}

// SyncQueueService owns the durable tier migration queue: enqueueing,
// draining with atomic claims, retry scheduling and terminal failure.
type SyncQueueService struct {
	queue       syncQueueStore
	locations   syncLocationStore
	files       syncFileStore
	versions    syncVersionStore
	tiers       tierRegistry
	cache       cacheAdmitter
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// NewSyncQueueService constructs a SyncQueueService. The cache admitter is
// optional; without it, sync items targeting the cache tier only record a
// placement.
func NewSyncQueueService(queue syncQueueStore, locations syncLocationStore, files syncFileStore, versions syncVersionStore, tiers tierRegistry, cache cacheAdmitter, cfg config.SyncQueueConfig, logger *zap.Logger) *SyncQueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Minute
	}
	return &SyncQueueService{
		queue:       queue,
		locations:   locations,
		files:       files,
		versions:    versions,
		tiers:       tiers,
		cache:       cache,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger,
	}
}

// Enqueue validates and inserts one queue item from an API request.
func (s *SyncQueueService) Enqueue(ctx context.Context, req dto.EnqueueSyncRequest) (*models.SyncQueueItem, error) {
	op := models.QueueOperation(req.Operation)
	if !op.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported queue operation")
	}
	toTier := models.Tier(req.ToTier)
	if !toTier.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported target tier")
	}
	item := &models.SyncQueueItem{
		FileID:      req.FileID,
		VersionID:   req.VersionID,
		Operation:   op,
		ToTier:      toTier,
		Priority:    req.Priority,
		MaxAttempts: s.maxAttempts,
	}
	if req.FromTier != nil {
		from := models.Tier(*req.FromTier)
		if !from.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported source tier")
		}
		item.FromTier = &from
	}
	if req.Reason != "" {
		item.Reason = &req.Reason
	}
	if err := s.queue.Insert(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue sync item")
	}
	return item, nil
}

// EnqueueSync schedules a copy of (file, version) into the target tier,
// removing the source copy when fromTier is set.
func (s *SyncQueueService) EnqueueSync(ctx context.Context, fileID, versionID string, fromTier *models.Tier, toTier models.Tier, priority int, reason string) error {
	item := &models.SyncQueueItem{
		FileID:      fileID,
		VersionID:   versionID,
		Operation:   models.QueueOpSync,
		FromTier:    fromTier,
		ToTier:      toTier,
		Priority:    priority,
		MaxAttempts: s.maxAttempts,
	}
	if reason != "" {
		item.Reason = &reason
	}
	if err := s.queue.Insert(ctx, item); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue sync item")
	}
	return nil
}

// EnqueueDelete schedules removal of one tier copy. The remote path rides
// on the item because the placement row may already be gone when the
// queue drains.
func (s *SyncQueueService) EnqueueDelete(ctx context.Context, fileID, versionID string, t models.Tier, remotePath, reason string) error {
	item := &models.SyncQueueItem{
		FileID:      fileID,
		VersionID:   versionID,
		Operation:   models.QueueOpDelete,
		ToTier:      t,
		MaxAttempts: s.maxAttempts,
	}
	if remotePath != "" {
		item.RemotePath = &remotePath
	}
	if reason != "" {
		item.Reason = &reason
	}
	if err := s.queue.Insert(ctx, item); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue delete item")
	}
	return nil
}

// EnqueueVerify schedules a checksum/size verification of one tier copy.
func (s *SyncQueueService) EnqueueVerify(ctx context.Context, fileID, versionID string, t models.Tier, reason string) error {
	item := &models.SyncQueueItem{
		FileID:      fileID,
		VersionID:   versionID,
		Operation:   models.QueueOpVerify,
		ToTier:      t,
		MaxAttempts: s.maxAttempts,
	}
	if reason != "" {
		item.Reason = &reason
	}
	if err := s.queue.Insert(ctx, item); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue verify item")
	}
	return nil
}

// Drain claims and executes due items, one at a time. A failed item is
// rescheduled with a fixed delay until its attempts run out, then parked
// as failed. Drain returns how many items completed.
func (s *SyncQueueService) Drain(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 20
	}
	due, err := s.queue.ListDue(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list due queue items")
	}

	completed := 0
	for i := range due {
		item := &due[i]
		claimed, err := s.queue.Claim(ctx, item.ID)
		if err != nil {
			return completed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim queue item")
		}
		if !claimed {
			continue
		}
		item.Attempts++

		if execErr := s.execute(ctx, item); execErr != nil {
			s.settleFailure(ctx, item, execErr)
			continue
		}
		if err := s.queue.MarkCompleted(ctx, item.ID); err != nil {
			s.logger.Error("failed to complete queue item", zap.String("item_id", item.ID), zap.Error(err))
			continue
		}
		completed++
	}
	return completed, nil
}

// Stats reports queue depth per status.
func (s *SyncQueueService) Stats(ctx context.Context) (*models.QueueStats, error) {
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read queue stats")
	}
	return stats, nil
}

// Clean purges terminal items older than the cutoff.
func (s *SyncQueueService) Clean(ctx context.Context, olderThan time.Duration) (int64, error) {
	removed, err := s.queue.Clean(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clean queue")
	}
	return removed, nil
}

// PurgeFile drops every queue item referencing a file. The hard delete
// path calls this before scheduling its own tier deletes.
func (s *SyncQueueService) PurgeFile(ctx context.Context, fileID string) error {
	if err := s.queue.DeleteByFile(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge queue items")
	}
	return nil
}

// Get fetches one queue item.
func (s *SyncQueueService) Get(ctx context.Context, id string) (*models.SyncQueueItem, error) {
	item, err := s.queue.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "queue item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue item")
	}
	return item, nil
}

func (s *SyncQueueService) settleFailure(ctx context.Context, item *models.SyncQueueItem, execErr error) {
	msg := execErr.Error()
	if item.Attempts >= item.MaxAttempts {
		exhausted := appErrors.Wrap(execErr, appErrors.ErrQueueExhausted.Code,
			appErrors.ErrQueueExhausted.Status, appErrors.ErrQueueExhausted.Message)
		s.logger.Error("queue item exhausted its attempts",
			zap.String("item_id", item.ID), zap.String("operation", string(item.Operation)),
			zap.String("file_id", item.FileID), zap.Error(exhausted))
		if err := s.queue.MarkFailed(ctx, item.ID, exhausted.Error()); err != nil {
			s.logger.Error("failed to park queue item", zap.String("item_id", item.ID), zap.Error(err))
		}
		return
	}
	at := time.Now().UTC().Add(s.retryDelay)
	s.logger.Warn("queue item failed, rescheduling",
		zap.String("item_id", item.ID), zap.String("operation", string(item.Operation)),
		zap.Int("attempt", item.Attempts), zap.Time("next_attempt", at), zap.Error(execErr))
	if err := s.queue.Reschedule(ctx, item.ID, at, msg); err != nil {
		s.logger.Error("failed to reschedule queue item", zap.String("item_id", item.ID), zap.Error(err))
	}
}

func (s *SyncQueueService) execute(ctx context.Context, item *models.SyncQueueItem) error {
	switch item.Operation {
	case models.QueueOpUpload, models.QueueOpSync:
		return s.executeCopy(ctx, item)
	case models.QueueOpDelete:
		return s.executeDelete(ctx, item)
	case models.QueueOpVerify:
		return s.executeVerify(ctx, item)
	}
	return fmt.Errorf("unknown queue operation %q", item.Operation)
}

// executeCopy replicates (file, version) into the target tier from the
// best available synced source, then removes the source copy for sync
// items that carry a source tier.
func (s *SyncQueueService) executeCopy(ctx context.Context, item *models.SyncQueueItem) error {
	file, err := s.files.GetByID(ctx, item.FileID)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}

	if _, err := s.locations.FindSynced(ctx, item.FileID, item.VersionID, item.ToTier); err == nil {
		// Already placed; only the source removal may be outstanding.
		return s.removeSource(ctx, item)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check target placement: %w", err)
	}

	source, err := s.pickSource(ctx, item.VersionID, item.ToTier)
	if err != nil {
		return err
	}
	sourceAdapter, err := s.tiers.Get(source.Tier)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "tiersync-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck

	downloadCtx, cancel := s.tiers.OperationContext(ctx)
	local, err := sourceAdapter.Download(downloadCtx, source.ProviderFileID, filepath.Join(tmpDir, file.Filename))
	cancel()
	if err != nil {
		return fmt.Errorf("stage from %s: %w", source.Tier, err)
	}

	if item.ToTier == models.TierCache && s.cache != nil {
		if _, err := s.cache.Store(ctx, file, item.VersionID, local); err != nil {
			return fmt.Errorf("admit to cache: %w", err)
		}
		return s.removeSource(ctx, item)
	}

	targetAdapter, err := s.tiers.Get(item.ToTier)
	if err != nil {
		return err
	}
	uploadCtx, cancel := s.tiers.OperationContext(ctx)
	result, err := targetAdapter.Upload(uploadCtx, local, tier.UploadInput{
		Folder:   path.Join(item.FileID, item.VersionID),
		Filename: file.Filename,
		Public:   file.IsPublic,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("place into %s: %w", item.ToTier, err)
	}

	loc := &models.Location{
		FileID:         item.FileID,
		VersionID:      item.VersionID,
		Tier:           item.ToTier,
		Provider:       targetAdapter.Name(),
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
		return fmt.Errorf("record placement: %w", err)
	}
	return s.removeSource(ctx, item)
}

// removeSource turns a copy into a move for sync items with a source tier.
func (s *SyncQueueService) removeSource(ctx context.Context, item *models.SyncQueueItem) error {
	if item.Operation != models.QueueOpSync || item.FromTier == nil || *item.FromTier == item.ToTier {
		return nil
	}
	source, err := s.locations.FindSynced(ctx, item.FileID, item.VersionID, *item.FromTier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load source placement: %w", err)
	}
	adapter, err := s.tiers.Get(source.Tier)
	if err != nil {
		return err
	}
	deleteCtx, cancel := s.tiers.OperationContext(ctx)
	err = adapter.Delete(deleteCtx, source.ProviderFileID)
	cancel()
	if err != nil {
		return fmt.Errorf("remove source copy from %s: %w", source.Tier, err)
	}
	if err := s.locations.Delete(ctx, source.ID); err != nil {
		return fmt.Errorf("remove source placement: %w", err)
	}
	return nil
}

func (s *SyncQueueService) executeDelete(ctx context.Context, item *models.SyncQueueItem) error {
	adapter, err := s.tiers.Get(item.ToTier)
	if err != nil {
		return err
	}

	remote := ""
	var locID string
	if item.RemotePath != nil {
		remote = *item.RemotePath
	}
	if loc, err := s.locations.FindSynced(ctx, item.FileID, item.VersionID, item.ToTier); err == nil {
		locID = loc.ID
		if remote == "" {
			remote = loc.ProviderFileID
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load placement: %w", err)
	}
	if remote == "" {
		// Nothing to remove and nothing recorded; the copy never landed.
		return nil
	}

	deleteCtx, cancel := s.tiers.OperationContext(ctx)
	err = adapter.Delete(deleteCtx, remote)
	cancel()
	if err != nil {
		return fmt.Errorf("remove copy from %s: %w", item.ToTier, err)
	}
	if locID != "" {
		if err := s.locations.Delete(ctx, locID); err != nil {
			return fmt.Errorf("remove placement: %w", err)
		}
	}
	return nil
}

// executeVerify stats the stored object and checks its size against the
// version record. A mismatch flips the placement to failed so reads stop
// trusting it.
func (s *SyncQueueService) executeVerify(ctx context.Context, item *models.SyncQueueItem) error {
	loc, err := s.locations.FindSynced(ctx, item.FileID, item.VersionID, item.ToTier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no synced placement in %s to verify", item.ToTier)
		}
		return fmt.Errorf("load placement: %w", err)
	}
	version, err := s.versions.GetByID(ctx, item.VersionID)
	if err != nil {
		return fmt.Errorf("load version: %w", err)
	}
	adapter, err := s.tiers.Get(item.ToTier)
	if err != nil {
		return err
	}

	statCtx, cancel := s.tiers.OperationContext(ctx)
	meta, err := adapter.GetMetadata(statCtx, loc.ProviderFileID)
	cancel()
	if err != nil {
		return fmt.Errorf("stat copy in %s: %w", item.ToTier, err)
	}
	if meta.Size != version.Size {
		if err := s.locations.UpdateStatus(ctx, loc.ID, models.SyncStatusFailed); err != nil {
			s.logger.Error("failed to flag corrupt placement", zap.String("location_id", loc.ID), zap.Error(err))
		}
		return fmt.Errorf("size mismatch in %s: stored %d, expected %d", item.ToTier, meta.Size, version.Size)
	}
	if err := s.locations.MarkVerified(ctx, loc.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// pickSource returns the highest-priority synced placement that is not the
// target tier itself.
func (s *SyncQueueService) pickSource(ctx context.Context, versionID string, target models.Tier) (*models.Location, error) {
	locations, err := s.locations.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	byTier := make(map[models.Tier]*models.Location, len(locations))
	for i := range locations {
		loc := &locations[i]
		if loc.SyncStatus != models.SyncStatusSynced || loc.Tier == target {
			continue
		}
		if _, ok := byTier[loc.Tier]; !ok {
			byTier[loc.Tier] = loc
		}
	}
	for _, t := range models.ReadPriority {
		if loc, ok := byTier[t]; ok {
			return loc, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNoLocationAvailable, "no synced source placement available")
}
