package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/internal/tier"
	"github.com/harborview/dms-storage-api/pkg/config"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type queueStoreStub struct {
	items       map[string]*models.SyncQueueItem
	seq         int
	rescheduled []string
	failed      []string
	completed   []string
}

func newQueueStoreStub() *queueStoreStub {
	return &queueStoreStub{items: make(map[string]*models.SyncQueueItem)}
}

func (q *queueStoreStub) Insert(ctx context.Context, item *models.SyncQueueItem) error {
	q.seq++
	item.ID = fmt.Sprintf("item-%d", q.seq)
	item.Status = models.QueueStatusPending
	item.ScheduledAt = time.Now().UTC()
	copy := *item
	q.items[item.ID] = &copy
	return nil
}

func (q *queueStoreStub) GetByID(ctx context.Context, id string) (*models.SyncQueueItem, error) {
	item, ok := q.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *item
	return &copy, nil
}

func (q *queueStoreStub) ListDue(ctx context.Context, now time.Time, limit int) ([]models.SyncQueueItem, error) {
	var due []models.SyncQueueItem
	for _, item := range q.items {
		if item.Status == models.QueueStatusPending && !item.ScheduledAt.After(now) {
			due = append(due, *item)
		}
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (q *queueStoreStub) Claim(ctx context.Context, id string) (bool, error) {
	item, ok := q.items[id]
	if !ok || item.Status != models.QueueStatusPending || item.Attempts >= item.MaxAttempts {
		return false, nil
	}
	item.Status = models.QueueStatusProcessing
	item.Attempts++
	return true, nil
}

func (q *queueStoreStub) MarkCompleted(ctx context.Context, id string) error {
	q.completed = append(q.completed, id)
	q.items[id].Status = models.QueueStatusCompleted
	return nil
}

func (q *queueStoreStub) MarkFailed(ctx context.Context, id, errMsg string) error {
	q.failed = append(q.failed, id)
	item := q.items[id]
	item.Status = models.QueueStatusFailed
	item.ErrorMessage = &errMsg
	return nil
}

func (q *queueStoreStub) Reschedule(ctx context.Context, id string, at time.Time, errMsg string) error {
	q.rescheduled = append(q.rescheduled, id)
	item := q.items[id]
	item.Status = models.QueueStatusPending
	item.ScheduledAt = at
	item.ErrorMessage = &errMsg
	return nil
}

func (q *queueStoreStub) Stats(ctx context.Context) (*models.QueueStats, error) {
	stats := &models.QueueStats{}
	for _, item := range q.items {
		switch item.Status {
		case models.QueueStatusPending:
			stats.Pending++
		case models.QueueStatusProcessing:
			stats.Processing++
		case models.QueueStatusCompleted:
			stats.Completed++
		case models.QueueStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (q *queueStoreStub) Clean(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (q *queueStoreStub) DeleteByFile(ctx context.Context, fileID string) error {
	for id, item := range q.items {
		if item.FileID == fileID {
			delete(q.items, id)
		}
	}
	return nil
}

type syncLocationStoreStub struct {
	synced  map[string]*models.Location
	created []models.Location
	deleted []string
	seq     int
}

func newSyncLocationStoreStub() *syncLocationStoreStub {
	return &syncLocationStoreStub{synced: make(map[string]*models.Location)}
}

func locKey(fileID, versionID string, t models.Tier) string {
	return fileID + "/" + versionID + "/" + string(t)
}

func (l *syncLocationStoreStub) addSynced(loc models.Location) {
	l.seq++
	loc.ID = fmt.Sprintf("loc-%d", l.seq)
	loc.SyncStatus = models.SyncStatusSynced
	l.synced[locKey(loc.FileID, loc.VersionID, loc.Tier)] = &loc
}

func (l *syncLocationStoreStub) Create(ctx context.Context, loc *models.Location) error {
	l.seq++
	loc.ID = fmt.Sprintf("loc-%d", l.seq)
	l.created = append(l.created, *loc)
	l.synced[locKey(loc.FileID, loc.VersionID, loc.Tier)] = loc
	return nil
}

func (l *syncLocationStoreStub) FindSynced(ctx context.Context, fileID, versionID string, t models.Tier) (*models.Location, error) {
	if loc, ok := l.synced[locKey(fileID, versionID, t)]; ok {
		copy := *loc
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (l *syncLocationStoreStub) ListByVersion(ctx context.Context, versionID string) ([]models.Location, error) {
	var result []models.Location
	for _, loc := range l.synced {
		if loc.VersionID == versionID {
			result = append(result, *loc)
		}
	}
	return result, nil
}

func (l *syncLocationStoreStub) MarkVerified(ctx context.Context, id string) error {
	return nil
}

func (l *syncLocationStoreStub) UpdateStatus(ctx context.Context, id string, status models.SyncStatus) error {
	return nil
}

func (l *syncLocationStoreStub) Delete(ctx context.Context, id string) error {
	l.deleted = append(l.deleted, id)
	for key, loc := range l.synced {
		if loc.ID == id {
			delete(l.synced, key)
		}
	}
	return nil
}

type syncFileStoreStub struct {
	files map[string]*models.File
}

func (f *syncFileStoreStub) GetByID(ctx context.Context, id string) (*models.File, error) {
	if file, ok := f.files[id]; ok {
		copy := *file
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type syncVersionStoreStub struct {
	versions map[string]*models.Version
}

func (v *syncVersionStoreStub) GetByID(ctx context.Context, id string) (*models.Version, error) {
	if version, ok := v.versions[id]; ok {
		copy := *version
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

// fakeAdapter is an in-memory tier backend for queue executor tests.
type fakeAdapter struct {
	name       string
	deletes    []string
	uploads    []string
	failDelete bool
	failUpload bool
	sizes      map[string]int64
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Upload(ctx context.Context, localPath string, in tier.UploadInput) (*tier.UploadResult, error) {
	if a.failUpload {
		return nil, errors.New("backend unavailable")
	}
	key := in.Folder + "/" + in.Filename
	a.uploads = append(a.uploads, key)
	return &tier.UploadResult{ProviderFileID: key, Path: key}, nil
}

func (a *fakeAdapter) Download(ctx context.Context, providerFileID, dest string) (string, error) {
	if dest == "" {
		return providerFileID, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, []byte("content"), 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func (a *fakeAdapter) Delete(ctx context.Context, providerFileID string) error {
	if a.failDelete {
		return errors.New("backend unavailable")
	}
	a.deletes = append(a.deletes, providerFileID)
	return nil
}

func (a *fakeAdapter) GetURL(ctx context.Context, providerFileID string, opts tier.URLOptions) (string, error) {
	return "https://" + a.name + "/" + providerFileID, nil
}

func (a *fakeAdapter) GetMetadata(ctx context.Context, providerFileID string) (*tier.Metadata, error) {
	size, ok := a.sizes[providerFileID]
	if !ok {
		return nil, errors.New("object missing")
	}
	return &tier.Metadata{Size: size}, nil
}

type fakeRegistry struct {
	adapters map[models.Tier]*fakeAdapter
}

func (r *fakeRegistry) Get(t models.Tier) (tier.Adapter, error) {
	adapter, ok := r.adapters[t]
	if !ok {
		return nil, errors.New("no adapter for tier " + string(t))
	}
	return adapter, nil
}

func (r *fakeRegistry) OperationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(ctx)
}

func newQueueFixture() (*SyncQueueService, *queueStoreStub, *syncLocationStoreStub, *fakeRegistry) {
	queue := newQueueStoreStub()
	locations := newSyncLocationStoreStub()
	files := &syncFileStoreStub{files: map[string]*models.File{
		"file-1": {ID: "file-1", Filename: "doc.pdf"},
	}}
	versions := &syncVersionStoreStub{versions: map[string]*models.Version{
		"ver-1": {ID: "ver-1", FileID: "file-1", Size: 7},
	}}
	registry := &fakeRegistry{adapters: map[models.Tier]*fakeAdapter{
		models.TierCloud:  {name: "cloud", sizes: map[string]int64{}},
		models.TierBackup: {name: "backup", sizes: map[string]int64{}},
		models.TierCDN:    {name: "cdn", sizes: map[string]int64{}},
	}}
	svc := NewSyncQueueService(queue, locations, files, versions, registry, nil, config.SyncQueueConfig{MaxAttempts: 3}, nil)
	return svc, queue, locations, registry
}

func TestQueueDrainExecutesCopy(t *testing.T) {
	svc, queue, locations, registry := newQueueFixture()
	locations.addSynced(models.Location{
		FileID: "file-1", VersionID: "ver-1", Tier: models.TierCloud,
		ProviderFileID: "file-1/ver-1/doc.pdf",
	})
	require.NoError(t, svc.EnqueueSync(context.Background(), "file-1", "ver-1", nil, models.TierBackup, 1, "initial backup"))

	completed, err := svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, completed)
	require.Len(t, queue.completed, 1)
	require.Equal(t, []string{"file-1/ver-1/doc.pdf"}, registry.adapters[models.TierBackup].uploads)

	// The new backup placement was recorded as synced.
	placed, err := locations.FindSynced(context.Background(), "file-1", "ver-1", models.TierBackup)
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusSynced, placed.SyncStatus)
	// Copy without a source tier leaves the cloud copy alone.
	require.Empty(t, registry.adapters[models.TierCloud].deletes)
}

func TestQueueDrainMoveRemovesSource(t *testing.T) {
	svc, _, locations, registry := newQueueFixture()
	locations.addSynced(models.Location{
		FileID: "file-1", VersionID: "ver-1", Tier: models.TierCloud,
		ProviderFileID: "file-1/ver-1/doc.pdf",
	})
	from := models.TierCloud
	require.NoError(t, svc.EnqueueSync(context.Background(), "file-1", "ver-1", &from, models.TierBackup, 1, "demote"))

	completed, err := svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, completed)
	require.Equal(t, []string{"file-1/ver-1/doc.pdf"}, registry.adapters[models.TierCloud].deletes)
	_, err = locations.FindSynced(context.Background(), "file-1", "ver-1", models.TierCloud)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestQueueDrainRetriesThenFails(t *testing.T) {
	svc, queue, _, registry := newQueueFixture()
	registry.adapters[models.TierCloud].failDelete = true
	remote := "file-1/ver-1/doc.pdf"
	require.NoError(t, svc.EnqueueDelete(context.Background(), "file-1", "ver-1", models.TierCloud, remote, "cleanup"))

	// Two failed attempts reschedule.
	for i := 0; i < 2; i++ {
		completed, err := svc.Drain(context.Background(), 10)
		require.NoError(t, err)
		require.Equal(t, 0, completed)
		// Pull the retry time back so the next drain sees the item.
		for _, item := range queue.items {
			item.ScheduledAt = time.Now().UTC().Add(-time.Second)
		}
	}
	require.Len(t, queue.rescheduled, 2)
	require.Empty(t, queue.failed)

	// The third attempt exhausts the retry allowance and parks the item.
	completed, err := svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, completed)
	require.Len(t, queue.failed, 1)
	parked := queue.items[queue.failed[0]]
	require.NotNil(t, parked.ErrorMessage)
	require.Contains(t, *parked.ErrorMessage, appErrors.ErrQueueExhausted.Message)

	// A parked item is never claimed again.
	completed, err = svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, completed)
	require.Len(t, queue.failed, 1)
}

func TestQueueDeleteWithoutPlacementUsesRemotePath(t *testing.T) {
	svc, queue, _, registry := newQueueFixture()
	require.NoError(t, svc.EnqueueDelete(context.Background(), "file-1", "ver-old", models.TierBackup, "file-1/ver-old/doc.pdf", "pruned"))

	completed, err := svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, completed)
	require.Equal(t, []string{"file-1/ver-old/doc.pdf"}, registry.adapters[models.TierBackup].deletes)
	require.Len(t, queue.completed, 1)
}

func TestQueueDeleteWithNothingRecordedCompletes(t *testing.T) {
	svc, queue, _, registry := newQueueFixture()
	require.NoError(t, svc.EnqueueDelete(context.Background(), "file-1", "ver-1", models.TierCDN, "", "file made private"))

	completed, err := svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, completed)
	require.Empty(t, registry.adapters[models.TierCDN].deletes)
	require.Len(t, queue.completed, 1)
}

func TestQueueVerifyFlagsSizeMismatch(t *testing.T) {
	svc, queue, locations, registry := newQueueFixture()
	locations.addSynced(models.Location{
		FileID: "file-1", VersionID: "ver-1", Tier: models.TierCloud,
		ProviderFileID: "file-1/ver-1/doc.pdf",
	})
	registry.adapters[models.TierCloud].sizes["file-1/ver-1/doc.pdf"] = 999
	require.NoError(t, svc.EnqueueVerify(context.Background(), "file-1", "ver-1", models.TierCloud, "audit"))

	completed, err := svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, completed)
	require.Len(t, queue.rescheduled, 1)
}

func TestQueueVerifyPasses(t *testing.T) {
	svc, queue, locations, registry := newQueueFixture()
	locations.addSynced(models.Location{
		FileID: "file-1", VersionID: "ver-1", Tier: models.TierCloud,
		ProviderFileID: "file-1/ver-1/doc.pdf",
	})
	registry.adapters[models.TierCloud].sizes["file-1/ver-1/doc.pdf"] = 7
	require.NoError(t, svc.EnqueueVerify(context.Background(), "file-1", "ver-1", models.TierCloud, "audit"))

	completed, err := svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, completed)
	require.Len(t, queue.completed, 1)
}

func TestQueueCopyIdempotentWhenAlreadyPlaced(t *testing.T) {
	svc, _, locations, registry := newQueueFixture()
	locations.addSynced(models.Location{
		FileID: "file-1", VersionID: "ver-1", Tier: models.TierCloud,
		ProviderFileID: "file-1/ver-1/doc.pdf",
	})
	locations.addSynced(models.Location{
		FileID: "file-1", VersionID: "ver-1", Tier: models.TierBackup,
		ProviderFileID: "file-1/ver-1/doc.pdf",
	})
	require.NoError(t, svc.EnqueueSync(context.Background(), "file-1", "ver-1", nil, models.TierBackup, 1, "retry after crash"))

	completed, err := svc.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, completed)
	// No second upload happened.
	require.Empty(t, registry.adapters[models.TierBackup].uploads)
}
