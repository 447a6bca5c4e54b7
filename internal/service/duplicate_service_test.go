package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type duplicateFileStoreStub struct {
	grouped  []models.File
	byID     map[string]*models.File
	detected *models.File
	retired  []string
}

func (d *duplicateFileStoreStub) GetByID(ctx context.Context, id string) (*models.File, error) {
	if file, ok := d.byID[id]; ok {
		copy := *file
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (d *duplicateFileStoreStub) FindByChecksum(ctx context.Context, md5, sha256 string) (*models.File, error) {
	if d.detected == nil {
		return nil, sql.ErrNoRows
	}
	copy := *d.detected
	return &copy, nil
}

func (d *duplicateFileStoreStub) ListByChecksumGroups(ctx context.Context) ([]models.File, error) {
	return d.grouped, nil
}

func (d *duplicateFileStoreStub) SoftDelete(ctx context.Context, fileID string) error {
	d.retired = append(d.retired, fileID)
	return nil
}

type duplicateLocationReaderStub struct {
	byFile map[string][]models.Location
	refs   map[string]int
}

func (l *duplicateLocationReaderStub) ListByFile(ctx context.Context, fileID string) ([]models.Location, error) {
	return l.byFile[fileID], nil
}

func (l *duplicateLocationReaderStub) CountRefs(ctx context.Context, tier models.Tier, providerFileID, excludeVersionID string) (int, error) {
	return l.refs[string(tier)+"/"+providerFileID], nil
}

type invalidatorStub struct {
	invalidated []string
}

func (i *invalidatorStub) Invalidate(ctx context.Context, fileID string) error {
	i.invalidated = append(i.invalidated, fileID)
	return nil
}

func dupFile(id, md5 string, size int64, created time.Time) models.File {
	return models.File{ID: id, ChecksumMD5: md5, Size: size, CreatedAt: created}
}

func TestDuplicateDetectMissIsNil(t *testing.T) {
	svc := NewDuplicateService(&duplicateFileStoreStub{}, &duplicateLocationReaderStub{}, &deleteEnqueuerStub{}, &invalidatorStub{}, nil)

	file, err := svc.Detect(context.Background(), "md5", "sha")
	require.NoError(t, err)
	require.Nil(t, file)
}

func TestDuplicateFindAllGroupsWastedSize(t *testing.T) {
	base := time.Now()
	files := &duplicateFileStoreStub{grouped: []models.File{
		dupFile("a", "sum-1", 100, base),
		dupFile("b", "sum-1", 100, base.Add(time.Hour)),
		dupFile("c", "sum-1", 100, base.Add(2*time.Hour)),
		dupFile("d", "sum-2", 50, base),
		dupFile("e", "sum-2", 50, base),
	}}
	svc := NewDuplicateService(files, &duplicateLocationReaderStub{}, &deleteEnqueuerStub{}, &invalidatorStub{}, nil)

	groups, err := svc.FindAllGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, int64(200), groups[0].WastedSize)
	require.Equal(t, int64(50), groups[1].WastedSize)
}

func TestDuplicateMergeStrategies(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	build := func() *duplicateFileStoreStub {
		return &duplicateFileStoreStub{grouped: []models.File{
			dupFile("old-small", "sum-1", 10, base),
			dupFile("new-large", "sum-1", 90, base.Add(48 * time.Hour)),
			dupFile("mid", "sum-1", 50, base.Add(24 * time.Hour)),
		}}
	}

	cases := []struct {
		strategy MergeStrategy
		survivor string
	}{
		{MergeKeepOldest, "old-small"},
		{MergeKeepNewest, "new-large"},
		{MergeKeepLargest, "new-large"},
		{MergeKeepSmallest, "old-small"},
	}
	for _, tc := range cases {
		files := build()
		svc := NewDuplicateService(files, &duplicateLocationReaderStub{byFile: map[string][]models.Location{}, refs: map[string]int{}}, &deleteEnqueuerStub{}, &invalidatorStub{}, nil)

		result, err := svc.Merge(context.Background(), "sum-1", tc.strategy)
		require.NoError(t, err, string(tc.strategy))
		require.Equal(t, tc.survivor, result.Survivor.ID, string(tc.strategy))
		require.Len(t, result.Removed, 2, string(tc.strategy))
		require.NotContains(t, result.Removed, tc.survivor, string(tc.strategy))
		require.ElementsMatch(t, result.Removed, files.retired, string(tc.strategy))
	}
}

func TestDuplicateMergeUnknownStrategy(t *testing.T) {
	base := time.Now()
	files := &duplicateFileStoreStub{grouped: []models.File{
		dupFile("a", "sum-1", 10, base),
		dupFile("b", "sum-1", 10, base),
	}}
	svc := NewDuplicateService(files, &duplicateLocationReaderStub{}, &deleteEnqueuerStub{}, &invalidatorStub{}, nil)

	_, err := svc.Merge(context.Background(), "sum-1", MergeStrategy("random"))
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDuplicateMergeNoGroup(t *testing.T) {
	svc := NewDuplicateService(&duplicateFileStoreStub{}, &duplicateLocationReaderStub{}, &deleteEnqueuerStub{}, &invalidatorStub{}, nil)

	_, err := svc.Merge(context.Background(), "sum-404", MergeKeepOldest)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestDuplicateMergeGuardsSharedObjects(t *testing.T) {
	base := time.Now()
	files := &duplicateFileStoreStub{grouped: []models.File{
		dupFile("keep", "sum-1", 10, base),
		dupFile("drop", "sum-1", 10, base.Add(time.Hour)),
	}}
	locations := &duplicateLocationReaderStub{
		byFile: map[string][]models.Location{
			"drop": {
				{FileID: "drop", VersionID: "ver-1", Tier: models.TierCloud, ProviderFileID: "shared/doc.pdf", SyncStatus: models.SyncStatusSynced},
				{FileID: "drop", VersionID: "ver-1", Tier: models.TierBackup, ProviderFileID: "drop/doc.pdf", SyncStatus: models.SyncStatusSynced},
			},
		},
		refs: map[string]int{"cloud/shared/doc.pdf": 2},
	}
	queue := &deleteEnqueuerStub{}
	cache := &invalidatorStub{}
	svc := NewDuplicateService(files, locations, queue, cache, nil)

	result, err := svc.Merge(context.Background(), "sum-1", MergeKeepOldest)
	require.NoError(t, err)
	require.Equal(t, "keep", result.Survivor.ID)
	// The shared cloud object survives; only the private backup copy is
	// scheduled for deletion.
	require.Equal(t, []string{"backup:drop/doc.pdf"}, queue.deletes)
	require.Equal(t, []string{"drop"}, cache.invalidated)
	require.Equal(t, []string{"drop"}, files.retired)
}
