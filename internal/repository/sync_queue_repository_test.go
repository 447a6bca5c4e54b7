package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/harborview/dms-storage-api/internal/models"
)

func newSyncQueueRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSyncQueueRepositoryInsertDefaults(t *testing.T) {
	db, mock, cleanup := newSyncQueueRepoMock(t)
	defer cleanup()

	repo := NewSyncQueueRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sync_queue")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	item := &models.SyncQueueItem{
		FileID:      "file-1",
		VersionID:   "ver-1",
		Operation:   models.QueueOpSync,
		ToTier:      models.TierBackup,
		Priority:    1,
		MaxAttempts: 3,
	}
	require.NoError(t, repo.Insert(context.Background(), item))
	require.NotEmpty(t, item.ID)
	require.Equal(t, models.QueueStatusPending, item.Status)
	require.False(t, item.ScheduledAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncQueueRepositoryClaim(t *testing.T) {
	db, mock, cleanup := newSyncQueueRepoMock(t)
	defer cleanup()

	repo := NewSyncQueueRepository(db)

	// One row updated means this worker owns the item.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sync_queue")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	claimed, err := repo.Claim(context.Background(), "item-1")
	require.NoError(t, err)
	require.True(t, claimed)

	// Zero rows means another worker got there first or the item is spent.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sync_queue")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	claimed, err = repo.Claim(context.Background(), "item-1")
	require.NoError(t, err)
	require.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncQueueRepositoryListDue(t *testing.T) {
	db, mock, cleanup := newSyncQueueRepoMock(t)
	defer cleanup()

	repo := NewSyncQueueRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "file_id", "version_id", "operation", "from_tier", "to_tier", "remote_path", "priority", "status",
		"attempts", "max_attempts", "reason", "error_message", "scheduled_at", "started_at", "completed_at", "created_at",
	}).
		AddRow("item-1", "file-1", "ver-1", "sync", nil, "backup", nil, 5, "pending", 0, 3, "demote", nil, now, nil, nil, now).
		AddRow("item-2", "file-2", "ver-2", "delete", "cloud", "cloud", "file-2/ver-2/doc.pdf", 1, "pending", 1, 3, "pruned", nil, now, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, file_id, version_id")).
		WithArgs(now, 10).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, models.QueueOpSync, due[0].Operation)
	require.NotNil(t, due[1].RemotePath)
	require.Equal(t, "file-2/ver-2/doc.pdf", *due[1].RemotePath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncQueueRepositoryStats(t *testing.T) {
	db, mock, cleanup := newSyncQueueRepoMock(t)
	defer cleanup()

	repo := NewSyncQueueRepository(db)
	rows := sqlmock.NewRows([]string{"pending", "processing", "completed", "failed"}).
		AddRow(4, 1, 20, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.Pending)
	require.Equal(t, 2, stats.Failed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncQueueRepositoryClean(t *testing.T) {
	db, mock, cleanup := newSyncQueueRepoMock(t)
	defer cleanup()

	repo := NewSyncQueueRepository(db)
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sync_queue")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 17))

	removed, err := repo.Clean(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(17), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
