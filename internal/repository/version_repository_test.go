package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/harborview/dms-storage-api/internal/models"
)

func newVersionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestVersionRepositoryCreateCurrentFlipsInOneTx(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE versions SET is_current = FALSE")).
		WithArgs("file-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO versions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	version := &models.Version{
		FileID:         "file-1",
		Number:         4,
		Size:           1024,
		ChecksumMD5:    "m",
		ChecksumSHA256: "s",
		UploadedBy:     "alice",
	}
	require.NoError(t, repo.CreateCurrent(context.Background(), version))
	require.NotEmpty(t, version.ID)
	require.True(t, version.IsCurrent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryCreateCurrentRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE versions SET is_current = FALSE")).
		WithArgs("file-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO versions")).
		WillReturnError(errors.New("unique_violation"))
	mock.ExpectRollback()

	err := repo.CreateCurrent(context.Background(), &models.Version{FileID: "file-1", Number: 4})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryGetCurrent(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "file_id", "number", "size", "checksum_md5", "checksum_sha256", "note", "uploaded_by", "is_current", "created_at"}).
		AddRow("ver-3", "file-1", 3, 2048, "m", "s", nil, "alice", true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, file_id, number")).
		WithArgs("file-1").
		WillReturnRows(rows)

	current, err := repo.GetCurrent(context.Background(), "file-1")
	require.NoError(t, err)
	require.Equal(t, 3, current.Number)
	require.True(t, current.IsCurrent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryMaxNumberEmptyFile(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow(0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(number), 0)")).
		WithArgs("file-1").
		WillReturnRows(rows)

	max, err := repo.MaxNumber(context.Background(), "file-1")
	require.NoError(t, err)
	require.Zero(t, max)
	require.NoError(t, mock.ExpectationsWereMet())
}
