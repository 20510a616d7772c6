package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/models"
)

var fileColumns = []string{
	"id", "user_id", "filename", "original_filename", "file_size", "mime_type", "storage_key",
	"upload_date", "last_accessed", "is_public", "public_url",
}

func TestCreateFile(t *testing.T) {
	now := time.Now()
	input := &models.File{
		UserID:           1,
		Filename:         "report.pdf",
		OriginalFilename: "report.pdf",
		FileSize:         90,
		MimeType:         "application/pdf",
		StorageKey:       "1/20250101_120000_abcd1234_report.pdf",
	}
	query := regexp.QuoteMeta(`INSERT INTO files (user_id, filename, original_filename, file_size, mime_type, storage_key)`)

	t.Run("Успешное создание", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repository.NewPostgresFileRepository(db)
		mock.ExpectQuery(query).
			WithArgs(input.UserID, input.Filename, input.OriginalFilename, input.FileSize, input.MimeType, input.StorageKey).
			WillReturnRows(sqlmock.NewRows([]string{"id", "upload_date"}).AddRow(int64(10), now))

		created, err := repo.CreateFile(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, int64(10), created.ID)
		assert.Equal(t, now, created.UploadDate)
		assert.Equal(t, input.StorageKey, created.StorageKey)
		// Исходная структура не меняется
		assert.Zero(t, input.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repository.NewPostgresFileRepository(db)
		mock.ExpectQuery(query).WillReturnError(errors.New("database error"))

		created, err := repo.CreateFile(context.Background(), input)
		assert.Nil(t, created)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка выполнения запроса")
	})
}

func TestGetFileByIDAndUser(t *testing.T) {
	now := time.Now()
	query := regexp.QuoteMeta(`FROM files WHERE id=$1 AND user_id=$2`)

	t.Run("Свой файл", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repository.NewPostgresFileRepository(db)
		rows := sqlmock.NewRows(fileColumns).
			AddRow(int64(10), int64(1), "a.txt", "a.txt", int64(5), "text/plain", "1/k_a.txt", now, nil, false, nil)
		mock.ExpectQuery(query).WithArgs(int64(10), int64(1)).WillReturnRows(rows)

		file, err := repo.GetFileByIDAndUser(context.Background(), 10, 1)
		require.NoError(t, err)
		assert.Equal(t, "1/k_a.txt", file.StorageKey)
		assert.Nil(t, file.LastAccessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Чужой или отсутствующий файл", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := repository.NewPostgresFileRepository(db)
		mock.ExpectQuery(query).WithArgs(int64(10), int64(2)).WillReturnError(sql.ErrNoRows)

		file, err := repo.GetFileByIDAndUser(context.Background(), 10, 2)
		assert.Nil(t, file)
		require.ErrorIs(t, err, repository.ErrFileNotFound)
	})
}

func TestListFilesByUser(t *testing.T) {
	now := time.Now()
	db, mock := newMockDB(t)
	repo := repository.NewPostgresFileRepository(db)
	rows := sqlmock.NewRows(fileColumns).
		AddRow(int64(2), int64(1), "b.txt", "b.txt", int64(3), "text/plain", "1/b", now, nil, false, nil).
		AddRow(int64(1), int64(1), "a.txt", "a.txt", int64(5), "text/plain", "1/a", now.Add(-time.Hour), nil, false, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM files WHERE user_id=$1 ORDER BY upload_date DESC`)).
		WithArgs(int64(1)).WillReturnRows(rows)

	files, err := repo.ListFilesByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, int64(2), files[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFile(t *testing.T) {
	query := regexp.QuoteMeta(`DELETE FROM files WHERE id=$1 AND user_id=$2`)

	tests := []struct {
		name        string
		result      sql.Result
		expectedErr error
	}{
		{name: "Файл удален", result: sqlmock.NewResult(0, 1)},
		{name: "Файл не найден", result: sqlmock.NewResult(0, 0), expectedErr: repository.ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := repository.NewPostgresFileRepository(db)
			mock.ExpectExec(query).WithArgs(int64(10), int64(1)).WillReturnResult(tt.result)

			err := repo.DeleteFile(context.Background(), 10, 1)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTouchAndCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewPostgresFileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE files SET last_accessed = CURRENT_TIMESTAMP WHERE id=$1`)).
		WithArgs(int64(10)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM files WHERE user_id=$1`)).
		WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	require.NoError(t, repo.TouchLastAccessed(context.Background(), 10))
	count, err := repo.CountFilesByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllFiles(t *testing.T) {
	now := time.Now()
	db, mock := newMockDB(t)
	repo := repository.NewPostgresFileRepository(db)
	rows := sqlmock.NewRows(fileColumns).
		AddRow(int64(1), int64(1), "a.txt", "a.txt", int64(5), "text/plain", "1/a", now, nil, false, nil).
		AddRow(int64(2), int64(3), "b.txt", "b.txt", int64(6), "text/plain", "3/b", now, nil, false, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM files ORDER BY id`)).WillReturnRows(rows)

	files, err := repo.ListAllFiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
