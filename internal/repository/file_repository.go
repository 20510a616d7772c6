package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/models"
)

const fileColumns = `id, user_id, filename, original_filename, file_size, mime_type, storage_key,
	upload_date, last_accessed, is_public, public_url`

// FileRepository определяет методы для работы с метаданными файлов.
type FileRepository interface {
	CreateFile(ctx context.Context, file *models.File) (*models.File, error)
	// GetFileByIDAndUser ищет файл только среди файлов пользователя.
	// Чужой файл неотличим от отсутствующего.
	GetFileByIDAndUser(ctx context.Context, fileID, userID int64) (*models.File, error)
	ListFilesByUser(ctx context.Context, userID int64) ([]models.File, error)
	DeleteFile(ctx context.Context, fileID, userID int64) error
	TouchLastAccessed(ctx context.Context, fileID int64) error
	CountFilesByUser(ctx context.Context, userID int64) (int64, error)
	ListAllFiles(ctx context.Context) ([]models.File, error)
}

// postgresFileRepository реализует FileRepository для PostgreSQL.
type postgresFileRepository struct {
	db *sqlx.DB
}

// NewPostgresFileRepository создает новый экземпляр репозитория файлов.
func NewPostgresFileRepository(db *sqlx.DB) FileRepository {
	return &postgresFileRepository{db: db}
}

// CreateFile сохраняет метаданные файла и возвращает копию с ID и датой загрузки.
func (r *postgresFileRepository) CreateFile(ctx context.Context, file *models.File) (*models.File, error) {
	query := `INSERT INTO files (user_id, filename, original_filename, file_size, mime_type, storage_key)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, upload_date`

	created := *file
	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		file.UserID, file.Filename, file.OriginalFilename, file.FileSize, file.MimeType, file.StorageKey,
	).Scan(&created.ID, &created.UploadDate)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return nil, fmt.Errorf("файл с ключом '%s' уже существует: %w", file.StorageKey, err)
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на создание файла: %w", err)
	}

	log.Debug().Int64("file_id", created.ID).Int64("user_id", file.UserID).Str("key", file.StorageKey).
		Msg("[FileRepo] Метаданные файла сохранены")
	return &created, nil
}

func (r *postgresFileRepository) GetFileByIDAndUser(ctx context.Context, fileID, userID int64) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id=$1 AND user_id=$2`
	var file models.File

	err := conn(ctx, r.db).GetContext(ctx, &file, query, fileID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на получение файла: %w", err)
	}
	return &file, nil
}

// ListFilesByUser возвращает файлы пользователя, сначала новые.
func (r *postgresFileRepository) ListFilesByUser(ctx context.Context, userID int64) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id=$1 ORDER BY upload_date DESC`

	files := make([]models.File, 0)
	if err := conn(ctx, r.db).SelectContext(ctx, &files, query, userID); err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка файлов: %w", err)
	}
	return files, nil
}

func (r *postgresFileRepository) DeleteFile(ctx context.Context, fileID, userID int64) error {
	query := `DELETE FROM files WHERE id=$1 AND user_id=$2`

	res, err := conn(ctx, r.db).ExecContext(ctx, query, fileID, userID)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса на удаление файла: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrFileNotFound
	}
	return nil
}

// TouchLastAccessed обновляет время последнего доступа к файлу.
func (r *postgresFileRepository) TouchLastAccessed(ctx context.Context, fileID int64) error {
	query := `UPDATE files SET last_accessed = CURRENT_TIMESTAMP WHERE id=$1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, fileID); err != nil {
		return fmt.Errorf("ошибка обновления last_accessed: %w", err)
	}
	return nil
}

func (r *postgresFileRepository) CountFilesByUser(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM files WHERE user_id=$1`
	var count int64
	if err := conn(ctx, r.db).GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("ошибка подсчета файлов: %w", err)
	}
	return count, nil
}

// ListAllFiles возвращает метаданные всех файлов. Используется сверкой с объектным хранилищем.
func (r *postgresFileRepository) ListAllFiles(ctx context.Context) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files ORDER BY id`

	files := make([]models.File, 0)
	if err := conn(ctx, r.db).SelectContext(ctx, &files, query); err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса на получение всех файлов: %w", err)
	}
	return files, nil
}

// Кастомные ошибки репозитория файлов.
var (
	ErrFileNotFound = errors.New("файл не найден")
)
