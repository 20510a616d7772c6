package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/internal/metrics"
	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/internal/storage"
	"github.com/dkhoid/cloud-data-storage/models"
)

// QuotaMode задает, как проверка квоты защищена от параллельных загрузок одного пользователя.
type QuotaMode string

const (
	// QuotaModeSoft - проверка и увеличение не атомарны, превышение ограничено размером одного файла.
	QuotaModeSoft QuotaMode = "soft"
	// QuotaModeAtomic - увеличение счетчика выполняется условным UPDATE.
	QuotaModeAtomic QuotaMode = "atomic"
	// QuotaModeLocked - условный UPDATE плюс блокировка по пользователю на время операции.
	QuotaModeLocked QuotaMode = "locked"
)

const defaultContentType = "application/octet-stream"

// maxFilenameLength совпадает с VARCHAR(255) колонок filename и original_filename.
const maxFilenameLength = 255

// DefaultAllowedExtensions - расширения, разрешенные для загрузки по умолчанию.
var DefaultAllowedExtensions = []string{
	"txt", "pdf", "png", "jpg", "jpeg", "gif", "zip", "doc", "docx", "mp4", "mp3",
}

// ParseQuotaMode проверяет название режима квоты. Пустая строка означает soft.
func ParseQuotaMode(s string) (QuotaMode, error) {
	switch QuotaMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", QuotaModeSoft:
		return QuotaModeSoft, nil
	case QuotaModeAtomic:
		return QuotaModeAtomic, nil
	case QuotaModeLocked:
		return QuotaModeLocked, nil
	default:
		return "", fmt.Errorf("неизвестный режим квоты %q (допустимо: soft, atomic, locked)", s)
	}
}

// UploadInput - загружаемый файл.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileService определяет интерфейс работы с файлами пользователя.
type FileService interface {
	Upload(ctx context.Context, userID int64, in UploadInput) (*models.File, error)
	List(ctx context.Context, userID int64) ([]models.File, error)
	// Download возвращает тело файла, которое вызывающий обязан закрыть.
	Download(ctx context.Context, userID, fileID int64) (io.ReadCloser, *models.File, error)
	Delete(ctx context.Context, userID, fileID int64) error
}

// FileServiceDeps - зависимости сервиса файлов.
type FileServiceDeps struct {
	Transactor repository.Transactor
	Users      repository.UserRepository
	Files      repository.FileRepository
	Usage      repository.UsageRepository
	Storage    storage.FileStorage
	Metrics    *metrics.Collector
}

// FileServiceConfig - настройки сервиса файлов.
type FileServiceConfig struct {
	AllowedExtensions []string
	QuotaMode         QuotaMode
}

var _ FileService = (*fileService)(nil)

type fileService struct {
	tx      repository.Transactor
	users   repository.UserRepository
	files   repository.FileRepository
	usage   repository.UsageRepository
	storage storage.FileStorage
	metrics *metrics.Collector

	allowed map[string]struct{}
	mode    QuotaMode
	locks   *kmutex.Kmutex
	now     func() time.Time
}

// NewFileService создает новый экземпляр сервиса файлов.
func NewFileService(deps FileServiceDeps, cfg FileServiceConfig) FileService {
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}
	mode := cfg.QuotaMode
	if mode == "" {
		mode = QuotaModeSoft
	}

	return &fileService{
		tx:      deps.Transactor,
		users:   deps.Users,
		files:   deps.Files,
		usage:   deps.Usage,
		storage: deps.Storage,
		metrics: deps.Metrics,
		allowed: allowed,
		mode:    mode,
		locks:   kmutex.New(),
		now:     time.Now,
	}
}

// Upload сохраняет объект в хранилище, затем одной транзакцией создает запись файла,
// увеличивает storage_used и обновляет дневной снимок использования.
func (s *fileService) Upload(ctx context.Context, userID int64, in UploadInput) (*models.File, error) {
	original, err := s.checkFilename(in.Filename)
	if err != nil {
		return nil, err
	}
	if in.Size < 0 || in.Body == nil {
		return nil, ErrValidation
	}

	if s.mode == QuotaModeLocked {
		s.locks.Lock(userID)
		defer s.locks.Unlock(userID)
	}

	quota, err := s.users.GetQuota(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка получения квоты: %w", err)
	}
	if quota.StorageUsed+in.Size > quota.StorageLimit {
		log.Info().Int64("user_id", userID).Int64("size", in.Size).Int64("storage_used", quota.StorageUsed).
			Int64("storage_limit", quota.StorageLimit).Msg("[FileService] Превышен лимит хранилища")
		s.metrics.UploadRejected(metrics.ReasonQuota)
		return nil, ErrQuotaExceeded
	}

	safeName := SanitizeFilename(original)
	key := s.storageKey(userID, safeName)
	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	if err = s.storage.UploadFile(ctx, key, in.Body, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageBackend, err)
	}

	var created *models.File
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		used, txErr := s.incrementStorageUsed(ctx, userID, in.Size)
		if txErr != nil {
			return txErr
		}
		created, txErr = s.files.CreateFile(ctx, &models.File{
			UserID:           userID,
			Filename:         safeName,
			OriginalFilename: original,
			FileSize:         in.Size,
			MimeType:         contentType,
			StorageKey:       key,
		})
		if txErr != nil {
			return txErr
		}
		return s.usage.UpsertDailyUsage(ctx, userID, used)
	})
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExceeded) {
			// Параллельная загрузка заняла квоту раньше: объект уже записан, удаляем его
			s.removeBlob(context.WithoutCancel(ctx), key)
			s.metrics.UploadRejected(metrics.ReasonQuota)
			return nil, ErrQuotaExceeded
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			s.removeBlob(context.WithoutCancel(ctx), key)
			return nil, ErrUserNotFound
		}
		// Результат фиксации неизвестен, поэтому объект не удаляем: его подберет сверка
		log.Error().Err(err).Int64("user_id", userID).Str("key", key).
			Msg("[FileService] Метаданные не сохранены, объект остался без записи")
		s.metrics.OrphanedBlob()
		return nil, fmt.Errorf("ошибка сохранения метаданных файла: %w", err)
	}

	s.metrics.FileUploaded(in.Size)
	log.Info().Int64("user_id", userID).Int64("file_id", created.ID).Int64("size", in.Size).
		Msg("[FileService] Файл загружен")
	return created, nil
}

func (s *fileService) incrementStorageUsed(ctx context.Context, userID, size int64) (int64, error) {
	if s.mode == QuotaModeSoft {
		return s.users.IncrementStorageUsed(ctx, userID, size)
	}
	return s.users.TryIncrementStorageUsed(ctx, userID, size)
}

func (s *fileService) List(ctx context.Context, userID int64) ([]models.File, error) {
	files, err := s.files.ListFilesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	return files, nil
}

// Download ищет файл только среди файлов пользователя и открывает его содержимое.
func (s *fileService) Download(ctx context.Context, userID, fileID int64) (io.ReadCloser, *models.File, error) {
	file, err := s.lookup(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.storage.DownloadFile(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Error().Int64("file_id", file.ID).Str("key", file.StorageKey).
				Msg("[FileService] Запись файла есть, объекта в хранилище нет")
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrStorageBackend, err)
	}

	// Учет доступа не должен ломать скачивание
	if err = s.files.TouchLastAccessed(ctx, file.ID); err != nil {
		log.Warn().Err(err).Int64("file_id", file.ID).Msg("[FileService] Не удалось обновить last_accessed")
	}
	if err = s.usage.AddBandwidth(ctx, userID, file.FileSize); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("[FileService] Не удалось учесть трафик")
	}

	return body, file, nil
}

// Delete удаляет объект, затем одной транзакцией запись файла и байты из квоты.
func (s *fileService) Delete(ctx context.Context, userID, fileID int64) error {
	if s.mode == QuotaModeLocked {
		s.locks.Lock(userID)
		defer s.locks.Unlock(userID)
	}

	file, err := s.lookup(ctx, userID, fileID)
	if err != nil {
		return err
	}

	if err = s.storage.DeleteFile(ctx, file.StorageKey); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageBackend, err)
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if txErr := s.files.DeleteFile(ctx, file.ID, userID); txErr != nil {
			return txErr
		}
		used, txErr := s.users.DecrementStorageUsed(ctx, userID, file.FileSize)
		if txErr != nil {
			return txErr
		}
		return s.usage.UpsertDailyUsage(ctx, userID, used)
	})
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) {
			// Запись уже удалил параллельный запрос
			return ErrFileNotFound
		}
		log.Error().Err(err).Int64("file_id", file.ID).Str("key", file.StorageKey).
			Msg("[FileService] Объект удален, запись файла осталась")
		s.metrics.StaleRow()
		return fmt.Errorf("ошибка удаления метаданных файла: %w", err)
	}

	s.metrics.FileDeleted(file.FileSize)
	log.Info().Int64("user_id", userID).Int64("file_id", file.ID).Msg("[FileService] Файл удален")
	return nil
}

func (s *fileService) lookup(ctx context.Context, userID, fileID int64) (*models.File, error) {
	file, err := s.files.GetFileByIDAndUser(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return file, nil
}

func (s *fileService) removeBlob(ctx context.Context, key string) {
	if err := s.storage.DeleteFile(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("[FileService] Не удалось удалить объект после отказа")
		s.metrics.OrphanedBlob()
	}
}

// checkFilename возвращает имя файла без пути, если его расширение разрешено
// и длина не превышает maxFilenameLength символов.
func (s *fileService) checkFilename(filename string) (string, error) {
	name := baseName(filename)
	if name == "" || utf8.RuneCountInString(name) > maxFilenameLength {
		return "", ErrValidation
	}
	dot := strings.LastIndex(name, ".")
	if dot < 0 {
		s.metrics.UploadRejected(metrics.ReasonFileType)
		return "", ErrFileTypeNotAllowed
	}
	if _, ok := s.allowed[strings.ToLower(name[dot+1:])]; !ok {
		s.metrics.UploadRejected(metrics.ReasonFileType)
		return "", ErrFileTypeNotAllowed
	}
	return name, nil
}

// storageKey: {user_id}/{YYYYMMDD_HHMMSS}_{8 hex}_{имя}.
func (s *fileService) storageKey(userID int64, safeName string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d/%s_%s_%s", userID, s.now().UTC().Format("20060102_150405"), suffix, safeName)
}

func baseName(filename string) string {
	name := strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// SanitizeFilename оставляет в имени только [A-Za-z0-9._-], пробелы заменяет на '_',
// отбрасывает путь и ведущие точки. Если ничего не осталось, возвращает "file".
func SanitizeFilename(filename string) string {
	name := baseName(filename)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > maxFilenameLength {
		// Обрезаем начало, чтобы сохранить расширение
		out = out[len(out)-maxFilenameLength:]
	}
	return out
}

// Кастомные ошибки сервиса файлов.
var (
	ErrValidation         = errors.New("некорректные данные запроса")
	ErrFileTypeNotAllowed = errors.New("тип файла не разрешен")
	ErrQuotaExceeded      = errors.New("превышен лимит хранилища")
	ErrFileNotFound       = errors.New("файл не найден")
	ErrUserNotFound       = errors.New("пользователь не найден")
	ErrStorageBackend     = errors.New("ошибка объектного хранилища")
)
