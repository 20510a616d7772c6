package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// FileStorage определяет интерфейс для взаимодействия с объектным хранилищем.
type FileStorage interface {
	UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	// DownloadFile возвращает io.ReadCloser, который нужно закрыть после использования.
	DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error)
	// DeleteFile удаляет объект. Отсутствие объекта ошибкой не считается.
	DeleteFile(ctx context.Context, objectKey string) error
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo - сведения об объекте, нужные для сверки с метаданными.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Драйверы хранилища.
const (
	DriverMinio = "minio"
	DriverS3    = "s3"
)

// Config содержит параметры подключения к S3-совместимому хранилищу.
type Config struct {
	Endpoint        string // Адрес (например, "localhost:9000" для MinIO или URL для S3)
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
	UsePathStyle    bool // Только для драйвера s3
}

// New создает хранилище для указанного драйвера.
func New(ctx context.Context, driver string, cfg Config) (FileStorage, error) {
	if cfg.BucketName == "" {
		return nil, ErrBucketRequired
	}
	switch driver {
	case DriverMinio, "":
		c, err := NewMinioClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case DriverS3:
		c, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, ErrUnknownDriver
	}
}

// Кастомные ошибки хранилища.
var (
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	ErrBucketRequired = errors.New("не указано имя бакета")
	ErrUnknownDriver  = errors.New("неизвестный драйвер хранилища")
)
