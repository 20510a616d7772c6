package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

const minioNoSuchKey = "NoSuchKey"

// MinioClient реализует FileStorage для MinIO.
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinioClient создает клиент MinIO и при необходимости создает бакет.
func NewMinioClient(ctx context.Context, cfg Config) (*MinioClient, error) {
	log.Info().Str("endpoint", cfg.Endpoint).Msg("Инициализация клиента MinIO...")

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	c := &MinioClient{client: minioClient, bucketName: cfg.BucketName}
	if err = c.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}

	log.Info().Str("bucket", cfg.BucketName).Msg("Клиент MinIO успешно инициализирован")
	return c, nil
}

// ensureBucket создает бакет, если его нет. Повторный вызов безопасен.
func (c *MinioClient) ensureBucket(ctx context.Context, region string) error {
	exists, err := c.client.BucketExists(ctx, c.bucketName)
	if err != nil {
		return fmt.Errorf("ошибка проверки существования бакета '%s': %w", c.bucketName, err)
	}
	if exists {
		log.Debug().Str("bucket", c.bucketName).Msg("Бакет уже существует")
		return nil
	}

	log.Info().Str("bucket", c.bucketName).Msg("Бакет не найден, попытка создания...")
	err = c.client.MakeBucket(ctx, c.bucketName, minio.MakeBucketOptions{Region: region})
	if err != nil {
		// Бакет мог создать параллельно запущенный экземпляр сервера
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("ошибка создания бакета '%s': %w", c.bucketName, err)
	}
	return nil
}

// UploadFile загружает файл в MinIO.
func (c *MinioClient) UploadFile(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	opts := minio.PutObjectOptions{ContentType: contentType}

	uploadInfo, err := c.client.PutObject(ctx, c.bucketName, objectKey, reader, size, opts)
	if err != nil {
		log.Error().Err(err).Str("key", objectKey).Msg("[Minio] Ошибка загрузки файла")
		return fmt.Errorf("ошибка загрузки файла в MinIO: %w", err)
	}

	log.Debug().Str("key", objectKey).Int64("size", uploadInfo.Size).Str("etag", uploadInfo.ETag).
		Msg("[Minio] Файл загружен")
	return nil
}

// DownloadFile скачивает файл из MinIO.
// GetObject ленивый, поэтому Stat выполняется сразу: ошибки видны до начала отдачи тела.
func (c *MinioClient) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	object, err := c.client.GetObject(ctx, c.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.mapError(objectKey, err)
	}

	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		return nil, c.mapError(objectKey, err)
	}

	return object, nil
}

// DeleteFile удаляет объект из MinIO.
func (c *MinioClient) DeleteFile(ctx context.Context, objectKey string) error {
	err := c.client.RemoveObject(ctx, c.bucketName, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == minioNoSuchKey {
			return nil
		}
		log.Error().Err(err).Str("key", objectKey).Msg("[Minio] Ошибка удаления файла")
		return fmt.Errorf("ошибка удаления файла из MinIO: %w", err)
	}
	log.Debug().Str("key", objectKey).Msg("[Minio] Файл удален")
	return nil
}

// ListObjects возвращает все объекты с указанным префиксом.
func (c *MinioClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects := make([]ObjectInfo, 0)
	for obj := range c.client.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("ошибка получения списка объектов MinIO: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return objects, nil
}

func (c *MinioClient) mapError(objectKey string, err error) error {
	if minio.ToErrorResponse(err).Code == minioNoSuchKey {
		log.Warn().Str("key", objectKey).Msg("[Minio] Объект не найден")
		return ErrObjectNotFound
	}
	log.Error().Err(err).Str("key", objectKey).Msg("[Minio] Ошибка получения файла")
	return fmt.Errorf("ошибка получения файла из MinIO: %w", err)
}
