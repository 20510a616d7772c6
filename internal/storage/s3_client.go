package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

const (
	defaultS3Region    = "us-east-1"
	s3RetryMaxAttempts = 3
)

// S3Client реализует FileStorage поверх AWS S3 (или любого S3-совместимого API).
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client создает клиент S3 со статическими ключами и при необходимости создает бакет.
func NewS3Client(ctx context.Context, cfg Config) (*S3Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("ошибка инициализации клиента S3: не заданы ключи доступа")
	}
	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	opts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		UsePathStyle:     cfg.UsePathStyle,
		RetryMode:        aws.RetryModeStandard,
		RetryMaxAttempts: s3RetryMaxAttempts,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
	}

	c := &S3Client{client: s3.New(opts), bucket: cfg.BucketName}
	if err := c.ensureBucket(ctx, region); err != nil {
		return nil, err
	}

	log.Info().Str("bucket", cfg.BucketName).Str("region", region).Msg("Клиент S3 успешно инициализирован")
	return c, nil
}

func endpointURL(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func (c *S3Client) ensureBucket(ctx context.Context, region string) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("ошибка проверки существования бакета '%s': %w", c.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if region != defaultS3Region {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	_, err = c.client.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("ошибка создания бакета '%s': %w", c.bucket, err)
	}
	log.Info().Str("bucket", c.bucket).Msg("Бакет создан")
	return nil
}

// UploadFile загружает объект. Для подписи запроса reader должен поддерживать Seek.
func (c *S3Client) UploadFile(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(objectKey),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		log.Error().Err(err).Str("key", objectKey).Msg("[S3] Ошибка загрузки файла")
		return fmt.Errorf("ошибка загрузки файла в S3: %w", err)
	}
	return nil
}

func (c *S3Client) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Warn().Str("key", objectKey).Msg("[S3] Объект не найден")
			return nil, ErrObjectNotFound
		}
		log.Error().Err(err).Str("key", objectKey).Msg("[S3] Ошибка получения файла")
		return nil, fmt.Errorf("ошибка получения файла из S3: %w", err)
	}
	return result.Body, nil
}

// DeleteFile удаляет объект. S3 отвечает успехом и для отсутствующего ключа.
func (c *S3Client) DeleteFile(ctx context.Context, objectKey string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		log.Error().Err(err).Str("key", objectKey).Msg("[S3] Ошибка удаления файла")
		return fmt.Errorf("ошибка удаления файла из S3: %w", err)
	}
	return nil
}

func (c *S3Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	objects := make([]ObjectInfo, 0)
	paginator := s3.NewListObjectsV2Paginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения списка объектов S3: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}
