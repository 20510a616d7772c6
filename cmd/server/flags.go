package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkhoid/cloud-data-storage/internal/auth"
	"github.com/dkhoid/cloud-data-storage/internal/handlers"
	"github.com/dkhoid/cloud-data-storage/internal/services"
	"github.com/dkhoid/cloud-data-storage/internal/storage"
)

const (
	defaultServerPort    = "5000"
	defaultMinioEndpoint = "localhost:9000"
	defaultMinioUser     = "minioadmin"
	defaultMinioPassword = "minioadmin"
	defaultBucket        = "user-files"
)

// binding связывает ключ viper с флагом и переменной окружения.
type binding struct {
	key, flag, env string
}

var bindings = []binding{
	{"server.port", "port", "SERVER_PORT"},
	{"server.cert_file", "cert-file", "TLS_CERT_FILE"},
	{"server.key_file", "key-file", "TLS_KEY_FILE"},
	{"database.url", "database-url", "DATABASE_URL"},
	{"database.migrate", "migrate", "DATABASE_MIGRATE"},
	{"jwt.secret", "jwt-secret", "JWT_SECRET"},
	{"jwt.ttl", "jwt-ttl", "JWT_TTL"},
	{"storage.driver", "storage-driver", "STORAGE_DRIVER"},
	{"storage.endpoint", "storage-endpoint", "MINIO_ENDPOINT"},
	{"storage.access_key", "storage-access-key", "MINIO_ACCESS_KEY"},
	{"storage.secret_key", "storage-secret-key", "MINIO_SECRET_KEY"},
	{"storage.bucket", "storage-bucket", "MINIO_BUCKET"},
	{"storage.use_ssl", "storage-use-ssl", "MINIO_USE_SSL"},
	{"storage.region", "storage-region", "STORAGE_REGION"},
	{"storage.path_style", "storage-path-style", "STORAGE_PATH_STYLE"},
	{"upload.max_size", "max-upload-size", "MAX_UPLOAD_SIZE"},
	{"upload.allowed_extensions", "allowed-extensions", "ALLOWED_EXTENSIONS"},
	{"quota.mode", "quota-mode", "QUOTA_MODE"},
	{"reconcile.interval", "reconcile-interval", "RECONCILE_INTERVAL"},
	{"reconcile.grace", "reconcile-grace", "RECONCILE_GRACE"},
	{"reconcile.fix_stale_rows", "reconcile-fix-stale-rows", "RECONCILE_FIX_STALE_ROWS"},
	{"admin.token", "admin-token", "ADMIN_TOKEN"},
	{"log.level", "log-level", "LOG_LEVEL"},
	{"log.pretty", "log-pretty", "LOG_PRETTY"},
}

// config хранит конфигурацию сервера.
type config struct {
	Port     string
	CertFile string
	KeyFile  string

	DatabaseURL string
	Migrate     bool

	JWTSecret string
	JWTTTL    time.Duration

	StorageDriver string
	Storage       storage.Config

	MaxUploadSize     int64
	AllowedExtensions []string
	QuotaMode         services.QuotaMode

	Reconcile services.ReconcilerConfig

	AdminToken string

	LogLevel  string
	LogPretty bool
}

// TLSEnabled сообщает, заданы ли сертификат и ключ.
func (c *config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// parseFlags разбирает флаги, переменные окружения и файл конфигурации.
// Приоритет: флаг > переменная окружения > файл > значение по умолчанию.
func parseFlags(args []string) (*config, error) {
	fs := pflag.NewFlagSet("cloud-storage", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Путь к файлу конфигурации (yaml, json, toml)")

	fs.String("port", defaultServerPort, "Порт HTTP-сервера (env: SERVER_PORT)")
	fs.String("cert-file", "", "Путь к файлу TLS-сертификата (env: TLS_CERT_FILE)")
	fs.String("key-file", "", "Путь к файлу TLS-ключа (env: TLS_KEY_FILE)")
	fs.String("database-url", "", "Строка подключения к PostgreSQL (env: DATABASE_URL)")
	fs.Bool("migrate", true, "Применять миграции при старте (env: DATABASE_MIGRATE)")
	fs.String("jwt-secret", "", "Секрет подписи JWT (env: JWT_SECRET)")
	fs.Duration("jwt-ttl", auth.DefaultTokenTTL, "Время жизни токена (env: JWT_TTL)")
	fs.String("storage-driver", storage.DriverMinio, "Драйвер объектного хранилища: minio или s3 (env: STORAGE_DRIVER)")
	fs.String("storage-endpoint", defaultMinioEndpoint, "Адрес объектного хранилища (env: MINIO_ENDPOINT)")
	fs.String("storage-access-key", defaultMinioUser, "Ключ доступа (env: MINIO_ACCESS_KEY)")
	fs.String("storage-secret-key", defaultMinioPassword, "Секретный ключ (env: MINIO_SECRET_KEY)")
	fs.String("storage-bucket", defaultBucket, "Имя бакета (env: MINIO_BUCKET)")
	fs.Bool("storage-use-ssl", false, "Использовать HTTPS для хранилища (env: MINIO_USE_SSL)")
	fs.String("storage-region", "", "Регион S3 (env: STORAGE_REGION)")
	fs.Bool("storage-path-style", true, "Path-style адресация S3 (env: STORAGE_PATH_STYLE)")
	fs.Int64("max-upload-size", handlers.DefaultMaxUploadSize, "Максимальный размер запроса загрузки в байтах")
	fs.StringSlice("allowed-extensions", services.DefaultAllowedExtensions, "Разрешенные расширения файлов")
	fs.String("quota-mode", string(services.QuotaModeSoft), "Режим проверки квоты: soft, atomic или locked")
	fs.Duration("reconcile-interval", 0, "Интервал сверки хранилища с БД, 0 отключает")
	fs.Duration("reconcile-grace", services.DefaultReconcileGrace, "Минимальный возраст объекта для сверки")
	fs.Bool("reconcile-fix-stale-rows", false, "Удалять записи файлов без объектов")
	fs.String("admin-token", "", "Токен для /api/admin/* (env: ADMIN_TOKEN)")
	fs.String("log-level", "info", "Уровень логирования")
	fs.Bool("log-pretty", false, "Человекочитаемый вывод логов")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("ошибка разбора флагов: %w", err)
	}

	v := viper.New()
	for _, b := range bindings {
		if err := v.BindPFlag(b.key, fs.Lookup(b.flag)); err != nil {
			return nil, fmt.Errorf("ошибка привязки флага %s: %w", b.flag, err)
		}
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("ошибка привязки переменной %s: %w", b.env, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
	}

	cfg := &config{
		Port:          v.GetString("server.port"),
		CertFile:      v.GetString("server.cert_file"),
		KeyFile:       v.GetString("server.key_file"),
		DatabaseURL:   v.GetString("database.url"),
		Migrate:       v.GetBool("database.migrate"),
		JWTSecret:     v.GetString("jwt.secret"),
		JWTTTL:        v.GetDuration("jwt.ttl"),
		StorageDriver: v.GetString("storage.driver"),
		Storage: storage.Config{
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key"),
			SecretAccessKey: v.GetString("storage.secret_key"),
			UseSSL:          v.GetBool("storage.use_ssl"),
			BucketName:      v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			UsePathStyle:    v.GetBool("storage.path_style"),
		},
		MaxUploadSize:     v.GetInt64("upload.max_size"),
		AllowedExtensions: splitList(v.GetStringSlice("upload.allowed_extensions")),
		Reconcile: services.ReconcilerConfig{
			Interval:     v.GetDuration("reconcile.interval"),
			Grace:        v.GetDuration("reconcile.grace"),
			FixStaleRows: v.GetBool("reconcile.fix_stale_rows"),
		},
		AdminToken: v.GetString("admin.token"),
		LogLevel:   v.GetString("log.level"),
		LogPretty:  v.GetBool("log.pretty"),
	}

	mode, err := services.ParseQuotaMode(v.GetString("quota.mode"))
	if err != nil {
		return nil, err
	}
	cfg.QuotaMode = mode

	if err = cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate проверяет обязательные параметры.
func (c *config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("не указана строка подключения к БД (--database-url или DATABASE_URL)")
	}
	if c.JWTSecret == "" {
		return errors.New("не указан секрет JWT (--jwt-secret или JWT_SECRET)")
	}
	if c.Storage.BucketName == "" {
		return errors.New("не указано имя бакета (--storage-bucket или MINIO_BUCKET)")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("для TLS нужны и сертификат, и ключ (--cert-file и --key-file)")
	}
	if c.StorageDriver != storage.DriverMinio && c.StorageDriver != storage.DriverS3 {
		return fmt.Errorf("неизвестный драйвер хранилища: %s", c.StorageDriver)
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("максимальный размер загрузки должен быть положительным")
	}
	return nil
}

// splitList раскладывает значения вида "txt,pdf" из переменных окружения.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
