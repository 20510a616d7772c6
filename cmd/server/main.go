package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkhoid/cloud-data-storage/internal/auth"
	"github.com/dkhoid/cloud-data-storage/internal/handlers"
	"github.com/dkhoid/cloud-data-storage/internal/logger"
	"github.com/dkhoid/cloud-data-storage/internal/metrics"
	appmiddleware "github.com/dkhoid/cloud-data-storage/internal/middleware"
	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/internal/services"
	"github.com/dkhoid/cloud-data-storage/internal/storage"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	// Загрузка и скачивание больших файлов идут в рамках одного запроса.
	defaultReadTimeout     = 5 * time.Minute
	defaultWriteTimeout    = 5 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	corsMaxAge             = 300
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db          *sqlx.DB
	fileStorage storage.FileStorage
	metrics     *metrics.Collector
	tokens      *auth.TokenManager
	reconciler  *services.Reconciler

	authHandler    *handlers.AuthHandler
	fileHandler    *handlers.FileHandler
	accountHandler *handlers.AccountHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("Ошибка выполнения сервера")
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run(args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка чтения .env: %w", err)
	}

	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	logger.Setup(cfg.LogLevel, cfg.LogPretty)
	log.Info().Str("port", cfg.Port).Str("storage", cfg.StorageDriver).Str("quota_mode", string(cfg.QuotaMode)).
		Msg("Запуск сервера облачного хранилища...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setupDependencies(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	defer func() {
		if closeErr := deps.db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Ошибка закрытия соединения с БД")
		}
	}()

	if cfg.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN не задан: /api/admin/stats доступен без аутентификации")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(deps, cfg.AdminToken),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var serveErr error
		if cfg.TLSEnabled() {
			log.Info().Str("cert", cfg.CertFile).Msgf("Запуск HTTPS-сервера на порту %s...", cfg.Port)
			serveErr = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			log.Info().Msgf("Запуск HTTP-сервера на порту %s...", cfg.Port)
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("ошибка запуска сервера: %w", serveErr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), defaultShutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("ошибка остановки сервера: %w", shutdownErr)
		}
		return nil
	})
	g.Go(func() error {
		deps.reconciler.Run(gctx)
		return nil
	})

	if err = g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Сервер остановлен")
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(ctx context.Context, cfg *config) (*dependencies, error) {
	deps := &dependencies{}
	var err error

	// 1. Подключение к БД и миграции
	deps.db, err = repository.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	if cfg.Migrate {
		if err = repository.RunMigrations(cfg.DatabaseURL); err != nil {
			closeDB(deps.db)
			return nil, err
		}
	}

	// 2. Объектное хранилище
	deps.fileStorage, err = storage.New(ctx, cfg.StorageDriver, cfg.Storage)
	if err != nil {
		closeDB(deps.db)
		return nil, fmt.Errorf("ошибка инициализации объектного хранилища: %w", err)
	}

	// 3. Репозитории
	transactor := repository.NewTransactor(deps.db)
	userRepo := repository.NewPostgresUserRepository(deps.db)
	fileRepo := repository.NewPostgresFileRepository(deps.db)
	usageRepo := repository.NewPostgresUsageRepository(deps.db)
	billingRepo := repository.NewPostgresBillingRepository(deps.db)
	statsRepo := repository.NewPostgresStatsRepository(deps.db)

	// 4. Сервисы
	deps.metrics = metrics.NewCollector()
	deps.tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	fileDeps := services.FileServiceDeps{
		Transactor: transactor,
		Users:      userRepo,
		Files:      fileRepo,
		Usage:      usageRepo,
		Storage:    deps.fileStorage,
		Metrics:    deps.metrics,
	}
	fileService := services.NewFileService(fileDeps, services.FileServiceConfig{
		AllowedExtensions: cfg.AllowedExtensions,
		QuotaMode:         cfg.QuotaMode,
	})
	authService := services.NewAuthService(userRepo, deps.tokens)
	userService := services.NewUserService(userRepo, fileRepo, usageRepo)
	billingService := services.NewBillingService(transactor, userRepo, billingRepo)
	adminService := services.NewAdminService(statsRepo)
	deps.reconciler = services.NewReconciler(fileDeps, cfg.Reconcile)

	// 5. Обработчики
	deps.authHandler = handlers.NewAuthHandler(authService)
	deps.fileHandler = handlers.NewFileHandler(fileService, deps.metrics, cfg.MaxUploadSize)
	deps.accountHandler = handlers.NewAccountHandler(userService, billingService, adminService)

	return deps, nil
}

func closeDB(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия соединения с БД")
	}
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(deps *dependencies, adminToken string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmiddleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", appmiddleware.AdminTokenHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}))
	r.Use(deps.metrics.Middleware)

	// --- Маршруты --- //
	r.Get("/", handlers.Home)
	r.Get("/ping", handlers.Ping)
	r.Handle("/metrics", metrics.Handler(deps.metrics))

	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты
		r.Post("/register", deps.authHandler.Register)
		r.Post("/login", deps.authHandler.Login)
		r.Get("/pricing", deps.accountHandler.Pricing)

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Authenticator(deps.tokens))

			r.Post("/upload", deps.fileHandler.Upload)
			r.Get("/files", deps.fileHandler.List)
			r.Delete("/delete/{file_id}", deps.fileHandler.Delete)
			r.Get("/user/info", deps.accountHandler.UserInfo)
			r.Get("/usage/history", deps.accountHandler.UsageHistory)
			r.Post("/upgrade", deps.accountHandler.Upgrade)
			r.Get("/transactions", deps.accountHandler.Transactions)
		})

		// Скачивание по прямой ссылке: токен может прийти в ?token=
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.AuthenticatorWithQuery(deps.tokens))
			r.Get("/download/{file_id}", deps.fileHandler.Download)
		})

		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.AdminGuard(adminToken))
			r.Get("/admin/stats", deps.accountHandler.AdminStats)
		})
	})
	return r
}
