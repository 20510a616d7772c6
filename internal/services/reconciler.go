package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkhoid/cloud-data-storage/internal/metrics"
	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/internal/storage"
	"github.com/dkhoid/cloud-data-storage/models"
)

// DefaultReconcileGrace - объекты моложе этого возраста сверка не трогает:
// их метаданные могут еще сохраняться.
const DefaultReconcileGrace = time.Hour

// ReconcilerConfig - настройки сверки хранилища с метаданными.
type ReconcilerConfig struct {
	Interval     time.Duration // 0 отключает периодический запуск
	Grace        time.Duration
	FixStaleRows bool // удалять записи, у которых нет объекта
}

// SweepReport - результат одного прохода сверки.
type SweepReport struct {
	OrphanedBlobs []string // объекты без записи
	StaleFiles    []int64  // записи без объекта
	DeletedBlobs  int
	RemovedRows   int
}

// Reconciler находит и исправляет расхождения между объектным хранилищем и таблицей files.
type Reconciler struct {
	tx      repository.Transactor
	users   repository.UserRepository
	files   repository.FileRepository
	usage   repository.UsageRepository
	storage storage.FileStorage
	metrics *metrics.Collector
	cfg     ReconcilerConfig
	now     func() time.Time
}

// NewReconciler создает сверку. Зависимости те же, что у сервиса файлов.
func NewReconciler(deps FileServiceDeps, cfg ReconcilerConfig) *Reconciler {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultReconcileGrace
	}
	return &Reconciler{
		tx:      deps.Transactor,
		users:   deps.Users,
		files:   deps.Files,
		usage:   deps.Usage,
		storage: deps.Storage,
		metrics: deps.Metrics,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run запускает Sweep с интервалом из конфигурации до отмены контекста.
func (r *Reconciler) Run(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		log.Info().Msg("[Reconciler] Периодическая сверка отключена")
		return
	}
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("[Reconciler] Ошибка сверки")
			}
		}
	}
}

// Sweep выполняет один проход сверки.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepReport, error) {
	var (
		objects []storage.ObjectInfo
		files   []models.File
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objects, err = r.storage.ListObjects(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		files, err = r.files.ListAllFiles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ошибка получения данных для сверки: %w", err)
	}

	report := &SweepReport{}
	known := make(map[string]struct{}, len(files))
	for _, f := range files {
		known[f.StorageKey] = struct{}{}
	}
	present := make(map[string]struct{}, len(objects))
	cutoff := r.now().Add(-r.cfg.Grace)

	for _, obj := range objects {
		present[obj.Key] = struct{}{}
		if _, ok := known[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		report.OrphanedBlobs = append(report.OrphanedBlobs, obj.Key)
		if err := r.storage.DeleteFile(ctx, obj.Key); err != nil {
			log.Error().Err(err).Str("key", obj.Key).Msg("[Reconciler] Не удалось удалить объект без записи")
			continue
		}
		report.DeletedBlobs++
	}

	for i := range files {
		f := &files[i]
		if _, ok := present[f.StorageKey]; ok {
			continue
		}
		// Запись моложе grace может принадлежать загрузке, объект которой еще не виден в листинге
		if f.UploadDate.After(cutoff) {
			continue
		}
		report.StaleFiles = append(report.StaleFiles, f.ID)
		log.Warn().Int64("file_id", f.ID).Int64("user_id", f.UserID).Str("key", f.StorageKey).
			Msg("[Reconciler] Запись файла без объекта")
		if !r.cfg.FixStaleRows {
			continue
		}
		if err := r.removeStaleRow(ctx, f); err != nil {
			log.Error().Err(err).Int64("file_id", f.ID).Msg("[Reconciler] Не удалось удалить запись без объекта")
			continue
		}
		report.RemovedRows++
	}

	r.metrics.Reconciled("orphan", report.DeletedBlobs)
	r.metrics.Reconciled("stale", report.RemovedRows)
	log.Info().Int("orphans", len(report.OrphanedBlobs)).Int("deleted_blobs", report.DeletedBlobs).
		Int("stale", len(report.StaleFiles)).Int("removed_rows", report.RemovedRows).
		Msg("[Reconciler] Сверка завершена")
	return report, nil
}

func (r *Reconciler) removeStaleRow(ctx context.Context, f *models.File) error {
	return r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.files.DeleteFile(ctx, f.ID, f.UserID); err != nil {
			return err
		}
		used, err := r.users.DecrementStorageUsed(ctx, f.UserID, f.FileSize)
		if err != nil {
			return err
		}
		return r.usage.UpsertDailyUsage(ctx, f.UserID, used)
	})
}
