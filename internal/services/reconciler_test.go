package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkhoid/cloud-data-storage/internal/metrics"
	"github.com/dkhoid/cloud-data-storage/internal/services"
)

func newReconciler(db *memDB, blobs *memBlobs, fix bool) *services.Reconciler {
	return services.NewReconciler(services.FileServiceDeps{
		Transactor: db,
		Users:      db,
		Files:      db,
		Usage:      db,
		Storage:    blobs,
		Metrics:    metrics.NewCollector(),
	}, services.ReconcilerConfig{Grace: time.Hour, FixStaleRows: fix})
}

func TestReconciler_Sweep(t *testing.T) {
	db, blobs := newMemDB(), newMemBlobs()
	db.addUser(1, 0, 1000)
	svc := newFileService(db, blobs, services.QuotaModeSoft)

	kept, err := upload(svc, 1, "kept.txt", []byte("keep"))
	require.NoError(t, err)
	stale, err := upload(svc, 1, "stale.txt", []byte("stale!"))
	require.NoError(t, err)

	// Объект без записи: старый удаляется, свежий остается
	blobs.put("1/old_orphan.txt", []byte("x"), time.Now().Add(-2*time.Hour))
	blobs.put("1/fresh_orphan.txt", []byte("y"), time.Now())
	// Запись без объекта
	require.NoError(t, blobs.DeleteFile(context.Background(), stale.StorageKey))

	t.Run("Без исправления записей", func(t *testing.T) {
		report, err := newReconciler(db, blobs, false).Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"1/old_orphan.txt"}, report.OrphanedBlobs)
		assert.Equal(t, 1, report.DeletedBlobs)
		// Запись моложе grace не трогаем
		assert.Empty(t, report.StaleFiles)
		assert.Equal(t, 2, db.fileCount())
		assert.Equal(t, 2, blobs.count())
	})

	t.Run("С исправлением устаревших записей", func(t *testing.T) {
		db.mu.Lock()
		f := db.files[stale.ID]
		f.UploadDate = time.Now().Add(-2 * time.Hour)
		db.files[stale.ID] = f
		db.mu.Unlock()

		report, err := newReconciler(db, blobs, true).Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int64{stale.ID}, report.StaleFiles)
		assert.Equal(t, 1, report.RemovedRows)
		assert.Equal(t, 1, db.fileCount())
		// Квота снова равна сумме размеров оставшихся файлов
		assert.Equal(t, kept.FileSize, db.user(1).StorageUsed)
		assert.Equal(t, db.sumFileSizes(1), db.user(1).StorageUsed)
	})
}

func TestReconciler_RunDisabled(t *testing.T) {
	r := services.NewReconciler(services.FileServiceDeps{}, services.ReconcilerConfig{})
	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run с нулевым интервалом должен сразу завершиться")
	}
}
