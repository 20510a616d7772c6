package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dkhoid/cloud-data-storage/models"
)

// UsageRepository ведет дневные снимки использования хранилища.
type UsageRepository interface {
	// UpsertDailyUsage записывает снимок storage_used за текущий день.
	UpsertDailyUsage(ctx context.Context, userID, storageUsed int64) error
	// AddBandwidth добавляет объем скачанных байт к сегодняшней записи.
	AddBandwidth(ctx context.Context, userID, bytes int64) error
	ListUsageHistory(ctx context.Context, userID int64, limit int) ([]models.UsageRecord, error)
}

type postgresUsageRepository struct {
	db *sqlx.DB
}

// NewPostgresUsageRepository создает новый экземпляр репозитория истории использования.
func NewPostgresUsageRepository(db *sqlx.DB) UsageRepository {
	return &postgresUsageRepository{db: db}
}

func (r *postgresUsageRepository) UpsertDailyUsage(ctx context.Context, userID, storageUsed int64) error {
	query := `INSERT INTO usage_history (user_id, date, storage_used) VALUES ($1, CURRENT_DATE, $2)
	          ON CONFLICT (user_id, date) DO UPDATE SET storage_used = EXCLUDED.storage_used`

	if _, err := conn(ctx, r.db).ExecContext(ctx, query, userID, storageUsed); err != nil {
		return fmt.Errorf("ошибка записи истории использования: %w", err)
	}
	return nil
}

func (r *postgresUsageRepository) AddBandwidth(ctx context.Context, userID, bytes int64) error {
	query := `INSERT INTO usage_history (user_id, date, storage_used, bandwidth_used)
	          VALUES ($1, CURRENT_DATE, (SELECT storage_used FROM users WHERE id = $1), $2)
	          ON CONFLICT (user_id, date) DO UPDATE SET bandwidth_used = usage_history.bandwidth_used + EXCLUDED.bandwidth_used`

	if _, err := conn(ctx, r.db).ExecContext(ctx, query, userID, bytes); err != nil {
		return fmt.Errorf("ошибка учета трафика: %w", err)
	}
	return nil
}

// ListUsageHistory возвращает последние limit записей, сначала новые.
func (r *postgresUsageRepository) ListUsageHistory(
	ctx context.Context,
	userID int64,
	limit int,
) ([]models.UsageRecord, error) {
	query := `SELECT date, storage_used, bandwidth_used FROM usage_history
	          WHERE user_id=$1 ORDER BY date DESC LIMIT $2`

	records := make([]models.UsageRecord, 0, limit)
	if err := conn(ctx, r.db).SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса на получение истории использования: %w", err)
	}
	return records, nil
}
