package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dkhoid/cloud-data-storage/models"
)

// StatsRepository собирает агрегаты для администратора.
type StatsRepository interface {
	GetStats(ctx context.Context) (*models.AdminStats, error)
}

type postgresStatsRepository struct {
	db *sqlx.DB
}

// NewPostgresStatsRepository создает новый экземпляр репозитория статистики.
func NewPostgresStatsRepository(db *sqlx.DB) StatsRepository {
	return &postgresStatsRepository{db: db}
}

func (r *postgresStatsRepository) GetStats(ctx context.Context) (*models.AdminStats, error) {
	query := `SELECT
	            (SELECT COUNT(*) FROM users) AS total_users,
	            (SELECT COALESCE(SUM(storage_used), 0) FROM users) AS total_storage,
	            (SELECT COUNT(*) FROM files) AS total_files,
	            (SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status = 'completed') AS total_revenue`
	var stats models.AdminStats

	if err := conn(ctx, r.db).GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса статистики: %w", err)
	}
	return &stats, nil
}
