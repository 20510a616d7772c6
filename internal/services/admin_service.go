package services

import (
	"context"
	"fmt"

	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/models"
)

const bytesInGB = 1024 * 1024 * 1024

// AdminService отдает агрегированную статистику сервиса.
type AdminService interface {
	Stats(ctx context.Context) (*models.AdminStats, error)
}

type adminService struct {
	stats repository.StatsRepository
}

// NewAdminService создает новый экземпляр сервиса статистики.
func NewAdminService(stats repository.StatsRepository) AdminService {
	return &adminService{stats: stats}
}

func (s *adminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	stats, err := s.stats.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	stats.TotalStorageGB = round2(float64(stats.TotalStorageBytes) / bytesInGB)
	stats.TotalRevenue = round2(stats.TotalRevenue)
	return stats, nil
}
