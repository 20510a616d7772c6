package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/models"
)

// UsageHistoryDays - сколько последних дневных снимков отдается в истории.
const UsageHistoryDays = 30

const bytesInMB = 1024 * 1024

// UserService отдает профиль пользователя и историю использования.
type UserService interface {
	Info(ctx context.Context, userID int64) (*models.UserInfo, error)
	UsageHistory(ctx context.Context, userID int64) ([]models.UsageRecord, error)
}

var _ UserService = (*userService)(nil)

type userService struct {
	users repository.UserRepository
	files repository.FileRepository
	usage repository.UsageRepository
}

// NewUserService создает новый экземпляр сервиса профиля.
func NewUserService(
	users repository.UserRepository,
	files repository.FileRepository,
	usage repository.UsageRepository,
) UserService {
	return &userService{users: users, files: files, usage: usage}
}

func (s *userService) Info(ctx context.Context, userID int64) (*models.UserInfo, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	count, err := s.files.CountFilesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета файлов: %w", err)
	}

	info := &models.UserInfo{
		User:              user,
		FileCount:         count,
		StorageUsedMB:     round2(float64(user.StorageUsed) / bytesInMB),
		StorageLimitMB:    round2(float64(user.StorageLimit) / bytesInMB),
		StorageUsedHuman:  humanize.IBytes(uint64(max(user.StorageUsed, 0))),
		StorageLimitHuman: humanize.IBytes(uint64(max(user.StorageLimit, 0))),
	}
	if user.StorageLimit > 0 {
		info.StoragePercentage = round2(float64(user.StorageUsed) / float64(user.StorageLimit) * 100)
	}
	return info, nil
}

func (s *userService) UsageHistory(ctx context.Context, userID int64) ([]models.UsageRecord, error) {
	records, err := s.usage.ListUsageHistory(ctx, userID, UsageHistoryDays)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории использования: %w", err)
	}
	return records, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
