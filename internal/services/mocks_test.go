package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dkhoid/cloud-data-storage/models"
)

// --- Mocks ---

// MockUserRepository is a mock for UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetQuota(ctx context.Context, userID int64) (*models.Quota, error) {
	args := m.Called(ctx, userID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Quota), args.Error(1)
}

func (m *MockUserRepository) IncrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error) {
	args := m.Called(ctx, userID, delta)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) TryIncrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error) {
	args := m.Called(ctx, userID, delta)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) DecrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error) {
	args := m.Called(ctx, userID, delta)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) UpdatePlan(
	ctx context.Context,
	userID int64,
	plan string,
	storageLimit int64,
	endDate time.Time,
) error {
	args := m.Called(ctx, userID, plan, storageLimit, endDate)
	return args.Error(0)
}

// MockBillingRepository is a mock for BillingRepository.
type MockBillingRepository struct {
	mock.Mock
}

func (m *MockBillingRepository) ListActivePlans(ctx context.Context) ([]models.PricingPlan, error) {
	args := m.Called(ctx)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.PricingPlan), args.Error(1)
}

func (m *MockBillingRepository) GetPlanByName(ctx context.Context, name string) (*models.PricingPlan, error) {
	args := m.Called(ctx, name)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.PricingPlan), args.Error(1)
}

func (m *MockBillingRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) (int64, error) {
	args := m.Called(ctx, tx)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBillingRepository) ListTransactionsByUser(ctx context.Context, userID int64) ([]models.Transaction, error) {
	args := m.Called(ctx, userID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Transaction), args.Error(1)
}

// MockStatsRepository is a mock for StatsRepository.
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) GetStats(ctx context.Context) (*models.AdminStats, error) {
	args := m.Called(ctx)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.AdminStats), args.Error(1)
}

// MockTokenIssuer is a mock for TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(userID int64) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}
