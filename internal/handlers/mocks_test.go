package handlers_test

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/dkhoid/cloud-data-storage/internal/services"
	"github.com/dkhoid/cloud-data-storage/models"
)

// --- Mocks ---

// MockAuthService is a mock for AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	args := m.Called(ctx, username, password)
	ret := args.Get(1)
	if ret == nil {
		return args.String(0), nil, args.Error(2)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.String(0), ret.(*models.User), args.Error(2)
}

// MockFileService is a mock for FileService.
type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) Upload(ctx context.Context, userID int64, in services.UploadInput) (*models.File, error) {
	args := m.Called(ctx, userID, in)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.File), args.Error(1)
}

func (m *MockFileService) List(ctx context.Context, userID int64) ([]models.File, error) {
	args := m.Called(ctx, userID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.File), args.Error(1)
}

func (m *MockFileService) Download(ctx context.Context, userID, fileID int64) (io.ReadCloser, *models.File, error) {
	args := m.Called(ctx, userID, fileID)
	body, file := args.Get(0), args.Get(1)
	if body == nil || file == nil {
		return nil, nil, args.Error(2)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return body.(io.ReadCloser), file.(*models.File), args.Error(2)
}

func (m *MockFileService) Delete(ctx context.Context, userID, fileID int64) error {
	args := m.Called(ctx, userID, fileID)
	return args.Error(0)
}

// MockUserService is a mock for UserService.
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Info(ctx context.Context, userID int64) (*models.UserInfo, error) {
	args := m.Called(ctx, userID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.UserInfo), args.Error(1)
}

func (m *MockUserService) UsageHistory(ctx context.Context, userID int64) ([]models.UsageRecord, error) {
	args := m.Called(ctx, userID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.UsageRecord), args.Error(1)
}

// MockBillingService is a mock for BillingService.
type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) Plans(ctx context.Context) ([]models.PricingPlan, error) {
	args := m.Called(ctx)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.PricingPlan), args.Error(1)
}

func (m *MockBillingService) Upgrade(
	ctx context.Context,
	userID int64,
	planName, billingCycle string,
) (*models.PricingPlan, error) {
	args := m.Called(ctx, userID, planName, billingCycle)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.PricingPlan), args.Error(1)
}

func (m *MockBillingService) Transactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	args := m.Called(ctx, userID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Transaction), args.Error(1)
}

// MockAdminService is a mock for AdminService.
type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	args := m.Called(ctx)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.AdminStats), args.Error(1)
}
