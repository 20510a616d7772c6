package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dkhoid/cloud-data-storage/internal/auth"
	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/internal/services"
	"github.com/dkhoid/cloud-data-storage/models"
)

func TestAuthService_Register(t *testing.T) {
	req := models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret123"}

	tests := []struct {
		name        string
		req         models.RegisterRequest
		mockSetup   func(repo *MockUserRepository)
		expectedErr error
	}{
		{
			name: "Успешная регистрация",
			req:  req,
			mockSetup: func(repo *MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					// Пароль хранится только в виде bcrypt-хеша
					return u.Username == "alice" && u.Email == "alice@example.com" &&
						auth.CheckPassword(u.PasswordHash, "secret123") == nil
				})).Return(&models.User{ID: 1, Username: "alice", Plan: "free"}, nil).Once()
			},
		},
		{
			name: "Имя пользователя занято",
			req:  req,
			mockSetup: func(repo *MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.Anything).Return(nil, repository.ErrUserExists).Once()
			},
			expectedErr: services.ErrUserExists,
		},
		{
			name: "Пробелы вокруг имени и email обрезаются",
			req:  models.RegisterRequest{Username: "  alice ", Email: " alice@example.com ", Password: "secret123"},
			mockSetup: func(repo *MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Username == "alice" && u.Email == "alice@example.com"
				})).Return(&models.User{ID: 1, Username: "alice", Plan: "free"}, nil).Once()
			},
		},
		{
			name:        "Имя короче трех символов после обрезки",
			req:         models.RegisterRequest{Username: "  ab  ", Email: "a@b.c", Password: "secret123"},
			mockSetup:   func(*MockUserRepository) {},
			expectedErr: services.ErrValidation,
		},
		{
			name:        "Короткий пароль",
			req:         models.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "12345"},
			mockSetup:   func(*MockUserRepository) {},
			expectedErr: services.ErrValidation,
		},
		{
			name:        "Пустые поля",
			req:         models.RegisterRequest{Username: " ", Email: "a@b.c", Password: "x"},
			mockSetup:   func(*MockUserRepository) {},
			expectedErr: services.ErrValidation,
		},
		{
			name: "Ошибка репозитория",
			req:  req,
			mockSetup: func(repo *MockUserRepository) {
				repo.On("CreateUser", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
			},
			expectedErr: errors.New("ошибка создания пользователя"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.mockSetup(repo)
			svc := services.NewAuthService(repo, new(MockTokenIssuer))

			user, err := svc.Register(context.Background(), tt.req)
			switch {
			case tt.expectedErr == nil:
				require.NoError(t, err)
				assert.Equal(t, int64(1), user.ID)
			case errors.Is(tt.expectedErr, services.ErrUserExists), errors.Is(tt.expectedErr, services.ErrValidation):
				require.ErrorIs(t, err, tt.expectedErr)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr.Error())
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	stored := &models.User{ID: 7, Username: "bob", PasswordHash: hash}

	tests := []struct {
		name          string
		password      string
		repoSetup     func(repo *MockUserRepository)
		tokenSetup    func(tokens *MockTokenIssuer)
		expectedToken string
		expectedErr   error
	}{
		{
			name:     "Успешный вход",
			password: "secret123",
			repoSetup: func(repo *MockUserRepository) {
				repo.On("GetUserByUsername", mock.Anything, "bob").Return(stored, nil).Once()
			},
			tokenSetup: func(tokens *MockTokenIssuer) {
				tokens.On("Issue", int64(7)).Return("signed-token", nil).Once()
			},
			expectedToken: "signed-token",
		},
		{
			name:     "Неверный пароль",
			password: "wrong",
			repoSetup: func(repo *MockUserRepository) {
				repo.On("GetUserByUsername", mock.Anything, "bob").Return(stored, nil).Once()
			},
			tokenSetup:  func(*MockTokenIssuer) {},
			expectedErr: services.ErrInvalidCredentials,
		},
		{
			name:     "Пользователь не найден",
			password: "secret123",
			repoSetup: func(repo *MockUserRepository) {
				repo.On("GetUserByUsername", mock.Anything, "bob").Return(nil, repository.ErrUserNotFound).Once()
			},
			tokenSetup:  func(*MockTokenIssuer) {},
			expectedErr: services.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, tokens := new(MockUserRepository), new(MockTokenIssuer)
			tt.repoSetup(repo)
			tt.tokenSetup(tokens)
			svc := services.NewAuthService(repo, tokens)

			token, user, err := svc.Login(context.Background(), "bob", tt.password)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				assert.Empty(t, token)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedToken, token)
				assert.Equal(t, int64(7), user.ID)
			}
			repo.AssertExpectations(t)
			tokens.AssertExpectations(t)
		})
	}
}

func TestAuthService_RegisterDuplicateWithMemoryStore(t *testing.T) {
	db := newMemDB()
	svc := services.NewAuthService(db, auth.NewTokenManager("secret", 0))
	req := models.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "secret123"}

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), req)
	require.ErrorIs(t, err, services.ErrUserExists)

	assert.Len(t, db.users, 1)
}

func TestAuthService_LoginTrimsUsername(t *testing.T) {
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)

	repo, tokens := new(MockUserRepository), new(MockTokenIssuer)
	repo.On("GetUserByUsername", mock.Anything, "bob").
		Return(&models.User{ID: 7, Username: "bob", PasswordHash: hash}, nil).Once()
	tokens.On("Issue", int64(7)).Return("signed-token", nil).Once()
	svc := services.NewAuthService(repo, tokens)

	token, user, err := svc.Login(context.Background(), " bob ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "signed-token", token)
	assert.Equal(t, int64(7), user.ID)
	repo.AssertExpectations(t)
	tokens.AssertExpectations(t)
}
