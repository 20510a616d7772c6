package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/internal/auth"
	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/models"
)

// TokenIssuer выпускает токен доступа для пользователя.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// AuthService определяет интерфейс для сервиса аутентификации.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	// Login возвращает JWT токен и профиль пользователя.
	Login(ctx context.Context, username, password string) (string, *models.User, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Убедимся, что authService удовлетворяет интерфейсу AuthService.
var _ AuthService = (*authService)(nil)

type authService struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
}

// NewAuthService создает новый экземпляр сервиса аутентификации.
func NewAuthService(userRepo repository.UserRepository, tokens TokenIssuer) AuthService {
	return &authService{userRepo: userRepo, tokens: tokens}
}

// Register регистрирует нового пользователя на бесплатном тарифе.
func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	// Ограничения длины проверяются уже на обрезанных значениях
	if err := validate.Struct(req); err != nil {
		return nil, ErrValidation
	}
	username, email := req.Username, req.Email

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("[AuthService] Ошибка хеширования пароля")
		return nil, errors.New("внутренняя ошибка сервера при хешировании пароля")
	}

	user, err := s.userRepo.CreateUser(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			log.Info().Str("username", username).Msg("[AuthService] Попытка регистрации с занятым именем или email")
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	log.Info().Int64("user_id", user.ID).Str("username", username).Msg("[AuthService] Пользователь зарегистрирован")
	return user, nil
}

// Login аутентифицирует пользователя и возвращает JWT токен.
func (s *authService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, ErrValidation
	}

	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Info().Str("username", username).Msg("[AuthService] Попытка входа несуществующего пользователя")
			return "", nil, ErrInvalidCredentials // Общая ошибка для несуществующего пользователя и неверного пароля
		}
		return "", nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if err = auth.CheckPassword(user.PasswordHash, password); err != nil {
		log.Info().Str("username", username).Msg("[AuthService] Неверный пароль")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("ошибка генерации токена: %w", err)
	}

	log.Info().Int64("user_id", user.ID).Msg("[AuthService] Пользователь аутентифицирован")
	return token, user, nil
}

// Кастомные ошибки сервиса аутентификации.
var (
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	ErrUserExists         = errors.New("пользователь с таким именем или email уже существует")
)
