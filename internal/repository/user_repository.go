package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/models"
)

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolationCode = "23505"
)

const userColumns = `id, username, email, password_hash, plan, storage_limit, storage_used,
	subscription_status, subscription_end_date, created_at`

// UserRepository определяет методы для работы с данными пользователей в хранилище.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetQuota(ctx context.Context, userID int64) (*models.Quota, error)
	// IncrementStorageUsed увеличивает счетчик без проверки лимита.
	IncrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error)
	// TryIncrementStorageUsed увеличивает счетчик, только если результат не превысит лимит.
	TryIncrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error)
	DecrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error)
	UpdatePlan(ctx context.Context, userID int64, plan string, storageLimit int64, endDate time.Time) error
}

// postgresUserRepository реализует UserRepository для PostgreSQL.
type postgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository создает новый экземпляр репозитория пользователей для PostgreSQL.
func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

// CreateUser создает нового пользователя и возвращает строку в том виде, как ее сохранила БД
// (с тарифом и лимитом по умолчанию).
func (r *postgresUserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING ` + userColumns
	var created models.User

	err := conn(ctx, r.db).GetContext(ctx, &created, query, user.Username, user.Email, user.PasswordHash)
	if err != nil {
		// Проверяем на ошибку нарушения уникальности (duplicate key)
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Info().Str("username", user.Username).Msg("[Repo] Имя пользователя или email уже заняты")
			return nil, ErrUserExists
		}
		log.Error().Err(err).Str("username", user.Username).Msg("[Repo] Ошибка при создании пользователя")
		return nil, fmt.Errorf("ошибка выполнения запроса на создание пользователя: %w", err)
	}

	log.Info().Int64("user_id", created.ID).Str("username", created.Username).Msg("[Repo] Пользователь создан")
	return &created, nil
}

// GetUserByUsername находит пользователя по его имени.
func (r *postgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	var user models.User

	err := conn(ctx, r.db).GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на получение пользователя: %w", err)
	}
	return &user, nil
}

// GetUserByID находит пользователя по ID.
func (r *postgresUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	var user models.User

	err := conn(ctx, r.db).GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на получение пользователя: %w", err)
	}
	return &user, nil
}

// GetQuota возвращает текущие storage_used и storage_limit пользователя.
func (r *postgresUserRepository) GetQuota(ctx context.Context, userID int64) (*models.Quota, error) {
	query := `SELECT storage_used, storage_limit FROM users WHERE id=$1`
	var quota models.Quota

	err := conn(ctx, r.db).GetContext(ctx, &quota, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на получение квоты: %w", err)
	}
	return &quota, nil
}

func (r *postgresUserRepository) IncrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error) {
	query := `UPDATE users SET storage_used = storage_used + $1 WHERE id = $2 RETURNING storage_used`
	return r.updateStorageUsed(ctx, query, userID, delta, ErrUserNotFound)
}

// TryIncrementStorageUsed выполняет проверку лимита и увеличение одним оператором,
// поэтому параллельные загрузки одного пользователя не могут вместе превысить лимит.
func (r *postgresUserRepository) TryIncrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error) {
	query := `UPDATE users SET storage_used = storage_used + $1
		WHERE id = $2 AND storage_used + $1 <= storage_limit RETURNING storage_used`
	return r.updateStorageUsed(ctx, query, userID, delta, ErrQuotaExceeded)
}

// DecrementStorageUsed уменьшает счетчик, не опуская его ниже нуля.
func (r *postgresUserRepository) DecrementStorageUsed(ctx context.Context, userID, delta int64) (int64, error) {
	query := `UPDATE users SET storage_used = GREATEST(0, storage_used - $1) WHERE id = $2 RETURNING storage_used`
	return r.updateStorageUsed(ctx, query, userID, delta, ErrUserNotFound)
}

func (r *postgresUserRepository) updateStorageUsed(
	ctx context.Context,
	query string,
	userID, delta int64,
	noRowsErr error,
) (int64, error) {
	var used int64
	err := conn(ctx, r.db).QueryRowxContext(ctx, query, delta, userID).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, noRowsErr
		}
		return 0, fmt.Errorf("ошибка обновления storage_used: %w", err)
	}
	log.Debug().Int64("user_id", userID).Int64("delta", delta).Int64("storage_used", used).
		Msg("[Repo] storage_used обновлен")
	return used, nil
}

// UpdatePlan переводит пользователя на тариф и активирует подписку до endDate.
func (r *postgresUserRepository) UpdatePlan(
	ctx context.Context,
	userID int64,
	plan string,
	storageLimit int64,
	endDate time.Time,
) error {
	query := `UPDATE users SET plan = $1, storage_limit = $2, subscription_status = 'active',
		subscription_end_date = $3 WHERE id = $4`

	res, err := conn(ctx, r.db).ExecContext(ctx, query, plan, storageLimit, endDate, userID)
	if err != nil {
		return fmt.Errorf("ошибка обновления тарифа: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	log.Info().Int64("user_id", userID).Str("plan", plan).Msg("[Repo] Тариф пользователя обновлен")
	return nil
}

// Кастомные ошибки репозитория.
var (
	ErrUserNotFound  = errors.New("пользователь не найден")
	ErrUserExists    = errors.New("пользователь с таким именем или email уже существует")
	ErrQuotaExceeded = errors.New("превышен лимит хранилища")
)
