package models

import "time"

// User представляет пользователя системы.
// Тэги `db` используются для маппинга с полями БД с помощью sqlx.
// Тэги `json` используются для (де)сериализации JSON.
type User struct {
	ID                  int64      `db:"id" json:"id"`
	Username            string     `db:"username" json:"username"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"` // Не отправляем хеш пароля в JSON
	Plan                string     `db:"plan" json:"plan"`
	StorageLimit        int64      `db:"storage_limit" json:"storage_limit"` // байты
	StorageUsed         int64      `db:"storage_used" json:"storage_used"`   // байты, счетчик
	SubscriptionStatus  string     `db:"subscription_status" json:"subscription_status"`
	SubscriptionEndDate *time.Time `db:"subscription_end_date" json:"subscription_end_date,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

// Quota - текущее состояние квоты пользователя.
type Quota struct {
	StorageUsed  int64 `db:"storage_used" json:"storage_used"`
	StorageLimit int64 `db:"storage_limit" json:"storage_limit"`
}

// RegisterRequest представляет тело запроса на регистрацию.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// RegisterResponse представляет тело ответа при успешной регистрации.
type RegisterResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// LoginRequest представляет тело запроса на вход.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse представляет тело ответа при успешном входе.
type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

// UserInfo - профиль пользователя с вычисленными показателями использования.
type UserInfo struct {
	User              *User   `json:"user"`
	FileCount         int64   `json:"file_count"`
	StorageUsedMB     float64 `json:"storage_used_mb"`
	StorageLimitMB    float64 `json:"storage_limit_mb"`
	StoragePercentage float64 `json:"storage_percentage"`
	StorageUsedHuman  string  `json:"storage_used_human"`
	StorageLimitHuman string  `json:"storage_limit_human"`
}
