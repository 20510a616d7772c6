package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/internal/auth"
	"github.com/dkhoid/cloud-data-storage/models"
)

// Тип для ключа контекста.
type contextKey string

// Ключ для хранения ID пользователя в контексте.
const UserIDKey contextKey = "userID"

// Сообщения об ошибках аутентификации, отдаваемые клиенту.
const (
	msgTokenMissing = "Token is missing"
	msgTokenExpired = "Token has expired"
	msgTokenInvalid = "Invalid token"
)

// TokenVerifier проверяет токен и возвращает ID пользователя.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// Authenticator проверяет JWT токен из заголовка Authorization.
// Принимает как "Bearer <token>", так и токен без префикса.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticator(verifier, false)
}

// AuthenticatorWithQuery дополнительно принимает токен из параметра ?token=,
// если заголовок отсутствует. Нужен для прямых ссылок на скачивание.
func AuthenticatorWithQuery(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticator(verifier, true)
}

func authenticator(verifier TokenVerifier, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromHeader(r.Header.Get("Authorization"))
			if tokenString == "" && allowQuery {
				tokenString = strings.TrimSpace(r.URL.Query().Get("token"))
			}

			userID, err := verifier.Verify(tokenString)
			if err != nil {
				msg := msgTokenInvalid
				switch {
				case errors.Is(err, auth.ErrTokenMissing):
					msg = msgTokenMissing
				case errors.Is(err, auth.ErrTokenExpired):
					msg = msgTokenExpired
				}
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("[AuthMiddleware] Отказ в аутентификации")
				writeUnauthorized(w, msg)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromHeader снимает необязательный префикс "Bearer ".
func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg}); err != nil {
		log.Error().Err(err).Msg("[AuthMiddleware] Ошибка кодирования ответа")
	}
}

// GetUserIDFromContext извлекает UserID из контекста запроса.
// Возвращает ID пользователя и true, если ID найден, иначе 0 и false.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
