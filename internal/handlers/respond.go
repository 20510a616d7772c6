// Package handlers содержит HTTP-обработчики API и единый формат ответов.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/internal/middleware"
	"github.com/dkhoid/cloud-data-storage/internal/services"
	"github.com/dkhoid/cloud-data-storage/models"
)

// Сообщения об ошибках, отдаваемые клиенту.
const (
	msgInvalidRequest     = "Invalid request"
	msgInternal           = "Internal server error"
	msgUserExists         = "Username or email already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgFileNotFound       = "File not found"
	msgUserNotFound       = "User not found"
	msgFileTypeNotAllowed = "File type not allowed"
	msgQuotaExceeded      = "Storage limit exceeded"
	msgFileTooLarge       = "File too large"
	msgInvalidPlan        = "Invalid plan"
	msgInvalidFileID      = "Invalid file id"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON кодирует v в тело ответа с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Статус уже отправлен, остается только залогировать
		log.Error().Err(err).Msg("[Handlers] Ошибка кодирования ответа")
	}
}

// writeError отправляет ошибку в формате {"error": "..."}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// writeServiceError переводит ошибку сервиса в HTTP-статус.
// Детали внутренних ошибок пишутся только в лог.
func writeServiceError(w http.ResponseWriter, r *http.Request, component string, err error) {
	status, msg := http.StatusInternalServerError, msgInternal
	switch {
	case errors.Is(err, services.ErrFileTypeNotAllowed):
		status, msg = http.StatusBadRequest, msgFileTypeNotAllowed
	case errors.Is(err, services.ErrUserExists):
		status, msg = http.StatusBadRequest, msgUserExists
	case errors.Is(err, services.ErrInvalidPlan):
		status, msg = http.StatusBadRequest, msgInvalidPlan
	case errors.Is(err, services.ErrValidation):
		status, msg = http.StatusBadRequest, msgInvalidRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, services.ErrFileNotFound):
		status, msg = http.StatusNotFound, msgFileNotFound
	case errors.Is(err, services.ErrUserNotFound):
		status, msg = http.StatusNotFound, msgUserNotFound
	case errors.Is(err, services.ErrQuotaExceeded):
		status, msg = http.StatusRequestEntityTooLarge, msgQuotaExceeded
	}

	event := log.Warn()
	if status == http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("[" + component + "] Ошибка обработки запроса")
	writeError(w, status, msg)
}

// decodeJSON читает тело запроса в dst и проверяет теги validate.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// userIDFromRequest достает ID пользователя, положенный Authenticator.
// Если его нет, маршрут собран без middleware: отвечаем 500.
func userIDFromRequest(w http.ResponseWriter, r *http.Request, component string) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Error().Str("path", r.URL.Path).Msg("[" + component + "] Не удалось получить userID из контекста")
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
	return userID, ok
}
