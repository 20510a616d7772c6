package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/internal/services"
	"github.com/dkhoid/cloud-data-storage/models"
)

// AuthHandler обрабатывает HTTP-запросы, связанные с аутентификацией.
type AuthHandler struct {
	service services.AuthService
}

// NewAuthHandler создает новый экземпляр AuthHandler.
func NewAuthHandler(s services.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

// Register обрабатывает запрос на регистрацию нового пользователя.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn().Err(err).Msg("[AuthHandler] Неверный запрос регистрации")
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "AuthHandler", err)
		return
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("[AuthHandler] Пользователь зарегистрирован")
	writeJSON(w, http.StatusCreated, models.RegisterResponse{
		Message: "Registration successful",
		User:    user,
	})
}

// Login обрабатывает запрос на вход пользователя.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn().Err(err).Msg("[AuthHandler] Неверный запрос входа")
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, "AuthHandler", err)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Message: "Login successful",
		Token:   token,
		User:    user,
	})
}
