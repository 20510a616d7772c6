package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
)

// AdminTokenHeader - заголовок с токеном администратора.
const AdminTokenHeader = "X-Admin-Token"

// AdminGuard пропускает запрос только с верным X-Admin-Token.
// Пустой token оставляет маршрут открытым.
func AdminGuard(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				log.Warn().Str("remote", r.RemoteAddr).Msg("[AdminGuard] Неверный токен администратора")
				writeUnauthorized(w, "Admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
