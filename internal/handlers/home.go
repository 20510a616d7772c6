package handlers

import "net/http"

// HomeResponse - описание сервиса на корневом маршруте.
type HomeResponse struct {
	Message  string   `json:"message"`
	Features []string `json:"features"`
}

// Home отдает краткое описание API.
func Home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HomeResponse{
		Message: "Cloud Storage API v2.0",
		Features: []string{
			"JWT Authentication",
			"Object Storage (MinIO / S3)",
			"PostgreSQL Database",
			"Billing & Subscriptions",
			"Usage Tracking",
		},
	})
}

// Ping - проверка доступности сервера.
func Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
