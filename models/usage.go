package models

import "time"

// UsageRecord - дневной снимок использования хранилища.
// Одна запись на пользователя за календарный день.
type UsageRecord struct {
	Date          time.Time `db:"date" json:"date"`
	StorageUsed   int64     `db:"storage_used" json:"storage_used"`
	BandwidthUsed int64     `db:"bandwidth_used" json:"bandwidth_used"`
}

// UsageHistoryResponse - история использования за последние дни.
type UsageHistoryResponse struct {
	UsageHistory []UsageRecord `json:"usage_history"`
}

// AdminStats - агрегированная статистика сервиса.
type AdminStats struct {
	TotalUsers        int64   `db:"total_users" json:"total_users"`
	TotalStorageBytes int64   `db:"total_storage" json:"total_storage_bytes"`
	TotalStorageGB    float64 `db:"-" json:"total_storage_gb"`
	TotalFiles        int64   `db:"total_files" json:"total_files"`
	TotalRevenue      float64 `db:"total_revenue" json:"total_revenue"`
}

// AdminStatsResponse представляет тело ответа со статистикой.
type AdminStatsResponse struct {
	Stats *AdminStats `json:"stats"`
}
