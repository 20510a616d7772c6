package models

import "time"

// File - метаданные файла пользователя.
// Содержимое лежит в объектном хранилище под ключом StorageKey.
type File struct {
	ID               int64      `db:"id" json:"id"`
	UserID           int64      `db:"user_id" json:"user_id"`
	Filename         string     `db:"filename" json:"filename"`                   // Очищенное имя
	OriginalFilename string     `db:"original_filename" json:"original_filename"` // Имя, переданное клиентом
	FileSize         int64      `db:"file_size" json:"file_size"`
	MimeType         string     `db:"mime_type" json:"mime_type"`
	StorageKey       string     `db:"storage_key" json:"-"` // Ключ объекта, наружу не отдаем
	UploadDate       time.Time  `db:"upload_date" json:"upload_date"`
	LastAccessed     *time.Time `db:"last_accessed" json:"last_accessed,omitempty"`
	IsPublic         bool       `db:"is_public" json:"is_public"`
	PublicURL        *string    `db:"public_url" json:"public_url,omitempty"`
}

// UploadResponse представляет тело ответа на загрузку файла.
type UploadResponse struct {
	Message string `json:"message"`
	File    *File  `json:"file"`
}

// FileListResponse - список файлов пользователя.
type FileListResponse struct {
	Files []File `json:"files"`
}

// MessageResponse - ответ, содержащий только сообщение.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse - единый формат ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}
