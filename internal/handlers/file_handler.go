package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/internal/metrics"
	"github.com/dkhoid/cloud-data-storage/internal/services"
	"github.com/dkhoid/cloud-data-storage/models"
)

// DefaultMaxUploadSize - лимит тела запроса на загрузку по умолчанию (100 MiB).
const DefaultMaxUploadSize int64 = 100 << 20

// Часть multipart формы, которая держится в памяти; остальное уходит во временный файл.
const multipartMemory = 32 << 20

const defaultContentType = "application/octet-stream"

// FileHandler обрабатывает HTTP-запросы, связанные с файлами пользователя.
type FileHandler struct {
	files         services.FileService
	metrics       *metrics.Collector
	maxUploadSize int64
}

// NewFileHandler создает новый экземпляр FileHandler.
// maxUploadSize <= 0 заменяется значением по умолчанию.
func NewFileHandler(files services.FileService, m *metrics.Collector, maxUploadSize int64) *FileHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &FileHandler{files: files, metrics: m, maxUploadSize: maxUploadSize}
}

// Upload принимает multipart форму с полем "file".
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r, "FileHandler:Upload")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			log.Warn().Int64("user_id", userID).Int64("limit", maxErr.Limit).
				Msg("[FileHandler:Upload] Превышен размер запроса")
			h.metrics.UploadRejected(metrics.ReasonTooLarge)
			writeError(w, http.StatusRequestEntityTooLarge, msgFileTooLarge)
			return
		}
		log.Warn().Err(err).Int64("user_id", userID).Msg("[FileHandler:Upload] Неверная multipart форма")
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn().Err(err).Msg("[FileHandler:Upload] Не удалось удалить временные файлы формы")
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	created, err := h.files.Upload(r.Context(), userID, services.UploadInput{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, r, "FileHandler:Upload", err)
		return
	}

	writeJSON(w, http.StatusCreated, models.UploadResponse{
		Message: "Upload successful",
		File:    created,
	})
}

// List отдает файлы пользователя, новые первыми.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r, "FileHandler:List")
	if !ok {
		return
	}

	files, err := h.files.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "FileHandler:List", err)
		return
	}
	if files == nil {
		files = []models.File{}
	}
	writeJSON(w, http.StatusOK, models.FileListResponse{Files: files})
}

// Download отдает содержимое файла как вложение.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r, "FileHandler:Download")
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	body, file, err := h.files.Download(r.Context(), userID, fileID)
	if err != nil {
		writeServiceError(w, r, "FileHandler:Download", err)
		return
	}
	defer body.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = defaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": file.OriginalFilename,
	}))
	w.Header().Set("Content-Length", strconv.FormatInt(file.FileSize, 10))
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, body)
	if err != nil {
		// Заголовки уже отправлены, остается только залогировать
		log.Error().Err(err).Int64("user_id", userID).Int64("file_id", fileID).Int64("written", written).
			Msg("[FileHandler:Download] Ошибка передачи файла")
	}
}

// Delete удаляет файл пользователя.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r, "FileHandler:Delete")
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	if err := h.files.Delete(r.Context(), userID, fileID); err != nil {
		writeServiceError(w, r, "FileHandler:Delete", err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "File deleted successfully"})
}

// fileIDParam разбирает {file_id} из пути. Нечисловое значение - 400.
func fileIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "file_id")
	fileID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || fileID <= 0 {
		writeError(w, http.StatusBadRequest, msgInvalidFileID)
		return 0, false
	}
	return fileID, true
}
