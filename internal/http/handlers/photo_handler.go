package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ecodvor/scrap-backend/internal/http/handlers/common"
	"github.com/ecodvor/scrap-backend/internal/service"
	"github.com/ecodvor/scrap-backend/internal/storage"
)

// Разрешённые типы файлов для загрузки
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Разрешённые расширения файлов
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// PhotoHandler управляет фотографиями сырья на заявках.
type PhotoHandler struct {
	requests *service.RequestService
	storage  *storage.PhotoStorage
}

// NewPhotoHandler создаёт новый хэндлер.
func NewPhotoHandler(requests *service.RequestService, storage *storage.PhotoStorage) *PhotoHandler {
	return &PhotoHandler{requests: requests, storage: storage}
}

// Upload обрабатывает POST /requests/:id/photo. Доступно продавцу-владельцу.
func (h *PhotoHandler) Upload(c *gin.Context) {
	sellerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}
	if file.Size == 0 {
		common.RespondBadRequest(c, "файл не может быть пустым")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		common.RespondBadRequest(c, "неподдерживаемый формат файла, разрешены jpg, jpeg, png, webp")
		return
	}

	src, err := file.Open()
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer src.Close()

	// Проверка магических байтов: расширению доверять нельзя.
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && n == 0 {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown || !allowedMimeTypes[kind.MIME.Value] {
		common.RespondBadRequest(c, "содержимое файла не похоже на изображение")
		return
	}

	if _, err := src.Seek(0, 0); err != nil {
		_ = c.Error(err)
		return
	}

	path, size, err := h.storage.Save(c.Request.Context(), requestID, file.Filename, src)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.requests.AttachPhoto(c.Request.Context(), requestID, sellerID, path); err != nil {
		// Заявка не подошла (чужая или не найдена): файл не должен остаться.
		_ = h.storage.Delete(c.Request.Context(), path)
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, gin.H{
		"photo_path": path,
		"size":       size,
	})
}

// Serve обрабатывает GET /photos/*path — отдаёт сохранённый файл.
func (h *PhotoHandler) Serve(rootPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		relative := strings.TrimPrefix(c.Param("path"), "/")
		if relative == "" || strings.Contains(relative, "..") {
			common.RespondBadRequest(c, "неверный путь")
			return
		}
		c.File(fmt.Sprintf("%s/%s", rootPath, relative))
	}
}
