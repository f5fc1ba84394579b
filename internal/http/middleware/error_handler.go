package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ecodvor/scrap-backend/internal/logger"
	"github.com/ecodvor/scrap-backend/internal/pkg/apperror"
	"github.com/ecodvor/scrap-backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Маскирует внутренние ошибки и возвращает понятные сообщения клиенту.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		statusCode, message := classifyError(err.Err)
		c.JSON(statusCode, gin.H{"error": message})
	}
}

// classifyError переводит ошибку сервисного слоя в статус и сообщение.
func classifyError(err error) (int, string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, appErr.Message
	}

	switch {
	case errors.Is(err, repository.ErrRequestNotFound):
		return http.StatusNotFound, "заявка не найдена"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "пользователь не найден"
	case errors.Is(err, repository.ErrTransactionNotFound):
		return http.StatusNotFound, "транзакция не найдена"
	case errors.Is(err, repository.ErrPriceNotFound):
		return http.StatusNotFound, "цена не найдена"
	case errors.Is(err, repository.ErrRequestConflict):
		return http.StatusConflict, "заявка уже в другом статусе"
	case errors.Is(err, repository.ErrEmailTaken):
		return http.StatusConflict, "email уже зарегистрирован"
	}

	if msg := err.Error(); msg != "" && !containsInternalKeywords(msg) {
		return http.StatusBadRequest, msg
	}
	return http.StatusInternalServerError, "внутренняя ошибка сервера"
}

// containsInternalKeywords проверяет, содержит ли строка ключевые слова внутренних ошибок.
func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
	}

	lower := strings.ToLower(s)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
