package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeAlreadyAccepted   ErrorCode = "ALREADY_ACCEPTED"
	ErrCodeSettlement        ErrorCode = "SETTLEMENT_FAILURE"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidTransition, ErrCodeAlreadyAccepted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

// IsInvalidTransition проверяет ошибку недопустимого перехода статуса.
// Повторять такую операцию бессмысленно: условие не изменится.
func IsInvalidTransition(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeInvalidTransition
}

// IsAlreadyAccepted проверяет проигрыш гонки за заявку. Это ожидаемый исход,
// а не сбой: клиенту показывается "заявку уже забрали".
func IsAlreadyAccepted(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeAlreadyAccepted
}

var (
	ErrRequestNotFound    = New(ErrCodeNotFound, "заявка не найдена")
	ErrUserNotFound       = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden          = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrAlreadyAccepted    = New(ErrCodeAlreadyAccepted, "заявку уже забрал другой сборщик")
	ErrInvalidTransition  = New(ErrCodeInvalidTransition, "переход статуса недопустим")
)
