package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ecodvor/scrap-backend/internal/logger"
)

// Пакет прикрывает фоновые циклы сервиса: упавший пересчёт срочности или
// сверка транзакций не должны ронять процесс целиком.

// SafeGo запускает горутину с обработкой panic.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		fn(ctx)
	}()
}

func recoverPanic() {
	if r := recover(); r != nil {
		logger.WithField("panic", r).WithField("stack", string(debug.Stack())).
			Error("горутина упала с panic")
	}
}
