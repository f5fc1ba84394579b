package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает участника площадки: продавца вторсырья или сборщика.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Role         string    `db:"role" json:"role"`
	Address      *string   `db:"address" json:"address,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// WorkerStats агрегирует показатели сборщика для дашборда.
type WorkerStats struct {
	PendingCount        int     `json:"pending_count"`
	AcceptedCount       int     `json:"accepted_count"`
	CompletedTodayCount int     `json:"completed_today_count"`
	CompletedTotalCount int     `json:"completed_total_count"`
	TotalEarnings       float64 `json:"total_earnings"`
	CompletionRate      float64 `json:"completion_rate"`
}
