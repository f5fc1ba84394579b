package models

import (
	"time"

	"github.com/google/uuid"
)

// UserBalance представляет баланс кошелька пользователя.
// Меняется только применением транзакций, прямых мутаций нет.
type UserBalance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Balance   float64   `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction представляет запись в журнале кошелька.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	OwnerID     uuid.UUID  `db:"owner_id" json:"owner_id"`
	RequestID   *uuid.UUID `db:"request_id" json:"request_id,omitempty"`
	Kind        string     `db:"kind" json:"kind"`
	Amount      float64    `db:"amount" json:"amount"`
	Status      string     `db:"status" json:"status"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// WastePrice хранит закупочную цену за единицу вторсырья.
type WastePrice struct {
	WasteType string    `db:"waste_type" json:"waste_type"`
	Unit      string    `db:"unit" json:"unit"`
	UnitPrice float64   `db:"unit_price" json:"unit_price"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
