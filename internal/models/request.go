package models

import (
	"time"

	"github.com/google/uuid"
)

// PickupRequest описывает заявку на вывоз вторсырья.
type PickupRequest struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	SellerID        uuid.UUID  `db:"seller_id" json:"seller_id"`
	WorkerID        *uuid.UUID `db:"worker_id" json:"worker_id,omitempty"`
	SellerName      string     `db:"seller_name" json:"seller_name"`
	Address         string     `db:"address" json:"address"`
	Latitude        *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude       *float64   `db:"longitude" json:"longitude,omitempty"`
	PickupOption    string     `db:"pickup_option" json:"pickup_option"`
	ScheduledAt     *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Status          string     `db:"status" json:"status"`
	EstimatedAmount float64    `db:"estimated_amount" json:"estimated_amount"`
	MeasuredWeight  *float64   `db:"measured_weight" json:"measured_weight,omitempty"`
	SettledAmount   *float64   `db:"settled_amount" json:"settled_amount,omitempty"`
	CancelReason    *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	PhotoPath       *string    `db:"photo_path" json:"photo_path,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	AcceptedAt      *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	Items []RequestItem `json:"items,omitempty"`

	// UrgencyTier вычисляется на чтении от текущего времени, в базе не хранится.
	UrgencyTier string `db:"-" json:"urgency_tier,omitempty"`
}

// IsTerminal сообщает, достигла ли заявка конечного статуса.
func (r *PickupRequest) IsTerminal() bool {
	return r.Status == RequestStatusCompleted || r.Status == RequestStatusCancelled
}

// RequestItem хранит одну позицию заявки.
type RequestItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RequestID uuid.UUID `db:"request_id" json:"request_id"`
	Ordinal   int       `db:"ordinal" json:"-"`
	WasteType string    `db:"waste_type" json:"waste_type"`
	Quantity  float64   `db:"quantity" json:"quantity"`
	Unit      string    `db:"unit" json:"unit"`
	UnitPrice float64   `db:"unit_price" json:"unit_price"`
}

// Subtotal возвращает стоимость позиции по оценке продавца.
func (i RequestItem) Subtotal() float64 {
	return i.Quantity * i.UnitPrice
}

// EstimateAmount считает оценочную сумму заявки по позициям.
// Фиксируется один раз при создании и больше не пересчитывается.
func EstimateAmount(items []RequestItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}
