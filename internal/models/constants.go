package models

// Статусы заявки на вывоз.
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusCompleted = "completed"
	RequestStatusCancelled = "cancelled"
)

// Варианты вывоза.
const (
	PickupOptionInstant   = "instant"
	PickupOptionScheduled = "scheduled"
	PickupOptionDaily     = "daily"
)

// Уровни срочности (вычисляются, не хранятся).
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)

// Единицы измерения позиций.
const (
	UnitKg    = "kg"
	UnitItems = "items"
)

// Типы транзакций
const (
	TransactionKindCredit = "credit"
	TransactionKindDebit  = "debit"
)

// Статусы транзакций
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Роли пользователей.
const (
	RoleSeller = "seller"
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

// ValidRequestStatus проверяет, что статус известен.
func ValidRequestStatus(s string) bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// ValidPickupOption проверяет, что вариант вывоза известен.
func ValidPickupOption(o string) bool {
	switch o {
	case PickupOptionInstant, PickupOptionScheduled, PickupOptionDaily:
		return true
	}
	return false
}

// ValidUnit проверяет единицу измерения.
func ValidUnit(u string) bool {
	return u == UnitKg || u == UnitItems
}
