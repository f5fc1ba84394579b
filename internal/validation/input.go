package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ecodvor/scrap-backend/internal/models"
)

// Константы валидации
const (
	MinNameLength      = 2
	MaxNameLength      = 100
	MinAddressLength   = 5
	MaxAddressLength   = 300
	MaxWasteTypeLength = 50
	MaxItemsCount      = 20
	MaxQuantity        = 100000.0
	MaxUnitPrice       = 1000000.0
	MaxReasonLength    = 500
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}
	if len(parts[0]) == 0 || len(parts[0]) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(parts[1]) == 0 || len(parts[1]) > 255 || !strings.Contains(parts[1], ".") {
		return fmt.Errorf("некорректный домен email")
	}
	return nil
}

// ValidateName проверяет имя пользователя.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("имя обязательно")
	}
	return ValidateLength("имя", name, MinNameLength, MaxNameLength)
}

// ValidateRole проверяет роль пользователя.
func ValidateRole(role string) error {
	switch role {
	case models.RoleSeller, models.RoleWorker:
		return nil
	}
	return fmt.Errorf("роль должна быть seller или worker")
}

// ValidateAddress проверяет адрес вывоза.
func ValidateAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("адрес обязателен")
	}
	return ValidateLength("адрес", address, MinAddressLength, MaxAddressLength)
}

// ValidateItems проверяет позиции заявки: список не пуст, количества
// положительные, единицы и цены корректны.
func ValidateItems(items []models.RequestItem) error {
	if len(items) == 0 {
		return fmt.Errorf("заявка должна содержать хотя бы одну позицию")
	}
	if len(items) > MaxItemsCount {
		return fmt.Errorf("в заявке не может быть больше %d позиций", MaxItemsCount)
	}

	for i, item := range items {
		if strings.TrimSpace(item.WasteType) == "" {
			return fmt.Errorf("позиция %d: тип сырья обязателен", i+1)
		}
		if err := ValidateLength("тип сырья", item.WasteType, 1, MaxWasteTypeLength); err != nil {
			return fmt.Errorf("позиция %d: %w", i+1, err)
		}
		if !models.ValidUnit(item.Unit) {
			return fmt.Errorf("позиция %d: единица измерения должна быть kg или items", i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("позиция %d: количество должно быть положительным", i+1)
		}
		if item.Quantity > MaxQuantity {
			return fmt.Errorf("позиция %d: количество слишком велико", i+1)
		}
		if item.UnitPrice < 0 || item.UnitPrice > MaxUnitPrice {
			return fmt.Errorf("позиция %d: некорректная цена за единицу", i+1)
		}
	}
	return nil
}

// ValidatePickupSchedule проверяет вариант вывоза и его время.
// scheduled_at обязателен только для scheduled и должен быть в будущем.
func ValidatePickupSchedule(option string, scheduledAt *time.Time, now time.Time) error {
	if !models.ValidPickupOption(option) {
		return fmt.Errorf("вариант вывоза должен быть instant, scheduled или daily")
	}
	if option == models.PickupOptionScheduled {
		if scheduledAt == nil {
			return fmt.Errorf("scheduled_at обязателен для запланированного вывоза")
		}
		if !scheduledAt.After(now) {
			return fmt.Errorf("scheduled_at должен быть в будущем")
		}
	}
	return nil
}

// ValidateMeasuredWeight проверяет замеренный вес при завершении.
func ValidateMeasuredWeight(weight float64) error {
	if weight <= 0 {
		return fmt.Errorf("замеренный вес должен быть положительным")
	}
	if weight > MaxQuantity {
		return fmt.Errorf("замеренный вес слишком велик")
	}
	return nil
}

// ValidateCancelReason проверяет причину отмены.
func ValidateCancelReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("причина отмены обязательна")
	}
	return ValidateLength("причина отмены", reason, 1, MaxReasonLength)
}
