package urgency

import (
	"time"

	"github.com/ecodvor/scrap-backend/internal/models"
)

// MediumWindow — запас времени, ниже которого запланированный вывоз
// становится среднесрочным.
const MediumWindow = 12 * time.Hour

// Classify вычисляет уровень срочности заявки от текущего времени.
// Чистая функция: срочность нигде не хранится и пересчитывается на каждом чтении,
// потому что зависит от wall-clock, а не от момента создания заявки.
func Classify(pickupOption string, scheduledAt *time.Time, now time.Time) string {
	switch pickupOption {
	case models.PickupOptionInstant:
		return models.UrgencyHigh
	case models.PickupOptionScheduled:
		if scheduledAt == nil {
			return models.UrgencyLow
		}
		if scheduledAt.Sub(now) < MediumWindow {
			return models.UrgencyMedium
		}
		return models.UrgencyLow
	default:
		// daily и неизвестные варианты
		return models.UrgencyLow
	}
}

// Apply проставляет вычисленную срочность на заявку.
func Apply(r *models.PickupRequest, now time.Time) {
	r.UrgencyTier = Classify(r.PickupOption, r.ScheduledAt, now)
}
