package urgency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecodvor/scrap-backend/internal/models"
)

func TestClassify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name        string
		option      string
		scheduledAt *time.Time
		want        string
	}{
		{"instant всегда high", models.PickupOptionInstant, nil, models.UrgencyHigh},
		{"instant игнорирует scheduled_at", models.PickupOptionInstant, at(48 * time.Hour), models.UrgencyHigh},
		{"scheduled за 11 часов", models.PickupOptionScheduled, at(11 * time.Hour), models.UrgencyMedium},
		{"scheduled за 13 часов", models.PickupOptionScheduled, at(13 * time.Hour), models.UrgencyLow},
		{"scheduled ровно за 12 часов", models.PickupOptionScheduled, at(12 * time.Hour), models.UrgencyLow},
		{"scheduled в прошлом", models.PickupOptionScheduled, at(-time.Hour), models.UrgencyMedium},
		{"scheduled без времени", models.PickupOptionScheduled, nil, models.UrgencyLow},
		{"daily всегда low", models.PickupOptionDaily, nil, models.UrgencyLow},
		{"неизвестный вариант", "weekly", nil, models.UrgencyLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.option, tt.scheduledAt, now))
		})
	}
}

// Срочность должна дрейфовать со временем: заявка за 10 часов остаётся medium
// через час, а дальняя заявка со временем доходит до medium.
func TestClassify_Reevaluation(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	scheduled := now.Add(10 * time.Hour)

	assert.Equal(t, models.UrgencyMedium, Classify(models.PickupOptionScheduled, &scheduled, now))
	assert.Equal(t, models.UrgencyMedium, Classify(models.PickupOptionScheduled, &scheduled, now.Add(time.Hour)))

	far := now.Add(20 * time.Hour)
	assert.Equal(t, models.UrgencyLow, Classify(models.PickupOptionScheduled, &far, now))
	assert.Equal(t, models.UrgencyMedium, Classify(models.PickupOptionScheduled, &far, now.Add(9*time.Hour)))
}

func TestApply(t *testing.T) {
	now := time.Now()
	r := &models.PickupRequest{PickupOption: models.PickupOptionInstant}
	Apply(r, now)
	assert.Equal(t, models.UrgencyHigh, r.UrgencyTier)
}
