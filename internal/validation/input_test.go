package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecodvor/scrap-backend/internal/models"
)

func TestValidateItems(t *testing.T) {
	valid := []models.RequestItem{
		{WasteType: "plastic", Quantity: 5, Unit: models.UnitKg, UnitPrice: 10},
	}
	assert.NoError(t, ValidateItems(valid))

	assert.Error(t, ValidateItems(nil), "пустой список позиций")

	zeroQty := []models.RequestItem{
		{WasteType: "plastic", Quantity: 0, Unit: models.UnitKg, UnitPrice: 10},
	}
	assert.Error(t, ValidateItems(zeroQty))

	negativeQty := []models.RequestItem{
		{WasteType: "plastic", Quantity: -3, Unit: models.UnitKg, UnitPrice: 10},
	}
	assert.Error(t, ValidateItems(negativeQty))

	badUnit := []models.RequestItem{
		{WasteType: "plastic", Quantity: 1, Unit: "tons", UnitPrice: 10},
	}
	assert.Error(t, ValidateItems(badUnit))

	emptyType := []models.RequestItem{
		{WasteType: "  ", Quantity: 1, Unit: models.UnitKg, UnitPrice: 10},
	}
	assert.Error(t, ValidateItems(emptyType))
}

func TestValidatePickupSchedule(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	assert.NoError(t, ValidatePickupSchedule(models.PickupOptionInstant, nil, now))
	assert.NoError(t, ValidatePickupSchedule(models.PickupOptionDaily, nil, now))
	assert.NoError(t, ValidatePickupSchedule(models.PickupOptionScheduled, &future, now))

	assert.Error(t, ValidatePickupSchedule(models.PickupOptionScheduled, nil, now), "scheduled без времени")
	assert.Error(t, ValidatePickupSchedule(models.PickupOptionScheduled, &past, now), "время в прошлом")
	assert.Error(t, ValidatePickupSchedule("weekly", nil, now), "неизвестный вариант")
}

func TestValidateMeasuredWeight(t *testing.T) {
	assert.NoError(t, ValidateMeasuredWeight(4.8))
	assert.Error(t, ValidateMeasuredWeight(0))
	assert.Error(t, ValidateMeasuredWeight(-1))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Secret123"))
	assert.Error(t, ValidatePassword("short1A"))
	assert.Error(t, ValidatePassword("alllowercase1"))
	assert.Error(t, ValidatePassword("ALLUPPERCASE1"))
	assert.Error(t, ValidatePassword("NoNumbersHere"))
}
