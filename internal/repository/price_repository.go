package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ecodvor/scrap-backend/internal/models"
)

var ErrPriceNotFound = errors.New("waste price not found")

// PriceRepository отвечает за прайс-лист по видам сырья.
type PriceRepository struct {
	db *sqlx.DB
}

// NewPriceRepository создаёт новый экземпляр.
func NewPriceRepository(db *sqlx.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// List возвращает весь прайс-лист.
func (r *PriceRepository) List(ctx context.Context) ([]models.WastePrice, error) {
	var prices []models.WastePrice
	query := `SELECT waste_type, unit, unit_price, updated_at FROM waste_prices ORDER BY waste_type`
	if err := r.db.SelectContext(ctx, &prices, query); err != nil {
		return nil, fmt.Errorf("price repository: list %w", err)
	}
	return prices, nil
}

// Get возвращает цену за единицу вида сырья.
func (r *PriceRepository) Get(ctx context.Context, wasteType string) (*models.WastePrice, error) {
	var price models.WastePrice
	query := `SELECT waste_type, unit, unit_price, updated_at FROM waste_prices WHERE LOWER(waste_type) = LOWER($1)`
	if err := r.db.GetContext(ctx, &price, query, wasteType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPriceNotFound
		}
		return nil, fmt.Errorf("price repository: get %w", err)
	}
	return &price, nil
}
