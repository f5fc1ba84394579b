package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecodvor/scrap-backend/internal/http/handlers/common"
	"github.com/ecodvor/scrap-backend/internal/repository"
)

// CatalogHandler отдаёт справочник видов сырья и закупочных цен.
type CatalogHandler struct {
	prices *repository.PriceRepository
}

// NewCatalogHandler создаёт хэндлер.
func NewCatalogHandler(prices *repository.PriceRepository) *CatalogHandler {
	return &CatalogHandler{prices: prices}
}

// ListPrices обрабатывает GET /catalog/prices.
func (h *CatalogHandler) ListPrices(c *gin.Context) {
	prices, err := h.prices.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, gin.H{"prices": prices})
}
