package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecodvor/scrap-backend/internal/dto"
	"github.com/ecodvor/scrap-backend/internal/http/handlers/common"
	"github.com/ecodvor/scrap-backend/internal/service"
)

// AdminHandler предоставляет операторские ручки для бухгалтерии.
type AdminHandler struct {
	settlement *service.SettlementService
}

// NewAdminHandler создаёт хэндлер.
func NewAdminHandler(settlement *service.SettlementService) *AdminHandler {
	return &AdminHandler{settlement: settlement}
}

// ListPendingTransactions обрабатывает GET /admin/ledger/pending.
// Очередь транзакций, которые создались, но не применились к кошельку.
// В норме она пустая: фоновая сверка добивает зависшие записи сама.
func (h *AdminHandler) ListPendingTransactions(c *gin.Context) {
	limit := common.ParseIntQuery(c, "limit", 50)

	pending, err := h.settlement.ListPendingBacklog(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.TransactionListResponse{Transactions: pending})
}

// Reconcile обрабатывает POST /admin/ledger/reconcile — ручной запуск сверки.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	applied, err := h.settlement.ReconcilePending(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.ReconcileResponse{Applied: applied})
}
