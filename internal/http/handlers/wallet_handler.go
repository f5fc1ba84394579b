package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecodvor/scrap-backend/internal/dto"
	"github.com/ecodvor/scrap-backend/internal/http/handlers/common"
	"github.com/ecodvor/scrap-backend/internal/service"
)

// WalletHandler предоставляет HTTP слой для кошелька и журнала транзакций.
type WalletHandler struct {
	settlement *service.SettlementService
}

// NewWalletHandler создаёт хэндлер.
func NewWalletHandler(settlement *service.SettlementService) *WalletHandler {
	return &WalletHandler{settlement: settlement}
}

// GetBalance обрабатывает GET /wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.settlement.GetBalance(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.BalanceResponse{Balance: balance.Balance})
}

// ListTransactions обрабатывает GET /wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.settlement.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.TransactionListResponse{Transactions: transactions})
}
