package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodvor/scrap-backend/internal/dto"
	"github.com/ecodvor/scrap-backend/internal/http/middleware"
	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/service"
)

// stubLedger отдаёт заранее заданные баланс и журнал.
type stubLedger struct {
	balance      float64
	transactions []models.Transaction
}

func (s *stubLedger) GetBalance(ctx context.Context, ownerID uuid.UUID) (*models.UserBalance, error) {
	return &models.UserBalance{UserID: ownerID, Balance: s.balance, UpdatedAt: time.Now()}, nil
}

func (s *stubLedger) CreateCredit(ctx context.Context, ownerID, requestID uuid.UUID, amount float64, description string) (*models.Transaction, error) {
	return nil, nil
}

func (s *stubLedger) Apply(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	return nil, nil
}

func (s *stubLedger) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return s.transactions, nil
}

func (s *stubLedger) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Transaction, error) {
	return nil, nil
}

func walletRouter(ledger *stubLedger, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
	})
	handler := NewWalletHandler(service.NewSettlementService(ledger))
	r.GET("/wallet/balance", handler.GetBalance)
	r.GET("/wallet/transactions", handler.ListTransactions)
	return r
}

func TestWalletHandler_GetBalance_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WalletHandler{settlement: nil}
	r.GET("/wallet/balance", handler.GetBalance)

	req, _ := http.NewRequest("GET", "/wallet/balance", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// Наружу уходит только поле balance, без служебных полей кошелька.
func TestWalletHandler_GetBalance_ResponseShape(t *testing.T) {
	r := walletRouter(&stubLedger{balance: 48.5}, uuid.New())

	req, _ := http.NewRequest("GET", "/wallet/balance", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balance": 48.5}`, w.Body.String())
}

func TestWalletHandler_ListTransactions_ResponseShape(t *testing.T) {
	ledger := &stubLedger{transactions: []models.Transaction{
		{
			ID:        uuid.New(),
			OwnerID:   uuid.New(),
			Kind:      models.TransactionKindCredit,
			Amount:    48,
			Status:    models.TransactionStatusCompleted,
			CreatedAt: time.Now(),
		},
	}}
	r := walletRouter(ledger, uuid.New())

	req, _ := http.NewRequest("GET", "/wallet/transactions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.TransactionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Transactions, 1)
	assert.InDelta(t, 48.0, resp.Transactions[0].Amount, 1e-9)
}
