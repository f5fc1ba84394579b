package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/pkg/apperror"
	"github.com/ecodvor/scrap-backend/internal/repository"
)

// fakeLedger — журнал в памяти с семантикой PostgreSQL-репозитория:
// не больше одного живого кредита на заявку, баланс растёт только на
// применённых транзакциях. applyErr имитирует сбой кошелька.
type fakeLedger struct {
	mu           sync.Mutex
	balances     map[uuid.UUID]float64
	transactions map[uuid.UUID]*models.Transaction
	applyErr     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:     make(map[uuid.UUID]float64),
		transactions: make(map[uuid.UUID]*models.Transaction),
	}
}

func (f *fakeLedger) GetBalance(ctx context.Context, ownerID uuid.UUID) (*models.UserBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.UserBalance{UserID: ownerID, Balance: f.balances[ownerID]}, nil
}

func (f *fakeLedger) CreateCredit(ctx context.Context, ownerID, requestID uuid.UUID, amount float64, description string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.transactions {
		if tr.RequestID != nil && *tr.RequestID == requestID &&
			tr.Kind == models.TransactionKindCredit && tr.Status != models.TransactionStatusFailed {
			return nil, repository.ErrCreditExists
		}
	}
	reqID := requestID
	tr := &models.Transaction{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		RequestID: &reqID,
		Kind:      models.TransactionKindCredit,
		Amount:    amount,
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now(),
	}
	f.transactions[tr.ID] = tr
	clone := *tr
	return &clone, nil
}

func (f *fakeLedger) Apply(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	tr, ok := f.transactions[transactionID]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	if tr.Status != models.TransactionStatusPending {
		return nil, repository.ErrTransactionNotPending
	}
	f.balances[tr.OwnerID] += tr.Amount
	now := time.Now()
	tr.Status = models.TransactionStatusCompleted
	tr.CompletedAt = &now
	clone := *tr
	return &clone, nil
}

func (f *fakeLedger) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Transaction
	for _, tr := range f.transactions {
		if tr.OwnerID == ownerID {
			result = append(result, *tr)
		}
	}
	return result, nil
}

func (f *fakeLedger) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Transaction
	for _, tr := range f.transactions {
		if tr.Status == models.TransactionStatusPending {
			result = append(result, *tr)
		}
	}
	return result, nil
}

func completedRequest(sellerID uuid.UUID, settled float64) *models.PickupRequest {
	return &models.PickupRequest{
		ID:            uuid.New(),
		SellerID:      sellerID,
		Status:        models.RequestStatusCompleted,
		SettledAmount: &settled,
	}
}

func TestComputeSettledAmount(t *testing.T) {
	kg := func(qty, price float64) models.RequestItem {
		return models.RequestItem{WasteType: "plastic", Quantity: qty, Unit: models.UnitKg, UnitPrice: price}
	}
	pieces := func(qty, price float64) models.RequestItem {
		return models.RequestItem{WasteType: "battery", Quantity: qty, Unit: models.UnitItems, UnitPrice: price}
	}

	tests := []struct {
		name           string
		items          []models.RequestItem
		estimated      float64
		measuredWeight float64
		want           float64
	}{
		{
			name:           "замеренный вес меньше заявленного",
			items:          []models.RequestItem{kg(5, 10)},
			estimated:      50,
			measuredWeight: 4.8,
			want:           48,
		},
		{
			name:           "замеренный вес больше заявленного",
			items:          []models.RequestItem{kg(5, 10)},
			estimated:      50,
			measuredWeight: 6,
			want:           60,
		},
		{
			name:           "штучные позиции идут по оценке",
			items:          []models.RequestItem{kg(10, 5), pieces(3, 20)},
			estimated:      110,
			measuredWeight: 8,
			want:           100, // 8 кг × 5 + 3 шт × 20
		},
		{
			name:           "только штучные: оценка как есть",
			items:          []models.RequestItem{pieces(3, 20)},
			estimated:      60,
			measuredWeight: 2,
			want:           60,
		},
		{
			name:           "смешанные цены усредняются по весу",
			items:          []models.RequestItem{kg(2, 10), kg(2, 30)},
			estimated:      80,
			measuredWeight: 2,
			want:           40, // средняя цена 20 за кг
		},
		{
			name:           "округление до копеек",
			items:          []models.RequestItem{kg(3, 10)},
			estimated:      30,
			measuredWeight: 3.333,
			want:           33.33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSettledAmount(tt.items, tt.estimated, tt.measuredWeight)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSettle_CreditsSellerOnce(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewSettlementService(ledger)
	sellerID := uuid.New()
	req := completedRequest(sellerID, 48)

	applied, err := svc.Settle(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, models.TransactionStatusCompleted, applied.Status)
	assert.InDelta(t, 48.0, applied.Amount, 1e-9)

	balance, err := svc.GetBalance(context.Background(), sellerID)
	require.NoError(t, err)
	assert.InDelta(t, 48.0, balance.Balance, 1e-9)

	// Повторный расчёт по той же заявке отбивается журналом, баланс не растёт.
	second, err := svc.Settle(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, second)

	balance, err = svc.GetBalance(context.Background(), sellerID)
	require.NoError(t, err)
	assert.InDelta(t, 48.0, balance.Balance, 1e-9)
}

func TestSettle_ConcurrentDuplicates(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewSettlementService(ledger)
	sellerID := uuid.New()
	req := completedRequest(sellerID, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Settle(context.Background(), req)
		}()
	}
	wg.Wait()

	balance, err := svc.GetBalance(context.Background(), sellerID)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, balance.Balance, 1e-9)

	transactions, err := svc.ListTransactions(context.Background(), sellerID, 50, 0)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
}

func TestSettle_RequiresCompleted(t *testing.T) {
	svc := NewSettlementService(newFakeLedger())
	settled := 10.0

	_, err := svc.Settle(context.Background(), &models.PickupRequest{
		ID:            uuid.New(),
		Status:        models.RequestStatusAccepted,
		SettledAmount: &settled,
	})
	assert.Error(t, err)

	_, err = svc.Settle(context.Background(), &models.PickupRequest{
		ID:     uuid.New(),
		Status: models.RequestStatusCompleted,
	})
	assert.Error(t, err)
}

func TestSettle_ZeroAmountSkipsLedger(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewSettlementService(ledger)
	req := completedRequest(uuid.New(), 0)

	tr, err := svc.Settle(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, tr)
	assert.Empty(t, ledger.transactions)
}

// Сбой кошелька оставляет транзакцию pending; сверка доводит её до конца,
// и баланс сходится с суммой применённых кредитов.
func TestSettle_WalletFailureRepairedByReconcile(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewSettlementService(ledger)
	sellerID := uuid.New()
	req := completedRequest(sellerID, 48)

	ledger.applyErr = errors.New("connection reset by peer")
	tr, err := svc.Settle(context.Background(), req)
	require.Error(t, err)
	require.NotNil(t, tr, "транзакция создана и осталась в журнале")

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeSettlement, appErr.Code)

	balance, err := svc.GetBalance(context.Background(), sellerID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, balance.Balance, 1e-9, "до сверки кошелёк не тронут")

	backlog, err := svc.ListPendingBacklog(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, models.TransactionStatusPending, backlog[0].Status)

	// Кошелёк ожил, сверка применяет зависшую транзакцию.
	ledger.applyErr = nil
	applied, err := svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	balance, err = svc.GetBalance(context.Background(), sellerID)
	require.NoError(t, err)
	assert.InDelta(t, 48.0, balance.Balance, 1e-9)

	// Повторный проход сверки ничего не применяет второй раз.
	applied, err = svc.ReconcilePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	balance, err = svc.GetBalance(context.Background(), sellerID)
	require.NoError(t, err)
	assert.InDelta(t, 48.0, balance.Balance, 1e-9)
}

// Чтение баланса нового кошелька отдаёт ноль и ничего не заводит:
// строка в хранилище появляется только на первой проводке.
func TestGetBalance_FreshWalletReadsZero(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewSettlementService(ledger)
	ownerID := uuid.New()

	for i := 0; i < 2; i++ {
		balance, err := svc.GetBalance(context.Background(), ownerID)
		require.NoError(t, err)
		assert.Equal(t, ownerID, balance.UserID)
		assert.InDelta(t, 0.0, balance.Balance, 1e-9)
	}

	assert.Empty(t, ledger.balances, "чтение не материализует кошелёк")
	assert.Empty(t, ledger.transactions)
}

// Баланс всегда равен сумме применённых кредитов по разным заявкам.
func TestBalanceMatchesAppliedCredits(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewSettlementService(ledger)
	sellerID := uuid.New()

	amounts := []float64{48, 120.5, 33.33}
	var total float64
	for _, amount := range amounts {
		_, err := svc.Settle(context.Background(), completedRequest(sellerID, amount))
		require.NoError(t, err)
		total += amount
	}

	balance, err := svc.GetBalance(context.Background(), sellerID)
	require.NoError(t, err)
	assert.InDelta(t, total, balance.Balance, 1e-9)

	transactions, err := svc.ListTransactions(context.Background(), sellerID, 50, 0)
	require.NoError(t, err)
	assert.Len(t, transactions, len(amounts))
	for _, tr := range transactions {
		assert.Equal(t, models.TransactionStatusCompleted, tr.Status)
	}
}
