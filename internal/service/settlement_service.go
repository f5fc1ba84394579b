package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ecodvor/scrap-backend/internal/goroutine"
	"github.com/ecodvor/scrap-backend/internal/logger"
	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/pkg/apperror"
	"github.com/ecodvor/scrap-backend/internal/repository"
)

// LedgerRepository описывает хранилище кошельков и журнала транзакций.
type LedgerRepository interface {
	GetBalance(ctx context.Context, ownerID uuid.UUID) (*models.UserBalance, error)
	CreateCredit(ctx context.Context, ownerID, requestID uuid.UUID, amount float64, description string) (*models.Transaction, error)
	Apply(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Transaction, error)
}

// SettlementService проводит расчёты по завершённым заявкам и владеет
// read-only доступом к кошельку.
type SettlementService struct {
	ledger LedgerRepository
}

// NewSettlementService создаёт сервис расчётов.
func NewSettlementService(ledger LedgerRepository) *SettlementService {
	return &SettlementService{ledger: ledger}
}

// ComputeSettledAmount пересчитывает сумму выплаты от замеренного веса.
// Замеренный вес распределяется по весовым позициям пропорционально их
// заявленным количествам, штучные позиции идут по оценке. Если весовых
// позиций нет, возвращается оценочная сумма. Результат округляется до копеек.
func ComputeSettledAmount(items []models.RequestItem, estimatedAmount, measuredWeight float64) float64 {
	var kgQuantity, kgAmount, itemsAmount float64
	for _, item := range items {
		switch item.Unit {
		case models.UnitKg:
			kgQuantity += item.Quantity
			kgAmount += item.Subtotal()
		default:
			itemsAmount += item.Subtotal()
		}
	}

	if kgQuantity <= 0 || measuredWeight <= 0 {
		return round2(estimatedAmount)
	}

	// Средневзвешенная цена килограмма по заявленным позициям.
	avgPricePerKg := kgAmount / kgQuantity
	return round2(measuredWeight*avgPricePerKg + itemsAmount)
}

// Settle выполняет расчёт по завершённой заявке как одну логическую операцию:
// создаёт кредитную транзакцию продавцу, применяет её к кошельку и помечает
// completed. Защита от двойного зачисления двухуровневая: конечный переход
// статуса заявки плюс частичный уникальный индекс в журнале.
func (s *SettlementService) Settle(ctx context.Context, req *models.PickupRequest) (*models.Transaction, error) {
	if req.Status != models.RequestStatusCompleted || req.SettledAmount == nil {
		return nil, apperror.New(apperror.ErrCodeInternal, "расчёт возможен только по завершённой заявке")
	}
	amount := *req.SettledAmount
	if amount <= 0 {
		// Нулевая выплата: нечего проводить, запись в журнале не нужна.
		return nil, nil
	}

	transaction, err := s.ledger.CreateCredit(ctx, req.SellerID, req.ID, amount, "Выплата за вывоз вторсырья")
	if err != nil {
		if errors.Is(err, repository.ErrCreditExists) {
			// Уже рассчитано: индекс не дал второй живой кредит по заявке.
			logger.WithField("request_id", req.ID).Warn("повторный расчёт по заявке отклонён журналом")
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeSettlement, "не удалось создать транзакцию расчёта")
	}

	applied, err := s.ledger.Apply(ctx, transaction.ID)
	if err != nil {
		// Транзакция осталась pending: её доведёт фоновая сверка.
		// Статус заявки не трогаем — вывоз уже состоялся.
		return transaction, apperror.Wrap(err, apperror.ErrCodeSettlement,
			fmt.Sprintf("кошелёк не обновлён, транзакция %s осталась pending", transaction.ID))
	}
	return applied, nil
}

// GetBalance возвращает баланс кошелька.
func (s *SettlementService) GetBalance(ctx context.Context, ownerID uuid.UUID) (*models.UserBalance, error) {
	return s.ledger.GetBalance(ctx, ownerID)
}

// ListTransactions возвращает журнал транзакций пользователя.
func (s *SettlementService) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.ledger.ListTransactions(ctx, ownerID, limit, offset)
}

// ListPendingBacklog отдаёт очередь незавершённых транзакций для оператора.
func (s *SettlementService) ListPendingBacklog(ctx context.Context, limit int) ([]models.Transaction, error) {
	return s.ledger.ListPending(ctx, 0, limit)
}

// ReconcilePending повторно применяет зависшие pending транзакции.
// Повторяются только шаги apply+complete: сумма не пересчитывается, а уже
// применённые транзакции пропускаются.
func (s *SettlementService) ReconcilePending(ctx context.Context) (int, error) {
	pending, err := s.ledger.ListPending(ctx, 30*time.Second, 100)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, transaction := range pending {
		if _, err := s.ledger.Apply(ctx, transaction.ID); err != nil {
			if errors.Is(err, repository.ErrTransactionNotPending) {
				continue
			}
			logger.WithField("transaction_id", transaction.ID).WithField("error", err.Error()).
				Warn("сверка: транзакция не применилась, повторим в следующий проход")
			continue
		}
		applied++
	}
	return applied, nil
}

// StartReconciler запускает периодическую сверку pending транзакций.
func (s *SettlementService) StartReconciler(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = time.Minute
	}
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if applied, err := s.ReconcilePending(ctx); err != nil {
					logger.WithField("error", err.Error()).Warn("сверка pending транзакций не удалась")
				} else if applied > 0 {
					logger.WithField("applied", applied).Info("сверка: применены зависшие транзакции")
				}
			}
		}
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
