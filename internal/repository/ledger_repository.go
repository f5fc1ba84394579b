package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ecodvor/scrap-backend/internal/models"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrCreditExists означает, что по заявке уже есть живая (pending или
	// completed) кредитная транзакция. Гарантируется частичным уникальным
	// индексом, а не проверкой в коде.
	ErrCreditExists = errors.New("credit transaction already exists for request")
	// ErrTransactionNotPending возвращается при попытке применить уже
	// применённую или проваленную транзакцию.
	ErrTransactionNotPending = errors.New("transaction is not pending")
)

// LedgerRepository отвечает за кошельки и журнал транзакций.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository создаёт новый экземпляр.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetBalance возвращает баланс пользователя. Чтение ничего не пишет:
// пока по кошельку не было ни одной проводки, строки в user_balances нет,
// и отдаётся нулевой баланс. Строку заводит Apply при первой проводке.
func (r *LedgerRepository) GetBalance(ctx context.Context, ownerID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	query := `SELECT user_id, balance, updated_at FROM user_balances WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &balance, query, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UserBalance{UserID: ownerID}, nil
		}
		return nil, fmt.Errorf("ledger repository: get balance %w", err)
	}
	return &balance, nil
}

// CreateCredit создаёт кредитную транзакцию по заявке в статусе pending.
// Частичный уникальный индекс по request_id допускает не более одной живой
// кредитной записи на заявку: повторная вставка даёт ErrCreditExists.
func (r *LedgerRepository) CreateCredit(ctx context.Context, ownerID, requestID uuid.UUID, amount float64, description string) (*models.Transaction, error) {
	var transaction models.Transaction
	query := `
		INSERT INTO transactions (owner_id, request_id, kind, amount, status, description)
		VALUES ($1, $2, 'credit', $3, 'pending', $4)
		ON CONFLICT (request_id) WHERE kind = 'credit' AND status <> 'failed' DO NOTHING
		RETURNING id, owner_id, request_id, kind, amount, status, description, created_at, completed_at
	`
	err := r.db.GetContext(ctx, &transaction, query, ownerID, requestID, amount, description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCreditExists
		}
		return nil, fmt.Errorf("ledger repository: create credit %w", err)
	}
	return &transaction, nil
}

// Apply применяет pending транзакцию к кошельку и помечает её completed
// в одной транзакции базы. Баланс меняется атомарным инкрементом, без
// read-modify-write, поэтому конкурирующие расчёты по одному кошельку безопасны.
func (r *LedgerRepository) Apply(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		SELECT id, owner_id, request_id, kind, amount, status, description, created_at, completed_at
		FROM transactions WHERE id = $1 FOR UPDATE
	`, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("ledger repository: apply get %w", err)
	}
	if transaction.Status != models.TransactionStatusPending {
		return nil, ErrTransactionNotPending
	}

	delta := transaction.Amount
	if transaction.Kind == models.TransactionKindDebit {
		delta = -delta
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = user_balances.balance + $2, updated_at = NOW()
	`, transaction.OwnerID, delta)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: apply balance %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE transactions SET status = 'completed', completed_at = $2 WHERE id = $1
	`, transaction.ID, now)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: apply complete %w", err)
	}
	transaction.Status = models.TransactionStatusCompleted
	transaction.CompletedAt = &now

	return &transaction, tx.Commit()
}

// ListTransactions возвращает журнал транзакций пользователя.
func (r *LedgerRepository) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, owner_id, request_id, kind, amount, status, description, created_at, completed_at
		FROM transactions WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	return transactions, err
}

// ListPending возвращает накопившиеся pending транзакции для сверки.
// olderThan отсекает записи, которые могли появиться прямо сейчас.
func (r *LedgerRepository) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, owner_id, request_id, kind, amount, status, description, created_at, completed_at
		FROM transactions
		WHERE status = 'pending' AND created_at < NOW() - $1 * INTERVAL '1 second'
		ORDER BY created_at
		LIMIT $2
	`, int64(olderThan.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: list pending %w", err)
	}
	return transactions, nil
}
