package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ecodvor/scrap-backend/internal/models"
)

// Ошибки уровня репозитория.
var (
	ErrRequestNotFound = errors.New("request not found")
	// ErrRequestConflict возвращается, когда условный UPDATE не затронул ни одной
	// строки: заявка уже ушла из ожидаемого статуса.
	ErrRequestConflict = errors.New("request status conflict")
)

// RequestRepository отвечает за работу с заявками на вывоз.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository создаёт новый экземпляр.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `
	r.id, r.seller_id, r.worker_id, u.name AS seller_name, r.address, r.latitude, r.longitude,
	r.pickup_option, r.scheduled_at, r.status, r.estimated_amount, r.measured_weight,
	r.settled_amount, r.cancel_reason, r.photo_path,
	r.created_at, r.accepted_at, r.completed_at, r.cancelled_at
`

// Create сохраняет заявку и её позиции в одной транзакции.
func (r *RequestRepository) Create(ctx context.Context, req *models.PickupRequest, items []models.RequestItem) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("request repository: begin tx %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO pickup_requests (seller_id, address, latitude, longitude, pickup_option, scheduled_at, status, estimated_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	if err = tx.QueryRowxContext(ctx, query,
		req.SellerID, req.Address, req.Latitude, req.Longitude,
		req.PickupOption, req.ScheduledAt, models.RequestStatusPending, req.EstimatedAmount,
	).Scan(&req.ID, &req.CreatedAt); err != nil {
		return fmt.Errorf("request repository: create %w", err)
	}
	req.Status = models.RequestStatusPending

	for i := range items {
		items[i].RequestID = req.ID
		items[i].Ordinal = i
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO request_items (request_id, ordinal, waste_type, quantity, unit, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, req.ID, i, items[i].WasteType, items[i].Quantity, items[i].Unit, items[i].UnitPrice).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("request repository: create item %w", err)
		}
	}
	req.Items = items

	return tx.Commit()
}

// GetByID возвращает заявку с позициями.
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PickupRequest, error) {
	var req models.PickupRequest
	query := `
		SELECT ` + requestColumns + `
		FROM pickup_requests r
		JOIN users u ON u.id = r.seller_id
		WHERE r.id = $1
	`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("request repository: get by id %w", err)
	}

	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	req.Items = items[id]
	return &req, nil
}

// ListOpenFilter задаёт фильтр открытых заявок.
// Search ищется без учёта регистра по типу сырья, имени продавца и адресу (OR).
type ListOpenFilter struct {
	Search string
	Limit  int
	Offset int
}

// ListOpen возвращает ожидающие заявки, новые первыми.
// Фильтр по срочности применяется выше: срочность зависит от текущего времени
// и в базе не хранится.
func (r *RequestRepository) ListOpen(ctx context.Context, filter ListOpenFilter) ([]models.PickupRequest, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 100
	}

	args := []interface{}{models.RequestStatusPending}
	query := `
		SELECT ` + requestColumns + `
		FROM pickup_requests r
		JOIN users u ON u.id = r.seller_id
		WHERE r.status = $1
	`
	if filter.Search != "" {
		query += `
		AND (
			u.name ILIKE $2
			OR r.address ILIKE $2
			OR EXISTS (
				SELECT 1 FROM request_items ri
				WHERE ri.request_id = r.id AND ri.waste_type ILIKE $2
			)
		)`
		args = append(args, "%"+filter.Search+"%")
	}
	query += fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT %d OFFSET %d", filter.Limit, filter.Offset)

	var requests []models.PickupRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("request repository: list open %w", err)
	}

	return r.attachItems(ctx, requests)
}

// ListBySeller возвращает заявки продавца, новые первыми.
func (r *RequestRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.PickupRequest, error) {
	var requests []models.PickupRequest
	query := `
		SELECT ` + requestColumns + `
		FROM pickup_requests r
		JOIN users u ON u.id = r.seller_id
		WHERE r.seller_id = $1
		ORDER BY r.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &requests, query, sellerID); err != nil {
		return nil, fmt.Errorf("request repository: list by seller %w", err)
	}
	return r.attachItems(ctx, requests)
}

// ListByWorker возвращает заявки, закреплённые за сборщиком.
func (r *RequestRepository) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]models.PickupRequest, error) {
	var requests []models.PickupRequest
	query := `
		SELECT ` + requestColumns + `
		FROM pickup_requests r
		JOIN users u ON u.id = r.seller_id
		WHERE r.worker_id = $1
		ORDER BY r.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &requests, query, workerID); err != nil {
		return nil, fmt.Errorf("request repository: list by worker %w", err)
	}
	return r.attachItems(ctx, requests)
}

// Accept пытается закрепить заявку за сборщиком одним условным UPDATE.
// Ровно один из конкурирующих вызовов затронет строку; остальные получают
// ErrRequestConflict. Никакого read-then-write: условие и запись — один оператор.
func (r *RequestRepository) Accept(ctx context.Context, id, workerID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pickup_requests
		SET worker_id = $2, status = $3, accepted_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, workerID, models.RequestStatusAccepted, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("request repository: accept %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("request repository: accept rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrRequestConflict
	}
	return nil
}

// Complete переводит заявку в completed одним условным UPDATE.
// Срабатывает только если заявка accepted и закреплена именно за этим сборщиком,
// поэтому повторный вызов не может привести к второму расчёту.
func (r *RequestRepository) Complete(ctx context.Context, id, workerID uuid.UUID, measuredWeight, settledAmount float64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pickup_requests
		SET status = $3, measured_weight = $4, settled_amount = $5, completed_at = NOW()
		WHERE id = $1 AND worker_id = $2 AND status = $6
	`, id, workerID, models.RequestStatusCompleted, measuredWeight, settledAmount, models.RequestStatusAccepted)
	if err != nil {
		return fmt.Errorf("request repository: complete %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("request repository: complete rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrRequestConflict
	}
	return nil
}

// Cancel переводит заявку в cancelled, если она ещё не в конечном статусе.
func (r *RequestRepository) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pickup_requests
		SET status = $2, cancel_reason = $3, cancelled_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`, id, models.RequestStatusCancelled, reason, models.RequestStatusPending, models.RequestStatusAccepted)
	if err != nil {
		return fmt.Errorf("request repository: cancel %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("request repository: cancel rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrRequestConflict
	}
	return nil
}

// SetPhotoPath сохраняет путь к фотографии сырья.
func (r *RequestRepository) SetPhotoPath(ctx context.Context, id, sellerID uuid.UUID, path string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pickup_requests SET photo_path = $3 WHERE id = $1 AND seller_id = $2
	`, id, sellerID, path)
	if err != nil {
		return fmt.Errorf("request repository: set photo %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// GetWorkerStats агрегирует показатели сборщика.
func (r *RequestRepository) GetWorkerStats(ctx context.Context, workerID uuid.UUID) (*models.WorkerStats, error) {
	var row struct {
		Accepted       int     `db:"accepted"`
		CompletedTotal int     `db:"completed_total"`
		CompletedToday int     `db:"completed_today"`
		Cancelled      int     `db:"cancelled"`
		Earnings       float64 `db:"earnings"`
	}
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'accepted')                                           AS accepted,
			COUNT(*) FILTER (WHERE status = 'completed')                                          AS completed_total,
			COUNT(*) FILTER (WHERE status = 'completed' AND completed_at >= date_trunc('day', NOW())) AS completed_today,
			COUNT(*) FILTER (WHERE status = 'cancelled')                                          AS cancelled,
			COALESCE(SUM(settled_amount) FILTER (WHERE status = 'completed'), 0)                  AS earnings
		FROM pickup_requests
		WHERE worker_id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, workerID); err != nil {
		return nil, fmt.Errorf("request repository: worker stats %w", err)
	}

	var pending int
	if err := r.db.GetContext(ctx, &pending, `SELECT COUNT(*) FROM pickup_requests WHERE status = $1`, models.RequestStatusPending); err != nil {
		return nil, fmt.Errorf("request repository: pending count %w", err)
	}

	stats := &models.WorkerStats{
		PendingCount:        pending,
		AcceptedCount:       row.Accepted,
		CompletedTodayCount: row.CompletedToday,
		CompletedTotalCount: row.CompletedTotal,
		TotalEarnings:       row.Earnings,
	}
	if finished := row.CompletedTotal + row.Cancelled; finished > 0 {
		stats.CompletionRate = float64(row.CompletedTotal) / float64(finished) * 100
	}
	return stats, nil
}

// attachItems подгружает позиции для списка заявок одним запросом.
func (r *RequestRepository) attachItems(ctx context.Context, requests []models.PickupRequest) ([]models.PickupRequest, error) {
	if len(requests) == 0 {
		return requests, nil
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ID)
	}

	byRequest, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range requests {
		requests[i].Items = byRequest[requests[i].ID]
	}
	return requests, nil
}

func (r *RequestRepository) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.RequestItem, error) {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	// Позиции возвращаются в том порядке, в котором продавец их перечислил.
	var items []models.RequestItem
	query := `
		SELECT id, request_id, ordinal, waste_type, quantity, unit, unit_price
		FROM request_items
		WHERE request_id = ANY($1::uuid[])
		ORDER BY request_id, ordinal
	`
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(raw)); err != nil {
		return nil, fmt.Errorf("request repository: load items %w", err)
	}

	byRequest := make(map[uuid.UUID][]models.RequestItem, len(ids))
	for _, item := range items {
		byRequest[item.RequestID] = append(byRequest[item.RequestID], item)
	}
	return byRequest, nil
}
