package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecodvor/scrap-backend/internal/feed"
	"github.com/ecodvor/scrap-backend/internal/goroutine"
	"github.com/ecodvor/scrap-backend/internal/logger"
	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/pkg/apperror"
	"github.com/ecodvor/scrap-backend/internal/repository"
	"github.com/ecodvor/scrap-backend/internal/urgency"
	"github.com/ecodvor/scrap-backend/internal/validation"
)

// RequestRepository описывает хранилище заявок.
// Accept, Complete и Cancel обязаны быть одиночными условными записями:
// вся защита от гонок держится на них.
type RequestRepository interface {
	Create(ctx context.Context, req *models.PickupRequest, items []models.RequestItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PickupRequest, error)
	ListOpen(ctx context.Context, filter repository.ListOpenFilter) ([]models.PickupRequest, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.PickupRequest, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]models.PickupRequest, error)
	Accept(ctx context.Context, id, workerID uuid.UUID) error
	Complete(ctx context.Context, id, workerID uuid.UUID, measuredWeight, settledAmount float64) error
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
	SetPhotoPath(ctx context.Context, id, sellerID uuid.UUID, path string) error
	GetWorkerStats(ctx context.Context, workerID uuid.UUID) (*models.WorkerStats, error)
}

// FeedPublisher рассылает события ленты открытых заявок.
type FeedPublisher interface {
	Added(req *models.PickupRequest)
	Modified(req *models.PickupRequest)
	Removed(req *models.PickupRequest)
}

// Settler проводит расчёт по завершённой заявке.
type Settler interface {
	Settle(ctx context.Context, req *models.PickupRequest) (*models.Transaction, error)
}

// RequestService реализует жизненный цикл заявки на вывоз.
type RequestService struct {
	requests RequestRepository
	feed     FeedPublisher
	settler  Settler
	now      func() time.Time

	// lastTiers хранит срочность, разосланную подписчикам в прошлый тик,
	// чтобы рассылать modified только при смене уровня.
	tiersMu   sync.Mutex
	lastTiers map[uuid.UUID]string
}

// NewRequestService создаёт сервис заявок.
func NewRequestService(requests RequestRepository, feedPublisher FeedPublisher, settler Settler) *RequestService {
	return &RequestService{
		requests:  requests,
		feed:      feedPublisher,
		settler:   settler,
		now:       time.Now,
		lastTiers: make(map[uuid.UUID]string),
	}
}

// SetFeed подключает публикатор ленты. Вызывается один раз при сборке
// приложения: хаб строится на снимке этого же сервиса.
func (s *RequestService) SetFeed(feedPublisher FeedPublisher) {
	s.feed = feedPublisher
}

// CreateRequestInput — данные новой заявки.
type CreateRequestInput struct {
	SellerID     uuid.UUID
	Address      string
	Latitude     *float64
	Longitude    *float64
	PickupOption string
	ScheduledAt  *time.Time
	Items        []models.RequestItem
}

// CreateRequest валидирует, сохраняет и анонсирует новую заявку.
// Оценочная сумма фиксируется здесь и больше никогда не пересчитывается:
// единственное поле, которое может от неё отличаться — settled_amount,
// и его задаёт только расчёт при завершении.
func (s *RequestService) CreateRequest(ctx context.Context, in CreateRequestInput) (*models.PickupRequest, error) {
	now := s.now()

	if err := validation.ValidateAddress(in.Address); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateItems(in.Items); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePickupSchedule(in.PickupOption, in.ScheduledAt, now); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	req := &models.PickupRequest{
		SellerID:        in.SellerID,
		Address:         in.Address,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		PickupOption:    in.PickupOption,
		ScheduledAt:     in.ScheduledAt,
		EstimatedAmount: models.EstimateAmount(in.Items),
	}

	if err := s.requests.Create(ctx, req, in.Items); err != nil {
		return nil, err
	}

	created, err := s.requests.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	urgency.Apply(created, now)

	if s.feed != nil {
		s.feed.Added(created)
	}
	return created, nil
}

// GetRequest возвращает заявку со свежей срочностью.
func (s *RequestService) GetRequest(ctx context.Context, id uuid.UUID) (*models.PickupRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, err
	}
	urgency.Apply(req, s.now())
	return req, nil
}

// ListOpenInput — фильтр ленты открытых заявок.
type ListOpenInput struct {
	Urgency string
	Search  string
	Limit   int
	Offset  int
}

// ListOpen возвращает открытые заявки, новые первыми. Срочность вычисляется
// на момент вызова; фильтр по срочности применяется после вычисления.
func (s *RequestService) ListOpen(ctx context.Context, in ListOpenInput) ([]models.PickupRequest, error) {
	requests, err := s.requests.ListOpen(ctx, repository.ListOpenFilter{
		Search: in.Search,
		Limit:  in.Limit,
		Offset: in.Offset,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := make([]models.PickupRequest, 0, len(requests))
	for i := range requests {
		urgency.Apply(&requests[i], now)
		if in.Urgency != "" && requests[i].UrgencyTier != in.Urgency {
			continue
		}
		result = append(result, requests[i])
	}
	return result, nil
}

// Snapshot отдаёт срез открытых заявок под фильтр подписки ленты.
func (s *RequestService) Snapshot(ctx context.Context, filter feed.Filter) ([]models.PickupRequest, error) {
	return s.ListOpen(ctx, ListOpenInput{Urgency: filter.Urgency, Search: filter.Search})
}

// ListSellerRequests возвращает заявки продавца.
func (s *RequestService) ListSellerRequests(ctx context.Context, sellerID uuid.UUID) ([]models.PickupRequest, error) {
	requests, err := s.requests.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	s.applyUrgency(requests)
	return requests, nil
}

// ListWorkerRequests возвращает заявки, закреплённые за сборщиком.
func (s *RequestService) ListWorkerRequests(ctx context.Context, workerID uuid.UUID) ([]models.PickupRequest, error) {
	requests, err := s.requests.ListByWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	s.applyUrgency(requests)
	return requests, nil
}

// AcceptRequest закрепляет заявку за сборщиком. При конкуренции выигрывает
// ровно один вызов; проигравшие получают ErrAlreadyAccepted и актуальную
// запись, чтобы увидеть победителя. Никакого чтения перед записью:
// исход решает один условный UPDATE в хранилище.
func (s *RequestService) AcceptRequest(ctx context.Context, id, workerID uuid.UUID) (*models.PickupRequest, error) {
	err := s.requests.Accept(ctx, id, workerID)
	if err == nil {
		accepted, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		urgency.Apply(accepted, s.now())
		if s.feed != nil {
			s.feed.Removed(accepted)
		}
		s.forgetTier(id)
		return accepted, nil
	}

	if !errors.Is(err, repository.ErrRequestConflict) {
		return nil, err
	}

	// Проигрыш гонки: разбираемся, что случилось с заявкой.
	current, getErr := s.requests.GetByID(ctx, id)
	if getErr != nil {
		if errors.Is(getErr, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, getErr
	}

	if current.Status == models.RequestStatusAccepted {
		if current.WorkerID != nil && *current.WorkerID == workerID {
			// Повтор от того же сборщика: заявка уже его.
			urgency.Apply(current, s.now())
			return current, nil
		}
		return current, apperror.ErrAlreadyAccepted
	}
	if _, ok := models.NextStatus(current.Status, models.EventAccept); !ok {
		return current, apperror.ErrInvalidTransition
	}
	// Таблица переходов разрешает accept, но UPDATE не сработал: заявка
	// сменила статус между записью и перечтением. Исход тот же.
	return current, apperror.ErrInvalidTransition
}

// CompleteRequest завершает заявку и запускает расчёт.
// Переход гарантированно одноразовый: условный UPDATE срабатывает только из
// accepted и только для назначенного сборщика, поэтому повторный вызов не
// может привести ко второму зачислению.
func (s *RequestService) CompleteRequest(ctx context.Context, id, workerID uuid.UUID, measuredWeight float64) (*models.PickupRequest, error) {
	if err := validation.ValidateMeasuredWeight(measuredWeight); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	// Чтение до записи здесь даёт только неизменяемые входы расчёта (позиции
	// зафиксированы при создании); сам переход защищает условный UPDATE.
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, err
	}

	// Таблица переходов отсекает заведомо недопустимое завершение до записи;
	// гонку за допустимый переход всё равно решает условный UPDATE.
	if _, ok := models.NextStatus(req.Status, models.EventComplete); !ok {
		return nil, s.explainCompleteConflict(ctx, id, workerID)
	}

	settledAmount := ComputeSettledAmount(req.Items, req.EstimatedAmount, measuredWeight)

	if err := s.requests.Complete(ctx, id, workerID, measuredWeight, settledAmount); err != nil {
		if !errors.Is(err, repository.ErrRequestConflict) {
			return nil, err
		}
		return nil, s.explainCompleteConflict(ctx, id, workerID)
	}

	completed, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Расчёт выполняется ровно один раз — на единственном успешном переходе
	// accepted -> completed. Сбой кошелька не откатывает завершение: вывоз
	// уже состоялся физически, а бухгалтерию добьёт фоновая сверка.
	if s.settler != nil {
		if _, settleErr := s.settler.Settle(ctx, completed); settleErr != nil {
			logger.WithField("request_id", id).WithField("error", settleErr.Error()).
				Error("расчёт по заявке не завершён, транзакция осталась pending")
		}
	}

	if s.feed != nil {
		s.feed.Removed(completed)
	}
	s.forgetTier(id)
	return completed, nil
}

// CancelRequest отменяет заявку. Отменить может продавец-владелец, назначенный
// сборщик или админ. Гонка с accept/complete решается тем же условным UPDATE.
func (s *RequestService) CancelRequest(ctx context.Context, id, actorID uuid.UUID, actorRole, reason string) (*models.PickupRequest, error) {
	if err := validation.ValidateCancelReason(reason); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, err
	}

	if !s.mayCancel(req, actorID, actorRole) {
		return nil, apperror.ErrForbidden
	}

	if _, ok := models.NextStatus(req.Status, models.EventCancel); !ok {
		return nil, apperror.ErrInvalidTransition
	}

	if err := s.requests.Cancel(ctx, id, reason); err != nil {
		if !errors.Is(err, repository.ErrRequestConflict) {
			return nil, err
		}
		// Заявка успела уйти в конечный статус.
		return nil, apperror.ErrInvalidTransition
	}

	cancelled, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.feed != nil {
		s.feed.Removed(cancelled)
	}
	s.forgetTier(id)
	return cancelled, nil
}

// AttachPhoto сохраняет путь к фотографии сырья на заявке продавца.
func (s *RequestService) AttachPhoto(ctx context.Context, id, sellerID uuid.UUID, path string) error {
	if err := s.requests.SetPhotoPath(ctx, id, sellerID, path); err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return apperror.ErrRequestNotFound
		}
		return err
	}
	return nil
}

// GetWorkerStats возвращает агрегаты по сборщику.
func (s *RequestService) GetWorkerStats(ctx context.Context, workerID uuid.UUID) (*models.WorkerStats, error) {
	return s.requests.GetWorkerStats(ctx, workerID)
}

// StartUrgencyRefresher запускает периодический пересчёт срочности открытых
// заявок: при смене уровня подписчикам уходит modified. Сама срочность нигде
// не хранится, тик нужен только для push-уведомления лент.
func (s *RequestService) StartUrgencyRefresher(ctx context.Context, period time.Duration) {
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
				s.refreshUrgency(ctx)
			}
		}
	})
}

// refreshBatchSize — размер страницы при обходе открытых заявок.
const refreshBatchSize = 200

func (s *RequestService) refreshUrgency(ctx context.Context) {
	// Обход постранично: лимит одной выборки не должен прятать хвост
	// открытых заявок от пересчёта.
	var requests []models.PickupRequest
	for offset := 0; ; offset += refreshBatchSize {
		page, err := s.requests.ListOpen(ctx, repository.ListOpenFilter{
			Limit:  refreshBatchSize,
			Offset: offset,
		})
		if err != nil {
			logger.WithField("error", err.Error()).Warn("не удалось пересчитать срочность открытых заявок")
			return
		}
		requests = append(requests, page...)
		if len(page) < refreshBatchSize {
			break
		}
	}

	now := s.now()
	seen := make(map[uuid.UUID]string, len(requests))
	for i := range requests {
		urgency.Apply(&requests[i], now)
		seen[requests[i].ID] = requests[i].UrgencyTier
	}

	s.tiersMu.Lock()
	var changed []models.PickupRequest
	for i := range requests {
		prev, ok := s.lastTiers[requests[i].ID]
		if ok && prev != requests[i].UrgencyTier {
			changed = append(changed, requests[i])
		}
	}
	s.lastTiers = seen
	s.tiersMu.Unlock()

	if s.feed != nil {
		for i := range changed {
			s.feed.Modified(&changed[i])
		}
	}
}

func (s *RequestService) forgetTier(id uuid.UUID) {
	s.tiersMu.Lock()
	delete(s.lastTiers, id)
	s.tiersMu.Unlock()
}

func (s *RequestService) applyUrgency(requests []models.PickupRequest) {
	now := s.now()
	for i := range requests {
		urgency.Apply(&requests[i], now)
	}
}

// explainCompleteConflict выясняет, почему условное завершение не сработало.
func (s *RequestService) explainCompleteConflict(ctx context.Context, id, workerID uuid.UUID) error {
	current, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return apperror.ErrRequestNotFound
		}
		return err
	}
	if current.Status == models.RequestStatusAccepted &&
		(current.WorkerID == nil || *current.WorkerID != workerID) {
		return apperror.ErrForbidden
	}
	return apperror.ErrInvalidTransition
}

func (s *RequestService) mayCancel(req *models.PickupRequest, actorID uuid.UUID, actorRole string) bool {
	if actorRole == models.RoleAdmin {
		return true
	}
	if req.SellerID == actorID {
		return true
	}
	return req.WorkerID != nil && *req.WorkerID == actorID
}
