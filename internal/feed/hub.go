package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/urgency"
)

// Action обозначает вид события ленты.
type Action string

const (
	ActionSnapshot Action = "snapshot"
	ActionAdded    Action = "added"
	ActionModified Action = "modified"
	ActionRemoved  Action = "removed"
)

// Event — одно событие ленты открытых заявок.
// Для snapshot заполняется Requests, для диффов — ID и Request.
type Event struct {
	Action   Action                 `json:"action"`
	ID       uuid.UUID              `json:"id,omitempty"`
	Request  *models.PickupRequest  `json:"request,omitempty"`
	Requests []models.PickupRequest `json:"requests,omitempty"`
}

// Filter ограничивает ленту подписчика.
type Filter struct {
	Urgency string
	Search  string
}

// Matches проверяет заявку против фильтра. Срочность сравнивается по
// вычисленному на момент вызова уровню.
func (f Filter) Matches(req *models.PickupRequest, now time.Time) bool {
	if f.Urgency != "" && urgency.Classify(req.PickupOption, req.ScheduledAt, now) != f.Urgency {
		return false
	}
	if f.Search == "" {
		return true
	}

	needle := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(req.SellerName), needle) ||
		strings.Contains(strings.ToLower(req.Address), needle) {
		return true
	}
	for _, item := range req.Items {
		if strings.Contains(strings.ToLower(item.WasteType), needle) {
			return true
		}
	}
	return false
}

// SnapshotFunc возвращает текущий срез открытых заявок для нового подписчика,
// новые первыми.
type SnapshotFunc func(ctx context.Context, filter Filter) ([]models.PickupRequest, error)

type subscription struct {
	ch     chan Event
	filter Filter
}

// Hub раздаёт события ленты подписанным сборщикам.
// Подписка — явный per-caller объект с каналом и функцией отписки, а не
// глобальное состояние процесса.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscription]struct{}
	snapshot SnapshotFunc
}

// NewHub создаёт новый хаб ленты.
func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		subs:     make(map[*subscription]struct{}),
		snapshot: snapshot,
	}
}

// Subscribe регистрирует подписчика и сразу кладёт в канал полный снимок
// открытых заявок. После переподключения клиент получает снимок заново,
// поэтому пропущенные диффы не теряются.
//
// Снимок читается и кладётся в канал под той же блокировкой, что и
// регистрация: событие, опубликованное во время чтения снимка, дождётся
// блокировки и придёт диффом после снимка. Щель, в которой дифф терялся бы
// навсегда, здесь невозможна.
func (h *Hub) Subscribe(ctx context.Context, filter Filter) (<-chan Event, func(), error) {
	sub := &subscription{
		ch:     make(chan Event, 64),
		filter: filter,
	}

	h.mu.Lock()
	if h.snapshot != nil {
		requests, err := h.snapshot(ctx, filter)
		if err != nil {
			h.mu.Unlock()
			return nil, nil, err
		}
		sub.ch <- Event{Action: ActionSnapshot, Requests: requests}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.drop(sub)
	}
	return sub.ch, unsubscribe, nil
}

// Added объявляет новую открытую заявку.
func (h *Hub) Added(req *models.PickupRequest) {
	h.publish(Event{Action: ActionAdded, ID: req.ID, Request: req}, req, false)
}

// Modified объявляет изменение открытой заявки (в том числе смену срочности).
func (h *Hub) Modified(req *models.PickupRequest) {
	h.publish(Event{Action: ActionModified, ID: req.ID, Request: req}, req, false)
}

// Removed убирает заявку из лент: её приняли, завершили или отменили.
// Доставляется всем подписчикам независимо от фильтра, иначе заявка зависнет
// в чужой ленте.
func (h *Hub) Removed(req *models.PickupRequest) {
	h.publish(Event{Action: ActionRemoved, ID: req.ID, Request: req}, req, true)
}

// SubscriberCount возвращает число активных подписок.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) publish(event Event, req *models.PickupRequest, ignoreFilter bool) {
	now := time.Now()

	h.mu.RLock()
	var stale []*subscription
	for sub := range h.subs {
		if !ignoreFilter && !sub.filter.Matches(req, now) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Подписчик не успевает читать: отцепляем, при переподключении
			// он получит свежий снимок.
			stale = append(stale, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range stale {
		h.drop(sub)
	}
}

// drop снимает подписку и закрывает канал ровно один раз: закрытие происходит
// под полной блокировкой, когда рассылка уже не держит канал.
func (h *Hub) drop(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
