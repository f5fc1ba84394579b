package feed

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodvor/scrap-backend/internal/models"
)

func openRequest(seller, address, wasteType string) *models.PickupRequest {
	return &models.PickupRequest{
		ID:           uuid.New(),
		SellerName:   seller,
		Address:      address,
		PickupOption: models.PickupOptionInstant,
		Status:       models.RequestStatusPending,
		Items: []models.RequestItem{
			{WasteType: wasteType, Quantity: 5, Unit: models.UnitKg, UnitPrice: 10},
		},
	}
}

func snapshotOf(requests ...models.PickupRequest) SnapshotFunc {
	return func(ctx context.Context, filter Filter) ([]models.PickupRequest, error) {
		return requests, nil
	}
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "канал закрыт")
		return ev
	case <-time.After(time.Second):
		t.Fatal("событие не пришло")
		return Event{}
	}
}

func TestHub_SnapshotOnSubscribe(t *testing.T) {
	existing := *openRequest("Иван", "ул. Ленина 1", "plastic")
	hub := NewHub(snapshotOf(existing))

	ch, unsubscribe, err := hub.Subscribe(context.Background(), Filter{})
	require.NoError(t, err)
	defer unsubscribe()

	ev := recv(t, ch)
	assert.Equal(t, ActionSnapshot, ev.Action)
	require.Len(t, ev.Requests, 1)
	assert.Equal(t, existing.ID, ev.Requests[0].ID)
}

// Событие, опубликованное во время чтения снимка, не должно потеряться:
// подписчик обязан получить removed диффом после снимка, иначе принятая
// заявка навсегда зависнет в его ленте как открытая.
func TestHub_NoGapBetweenSnapshotAndSubscription(t *testing.T) {
	req := *openRequest("Иван", "ул. Ленина 1", "plastic")

	snapshotStarted := make(chan struct{})
	releaseSnapshot := make(chan struct{})
	hub := NewHub(func(ctx context.Context, filter Filter) ([]models.PickupRequest, error) {
		close(snapshotStarted)
		<-releaseSnapshot
		return []models.PickupRequest{req}, nil
	})

	type subResult struct {
		ch          <-chan Event
		unsubscribe func()
		err         error
	}
	subscribed := make(chan subResult, 1)
	go func() {
		ch, unsubscribe, err := hub.Subscribe(context.Background(), Filter{})
		subscribed <- subResult{ch, unsubscribe, err}
	}()

	<-snapshotStarted

	// Заявку приняли, пока снимок ещё читается.
	removedDone := make(chan struct{})
	go func() {
		accepted := req
		accepted.Status = models.RequestStatusAccepted
		hub.Removed(&accepted)
		close(removedDone)
	}()

	close(releaseSnapshot)

	res := <-subscribed
	require.NoError(t, res.err)
	defer res.unsubscribe()
	<-removedDone

	ev := recv(t, res.ch)
	require.Equal(t, ActionSnapshot, ev.Action)

	ev = recv(t, res.ch)
	assert.Equal(t, ActionRemoved, ev.Action)
	assert.Equal(t, req.ID, ev.ID)
}

func TestHub_DiffEvents(t *testing.T) {
	hub := NewHub(snapshotOf())

	ch, unsubscribe, err := hub.Subscribe(context.Background(), Filter{})
	require.NoError(t, err)
	defer unsubscribe()
	recv(t, ch) // пустой снимок

	req := openRequest("Иван", "ул. Ленина 1", "plastic")
	hub.Added(req)
	ev := recv(t, ch)
	assert.Equal(t, ActionAdded, ev.Action)
	assert.Equal(t, req.ID, ev.ID)

	req.Status = models.RequestStatusAccepted
	hub.Removed(req)
	ev = recv(t, ch)
	// конечное событие по id — последнее наблюдаемое
	assert.Equal(t, ActionRemoved, ev.Action)
	assert.Equal(t, req.ID, ev.ID)
}

func TestHub_FilterBySearch(t *testing.T) {
	hub := NewHub(snapshotOf())

	ch, unsubscribe, err := hub.Subscribe(context.Background(), Filter{Search: "картон"})
	require.NoError(t, err)
	defer unsubscribe()
	recv(t, ch)

	hub.Added(openRequest("Иван", "ул. Ленина 1", "пластик"))
	matching := openRequest("Пётр", "ул. Мира 5", "Картон")
	hub.Added(matching)

	ev := recv(t, ch)
	assert.Equal(t, matching.ID, ev.ID, "фильтр должен пропустить только картон")
}

func TestHub_RemovedIgnoresFilter(t *testing.T) {
	hub := NewHub(snapshotOf())

	ch, unsubscribe, err := hub.Subscribe(context.Background(), Filter{Search: "стекло"})
	require.NoError(t, err)
	defer unsubscribe()
	recv(t, ch)

	req := openRequest("Иван", "ул. Ленина 1", "пластик")
	hub.Removed(req)

	ev := recv(t, ch)
	assert.Equal(t, ActionRemoved, ev.Action)
}

func TestHub_FilterByUrgency(t *testing.T) {
	hub := NewHub(snapshotOf())

	ch, unsubscribe, err := hub.Subscribe(context.Background(), Filter{Urgency: models.UrgencyHigh})
	require.NoError(t, err)
	defer unsubscribe()
	recv(t, ch)

	slow := openRequest("Иван", "ул. Ленина 1", "пластик")
	slow.PickupOption = models.PickupOptionDaily
	hub.Added(slow)

	fast := openRequest("Пётр", "ул. Мира 5", "металл")
	hub.Added(fast)

	ev := recv(t, ch)
	assert.Equal(t, fast.ID, ev.ID)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(snapshotOf())

	ch, unsubscribe, err := hub.Subscribe(context.Background(), Filter{})
	require.NoError(t, err)
	recv(t, ch)

	unsubscribe()
	unsubscribe() // повторная отписка безопасна

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, hub.SubscriberCount())
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub := NewHub(snapshotOf())

	ch, unsubscribe, err := hub.Subscribe(context.Background(), Filter{})
	require.NoError(t, err)
	defer unsubscribe()

	// Никто не читает: буфер переполняется, подписка снимается.
	for i := 0; i < 200; i++ {
		hub.Added(openRequest("Иван", "ул. Ленина 1", "пластик"))
	}
	assert.Zero(t, hub.SubscriberCount())

	// Канал закрыт после дренажа буфера.
	for range ch {
	}
}
