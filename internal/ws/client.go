package ws

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ecodvor/scrap-backend/internal/feed"
	"github.com/ecodvor/scrap-backend/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client представляет одно подключение WebSocket к ленте заявок.
// Каждое подключение владеет своей подпиской: первым событием приходит
// полный снимок, дальше идут диффы. Если подписка сброшена как медленная,
// соединение закрывается и клиент переподключается за свежим снимком.
type Client struct {
	conn        *websocket.Conn
	events      <-chan feed.Event
	unsubscribe func()
}

// NewClient создаёт нового клиента поверх готовой подписки.
func NewClient(conn *websocket.Conn, events <-chan feed.Event, unsubscribe func()) *Client {
	return &Client{
		conn:        conn,
		events:      events,
		unsubscribe: unsubscribe,
	}
}

// Run запускает обработку входящих и исходящих сообщений.
func (c *Client) Run(ctx context.Context) {
	go c.writePumpSafe(ctx)
	c.readPump(ctx)
}

// writePumpSafe запускает writePump с обработкой panic
func (c *Client) writePumpSafe(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).WithField("stack", string(debug.Stack())).
				Error("WebSocket writePump panic recovered")
			c.Close()
		}
	}()
	c.writePump(ctx)
}

// Close снимает подписку и закрывает соединение.
func (c *Client) Close() {
	c.unsubscribe()
	c.conn.Close()
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).WithField("stack", string(debug.Stack())).
				Error("WebSocket readPump panic recovered")
		}
		c.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Клиент только получает события, входящие сообщения не обрабатываем.
			if _, _, err := c.conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Подписка сброшена: соединение не успевало вычитывать события.
				// Закрываемся, переподключение принесёт свежий снимок.
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed backlog dropped"),
					time.Now().Add(writeWait))
				return
			}

			message, err := json.Marshal(event)
			if err != nil {
				logger.WithField("error", err.Error()).Error("не удалось сериализовать событие ленты")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
