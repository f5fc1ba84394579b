package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ecodvor/scrap-backend/internal/feed"
	"github.com/ecodvor/scrap-backend/internal/service"
	"github.com/ecodvor/scrap-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений к ленте заявок.
type WSHandler struct {
	hub          *feed.Hub
	tokenManager *service.TokenManager
	upgrader     websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *feed.Hub, tokens *service.TokenManager) *WSHandler {
	return &WSHandler{
		hub:          hub,
		tokenManager: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обслуживает GET /api/ws?token=...&urgency=&search=
// Первым событием подписчик получает полный снимок открытых заявок,
// дальше идут диффы added/modified/removed.
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access токен обязателен"})
		return
	}

	userID, _, err := h.tokenManager.ParseAccess(rawToken)
	if err != nil || userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "невалидный access токен"})
		return
	}

	filter := feed.Filter{
		Urgency: c.Query("urgency"),
		Search:  c.Query("search"),
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	events, unsubscribe, err := h.hub.Subscribe(c.Request.Context(), filter)
	if err != nil {
		conn.Close()
		return
	}

	client := ws.NewClient(conn, events, unsubscribe)
	client.Run(c.Request.Context())
}
