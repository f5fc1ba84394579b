package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecodvor/scrap-backend/internal/http/handlers/common"
	"github.com/ecodvor/scrap-backend/internal/service"
)

// StatsHandler отвечает за статистику сборщика.
type StatsHandler struct {
	requests *service.RequestService
}

// NewStatsHandler создаёт экземпляр.
func NewStatsHandler(requests *service.RequestService) *StatsHandler {
	return &StatsHandler{requests: requests}
}

// GetMyStats возвращает агрегаты текущего сборщика: открытые заявки в системе,
// взятые им, завершённые за сегодня и за всё время, заработок и процент
// доведённых до конца.
func (h *StatsHandler) GetMyStats(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	stats, err := h.requests.GetWorkerStats(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, stats)
}
