package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecodvor/scrap-backend/internal/dto"
	"github.com/ecodvor/scrap-backend/internal/http/handlers/common"
	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/service"
)

// RequestHandler предоставляет HTTP слой для заявок на вывоз.
type RequestHandler struct {
	requests *service.RequestService
}

// NewRequestHandler создаёт хэндлер.
func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create обрабатывает POST /requests. Доступно продавцу.
func (h *RequestHandler) Create(c *gin.Context) {
	sellerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreatePickupRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var scheduledAt *time.Time
	if req.ScheduledAt != nil {
		parsed, err := time.Parse(time.RFC3339, *req.ScheduledAt)
		if err != nil {
			common.RespondBadRequest(c, "scheduled_at должен быть в формате RFC3339")
			return
		}
		scheduledAt = &parsed
	}

	items := make([]models.RequestItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.RequestItem{
			WasteType: item.WasteType,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			UnitPrice: item.UnitPrice,
		})
	}

	created, err := h.requests.CreateRequest(c.Request.Context(), service.CreateRequestInput{
		SellerID:     sellerID,
		Address:      req.Address,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		PickupOption: req.PickupOption,
		ScheduledAt:  scheduledAt,
		Items:        items,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, created)
}

// ListOpen обрабатывает GET /requests/open?urgency=&search=&limit=&offset=.
// Лента открытых заявок для сборщиков, новые первыми.
func (h *RequestHandler) ListOpen(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	requests, err := h.requests.ListOpen(c.Request.Context(), service.ListOpenInput{
		Urgency: c.Query("urgency"),
		Search:  c.Query("search"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.RequestListResponse{
		Requests: requests,
		Total:    len(requests),
	})
}

// Get обрабатывает GET /requests/:id.
func (h *RequestHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	request, err := h.requests.GetRequest(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, request)
}

// ListMy обрабатывает GET /requests/my. Продавец видит свои заявки,
// сборщик — взятые им.
func (h *RequestHandler) ListMy(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var requests []models.PickupRequest
	if role == models.RoleWorker {
		requests, err = h.requests.ListWorkerRequests(c.Request.Context(), userID)
	} else {
		requests, err = h.requests.ListSellerRequests(c.Request.Context(), userID)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.RequestListResponse{
		Requests: requests,
		Total:    len(requests),
	})
}

// Accept обрабатывает POST /requests/:id/accept. Доступно сборщику.
// Гонку за заявку выигрывает ровно один: остальные получают 409
// с актуальной записью, где виден победитель.
func (h *RequestHandler) Accept(c *gin.Context) {
	workerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	request, acceptErr := h.requests.AcceptRequest(c.Request.Context(), id, workerID)
	if acceptErr != nil {
		// Проигравшему вместе с 409 отдаём текущее состояние заявки.
		if request != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "заявку уже забрал другой сборщик",
				"request": request,
			})
			return
		}
		_ = c.Error(acceptErr)
		return
	}

	common.RespondJSON(c, http.StatusOK, request)
}

// Complete обрабатывает POST /requests/:id/complete. Доступно назначенному
// сборщику после физического вывоза.
func (h *RequestHandler) Complete(c *gin.Context) {
	workerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CompletePickupRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	request, err := h.requests.CompleteRequest(c.Request.Context(), id, workerID, req.MeasuredWeight)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, request)
}

// Cancel обрабатывает POST /requests/:id/cancel.
func (h *RequestHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CancelPickupRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	request, err := h.requests.CancelRequest(c.Request.Context(), id, userID, role, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondJSON(c, http.StatusOK, request)
}
