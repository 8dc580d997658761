package presence

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/internal/room"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms/:id/presence")
	{
		rooms.POST("", h.heartbeat)
		rooms.DELETE("", h.leave)
		rooms.GET("", h.list)
	}
}

type heartbeatRequest struct {
	Name string `json:"name"`
}

func (h *Handler) heartbeat(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	var req heartbeatRequest
	_ = c.ShouldBindJSON(&req) // name is optional

	if err := h.service.Heartbeat(c.Request.Context(), roomID, caller, req.Name); err != nil {
		apperr.Render(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) leave(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	if err := h.service.Leave(c.Request.Context(), roomID, caller); err != nil {
		apperr.Render(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) list(c *gin.Context) {
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	roster, err := h.service.List(c.Request.Context(), roomID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}
