package reaction

import (
	"net/http"
	"time"

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
	rooms := r.Group("/rooms/:id/reactions")
	{
		rooms.POST("", h.send)
		rooms.GET("", h.recent)
	}
}

type sendRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *Handler) send(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.Validation(err.Error()))
		return
	}

	reaction, err := h.service.SendReaction(c.Request.Context(), roomID, caller, req.Emoji)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusCreated, reaction)
}

func (h *Handler) recent(c *gin.Context) {
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	// Zero means "everything still visible"; the service clamps to its
	// window.
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			apperr.Render(c, apperr.Validation("since must be RFC3339"))
			return
		}
		since = parsed
	}

	reactions, err := h.service.RecentReactions(c.Request.Context(), roomID, since)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}
