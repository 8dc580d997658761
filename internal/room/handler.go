package room

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/internal/auth"
	"github.com/crowdqueue/crowdqueue/pkg/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.POST("", h.createRoom)
		rooms.GET("/code/:code", h.getRoomByCode)
		rooms.GET("/:id", h.getRoom)
		rooms.PATCH("/:id/settings", h.updateSettings)
		rooms.POST("/:id/transfer-host", h.transferHost)
		rooms.POST("/:id/pause", h.togglePause)
		rooms.DELETE("/:id", h.destroyRoom)
	}
}

// Caller extracts the authenticated caller as a typed UserID.
func Caller(c *gin.Context) (models.UserID, bool) {
	id, err := models.ParseUserID(auth.CallerID(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return models.UserID{}, false
	}
	return id, true
}

// RoomID parses the :id path param.
func RoomID(c *gin.Context) (models.RoomID, bool) {
	id, err := models.ParseRoomID(c.Param("id"))
	if err != nil {
		apperr.Render(c, apperr.Validation("invalid room id"))
		return models.RoomID{}, false
	}
	return id, true
}

type createRoomRequest struct {
	Name     string               `json:"name" binding:"required"`
	Code     string               `json:"code"`
	Settings *models.RoomSettings `json:"settings"`
}

func (h *Handler) createRoom(c *gin.Context) {
	caller, ok := Caller(c)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.Validation(err.Error()))
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), req.Name, caller, req.Code, req.Settings)
	if err != nil {
		apperr.Render(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *Handler) getRoom(c *gin.Context) {
	roomID, ok := RoomID(c)
	if !ok {
		return
	}

	room, err := h.service.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) getRoomByCode(c *gin.Context) {
	room, err := h.service.GetRoomByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		apperr.Render(c, err)
		return
	}
	if room == nil {
		apperr.Render(c, apperr.NotFound("room not found"))
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) updateSettings(c *gin.Context) {
	caller, ok := Caller(c)
	if !ok {
		return
	}
	roomID, ok := RoomID(c)
	if !ok {
		return
	}

	var patch SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		apperr.Render(c, apperr.Validation(err.Error()))
		return
	}

	room, err := h.service.UpdateSettings(c.Request.Context(), roomID, caller, patch)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type transferHostRequest struct {
	NewHostID string `json:"new_host_id" binding:"required"`
}

func (h *Handler) transferHost(c *gin.Context) {
	caller, ok := Caller(c)
	if !ok {
		return
	}
	roomID, ok := RoomID(c)
	if !ok {
		return
	}

	var req transferHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.Validation(err.Error()))
		return
	}
	newHost, err := models.ParseUserID(req.NewHostID)
	if err != nil {
		apperr.Render(c, apperr.Validation("invalid new host id"))
		return
	}

	room, serr := h.service.TransferHost(c.Request.Context(), roomID, caller, newHost)
	if serr != nil {
		apperr.Render(c, serr)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) togglePause(c *gin.Context) {
	caller, ok := Caller(c)
	if !ok {
		return
	}
	roomID, ok := RoomID(c)
	if !ok {
		return
	}

	room, err := h.service.TogglePause(c.Request.Context(), roomID, caller)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) destroyRoom(c *gin.Context) {
	caller, ok := Caller(c)
	if !ok {
		return
	}
	roomID, ok := RoomID(c)
	if !ok {
		return
	}

	if err := h.service.DestroyRoom(c.Request.Context(), roomID, caller); err != nil {
		apperr.Render(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
