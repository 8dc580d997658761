package queue

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/internal/room"
	"github.com/crowdqueue/crowdqueue/pkg/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms/:id")
	{
		rooms.POST("/queue", h.addSong)
		rooms.GET("/queue", h.listQueue)
		rooms.DELETE("/queue/:songId", h.removeSong)
		rooms.POST("/queue/:songId/reorder", h.reorderSong)
		rooms.POST("/queue/:songId/score", h.adminSetScore)
		rooms.POST("/advance", h.advanceSong)
	}
}

func songID(c *gin.Context) (models.SongID, bool) {
	id, err := models.ParseSongID(c.Param("songId"))
	if err != nil {
		apperr.Render(c, apperr.Validation("invalid song id"))
		return models.SongID{}, false
	}
	return id, true
}

type addSongRequest struct {
	Provider    string `json:"provider" binding:"required"`
	ProviderID  string `json:"provider_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Artist      string `json:"artist"`
	AlbumArtURL string `json:"album_art_url"`
	DurationMs  int    `json:"duration_ms"`
	AddedByName string `json:"added_by_name"`
}

func (h *Handler) addSong(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	var req addSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.Validation(err.Error()))
		return
	}

	song, err := h.service.AddSong(c.Request.Context(), roomID, caller, req.AddedByName, AddSongInput{
		Provider:    req.Provider,
		ProviderID:  req.ProviderID,
		Title:       req.Title,
		Artist:      req.Artist,
		AlbumArtURL: req.AlbumArtURL,
		DurationMs:  req.DurationMs,
	})
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusCreated, song)
}

func (h *Handler) listQueue(c *gin.Context) {
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	snapshot, err := h.service.ListQueue(c.Request.Context(), roomID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) removeSong(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	id, ok := songID(c)
	if !ok {
		return
	}

	if err := h.service.RemoveSong(c.Request.Context(), id, caller); err != nil {
		apperr.Render(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reorderRequest struct {
	TargetIndex *int `json:"target_index" binding:"required"`
}

func (h *Handler) reorderSong(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}
	id, ok := songID(c)
	if !ok {
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.Validation(err.Error()))
		return
	}

	song, err := h.service.ReorderSong(c.Request.Context(), roomID, id, caller, *req.TargetIndex)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

type setScoreRequest struct {
	Score *int `json:"score" binding:"required"`
}

func (h *Handler) adminSetScore(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}
	id, ok := songID(c)
	if !ok {
		return
	}

	var req setScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.Validation(err.Error()))
		return
	}

	song, err := h.service.AdminSetScore(c.Request.Context(), roomID, id, caller, *req.Score)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}

func (h *Handler) advanceSong(c *gin.Context) {
	// Any authenticated participant may advance; the host playback client is
	// just the usual caller.
	if _, ok := room.Caller(c); !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	updated, err := h.service.AdvanceSong(c.Request.Context(), roomID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_song_id": updated.CurrentSongID})
}
