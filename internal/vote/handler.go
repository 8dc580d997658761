package vote

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
		rooms.POST("/vote", h.castVote)
		rooms.GET("/votes", h.listVotes)
	}
}

type castVoteRequest struct {
	SongID string `json:"song_id" binding:"required"`
	Value  *int   `json:"value" binding:"required"`
}

func (h *Handler) castVote(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, apperr.Validation(err.Error()))
		return
	}
	songID, err := models.ParseSongID(req.SongID)
	if err != nil {
		apperr.Render(c, apperr.Validation("invalid song id"))
		return
	}

	score, serr := h.service.CastVote(c.Request.Context(), roomID, songID, caller, *req.Value)
	if serr != nil {
		apperr.Render(c, serr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"song_id": songID, "score": score})
}

func (h *Handler) listVotes(c *gin.Context) {
	caller, ok := room.Caller(c)
	if !ok {
		return
	}
	roomID, ok := room.RoomID(c)
	if !ok {
		return
	}

	votes, err := h.service.ListVotesForUser(c.Request.Context(), roomID, caller)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}
