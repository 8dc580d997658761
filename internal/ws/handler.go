package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/internal/auth"
	"github.com/crowdqueue/crowdqueue/internal/reaction"
	"github.com/crowdqueue/crowdqueue/internal/vote"
	"github.com/crowdqueue/crowdqueue/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the CORS layer in front
	},
}

// inbound message budget per socket; enough for heartbeats plus bursts of
// votes, tight enough that one client cannot flood a room.
const (
	inboundRPS   = 5
	inboundBurst = 10
)

// Handler upgrades sockets and runs the per-connection command loop. Pushes
// come from the Hub; commands go to the same services REST uses.
type Handler struct {
	hub       *Hub
	votes     *vote.Service
	reactions *reaction.Service
}

func NewHandler(hub *Hub, votes *vote.Service, reactions *reaction.Service) *Handler {
	return &Handler{hub: hub, votes: votes, reactions: reactions}
}

type command struct {
	Type   string `json:"type"`
	SongID string `json:"song_id,omitempty"`
	Value  int    `json:"value,omitempty"`
	Emoji  string `json:"emoji,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	roomID, err := models.ParseRoomID(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	userID, err := models.ParseUserID(auth.CallerID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade connection", "err", err)
		return
	}

	conn := &connection{id: userID.String() + ":" + uuid.NewString(), ws: sock}
	h.hub.register(roomID, conn)
	defer h.hub.unregister(roomID, conn)

	h.sendHello(c, conn, roomID)

	limiter := rate.NewLimiter(rate.Limit(inboundRPS), inboundBurst)
	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "conn_id", conn.id, "err", err)
			}
			return
		}
		if !limiter.Allow() {
			h.sendError(conn, apperr.RateLimited("slow down"))
			continue
		}

		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			h.sendError(conn, apperr.Validation("malformed message"))
			continue
		}
		h.handleCommand(c, conn, roomID, userID, cmd)
	}
}

func (h *Handler) handleCommand(c *gin.Context, conn *connection, roomID models.RoomID, userID models.UserID, cmd command) {
	ctx := c.Request.Context()

	switch cmd.Type {
	case "vote":
		songID, err := models.ParseSongID(cmd.SongID)
		if err != nil {
			h.sendError(conn, apperr.Validation("invalid song id"))
			return
		}
		if _, err := h.votes.CastVote(ctx, roomID, songID, userID, cmd.Value); err != nil {
			h.sendError(conn, err)
		}
	case "heartbeat":
		if err := h.hub.presence.Heartbeat(ctx, roomID, userID, cmd.Name); err != nil {
			h.sendError(conn, err)
		}
	case "reaction":
		if _, err := h.reactions.SendReaction(ctx, roomID, userID, cmd.Emoji); err != nil {
			h.sendError(conn, err)
		}
	default:
		h.sendError(conn, apperr.Validationf("unknown command %q", cmd.Type))
	}
}

// sendHello pushes the initial snapshot so a fresh subscriber renders
// without waiting for the first invalidation.
func (h *Handler) sendHello(c *gin.Context, conn *connection, roomID models.RoomID) {
	ctx := c.Request.Context()

	snapshot, err := h.hub.queues.ListQueue(ctx, roomID)
	if err != nil {
		h.sendError(conn, err)
		return
	}
	roster, err := h.hub.presence.List(ctx, roomID)
	if err != nil {
		h.sendError(conn, err)
		return
	}
	reactions, err := h.reactions.RecentReactions(ctx, roomID, time.Now().UTC().Add(-h.reactions.Window()))
	if err != nil {
		h.sendError(conn, err)
		return
	}

	h.send(conn, outbound{Type: "hello", Data: gin.H{
		"queue":        snapshot,
		"presence":     roster,
		"reactions":    reactions,
		"heartbeat_ms": h.hub.presence.HeartbeatEvery().Milliseconds(),
	}})
}

func (h *Handler) send(conn *connection, msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := conn.write(data); err != nil {
		slog.Warn("failed to write to socket", "conn_id", conn.id, "err", err)
	}
}

func (h *Handler) sendError(conn *connection, err error) {
	h.send(conn, outbound{Type: "error", Data: gin.H{"message": err.Error()}})
}
