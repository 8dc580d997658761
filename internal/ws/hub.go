package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/crowdqueue/crowdqueue/internal/presence"
	"github.com/crowdqueue/crowdqueue/internal/queue"
	"github.com/crowdqueue/crowdqueue/pkg/events"
	"github.com/crowdqueue/crowdqueue/pkg/models"
)

// Hub turns the change-event feed into live views: each event invalidates a
// read model, the hub recomputes a fresh snapshot and pushes it to every
// socket registered to that room. Clients never poll the queue; they get a
// new snapshot whenever any record it depends on changes.
type Hub struct {
	queues   *queue.Service
	presence *presence.Service

	mu    sync.RWMutex
	rooms map[models.RoomID]map[string]*connection
}

func NewHub(queues *queue.Service, pres *presence.Service) *Hub {
	return &Hub{
		queues:   queues,
		presence: pres,
		rooms:    make(map[models.RoomID]map[string]*connection),
	}
}

// Run consumes the event stream until ctx is canceled. It is the only
// consumer; fan-out to sockets happens here.
func (h *Hub) Run(ctx context.Context, stream events.Stream) {
	err := stream.Consume(ctx, func(event events.Event) error {
		h.dispatch(ctx, event)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("event stream terminated", "err", err)
	}
}

func (h *Hub) dispatch(ctx context.Context, event events.Event) {
	if !h.hasSubscribers(event.RoomID) {
		return
	}

	switch event.Type {
	case events.EventQueueUpdated, events.EventRoomUpdated:
		snapshot, err := h.queues.ListQueue(ctx, event.RoomID)
		if err != nil {
			slog.Warn("failed to recompute queue view", "room_id", event.RoomID, "err", err)
			return
		}
		h.broadcast(event.RoomID, outbound{Type: "queue", Data: snapshot})
	case events.EventPresenceUpdated:
		roster, err := h.presence.List(ctx, event.RoomID)
		if err != nil {
			slog.Warn("failed to recompute presence view", "room_id", event.RoomID, "err", err)
			return
		}
		h.broadcast(event.RoomID, outbound{Type: "presence", Data: roster})
	case events.EventReactionSent:
		h.broadcast(event.RoomID, outbound{Type: "reaction", Data: event.Payload})
	case events.EventRoomDestroyed:
		h.broadcast(event.RoomID, outbound{Type: "room_destroyed"})
		h.closeRoom(event.RoomID)
	}
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func (h *Hub) hasSubscribers(roomID models.RoomID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID]) > 0
}

func (h *Hub) register(roomID models.RoomID, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*connection)
	}
	h.rooms[roomID][conn.id] = conn
}

func (h *Hub) unregister(roomID models.RoomID, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[roomID]; ok {
		if _, ok := room[conn.id]; ok {
			delete(room, conn.id)
			conn.close()
		}
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) broadcast(roomID models.RoomID, msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("failed to marshal push message", "err", err)
		return
	}

	h.mu.RLock()
	conns := make([]*connection, 0, len(h.rooms[roomID]))
	for _, conn := range h.rooms[roomID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.write(data); err != nil {
			slog.Warn("failed to push to socket", "conn_id", conn.id, "err", err)
		}
	}
}

func (h *Hub) closeRoom(roomID models.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.rooms[roomID] {
		conn.close()
	}
	delete(h.rooms, roomID)
}

// connection serializes writes to one socket.
type connection struct {
	id   string
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

func (c *connection) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *connection) close() {
	c.once.Do(func() { c.ws.Close() })
}
