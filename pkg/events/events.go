// Package events carries room-scoped change notifications. Every successful
// mutation publishes one; the websocket hub treats them as invalidations and
// recomputes the live views they affect.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crowdqueue/crowdqueue/pkg/models"
)

type EventType string

const (
	// EventQueueUpdated fires for any song/score/current-pointer change.
	EventQueueUpdated EventType = "queue_updated"
	// EventRoomUpdated fires for settings, host, and pause changes.
	EventRoomUpdated EventType = "room_updated"
	// EventRoomDestroyed tells subscribers the room is gone.
	EventRoomDestroyed EventType = "room_destroyed"
	EventPresenceUpdated EventType = "presence_updated"
	EventReactionSent    EventType = "reaction_sent"
)

type Event struct {
	Type      EventType       `json:"type"`
	RoomID    models.RoomID   `json:"room_id"`
	UserID    models.UserID   `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Bus is the publish side services depend on. KafkaBus implements it for
// production; MemoryBus for tests and single-process runs.
type Bus interface {
	Publish(ctx context.Context, event Event) error
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, roomID models.RoomID, userID models.UserID, payload any) Event {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	return Event{Type: t, RoomID: roomID, UserID: userID, Timestamp: time.Now().UTC(), Payload: raw}
}

// Stream is the consume side: a blocking feed of every published event.
type Stream interface {
	Consume(ctx context.Context, handler func(Event) error) error
}
