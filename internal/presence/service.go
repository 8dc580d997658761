package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/internal/room"
	"github.com/crowdqueue/crowdqueue/pkg/database"
	"github.com/crowdqueue/crowdqueue/pkg/events"
	"github.com/crowdqueue/crowdqueue/pkg/models"
)

// DefaultWindow is the liveness window: several heartbeat intervals, so one
// missed beat does not flip a viewer to away.
const DefaultWindow = 45 * time.Second

// DefaultHeartbeat is the cadence clients are told to beat at.
const DefaultHeartbeat = 15 * time.Second

// Service tracks who is looking at a room. Liveness is derived at read time
// from the last heartbeat; there is no background sweep, a crashed client
// just ages out of the window.
type Service struct {
	db        *database.DB
	bus       events.Bus
	window    time.Duration
	heartbeat time.Duration
}

func NewService(db *database.DB, bus events.Bus, window, heartbeat time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Service{db: db, bus: bus, window: window, heartbeat: heartbeat}
}

// HeartbeatEvery is the cadence advertised to clients. Beating slower risks
// aging out of the liveness window.
func (s *Service) HeartbeatEvery() time.Duration {
	return s.heartbeat
}

// Heartbeat refreshes the caller's presence marker, creating it on first
// sight. The room is loaded in the same transaction so a beat against a
// destroyed room is rejected instead of leaving an orphan marker.
func (s *Service) Heartbeat(ctx context.Context, roomID models.RoomID, userID models.UserID, userName string) error {
	err := s.db.Tx(func(tx *database.DB) error {
		if _, err := room.Load(tx, roomID); err != nil {
			return err
		}
		return tx.UpsertPresence(&models.Presence{
			RoomID:    roomID,
			UserID:    userID,
			UserName:  userName,
			UpdatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventPresenceUpdated, roomID, userID, nil))
	return nil
}

// Leave drops the caller's marker immediately. Best effort; a client closing
// its tab may never get to call it.
func (s *Service) Leave(ctx context.Context, roomID models.RoomID, userID models.UserID) error {
	if err := s.db.DeletePresence(roomID, userID); err != nil {
		return apperr.Internal(err)
	}

	s.publish(ctx, events.NewEvent(events.EventPresenceUpdated, roomID, userID, nil))
	return nil
}

// Participant is one live viewer.
type Participant struct {
	UserID   models.UserID `json:"user_id"`
	UserName string        `json:"user_name,omitempty"`
}

// Roster is the windowed presence view for a room.
type Roster struct {
	Count        int           `json:"count"`
	Participants []Participant `json:"participants"`
}

// List counts the markers refreshed within the liveness window. Stale rows
// are filtered, not deleted.
func (s *Service) List(ctx context.Context, roomID models.RoomID) (*Roster, error) {
	cutoff := time.Now().UTC().Add(-s.window)
	rows, err := s.db.ListPresenceSince(roomID, cutoff)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	roster := &Roster{Count: len(rows), Participants: make([]Participant, 0, len(rows))}
	for _, p := range rows {
		roster.Participants = append(roster.Participants, Participant{UserID: p.UserID, UserName: p.UserName})
	}
	return roster, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish presence event", "type", event.Type, "room_id", event.RoomID, "err", err)
	}
}
