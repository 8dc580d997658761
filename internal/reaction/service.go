package reaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/internal/room"
	"github.com/crowdqueue/crowdqueue/pkg/database"
	"github.com/crowdqueue/crowdqueue/pkg/events"
	"github.com/crowdqueue/crowdqueue/pkg/models"
	"github.com/crowdqueue/crowdqueue/pkg/scheduler"
)

const (
	// DefaultMinInterval is the minimum gap between one user's reactions in
	// a room.
	DefaultMinInterval = 2 * time.Second
	// DefaultTTL is how long a reaction lives before its scheduled deletion
	// fires. A few multiples of the rate-limit gap.
	DefaultTTL = 10 * time.Second

	maxEmojiLength = 16
)

// Service broadcasts short-lived emoji reactions. Each insert schedules its
// own deletion on the task scheduler, so the table is a rolling window with
// no sweep job.
type Service struct {
	db          *database.DB
	bus         events.Bus
	sched       *scheduler.Scheduler
	minInterval time.Duration
	ttl         time.Duration
}

func NewService(db *database.DB, bus events.Bus, sched *scheduler.Scheduler, minInterval, ttl time.Duration) *Service {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{db: db, bus: bus, sched: sched, minInterval: minInterval, ttl: ttl}
}

// SendReaction inserts a reaction unless the caller sent one too recently.
// The rate limit reads the caller's latest reaction still in the window; the
// window itself is maintained by the scheduled per-record deletions.
func (s *Service) SendReaction(ctx context.Context, roomID models.RoomID, userID models.UserID, emoji string) (*models.Reaction, error) {
	if emoji == "" || len(emoji) > maxEmojiLength {
		return nil, apperr.Validation("invalid emoji")
	}

	var reaction *models.Reaction
	err := s.db.Tx(func(tx *database.DB) error {
		if _, err := room.Load(tx, roomID); err != nil {
			return err
		}

		latest, err := tx.LatestReaction(roomID, userID)
		if err != nil {
			return err
		}
		if latest != nil && time.Since(latest.CreatedAt) < s.minInterval {
			return apperr.RateLimited("reacting too fast")
		}

		reaction = &models.Reaction{
			ID:        models.NewReactionID(),
			RoomID:    roomID,
			UserID:    userID,
			Emoji:     emoji,
			CreatedAt: time.Now().UTC(),
		}
		return tx.CreateReaction(reaction)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.scheduleExpiry(reaction.ID)
	s.publish(ctx, events.NewEvent(events.EventReactionSent, roomID, userID, reaction))

	return reaction, nil
}

// scheduleExpiry queues the deferred deletion of exactly this record.
func (s *Service) scheduleExpiry(id models.ReactionID) {
	if s.sched == nil {
		return
	}
	s.sched.Schedule(s.ttl, func() {
		if err := s.db.DeleteReaction(id); err != nil {
			slog.Warn("failed to expire reaction", "reaction_id", id, "err", err)
		}
	})
}

// Window is how long a reaction stays visible; clients use it to size their
// initial backfill.
func (s *Service) Window() time.Duration {
	return s.ttl
}

// RecentReactions returns the room's reactions created at or after since,
// clamped to the visibility window. The scheduled deletions are in-process
// only, so rows older than the TTL can survive a restart; the clamp keeps
// them out of every read regardless.
func (s *Service) RecentReactions(ctx context.Context, roomID models.RoomID, since time.Time) ([]*models.Reaction, error) {
	if floor := time.Now().UTC().Add(-s.ttl); since.Before(floor) {
		since = floor
	}
	rows, err := s.db.ListReactionsSince(roomID, since)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rows, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish reaction event", "type", event.Type, "room_id", event.RoomID, "err", err)
	}
}
