package vote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/internal/room"
	"github.com/crowdqueue/crowdqueue/pkg/database"
	"github.com/crowdqueue/crowdqueue/pkg/events"
	"github.com/crowdqueue/crowdqueue/pkg/models"
)

// Service applies votes and keeps each song's score equal to the sum of its
// active vote values. Every cast runs as one transaction: the delta against
// the caller's existing vote and the score update commit together or not at
// all.
type Service struct {
	db  *database.DB
	bus events.Bus
}

func NewService(db *database.DB, bus events.Bus) *Service {
	return &Service{db: db, bus: bus}
}

// CastVote records the caller's opinion on a song: 1, -1, or 0 to withdraw.
// A zero vote deletes the record; re-casting the same value is a no-op.
// Returns the song's new score.
func (s *Service) CastVote(ctx context.Context, roomID models.RoomID, songID models.SongID, caller models.UserID, value int) (int, error) {
	if value != -1 && value != 0 && value != 1 {
		return 0, apperr.Validation("vote value must be -1, 0, or 1")
	}

	var newScore int
	err := s.db.Tx(func(tx *database.DB) error {
		rm, err := room.Load(tx, roomID)
		if err != nil {
			return err
		}
		if value == -1 && !rm.Settings.AllowDownvotes && rm.HostUserID != caller {
			return apperr.PolicyViolation("downvotes are disabled in this room")
		}

		song, err := tx.GetSongByID(songID)
		if errors.Is(err, database.ErrNotFound) {
			return apperr.NotFound("song not found")
		}
		if err != nil {
			return err
		}
		if song.RoomID != roomID {
			return apperr.NotFound("song not found in this room")
		}

		existing, err := tx.GetVote(songID, caller)
		if err != nil {
			return err
		}

		delta, err := applyVote(tx, rm.ID, song, caller, existing, value)
		if err != nil {
			return err
		}

		if delta != 0 {
			song.Score += delta
			song.LastScoreUpdatedAt = time.Now().UTC()
			if err := tx.SaveSong(song); err != nil {
				return err
			}
		}
		newScore = song.Score
		return nil
	})
	if err != nil {
		return 0, apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventQueueUpdated, roomID, caller, nil))
	return newScore, nil
}

// applyVote mutates the vote record and returns the score delta.
//
//	no vote, value 0     -> nothing,      delta 0
//	no vote, value != 0  -> insert,       delta value
//	vote,    value 0     -> delete,       delta -old
//	vote,    value == old-> nothing,      delta 0
//	vote,    value != old-> update,       delta value-old
func applyVote(tx *database.DB, roomID models.RoomID, song *models.Song, caller models.UserID, existing *models.Vote, value int) (int, error) {
	if existing == nil {
		if value == 0 {
			return 0, nil
		}
		now := time.Now().UTC()
		vote := &models.Vote{
			ID:        models.NewVoteID(),
			RoomID:    roomID,
			SongID:    song.ID,
			UserID:    caller,
			Value:     value,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateVote(vote); err != nil {
			return 0, err
		}
		return value, nil
	}

	if value == 0 {
		if err := tx.DeleteVote(existing.ID); err != nil {
			return 0, err
		}
		return -existing.Value, nil
	}
	if value == existing.Value {
		return 0, nil
	}

	delta := value - existing.Value
	existing.Value = value
	existing.UpdatedAt = time.Now().UTC()
	if err := tx.SaveVote(existing); err != nil {
		return 0, err
	}
	return delta, nil
}

// ListVotesForUser returns the caller's active votes in a room, keyed by
// song, so a client can render its own up/down state.
func (s *Service) ListVotesForUser(ctx context.Context, roomID models.RoomID, caller models.UserID) (map[models.SongID]int, error) {
	votes, err := s.db.ListVotesByUser(roomID, caller)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make(map[models.SongID]int, len(votes))
	for _, v := range votes {
		out[v.SongID] = v.Value
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish vote event", "type", event.Type, "room_id", event.RoomID, "err", err)
	}
}
