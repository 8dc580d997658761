package queue

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

// Service is the ranked queue engine. The canonical order is score
// descending with ties broken by the oldest score change first; positions are
// always derived from scores, never stored, so concurrent reorders stay
// consistent.
type Service struct {
	db  *database.DB
	bus events.Bus
}

func NewService(db *database.DB, bus events.Bus) *Service {
	return &Service{db: db, bus: bus}
}

// AddSongInput carries the track metadata resolved by the search provider.
type AddSongInput struct {
	Provider    string
	ProviderID  string
	Title       string
	Artist      string
	AlbumArtURL string
	DurationMs  int
}

// AddSong inserts a track at score zero. Re-adding a (provider, providerId)
// pair already in the room returns the existing song instead of a duplicate,
// so blind client retries are safe. The first song into an empty queue
// becomes the current song.
func (s *Service) AddSong(ctx context.Context, roomID models.RoomID, caller models.UserID, callerName string, in AddSongInput) (*models.Song, error) {
	if in.Provider == "" || in.ProviderID == "" {
		return nil, apperr.Validation("provider and provider id are required")
	}
	if in.Title == "" {
		return nil, apperr.Validation("title is required")
	}

	var song *models.Song
	err := s.db.Tx(func(tx *database.DB) error {
		rm, err := room.Load(tx, roomID)
		if err != nil {
			return err
		}

		existing, err := tx.GetSongByProviderTrack(roomID, in.Provider, in.ProviderID)
		if err != nil {
			return err
		}
		if existing != nil {
			song = existing
			return nil
		}

		isHost := rm.HostUserID == caller
		if !isHost {
			if !rm.Settings.AllowGuestAdd {
				return apperr.PolicyViolation("only the host may add songs in this room")
			}
			total, err := tx.CountSongsInRoom(roomID)
			if err != nil {
				return err
			}
			if max := rm.Settings.MaxQueueLength; max > 0 && total >= int64(max) {
				return apperr.PolicyViolation("the queue is full")
			}
			mine, err := tx.CountSongsByUser(roomID, caller)
			if err != nil {
				return err
			}
			if max := rm.Settings.MaxSongsPerUser; max > 0 && mine >= int64(max) {
				return apperr.PolicyViolation("you have reached the song limit for this room")
			}
		}

		queueWasEmpty, err := tx.CountSongsInRoom(roomID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		song = &models.Song{
			ID:                 models.NewSongID(),
			RoomID:             roomID,
			Provider:           in.Provider,
			ProviderID:         in.ProviderID,
			Title:              in.Title,
			Artist:             in.Artist,
			AlbumArtURL:        in.AlbumArtURL,
			DurationMs:         in.DurationMs,
			AddedBy:            caller,
			AddedByName:        callerName,
			AddedAt:            now,
			Score:              0,
			LastScoreUpdatedAt: now,
		}
		if err := tx.CreateSong(song); err != nil {
			return err
		}

		if queueWasEmpty == 0 {
			rm.CurrentSongID = &song.ID
			rm.UpdatedAt = now
			return tx.SaveRoom(rm)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventQueueUpdated, roomID, caller, nil))
	return song, nil
}

// Snapshot is one consistent read of a room's queue: the ordered songs plus
// the current-song pointer and pause flag they are playing against.
type Snapshot struct {
	RoomID        models.RoomID  `json:"room_id"`
	CurrentSongID *models.SongID `json:"current_song_id"`
	IsPaused      bool           `json:"is_paused"`
	Songs         []*models.Song `json:"songs"`
}

// ListQueue returns the ordered queue. The order is recomputed on every
// read; nothing positional is cached or stored.
func (s *Service) ListQueue(ctx context.Context, roomID models.RoomID) (*Snapshot, error) {
	rm, err := s.db.GetRoomByID(roomID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("room not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	songs, err := s.db.ListQueue(roomID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &Snapshot{
		RoomID:        rm.ID,
		CurrentSongID: rm.CurrentSongID,
		IsPaused:      rm.IsPaused,
		Songs:         songs,
	}, nil
}

// RemoveSong deletes a song and every vote referencing it. Only the room
// host or the user who added the song may remove it. The current-song
// pointer is left alone; advancing past a removed song is the caller's move.
func (s *Service) RemoveSong(ctx context.Context, songID models.SongID, caller models.UserID) error {
	var roomID models.RoomID
	err := s.db.Tx(func(tx *database.DB) error {
		song, err := loadSong(tx, songID)
		if err != nil {
			return err
		}
		rm, err := room.Load(tx, song.RoomID)
		if err != nil {
			return err
		}
		if rm.HostUserID != caller && song.AddedBy != caller {
			return apperr.Unauthorized("only the host or the adder may remove a song")
		}
		roomID = song.RoomID
		return tx.DeleteSongCascade(songID)
	})
	if err != nil {
		return apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventQueueUpdated, roomID, caller, nil))
	return nil
}

// AdvanceSong moves the current-song pointer through the ordered queue.
// Empty queue: pointer goes absent. A pointer at a song no longer in the
// room (it was removed mid-play) restarts from the head. A pointer past the
// last song stays absent; the queue does not wrap.
func (s *Service) AdvanceSong(ctx context.Context, roomID models.RoomID) (*models.Room, error) {
	var updated *models.Room
	err := s.db.Tx(func(tx *database.DB) error {
		rm, err := room.Load(tx, roomID)
		if err != nil {
			return err
		}
		ordered, err := tx.ListQueue(roomID)
		if err != nil {
			return err
		}

		next := nextSong(ordered, rm.CurrentSongID)
		rm.CurrentSongID = next
		rm.UpdatedAt = time.Now().UTC()
		updated = rm
		return tx.SaveRoom(rm)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventQueueUpdated, roomID, models.UserID{}, nil))
	return updated, nil
}

// nextSong computes the successor pointer over the ordered queue.
func nextSong(ordered []*models.Song, current *models.SongID) *models.SongID {
	if len(ordered) == 0 {
		return nil
	}
	if current == nil {
		// Terminal: the queue ran out earlier. Only addSong (first insert)
		// or a dangling-pointer repair below restart playback.
		return nil
	}
	for i, song := range ordered {
		if song.ID == *current {
			if i+1 < len(ordered) {
				return &ordered[i+1].ID
			}
			return nil
		}
	}
	// The current song was removed; restart from the head of the order.
	return &ordered[0].ID
}

// ReorderSong is the host's manual override: it assigns the moved song a new
// score that lands it at targetIndex relative to its neighbors. Scores are
// the only positional state, so a concurrent vote simply re-sorts the queue
// with the new score in place.
func (s *Service) ReorderSong(ctx context.Context, roomID models.RoomID, songID models.SongID, caller models.UserID, targetIndex int) (*models.Song, error) {
	var moved *models.Song
	err := s.db.Tx(func(tx *database.DB) error {
		rm, err := room.Load(tx, roomID)
		if err != nil {
			return err
		}
		if err := room.AuthorizeHost(rm, caller); err != nil {
			return err
		}

		ordered, err := tx.ListQueue(roomID)
		if err != nil {
			return err
		}

		rest := make([]*models.Song, 0, len(ordered))
		for _, song := range ordered {
			if song.ID == songID {
				moved = song
				continue
			}
			rest = append(rest, song)
		}
		if moved == nil {
			return apperr.NotFound("song not found in this room")
		}

		if targetIndex < 0 {
			targetIndex = 0
		}
		if targetIndex > len(rest) {
			targetIndex = len(rest)
		}

		moved.Score = scoreForPosition(rest, targetIndex)
		moved.LastScoreUpdatedAt = time.Now().UTC()
		return tx.SaveSong(moved)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventQueueUpdated, roomID, caller, nil))
	return moved, nil
}

// scoreForPosition picks a score that slots the moved song at index position
// within rest (the queue without the moved song). Head placements go
// strictly above the current first score, tail placements strictly below the
// last. In between we take the integer midpoint of the flanking neighbors;
// when that collides with a neighbor's score we fall back to the upper
// neighbor's score and let the tie-break (freshest score change last) place
// the song directly after it.
func scoreForPosition(rest []*models.Song, position int) int {
	if len(rest) == 0 {
		return 0
	}
	if position == 0 {
		return rest[0].Score + 1
	}
	if position >= len(rest) {
		return rest[len(rest)-1].Score - 1
	}

	prev := rest[position-1]
	next := rest[position]
	mid := (prev.Score + next.Score) / 2
	if mid == prev.Score || mid == next.Score {
		return prev.Score
	}
	return mid
}

// AdminSetScore is the host's direct score override.
func (s *Service) AdminSetScore(ctx context.Context, roomID models.RoomID, songID models.SongID, caller models.UserID, score int) (*models.Song, error) {
	var song *models.Song
	err := s.db.Tx(func(tx *database.DB) error {
		rm, err := room.Load(tx, roomID)
		if err != nil {
			return err
		}
		if err := room.AuthorizeHost(rm, caller); err != nil {
			return err
		}

		song, err = loadSong(tx, songID)
		if err != nil {
			return err
		}
		if song.RoomID != roomID {
			return apperr.NotFound("song not found in this room")
		}

		song.Score = score
		song.LastScoreUpdatedAt = time.Now().UTC()
		return tx.SaveSong(song)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventQueueUpdated, roomID, caller, nil))
	return song, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish queue event", "type", event.Type, "room_id", event.RoomID, "err", err)
	}
}

func loadSong(tx *database.DB, id models.SongID) (*models.Song, error) {
	song, err := tx.GetSongByID(id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("song not found")
	}
	if err != nil {
		return nil, err
	}
	return song, nil
}
