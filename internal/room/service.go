package room

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/pkg/database"
	"github.com/crowdqueue/crowdqueue/pkg/events"
	"github.com/crowdqueue/crowdqueue/pkg/models"
)

const (
	codeLength          = 6
	codeCharset         = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultCodeAttempts = 5
)

// CodeCache resolves join codes to room ids. The mapping is immutable while
// a room lives, so implementations never need invalidating on settings or
// pointer changes, only on destruction. Best effort: a miss falls through to
// the store.
type CodeCache interface {
	GetID(ctx context.Context, code string) (models.RoomID, bool)
	PutID(ctx context.Context, code string, id models.RoomID)
	Invalidate(ctx context.Context, code string)
}

// Service is the room authority: creation and code allocation, settings,
// host transfer, pause, destruction. It owns the host authorization check the
// queue engine reuses.
type Service struct {
	db       *database.DB
	bus      events.Bus
	cache    CodeCache
	attempts int
}

func NewService(db *database.DB, bus events.Bus, cache CodeCache, codeAttempts int) *Service {
	if codeAttempts <= 0 {
		codeAttempts = defaultCodeAttempts
	}
	return &Service{db: db, bus: bus, cache: cache, attempts: codeAttempts}
}

// AuthorizeHost fails unless caller is the room's host. Every host-only
// operation in this package and in the queue engine goes through it.
func AuthorizeHost(room *models.Room, caller models.UserID) error {
	if room.HostUserID != caller {
		return apperr.Unauthorized("only the host may do that")
	}
	return nil
}

// CreateRoom allocates a join code and persists the room. A caller-supplied
// code is rejected if taken; otherwise random codes are tried a bounded
// number of times before giving up with a conflict.
func (s *Service) CreateRoom(ctx context.Context, name string, host models.UserID, code string, settings *models.RoomSettings) (*models.Room, error) {
	if name == "" {
		return nil, apperr.Validation("room name is required")
	}
	if host.IsZero() {
		return nil, apperr.Validation("host user id is required")
	}

	merged := models.DefaultSettings()
	if settings != nil {
		merged = *settings
	}
	if merged.MaxQueueLength < 0 || merged.MaxSongsPerUser < 0 {
		return nil, apperr.Validation("queue caps must not be negative")
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:         models.NewRoomID(),
		Name:       name,
		HostUserID: host,
		Settings:   merged,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.Tx(func(tx *database.DB) error {
		allocated, err := s.allocateCode(tx, code)
		if err != nil {
			return err
		}
		room.Code = allocated
		return tx.CreateRoom(room)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	if s.cache != nil {
		s.cache.PutID(ctx, room.Code, room.ID)
	}
	s.publish(ctx, events.NewEvent(events.EventRoomUpdated, room.ID, host, nil))

	return room, nil
}

func (s *Service) allocateCode(tx *database.DB, requested string) (string, error) {
	if requested != "" {
		code := strings.ToUpper(requested)
		if len(code) != codeLength {
			return "", apperr.Validationf("room code must be %d characters", codeLength)
		}
		taken, err := tx.RoomCodeTaken(code)
		if err != nil {
			return "", err
		}
		if taken {
			return "", apperr.Conflict("room code already in use")
		}
		return code, nil
	}

	for i := 0; i < s.attempts; i++ {
		code := randomCode()
		taken, err := tx.RoomCodeTaken(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", apperr.Conflict("could not allocate a unique room code")
}

func randomCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(code)
}

// GetRoomByID loads a room or reports NotFound.
func (s *Service) GetRoomByID(ctx context.Context, id models.RoomID) (*models.Room, error) {
	room, err := s.db.GetRoomByID(id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("room not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return room, nil
}

// GetRoomByCode resolves a join code case-insensitively. A missing room is
// (nil, nil), not an error: callers distinguish "does not exist" from
// failures. Only the code -> id mapping is cached; the row is always loaded
// fresh so settings and the current-song pointer are never stale.
func (s *Service) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	if s.cache != nil {
		if id, ok := s.cache.GetID(ctx, code); ok {
			room, err := s.db.GetRoomByID(id)
			if err == nil {
				return room, nil
			}
			if !errors.Is(err, database.ErrNotFound) {
				return nil, apperr.Internal(err)
			}
			// The mapping outlived the room; drop it and fall through.
			s.cache.Invalidate(ctx, code)
		}
	}

	room, err := s.db.GetRoomByCode(code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if s.cache != nil {
		s.cache.PutID(ctx, room.Code, room.ID)
	}
	return room, nil
}

// SettingsPatch carries the fields of an updateSettings call. Nil fields are
// left untouched: this is a merge, not a replace.
type SettingsPatch struct {
	AllowGuestAdd   *bool `json:"allow_guest_add"`
	AllowDownvotes  *bool `json:"allow_downvotes"`
	MaxQueueLength  *int  `json:"max_queue_length"`
	MaxSongsPerUser *int  `json:"max_songs_per_user"`
}

// UpdateSettings merges patch into the room's settings. Host only.
func (s *Service) UpdateSettings(ctx context.Context, roomID models.RoomID, caller models.UserID, patch SettingsPatch) (*models.Room, error) {
	if patch.MaxQueueLength != nil && *patch.MaxQueueLength < 0 {
		return nil, apperr.Validation("max queue length must not be negative")
	}
	if patch.MaxSongsPerUser != nil && *patch.MaxSongsPerUser < 0 {
		return nil, apperr.Validation("max songs per user must not be negative")
	}

	var updated *models.Room
	err := s.db.Tx(func(tx *database.DB) error {
		room, err := Load(tx, roomID)
		if err != nil {
			return err
		}
		if err := AuthorizeHost(room, caller); err != nil {
			return err
		}

		if patch.AllowGuestAdd != nil {
			room.Settings.AllowGuestAdd = *patch.AllowGuestAdd
		}
		if patch.AllowDownvotes != nil {
			room.Settings.AllowDownvotes = *patch.AllowDownvotes
		}
		if patch.MaxQueueLength != nil {
			room.Settings.MaxQueueLength = *patch.MaxQueueLength
		}
		if patch.MaxSongsPerUser != nil {
			room.Settings.MaxSongsPerUser = *patch.MaxSongsPerUser
		}
		room.UpdatedAt = time.Now().UTC()

		updated = room
		return tx.SaveRoom(room)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventRoomUpdated, roomID, caller, nil))
	return updated, nil
}

// TransferHost hands the room to newHost. Host only; transferring to
// yourself is rejected.
func (s *Service) TransferHost(ctx context.Context, roomID models.RoomID, caller, newHost models.UserID) (*models.Room, error) {
	if newHost.IsZero() {
		return nil, apperr.Validation("new host id is required")
	}
	if newHost == caller {
		return nil, apperr.Validation("cannot transfer host to yourself")
	}

	var updated *models.Room
	err := s.db.Tx(func(tx *database.DB) error {
		room, err := Load(tx, roomID)
		if err != nil {
			return err
		}
		if err := AuthorizeHost(room, caller); err != nil {
			return err
		}

		room.HostUserID = newHost
		room.UpdatedAt = time.Now().UTC()
		updated = room
		return tx.SaveRoom(room)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventRoomUpdated, roomID, caller, nil))
	return updated, nil
}

// TogglePause flips the room's paused flag. Host only. The flag is advisory;
// the playback client enforces it.
func (s *Service) TogglePause(ctx context.Context, roomID models.RoomID, caller models.UserID) (*models.Room, error) {
	var updated *models.Room
	err := s.db.Tx(func(tx *database.DB) error {
		room, err := Load(tx, roomID)
		if err != nil {
			return err
		}
		if err := AuthorizeHost(room, caller); err != nil {
			return err
		}

		room.IsPaused = !room.IsPaused
		room.UpdatedAt = time.Now().UTC()
		updated = room
		return tx.SaveRoom(room)
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.publish(ctx, events.NewEvent(events.EventRoomUpdated, roomID, caller, nil))
	return updated, nil
}

// DestroyRoom deletes the room and everything it owns. Host only.
func (s *Service) DestroyRoom(ctx context.Context, roomID models.RoomID, caller models.UserID) error {
	var code string
	err := s.db.Tx(func(tx *database.DB) error {
		room, err := Load(tx, roomID)
		if err != nil {
			return err
		}
		if err := AuthorizeHost(room, caller); err != nil {
			return err
		}
		code = room.Code
		return tx.DeleteRoomCascade(roomID)
	})
	if err != nil {
		return apperr.Wrap(err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, code)
	}
	s.publish(ctx, events.NewEvent(events.EventRoomDestroyed, roomID, caller, nil))
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish room event", "type", event.Type, "room_id", event.RoomID, "err", err)
	}
}

// Load fetches a room inside a transaction, mapping missing rows to
// NotFound. The queue, vote, presence and reaction services share it.
func Load(tx *database.DB, id models.RoomID) (*models.Room, error) {
	room, err := tx.GetRoomByID(id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("room not found")
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}
