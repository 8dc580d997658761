package room

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/pkg/database"
	"github.com/crowdqueue/crowdqueue/pkg/events"
	"github.com/crowdqueue/crowdqueue/pkg/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func newTestService(t *testing.T) (*Service, *events.MemoryBus) {
	t.Helper()
	bus := events.NewMemoryBus()
	return NewService(newTestDB(t), bus, nil, 0), bus
}

func TestCreateRoom_Defaults(t *testing.T) {
	svc, _ := newTestService(t)
	host := models.NewUserID()

	room, err := svc.CreateRoom(context.Background(), "Party", host, "", nil)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{6}$`), room.Code)
	assert.Equal(t, "Party", room.Name)
	assert.Equal(t, host, room.HostUserID)
	assert.True(t, room.Settings.AllowGuestAdd)
	assert.True(t, room.Settings.AllowDownvotes)
	assert.Zero(t, room.Settings.MaxQueueLength)
	assert.Zero(t, room.Settings.MaxSongsPerUser)
	assert.Nil(t, room.CurrentSongID)
	assert.False(t, room.IsPaused)
}

func TestCreateRoom_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateRoom(context.Background(), "", models.NewUserID(), "", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreateRoom(context.Background(), "Party", models.NewUserID(), "short", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	bad := models.RoomSettings{AllowGuestAdd: true, MaxQueueLength: -1}
	_, err = svc.CreateRoom(context.Background(), "Party", models.NewUserID(), "", &bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateRoom_SuppliedCodeConflict(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateRoom(context.Background(), "First", models.NewUserID(), "ABC123", nil)
	require.NoError(t, err)

	_, err = svc.CreateRoom(context.Background(), "Second", models.NewUserID(), "abc123", nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestGetRoomByCode_CaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateRoom(context.Background(), "Party", models.NewUserID(), "QWE789", nil)
	require.NoError(t, err)

	room, err := svc.GetRoomByCode(context.Background(), "qwe789")
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, created.ID, room.ID)
}

func TestGetRoomByCode_AbsentIsNilNotError(t *testing.T) {
	svc, _ := newTestService(t)

	room, err := svc.GetRoomByCode(context.Background(), "NOPE42")
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestUpdateSettings_PartialMerge(t *testing.T) {
	svc, _ := newTestService(t)
	host := models.NewUserID()

	created, err := svc.CreateRoom(context.Background(), "Party", host, "", nil)
	require.NoError(t, err)

	off := false
	limit := 3
	updated, err := svc.UpdateSettings(context.Background(), created.ID, host, SettingsPatch{
		AllowDownvotes:  &off,
		MaxSongsPerUser: &limit,
	})
	require.NoError(t, err)

	// Patched fields change, the rest stay.
	assert.False(t, updated.Settings.AllowDownvotes)
	assert.Equal(t, 3, updated.Settings.MaxSongsPerUser)
	assert.True(t, updated.Settings.AllowGuestAdd)
	assert.Zero(t, updated.Settings.MaxQueueLength)
}

func TestUpdateSettings_HostOnly(t *testing.T) {
	svc, _ := newTestService(t)
	host := models.NewUserID()

	created, err := svc.CreateRoom(context.Background(), "Party", host, "", nil)
	require.NoError(t, err)

	off := false
	_, err = svc.UpdateSettings(context.Background(), created.ID, models.NewUserID(), SettingsPatch{AllowGuestAdd: &off})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestTransferHost(t *testing.T) {
	svc, _ := newTestService(t)
	host := models.NewUserID()
	next := models.NewUserID()

	created, err := svc.CreateRoom(context.Background(), "Party", host, "", nil)
	require.NoError(t, err)

	// Transferring to yourself is rejected and the host is unchanged.
	_, err = svc.TransferHost(context.Background(), created.ID, host, host)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	room, err := svc.GetRoomByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, host, room.HostUserID)

	updated, err := svc.TransferHost(context.Background(), created.ID, host, next)
	require.NoError(t, err)
	assert.Equal(t, next, updated.HostUserID)

	// The old host lost its privilege.
	_, err = svc.TogglePause(context.Background(), created.ID, host)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestTogglePause(t *testing.T) {
	svc, _ := newTestService(t)
	host := models.NewUserID()

	created, err := svc.CreateRoom(context.Background(), "Party", host, "", nil)
	require.NoError(t, err)

	paused, err := svc.TogglePause(context.Background(), created.ID, host)
	require.NoError(t, err)
	assert.True(t, paused.IsPaused)

	resumed, err := svc.TogglePause(context.Background(), created.ID, host)
	require.NoError(t, err)
	assert.False(t, resumed.IsPaused)
}

func TestDestroyRoom_Cascades(t *testing.T) {
	bus := events.NewMemoryBus()
	db := newTestDB(t)
	svc := NewService(db, bus, nil, 0)
	host := models.NewUserID()

	created, err := svc.CreateRoom(context.Background(), "Party", host, "", nil)
	require.NoError(t, err)

	song := &models.Song{
		ID:       models.NewSongID(),
		RoomID:   created.ID,
		Provider: "youtube", ProviderID: "abc",
		Title:   "Track",
		AddedBy: host,
	}
	require.NoError(t, db.CreateSong(song))
	require.NoError(t, db.CreateVote(&models.Vote{
		ID: models.NewVoteID(), RoomID: created.ID, SongID: song.ID, UserID: host, Value: 1,
	}))
	require.NoError(t, db.UpsertPresence(&models.Presence{RoomID: created.ID, UserID: host}))
	require.NoError(t, db.CreateReaction(&models.Reaction{
		ID: models.NewReactionID(), RoomID: created.ID, UserID: host, Emoji: "🔥",
	}))

	// Only the host may destroy.
	err = svc.DestroyRoom(context.Background(), created.ID, models.NewUserID())
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, svc.DestroyRoom(context.Background(), created.ID, host))

	_, err = svc.GetRoomByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	songs, err := db.ListQueue(created.ID)
	require.NoError(t, err)
	assert.Empty(t, songs)

	n, err := db.CountVotesForSong(song.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDestroyRoom_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.DestroyRoom(context.Background(), models.NewRoomID(), models.NewUserID())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateRoom_PublishesEvent(t *testing.T) {
	svc, bus := newTestService(t)

	created, err := svc.CreateRoom(context.Background(), "Party", models.NewUserID(), "", nil)
	require.NoError(t, err)

	published := bus.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventRoomUpdated, published[0].Type)
	assert.Equal(t, created.ID, published[0].RoomID)
}

// memCodeCache is an in-process CodeCache for exercising the cache path.
type memCodeCache struct {
	ids map[string]models.RoomID
}

func newMemCodeCache() *memCodeCache {
	return &memCodeCache{ids: make(map[string]models.RoomID)}
}

func (m *memCodeCache) GetID(_ context.Context, code string) (models.RoomID, bool) {
	id, ok := m.ids[strings.ToUpper(code)]
	return id, ok
}

func (m *memCodeCache) PutID(_ context.Context, code string, id models.RoomID) {
	m.ids[strings.ToUpper(code)] = id
}

func (m *memCodeCache) Invalidate(_ context.Context, code string) {
	delete(m.ids, strings.ToUpper(code))
}

func TestGetRoomByCode_CachedReadIsNeverStale(t *testing.T) {
	db := newTestDB(t)
	cache := newMemCodeCache()
	svc := NewService(db, events.NewMemoryBus(), cache, 0)
	host := models.NewUserID()

	created, err := svc.CreateRoom(context.Background(), "Party", host, "FRESH1", nil)
	require.NoError(t, err)

	// Prime the mapping through a read.
	room, err := svc.GetRoomByCode(context.Background(), "fresh1")
	require.NoError(t, err)
	require.NotNil(t, room)
	_, ok := cache.GetID(context.Background(), "FRESH1")
	require.True(t, ok)

	// Mutate the row behind the cache's back, the way the queue engine does
	// when it moves the current-song pointer.
	songID := models.NewSongID()
	room.CurrentSongID = &songID
	room.IsPaused = true
	require.NoError(t, db.SaveRoom(room))

	got, err := svc.GetRoomByCode(context.Background(), "FRESH1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	require.NotNil(t, got.CurrentSongID)
	assert.Equal(t, songID, *got.CurrentSongID)
	assert.True(t, got.IsPaused)
}

func TestGetRoomByCode_StaleMappingFallsThrough(t *testing.T) {
	db := newTestDB(t)
	cache := newMemCodeCache()
	svc := NewService(db, events.NewMemoryBus(), cache, 0)

	created, err := svc.CreateRoom(context.Background(), "Party", models.NewUserID(), "STALE1", nil)
	require.NoError(t, err)

	// A mapping pointing at a room that no longer exists must not mask the
	// real row.
	cache.PutID(context.Background(), "STALE1", models.NewRoomID())

	got, err := svc.GetRoomByCode(context.Background(), "STALE1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)

	// The read repaired the mapping.
	id, ok := cache.GetID(context.Background(), "STALE1")
	require.True(t, ok)
	assert.Equal(t, created.ID, id)
}

func TestDestroyRoom_DropsCodeMapping(t *testing.T) {
	db := newTestDB(t)
	cache := newMemCodeCache()
	svc := NewService(db, events.NewMemoryBus(), cache, 0)
	host := models.NewUserID()

	created, err := svc.CreateRoom(context.Background(), "Party", host, "GONE42", nil)
	require.NoError(t, err)
	_, ok := cache.GetID(context.Background(), "GONE42")
	require.True(t, ok)

	require.NoError(t, svc.DestroyRoom(context.Background(), created.ID, host))

	_, ok = cache.GetID(context.Background(), "GONE42")
	assert.False(t, ok)

	room, err := svc.GetRoomByCode(context.Background(), "GONE42")
	require.NoError(t, err)
	assert.Nil(t, room)
}
