package presence

import (
	"context"
	"testing"
	"time"

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

func seedRoom(t *testing.T, db *database.DB, code string) *models.Room {
	t.Helper()
	room := &models.Room{
		ID:         models.NewRoomID(),
		Code:       code,
		Name:       "Presence Room",
		HostUserID: models.NewUserID(),
		Settings:   models.DefaultSettings(),
	}
	require.NoError(t, db.CreateRoom(room))
	return room
}

// backdate rewrites a presence marker's heartbeat time directly, bypassing
// the auto-maintained timestamp.
func backdate(t *testing.T, db *database.DB, roomID models.RoomID, userID models.UserID, at time.Time) {
	t.Helper()
	err := db.Model(&models.Presence{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		UpdateColumn("updated_at", at).Error
	require.NoError(t, err)
}

func TestHeartbeatAndList(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), 45*time.Second, 15*time.Second)
	room := seedRoom(t, db, "PRES01")
	ctx := context.Background()

	alice := models.NewUserID()
	bob := models.NewUserID()

	require.NoError(t, svc.Heartbeat(ctx, room.ID, alice, "alice"))
	require.NoError(t, svc.Heartbeat(ctx, room.ID, bob, "bob"))

	roster, err := svc.List(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, roster.Count)
	assert.Len(t, roster.Participants, 2)

	// Repeated heartbeats refresh the marker instead of duplicating it.
	require.NoError(t, svc.Heartbeat(ctx, room.ID, alice, "alice"))
	roster, err = svc.List(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, roster.Count)
}

func TestHeartbeat_RoomMustExist(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), 45*time.Second, 15*time.Second)
	ctx := context.Background()

	// No such room: the beat is rejected, not stored.
	missing := models.NewRoomID()
	err := svc.Heartbeat(ctx, missing, models.NewUserID(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	roster, err := svc.List(ctx, missing)
	require.NoError(t, err)
	assert.Zero(t, roster.Count)
}

func TestHeartbeat_DestroyedRoomLeavesNoOrphan(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), 45*time.Second, 15*time.Second)
	room := seedRoom(t, db, "PRES02")
	ctx := context.Background()

	user := models.NewUserID()
	require.NoError(t, svc.Heartbeat(ctx, room.ID, user, "u"))

	require.NoError(t, db.DeleteRoomCascade(room.ID))

	// A late beat against the destroyed room must not resurrect a marker.
	err := svc.Heartbeat(ctx, room.ID, user, "u")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	rows, err := db.ListPresenceSince(room.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestList_FiltersStaleMarkers(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), 45*time.Second, 15*time.Second)
	room := seedRoom(t, db, "PRES03")
	ctx := context.Background()

	live := models.NewUserID()
	stale := models.NewUserID()

	require.NoError(t, svc.Heartbeat(ctx, room.ID, live, "live"))
	require.NoError(t, svc.Heartbeat(ctx, room.ID, stale, "stale"))
	backdate(t, db, room.ID, stale, time.Now().UTC().Add(-2*time.Minute))

	roster, err := svc.List(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, 1, roster.Count)
	assert.Equal(t, live, roster.Participants[0].UserID)

	// A fresh heartbeat brings a stale viewer straight back.
	require.NoError(t, svc.Heartbeat(ctx, room.ID, stale, "stale"))
	roster, err = svc.List(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, roster.Count)
}

func TestLeave(t *testing.T) {
	db := newTestDB(t)
	bus := events.NewMemoryBus()
	svc := NewService(db, bus, 45*time.Second, 15*time.Second)
	room := seedRoom(t, db, "PRES04")
	ctx := context.Background()

	user := models.NewUserID()
	require.NoError(t, svc.Heartbeat(ctx, room.ID, user, "u"))
	require.NoError(t, svc.Leave(ctx, room.ID, user))

	roster, err := svc.List(ctx, room.ID)
	require.NoError(t, err)
	assert.Zero(t, roster.Count)

	// Leaving twice is harmless.
	require.NoError(t, svc.Leave(ctx, room.ID, user))

	for _, event := range bus.Events() {
		assert.Equal(t, events.EventPresenceUpdated, event.Type)
		assert.Equal(t, room.ID, event.RoomID)
	}
	assert.NotEmpty(t, bus.Events())
}

func TestRoomsAreIsolated(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), 45*time.Second, 15*time.Second)
	ctx := context.Background()

	roomA := seedRoom(t, db, "PRES05")
	roomB := seedRoom(t, db, "PRES06")
	user := models.NewUserID()

	require.NoError(t, svc.Heartbeat(ctx, roomA.ID, user, "u"))

	roster, err := svc.List(ctx, roomB.ID)
	require.NoError(t, err)
	assert.Zero(t, roster.Count)
}
