package reaction

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdqueue/crowdqueue/internal/apperr"
	"github.com/crowdqueue/crowdqueue/pkg/database"
	"github.com/crowdqueue/crowdqueue/pkg/events"
	"github.com/crowdqueue/crowdqueue/pkg/models"
	"github.com/crowdqueue/crowdqueue/pkg/scheduler"
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

func seedRoom(t *testing.T, db *database.DB) *models.Room {
	t.Helper()
	room := &models.Room{
		ID:         models.NewRoomID(),
		Code:       "REACT1",
		Name:       "Reaction Room",
		HostUserID: models.NewUserID(),
		Settings:   models.DefaultSettings(),
	}
	require.NoError(t, db.CreateRoom(room))
	return room
}

func TestSendReaction_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), nil, 0, 0)
	room := seedRoom(t, db)
	ctx := context.Background()

	_, err := svc.SendReaction(ctx, room.ID, models.NewUserID(), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SendReaction(ctx, room.ID, models.NewUserID(), strings.Repeat("x", 17))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SendReaction(ctx, models.NewRoomID(), models.NewUserID(), "🔥")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSendReaction_RateLimit(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), nil, 100*time.Millisecond, time.Minute)
	room := seedRoom(t, db)
	user := models.NewUserID()
	ctx := context.Background()

	_, err := svc.SendReaction(ctx, room.ID, user, "🔥")
	require.NoError(t, err)

	_, err = svc.SendReaction(ctx, room.ID, user, "🎉")
	assert.ErrorIs(t, err, apperr.ErrRateLimited)

	// Another user is not affected by this user's limit.
	_, err = svc.SendReaction(ctx, room.ID, models.NewUserID(), "🎉")
	require.NoError(t, err)

	// Once the gap has passed, the same user may react again.
	time.Sleep(120 * time.Millisecond)
	_, err = svc.SendReaction(ctx, room.ID, user, "🎉")
	require.NoError(t, err)
}

func TestSendReaction_ExpiresAfterTTL(t *testing.T) {
	db := newTestDB(t)
	sched := scheduler.New()
	defer sched.Stop()
	svc := NewService(db, events.NewMemoryBus(), sched, time.Millisecond, 50*time.Millisecond)
	room := seedRoom(t, db)
	ctx := context.Background()

	sent, err := svc.SendReaction(ctx, room.ID, models.NewUserID(), "🔥")
	require.NoError(t, err)

	rows, err := svc.RecentReactions(ctx, room.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sent.ID, rows[0].ID)

	// The row itself must be deleted, not merely filtered out of reads.
	require.Eventually(t, func() bool {
		rows, err := db.ListReactionsSince(room.ID, time.Time{})
		return err == nil && len(rows) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecentReactions_SinceFilter(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), nil, time.Millisecond, time.Minute)
	room := seedRoom(t, db)
	ctx := context.Background()

	old := &models.Reaction{
		ID:        models.NewReactionID(),
		RoomID:    room.ID,
		UserID:    models.NewUserID(),
		Emoji:     "👋",
		CreatedAt: time.Now().UTC().Add(-30 * time.Second),
	}
	require.NoError(t, db.CreateReaction(old))

	fresh, err := svc.SendReaction(ctx, room.ID, models.NewUserID(), "🔥")
	require.NoError(t, err)

	all, err := svc.RecentReactions(ctx, room.ID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := svc.RecentReactions(ctx, room.ID, time.Now().UTC().Add(-10*time.Second))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, fresh.ID, recent[0].ID)
}

func TestRecentReactions_ClampedToWindow(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewMemoryBus(), nil, time.Millisecond, time.Minute)
	room := seedRoom(t, db)
	ctx := context.Background()

	// A row older than the window, as left behind when the process died
	// before its scheduled deletion fired.
	stranded := &models.Reaction{
		ID:        models.NewReactionID(),
		RoomID:    room.ID,
		UserID:    models.NewUserID(),
		Emoji:     "💀",
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
	}
	require.NoError(t, db.CreateReaction(stranded))

	// Even a since before the window must not surface it.
	rows, err := svc.RecentReactions(ctx, room.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = svc.RecentReactions(ctx, room.ID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSendReaction_PublishesEvent(t *testing.T) {
	db := newTestDB(t)
	bus := events.NewMemoryBus()
	svc := NewService(db, bus, nil, time.Millisecond, time.Minute)
	room := seedRoom(t, db)

	sent, err := svc.SendReaction(context.Background(), room.ID, models.NewUserID(), "🔥")
	require.NoError(t, err)

	published := bus.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventReactionSent, published[0].Type)
	assert.Equal(t, room.ID, published[0].RoomID)
	assert.Equal(t, sent.UserID, published[0].UserID)
}
