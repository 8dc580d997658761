package database

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crowdqueue/crowdqueue/pkg/models"
)

// ErrNotFound is returned by lookups when no row matches. Callers translate
// it into their own domain error.
var ErrNotFound = gorm.ErrRecordNotFound

// queueOrder is the canonical ranking: score descending, ties broken by the
// oldest score change first (initialized to add time), then by id so the
// order is total. Every queue read uses this exact clause.
const queueOrder = "score DESC, last_score_updated_at ASC, id ASC"

// Room operations

func (db *DB) CreateRoom(room *models.Room) error {
	return db.Create(room).Error
}

func (db *DB) GetRoomByID(id models.RoomID) (*models.Room, error) {
	var room models.Room
	if err := db.First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRoomByCode looks a room up by join code, case-insensitively. Codes are
// stored uppercase.
func (db *DB) GetRoomByCode(code string) (*models.Room, error) {
	var room models.Room
	if err := db.First(&room, "code = ?", strings.ToUpper(code)).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (db *DB) RoomCodeTaken(code string) (bool, error) {
	var n int64
	if err := db.Model(&models.Room{}).Where("code = ?", strings.ToUpper(code)).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) SaveRoom(room *models.Room) error {
	return db.Save(room).Error
}

// DeleteRoomCascade removes everything the room owns, then the room itself.
// Votes first, then songs, so no vote ever references a missing song.
func (db *DB) DeleteRoomCascade(id models.RoomID) error {
	if err := db.Where("room_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
		return err
	}
	if err := db.Where("room_id = ?", id).Delete(&models.Song{}).Error; err != nil {
		return err
	}
	if err := db.Where("room_id = ?", id).Delete(&models.Presence{}).Error; err != nil {
		return err
	}
	if err := db.Where("room_id = ?", id).Delete(&models.Reaction{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Room{}, "id = ?", id).Error
}

// Song operations

func (db *DB) CreateSong(song *models.Song) error {
	return db.Create(song).Error
}

func (db *DB) GetSongByID(id models.SongID) (*models.Song, error) {
	var song models.Song
	if err := db.First(&song, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &song, nil
}

// GetSongByProviderTrack finds the song a (provider, providerId) pair already
// maps to in the room, if any.
func (db *DB) GetSongByProviderTrack(roomID models.RoomID, provider, providerID string) (*models.Song, error) {
	var song models.Song
	err := db.First(&song, "room_id = ? AND provider = ? AND provider_id = ?", roomID, provider, providerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &song, nil
}

func (db *DB) ListQueue(roomID models.RoomID) ([]*models.Song, error) {
	var songs []*models.Song
	if err := db.Where("room_id = ?", roomID).Order(queueOrder).Find(&songs).Error; err != nil {
		return nil, err
	}
	return songs, nil
}

func (db *DB) CountSongsInRoom(roomID models.RoomID) (int64, error) {
	var n int64
	err := db.Model(&models.Song{}).Where("room_id = ?", roomID).Count(&n).Error
	return n, err
}

func (db *DB) CountSongsByUser(roomID models.RoomID, userID models.UserID) (int64, error) {
	var n int64
	err := db.Model(&models.Song{}).Where("room_id = ? AND added_by = ?", roomID, userID).Count(&n).Error
	return n, err
}

func (db *DB) SaveSong(song *models.Song) error {
	return db.Save(song).Error
}

// DeleteSongCascade removes the song and every vote referencing it.
func (db *DB) DeleteSongCascade(id models.SongID) error {
	if err := db.Where("song_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Song{}, "id = ?", id).Error
}

// Vote operations

// GetVote returns the caller's vote on a song, or nil if they have none.
func (db *DB) GetVote(songID models.SongID, userID models.UserID) (*models.Vote, error) {
	var vote models.Vote
	err := db.First(&vote, "song_id = ? AND user_id = ?", songID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (db *DB) CreateVote(vote *models.Vote) error {
	return db.Create(vote).Error
}

func (db *DB) SaveVote(vote *models.Vote) error {
	return db.Save(vote).Error
}

func (db *DB) DeleteVote(id models.VoteID) error {
	return db.Delete(&models.Vote{}, "id = ?", id).Error
}

func (db *DB) SumVotesForSong(songID models.SongID) (int, error) {
	var sum struct{ Total int }
	err := db.Model(&models.Vote{}).
		Select("COALESCE(SUM(value), 0) as total").
		Where("song_id = ?", songID).
		Scan(&sum).Error
	return sum.Total, err
}

func (db *DB) ListVotesByUser(roomID models.RoomID, userID models.UserID) ([]*models.Vote, error) {
	var votes []*models.Vote
	err := db.Where("room_id = ? AND user_id = ?", roomID, userID).Find(&votes).Error
	return votes, err
}

func (db *DB) CountVotesForSong(songID models.SongID) (int64, error) {
	var n int64
	err := db.Model(&models.Vote{}).Where("song_id = ?", songID).Count(&n).Error
	return n, err
}

// Presence operations

// UpsertPresence refreshes (or creates) the caller's liveness marker.
func (db *DB) UpsertPresence(p *models.Presence) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_name", "updated_at"}),
	}).Create(p).Error
}

func (db *DB) DeletePresence(roomID models.RoomID, userID models.UserID) error {
	return db.Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.Presence{}).Error
}

// ListPresenceSince returns markers refreshed at or after cutoff; older rows
// are stale and simply not counted.
func (db *DB) ListPresenceSince(roomID models.RoomID, cutoff time.Time) ([]*models.Presence, error) {
	var rows []*models.Presence
	err := db.Where("room_id = ? AND updated_at >= ?", roomID, cutoff).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

// Reaction operations

func (db *DB) CreateReaction(r *models.Reaction) error {
	return db.Create(r).Error
}

// LatestReaction returns the caller's most recent reaction in the room, or
// nil when they have none in the current window.
func (db *DB) LatestReaction(roomID models.RoomID, userID models.UserID) (*models.Reaction, error) {
	var r models.Reaction
	err := db.Where("room_id = ? AND user_id = ?", roomID, userID).
		Order("created_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) ListReactionsSince(roomID models.RoomID, since time.Time) ([]*models.Reaction, error) {
	var rows []*models.Reaction
	err := db.Where("room_id = ? AND created_at >= ?", roomID, since).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (db *DB) DeleteReaction(id models.ReactionID) error {
	return db.Delete(&models.Reaction{}, "id = ?", id).Error
}
