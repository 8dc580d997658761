package models

import (
	"time"
)

// RoomSettings controls what non-host participants may do. Zero values for
// the caps mean unlimited.
type RoomSettings struct {
	AllowGuestAdd   bool `json:"allow_guest_add"`
	AllowDownvotes  bool `json:"allow_downvotes"`
	MaxQueueLength  int  `json:"max_queue_length"`
	MaxSongsPerUser int  `json:"max_songs_per_user"`
}

// DefaultSettings returns the settings a freshly created room starts with.
func DefaultSettings() RoomSettings {
	return RoomSettings{
		AllowGuestAdd:  true,
		AllowDownvotes: true,
	}
}

type Room struct {
	ID            RoomID       `json:"id" gorm:"type:varchar(36);primaryKey"`
	Code          string       `json:"code" gorm:"type:varchar(6);uniqueIndex"`
	Name          string       `json:"name"`
	HostUserID    UserID       `json:"host_user_id" gorm:"type:varchar(36);index"`
	Settings      RoomSettings `json:"settings" gorm:"embedded;embeddedPrefix:settings_"`
	CurrentSongID *SongID      `json:"current_song_id" gorm:"type:varchar(36)"`
	IsPaused      bool         `json:"is_paused"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type Song struct {
	ID                 SongID    `json:"id" gorm:"type:varchar(36);primaryKey"`
	RoomID             RoomID    `json:"room_id" gorm:"type:varchar(36);index;uniqueIndex:idx_room_provider_track"`
	Provider           string    `json:"provider" gorm:"type:varchar(32);uniqueIndex:idx_room_provider_track"`
	ProviderID         string    `json:"provider_id" gorm:"type:varchar(128);uniqueIndex:idx_room_provider_track"`
	Title              string    `json:"title"`
	Artist             string    `json:"artist"`
	AlbumArtURL        string    `json:"album_art_url"`
	DurationMs         int       `json:"duration_ms"`
	AddedBy            UserID    `json:"added_by" gorm:"type:varchar(36);index"`
	AddedByName        string    `json:"added_by_name"`
	AddedAt            time.Time `json:"added_at"`
	Score              int       `json:"score"`
	LastScoreUpdatedAt time.Time `json:"last_score_updated_at"`
}

type Vote struct {
	ID        VoteID    `json:"id" gorm:"type:varchar(36);primaryKey"`
	RoomID    RoomID    `json:"room_id" gorm:"type:varchar(36);index"`
	SongID    SongID    `json:"song_id" gorm:"type:varchar(36);uniqueIndex:idx_song_user"`
	UserID    UserID    `json:"user_id" gorm:"type:varchar(36);uniqueIndex:idx_song_user"`
	Value     int       `json:"value"` // 1 or -1; a zero vote is deleted, never stored
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Presence is one user's liveness marker in one room. Liveness is derived at
// read time from UpdatedAt, so stale rows are harmless.
type Presence struct {
	RoomID    RoomID    `json:"room_id" gorm:"type:varchar(36);primaryKey"`
	UserID    UserID    `json:"user_id" gorm:"type:varchar(36);primaryKey"`
	UserName  string    `json:"user_name"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

// Reaction rows are deleted a fixed delay after creation, so the table is a
// rolling window rather than a log.
type Reaction struct {
	ID        ReactionID `json:"id" gorm:"type:varchar(36);primaryKey"`
	RoomID    RoomID     `json:"room_id" gorm:"type:varchar(36);index"`
	UserID    UserID     `json:"user_id" gorm:"type:varchar(36);index"`
	Emoji     string     `json:"emoji" gorm:"type:varchar(16)"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
}
