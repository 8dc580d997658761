package models

import (
	"database/sql/driver"

	"github.com/google/uuid"
)

// Typed identifiers so a RoomID can never be passed where a SongID is
// expected. Each wraps a uuid and forwards its text and SQL encodings.

type RoomID uuid.UUID

func NewRoomID() RoomID { return RoomID(uuid.New()) }

func ParseRoomID(s string) (RoomID, error) {
	u, err := uuid.Parse(s)
	return RoomID(u), err
}

func (id RoomID) String() string { return uuid.UUID(id).String() }
func (id RoomID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id RoomID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *RoomID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id RoomID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }
func (id *RoomID) Scan(src interface{}) error { return (*uuid.UUID)(id).Scan(src) }

type SongID uuid.UUID

func NewSongID() SongID { return SongID(uuid.New()) }

func ParseSongID(s string) (SongID, error) {
	u, err := uuid.Parse(s)
	return SongID(u), err
}

func (id SongID) String() string { return uuid.UUID(id).String() }
func (id SongID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id SongID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *SongID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id SongID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }
func (id *SongID) Scan(src interface{}) error { return (*uuid.UUID)(id).Scan(src) }

type UserID uuid.UUID

func NewUserID() UserID { return UserID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	return UserID(u), err
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *UserID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id UserID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }
func (id *UserID) Scan(src interface{}) error { return (*uuid.UUID)(id).Scan(src) }

type VoteID uuid.UUID

func NewVoteID() VoteID { return VoteID(uuid.New()) }

func (id VoteID) String() string { return uuid.UUID(id).String() }
func (id VoteID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *VoteID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id VoteID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }
func (id *VoteID) Scan(src interface{}) error { return (*uuid.UUID)(id).Scan(src) }

type ReactionID uuid.UUID

func NewReactionID() ReactionID { return ReactionID(uuid.New()) }

func (id ReactionID) String() string { return uuid.UUID(id).String() }
func (id ReactionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *ReactionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id ReactionID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }
func (id *ReactionID) Scan(src interface{}) error { return (*uuid.UUID)(id).Scan(src) }
