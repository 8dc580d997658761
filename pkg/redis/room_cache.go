package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crowdqueue/crowdqueue/pkg/models"
)

const roomCacheTTL = 24 * time.Hour

// RoomCache keeps the join-code -> room-id mapping hot so join-by-code does
// not scan by code on every widget load. Only the id is cached: the mapping
// never changes while the room lives, so the row itself is always read fresh
// and mutations elsewhere cannot serve a stale room. Best effort: misses and
// redis errors just fall through to the store.
type RoomCache struct {
	client *redis.Client
}

func NewRoomCache(client *redis.Client) *RoomCache {
	return &RoomCache{client: client}
}

func codeKey(code string) string {
	return fmt.Sprintf("room:code:%s", strings.ToUpper(code))
}

// GetID resolves a cached join code to a room id.
func (c *RoomCache) GetID(ctx context.Context, code string) (models.RoomID, bool) {
	raw, err := c.client.Get(ctx, codeKey(code)).Result()
	if err != nil {
		return models.RoomID{}, false
	}
	id, err := models.ParseRoomID(raw)
	if err != nil {
		return models.RoomID{}, false
	}
	return id, true
}

// PutID caches the join-code mapping.
func (c *RoomCache) PutID(ctx context.Context, code string, id models.RoomID) {
	c.client.Set(ctx, codeKey(code), id.String(), roomCacheTTL)
}

// Invalidate drops the mapping when the room is destroyed.
func (c *RoomCache) Invalidate(ctx context.Context, code string) {
	c.client.Del(ctx, codeKey(code))
}
