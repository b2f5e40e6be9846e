// Package cache keeps a read-through copy of rooms in Redis so the admission
// path does not hit Postgres on every handshake.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

type RoomSource interface {
	Get(ctx context.Context, id string) (*domain.Room, error)
}

type RoomCache struct {
	next   RoomSource
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewRoomCache(next RoomSource, rdb redis.UniversalClient, ttl time.Duration) *RoomCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RoomCache{next: next, rdb: rdb, ttl: ttl, prefix: "room:", now: time.Now}
}

// Get serves from Redis when possible. Redis failures degrade to the source;
// they are never returned to the caller.
func (c *RoomCache) Get(ctx context.Context, id string) (*domain.Room, error) {
	key := c.prefix + id

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rm domain.Room
		if err := json.Unmarshal(raw, &rm); err == nil {
			return &rm, nil
		}
		slog.Warn("room cache: corrupt entry", "room_id", id)
	case !errors.Is(err, redis.Nil):
		slog.Warn("room cache: get failed", "room_id", id, "err", err)
	}

	room, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if ttl := c.entryTTL(room); ttl > 0 {
		if b, err := json.Marshal(room); err == nil {
			if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
				slog.Warn("room cache: set failed", "room_id", id, "err", err)
			}
		}
	}
	return room, nil
}

func (c *RoomCache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, c.prefix+id).Err()
}

// entryTTL keeps an entry no longer than the room is joinable.
func (c *RoomCache) entryTTL(room *domain.Room) time.Duration {
	left := room.EndTime.Sub(c.now())
	if left <= 0 {
		return 0
	}
	if left < c.ttl {
		return left
	}
	return c.ttl
}
