package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anonto42/garage-club/backend/internal/events"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "garage"

// Cache holds rendered posts and profiles in Redis. A nil *Cache is a
// valid cache that always misses.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Key is the Redis key of a cached entity.
func Key(collection, id string) string {
	return keyPrefix + ":" + collection + ":" + id
}

func (c *Cache) GetPost(ctx context.Context, id string) (*models.Post, bool) {
	var post models.Post
	if !c.get(ctx, Key(models.PostsCollection, id), &post) {
		return nil, false
	}
	return &post, true
}

func (c *Cache) SetPost(ctx context.Context, post *models.Post) {
	c.set(ctx, Key(models.PostsCollection, post.ID), post)
}

func (c *Cache) GetProfile(ctx context.Context, id string) (*models.Profile, bool) {
	var profile models.Profile
	if !c.get(ctx, Key(models.UsersCollection, id), &profile) {
		return nil, false
	}
	return &profile, true
}

func (c *Cache) SetProfile(ctx context.Context, profile *models.Profile) {
	c.set(ctx, Key(models.UsersCollection, profile.ID), profile)
}

// Notify drops the cached renders named by the event.
func (c *Cache) Notify(ctx context.Context, ev events.Event) error {
	if c == nil || len(ev.Stale) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ev.Stale))
	for _, ref := range ev.Stale {
		keys = append(keys, Key(ref.Collection, ref.ID))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Cache) get(ctx context.Context, key string, v interface{}) bool {
	if c == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warnf("cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, v interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Warnf("cache encode %s: %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warnf("cache set %s: %v", key, err)
	}
}
