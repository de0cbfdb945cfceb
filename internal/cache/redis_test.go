package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/anonto42/garage-club/backend/internal/events"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "garage:posts:p1", Key(models.PostsCollection, "p1"))
	assert.Equal(t, "garage:users:u1", Key(models.UsersCollection, "u1"))
}

func TestNilCacheAlwaysMisses(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.SetPost(ctx, &models.Post{ID: "p1"})
	_, ok := c.GetPost(ctx, "p1")
	assert.False(t, ok)
	_, ok = c.GetProfile(ctx, "u1")
	assert.False(t, ok)
	assert.NoError(t, c.Notify(ctx, events.Event{Stale: []events.Ref{{Collection: "posts", ID: "p1"}}}))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	c := New(rdb, time.Minute)
	ctx := context.Background()

	postID := uuid.NewString()
	c.SetPost(ctx, &models.Post{ID: postID, AuthorID: "alice", Content: "new wheels", LikesCount: 3})
	uid := uuid.NewString()
	c.SetProfile(ctx, &models.Profile{ID: uid, DisplayName: "Alice", FollowersCount: 9})

	post, ok := c.GetPost(ctx, postID)
	require.True(t, ok)
	assert.Equal(t, int64(3), post.LikesCount)
	profile, ok := c.GetProfile(ctx, uid)
	require.True(t, ok)
	assert.Equal(t, int64(9), profile.FollowersCount)

	err := c.Notify(ctx, events.Event{
		Type: events.TypeRelationToggled,
		Stale: []events.Ref{
			{Collection: models.PostsCollection, ID: postID},
			{Collection: models.UsersCollection, ID: uid},
		},
	})
	require.NoError(t, err)

	_, ok = c.GetPost(ctx, postID)
	assert.False(t, ok)
	_, ok = c.GetProfile(ctx, uid)
	assert.False(t, ok)
}
