package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract. IDs are unique per run so the
// external backends need no cleanup between runs.
func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()
	prefix := uuid.NewString()[:8]
	id := func(name string) string { return prefix + "-" + name }

	profile := func(t *testing.T, name string) string {
		t.Helper()
		uid := id(name)
		created, err := store.UpsertProfile(ctx, &models.Profile{ID: uid, DisplayName: name})
		require.NoError(t, err)
		require.True(t, created)
		return uid
	}
	post := func(t *testing.T, author string) string {
		t.Helper()
		p := &models.Post{AuthorID: author, Content: "track day", ImageURLs: []string{"https://example.com/a.jpg"}}
		created, err := store.UpsertPost(ctx, p)
		require.NoError(t, err)
		require.True(t, created)
		require.NotEmpty(t, p.ID)
		return p.ID
	}

	t.Run("toggle moves record and counter together", func(t *testing.T) {
		a, b := profile(t, "toggle-a"), profile(t, "toggle-b")
		postID := post(t, a)

		res, err := store.Toggle(ctx, models.LikeKind, a, postID, true)
		require.NoError(t, err)
		assert.Equal(t, ToggleResult{Related: true, Changed: true, Count: 1}, res)

		res, err = store.Toggle(ctx, models.LikeKind, b, postID, true)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Count)

		res, err = store.Toggle(ctx, models.LikeKind, a, postID, false)
		require.NoError(t, err)
		assert.Equal(t, ToggleResult{Related: false, Changed: true, Count: 1}, res)

		related, err := store.IsRelated(ctx, models.LikeKind, a, postID)
		require.NoError(t, err)
		assert.False(t, related)
		related, err = store.IsRelated(ctx, models.LikeKind, b, postID)
		require.NoError(t, err)
		assert.True(t, related)

		n, err := store.GetCount(ctx, models.LikeKind, postID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("toggle into current state writes nothing", func(t *testing.T) {
		a := profile(t, "noop-a")
		postID := post(t, a)

		res, err := store.Toggle(ctx, models.SaveKind, a, postID, false)
		require.NoError(t, err)
		assert.Equal(t, ToggleResult{}, res)

		_, err = store.Toggle(ctx, models.SaveKind, a, postID, true)
		require.NoError(t, err)
		res, err = store.Toggle(ctx, models.SaveKind, a, postID, true)
		require.NoError(t, err)
		assert.Equal(t, ToggleResult{Related: true, Changed: false, Count: 1}, res)
	})

	t.Run("kinds keep separate counters", func(t *testing.T) {
		a := profile(t, "kinds-a")
		postID := post(t, a)

		_, err := store.Toggle(ctx, models.LikeKind, a, postID, true)
		require.NoError(t, err)
		_, err = store.Toggle(ctx, models.SaveKind, a, postID, true)
		require.NoError(t, err)
		_, err = store.Toggle(ctx, models.SaveKind, a, postID, false)
		require.NoError(t, err)

		got, err := store.GetPost(ctx, postID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.LikesCount)
		assert.Zero(t, got.SavesCount)
	})

	t.Run("follow moves follower and following counts", func(t *testing.T) {
		a, b := profile(t, "follow-a"), profile(t, "follow-b")

		res, err := store.Toggle(ctx, models.FollowKind, b, a, true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Count)

		pa, err := store.GetProfile(ctx, a)
		require.NoError(t, err)
		pb, err := store.GetProfile(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pa.FollowersCount)
		assert.Zero(t, pa.FollowingCount)
		assert.Equal(t, int64(1), pb.FollowingCount)

		_, err = store.Toggle(ctx, models.FollowKind, b, a, false)
		require.NoError(t, err)
		pb, err = store.GetProfile(ctx, b)
		require.NoError(t, err)
		assert.Zero(t, pb.FollowingCount)
	})

	t.Run("missing target or actor is not found", func(t *testing.T) {
		a := profile(t, "missing-a")

		_, err := store.Toggle(ctx, models.LikeKind, a, id("no-post"), true)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = store.Toggle(ctx, models.FollowKind, id("ghost"), a, true)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = store.GetCount(ctx, models.LikeKind, id("no-post"))
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = store.GetPost(ctx, id("no-post"))
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = store.GetProfile(ctx, id("ghost"))
		assert.ErrorIs(t, err, models.ErrNotFound)

		pa, err := store.GetProfile(ctx, a)
		require.NoError(t, err)
		assert.Zero(t, pa.FollowersCount)
	})

	t.Run("concurrent likes count exactly", func(t *testing.T) {
		const actors = 24
		author := profile(t, "race-author")
		postID := post(t, author)
		uids := make([]string, actors)
		for i := range uids {
			uids[i] = profile(t, fmt.Sprintf("race-%d", i))
		}

		var wg sync.WaitGroup
		for _, uid := range uids {
			wg.Add(1)
			go func(uid string) {
				defer wg.Done()
				for {
					_, err := store.Toggle(ctx, models.LikeKind, uid, postID, true)
					if err == nil {
						return
					}
					if !assert.ErrorIs(t, err, models.ErrTransactionConflict) {
						return
					}
				}
			}(uid)
		}
		wg.Wait()

		n, err := store.GetCount(ctx, models.LikeKind, postID)
		require.NoError(t, err)
		assert.Equal(t, int64(actors), n)
	})

	t.Run("reconcile reports and repairs", func(t *testing.T) {
		a, b := profile(t, "rec-a"), profile(t, "rec-b")
		postID := post(t, a)
		_, err := store.Toggle(ctx, models.LikeKind, a, postID, true)
		require.NoError(t, err)
		_, err = store.Toggle(ctx, models.LikeKind, b, postID, true)
		require.NoError(t, err)

		before, after, err := store.Reconcile(ctx, models.LikeKind, postID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), before)
		assert.Equal(t, int64(2), after)
	})

	t.Run("post upsert workflow", func(t *testing.T) {
		a, b := profile(t, "posts-a"), profile(t, "posts-b")
		postID := post(t, a)

		pa, err := store.GetProfile(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pa.PostsCount)

		_, err = store.Toggle(ctx, models.LikeKind, b, postID, true)
		require.NoError(t, err)

		update := &models.Post{ID: postID, AuthorID: a, Content: "dyno results", CarTag: "e46"}
		created, err := store.UpsertPost(ctx, update)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "dyno results", update.Content)
		assert.Equal(t, int64(1), update.LikesCount, "update must not reset counters")

		_, err = store.UpsertPost(ctx, &models.Post{ID: postID, AuthorID: b, Content: "hijack"})
		assert.ErrorIs(t, err, models.ErrForbidden)

		_, err = store.UpsertPost(ctx, &models.Post{AuthorID: id("ghost"), Content: "orphan"})
		assert.ErrorIs(t, err, models.ErrNotFound)

		second := post(t, a)
		posts, err := store.GetPostsByAuthor(ctx, a, 10)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, second, posts[0].ID)

		posts, err = store.GetPostsByAuthor(ctx, a, 1)
		require.NoError(t, err)
		assert.Len(t, posts, 1)

		assert.ErrorIs(t, store.DeletePost(ctx, b, postID), models.ErrForbidden)
		require.NoError(t, store.DeletePost(ctx, a, postID))
		assert.ErrorIs(t, store.DeletePost(ctx, a, postID), models.ErrNotFound)

		pa, err = store.GetProfile(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pa.PostsCount)

		_, err = store.Toggle(ctx, models.LikeKind, b, postID, false)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("profile upsert keeps counters", func(t *testing.T) {
		a, b := profile(t, "prof-a"), profile(t, "prof-b")
		_, err := store.Toggle(ctx, models.FollowKind, b, a, true)
		require.NoError(t, err)

		update := &models.Profile{ID: a, DisplayName: "Renamed", Bio: "boost addict", CarModel: "GT86"}
		created, err := store.UpsertProfile(ctx, update)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := store.GetProfile(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.DisplayName)
		assert.Equal(t, "GT86", got.CarModel)
		assert.Equal(t, int64(1), got.FollowersCount)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}
