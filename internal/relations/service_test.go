package relations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/garage-club/backend/internal/events"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/anonto42/garage-club/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func seed(t *testing.T, store *repositories.MemoryStore, users ...string) string {
	t.Helper()
	ctx := context.Background()
	for _, uid := range users {
		_, err := store.UpsertProfile(ctx, &models.Profile{ID: uid, DisplayName: uid})
		require.NoError(t, err)
	}
	post := &models.Post{AuthorID: users[0], Content: "new exhaust"}
	_, err := store.UpsertPost(ctx, post)
	require.NoError(t, err)
	return post.ID
}

func newTestService(store repositories.RelationRepository, n events.Notifier) *Service {
	return NewService(store, n, Config{MaxAttempts: 3, Backoff: time.Millisecond})
}

func TestToggleSequence(t *testing.T) {
	store := repositories.NewMemoryStore()
	postID := seed(t, store, "alice", "bob")
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	res, err := svc.Toggle(ctx, "alice", "like", postID, false)
	require.NoError(t, err)
	assert.True(t, res.Related)
	assert.True(t, res.Changed)
	assert.Equal(t, int64(1), res.Count)

	res, err = svc.Toggle(ctx, "bob", "like", postID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)

	res, err = svc.Toggle(ctx, "alice", "like", postID, true)
	require.NoError(t, err)
	assert.False(t, res.Related)
	assert.Equal(t, int64(1), res.Count)

	related, err := svc.Status(ctx, "alice", "like", postID)
	require.NoError(t, err)
	assert.False(t, related)
	related, err = svc.Status(ctx, "bob", "like", postID)
	require.NoError(t, err)
	assert.True(t, related)

	n, err := svc.Count(ctx, "like", postID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 3, notifier.count())
}

func TestToggleStaleClaimWritesNothing(t *testing.T) {
	store := repositories.NewMemoryStore()
	postID := seed(t, store, "alice")
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "alice", "save", postID, false)
	require.NoError(t, err)

	// A second client still believes the post is unsaved.
	res, err := svc.Toggle(ctx, "alice", "save", postID, false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.True(t, res.Related)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, 1, notifier.count())
}

func TestToggleUnauthenticated(t *testing.T) {
	store := repositories.NewMemoryStore()
	postID := seed(t, store, "alice")
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	for _, tc := range []struct{ kind, target string }{
		{"like", postID},
		{"like", "missing"},
		{"nope", ""},
		{"follow", "alice"},
	} {
		_, err := svc.Toggle(context.Background(), "", tc.kind, tc.target, false)
		assert.ErrorIs(t, err, models.ErrUnauthenticated, "kind=%s target=%s", tc.kind, tc.target)
	}

	n, err := svc.Count(context.Background(), "like", postID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, notifier.count())
}

func TestToggleRejectsBadInput(t *testing.T) {
	store := repositories.NewMemoryStore()
	postID := seed(t, store, "alice")
	svc := newTestService(store, nil)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, "alice", "like", "no-such-post", false)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Toggle(ctx, "alice", "upvote", postID, false)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = svc.Toggle(ctx, "alice", "like", "posts/x", false)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = svc.Toggle(ctx, "alice", "follow", "alice", false)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	related, err := svc.Status(ctx, "alice", "follow", "alice")
	require.NoError(t, err)
	assert.False(t, related)
}

func TestFollowMovesBothCounters(t *testing.T) {
	store := repositories.NewMemoryStore()
	seed(t, store, "alice", "bob")
	svc := newTestService(store, nil)
	ctx := context.Background()

	res, err := svc.Toggle(ctx, "bob", "follow", "alice", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	alice, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	bob, err := store.GetProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.FollowersCount)
	assert.Equal(t, int64(1), bob.FollowingCount)

	_, err = svc.Toggle(ctx, "bob", "follow", "alice", true)
	require.NoError(t, err)
	bob, err = store.GetProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, bob.FollowingCount)
}

func TestConcurrentTogglesKeepCounterExact(t *testing.T) {
	const actors = 64
	store := repositories.NewMemoryStore()
	users := []string{"author"}
	for i := 0; i < actors; i++ {
		users = append(users, fmt.Sprintf("user-%d", i))
	}
	postID := seed(t, store, users...)
	svc := newTestService(store, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, uid := range users[1:] {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := svc.Toggle(ctx, uid, "like", postID, false)
			assert.NoError(t, err)
		}(uid)
	}
	wg.Wait()

	n, err := svc.Count(ctx, "like", postID)
	require.NoError(t, err)
	assert.Equal(t, int64(actors), n)

	// Half of them unlike again, racing the other half re-sending stale likes.
	for i, uid := range users[1:] {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			_, err := svc.Toggle(ctx, uid, "like", postID, i%2 == 0)
			assert.NoError(t, err)
		}(i, uid)
	}
	wg.Wait()

	n, err = svc.Count(ctx, "like", postID)
	require.NoError(t, err)
	assert.Equal(t, int64(actors/2), n)

	before, after, err := svc.Reconcile(ctx, "like", postID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

type conflictingRepo struct {
	repositories.RelationRepository
	failures int
	calls    int
	err      error
}

func (r *conflictingRepo) Toggle(ctx context.Context, kind models.Kind, actorID, targetID string, related bool) (repositories.ToggleResult, error) {
	r.calls++
	if r.err != nil {
		return repositories.ToggleResult{}, r.err
	}
	if r.calls <= r.failures {
		return repositories.ToggleResult{}, fmt.Errorf("aborted: %w", models.ErrTransactionConflict)
	}
	return repositories.ToggleResult{Related: related, Changed: true, Count: 7}, nil
}

func TestToggleRetriesConflicts(t *testing.T) {
	repo := &conflictingRepo{failures: 2}
	svc := newTestService(repo, nil)

	res, err := svc.Toggle(context.Background(), "alice", "like", "p1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Count)
	assert.Equal(t, 3, repo.calls)
}

func TestToggleGivesUpAfterMaxAttempts(t *testing.T) {
	repo := &conflictingRepo{failures: 10}
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	_, err := svc.Toggle(context.Background(), "alice", "like", "p1", false)
	assert.ErrorIs(t, err, models.ErrTransactionConflict)
	assert.Equal(t, 3, repo.calls)
	assert.Zero(t, notifier.count())
}

func TestToggleDoesNotRetryPermanentErrors(t *testing.T) {
	repo := &conflictingRepo{err: fmt.Errorf("post p1: %w", models.ErrNotFound)}
	svc := newTestService(repo, nil)

	_, err := svc.Toggle(context.Background(), "alice", "like", "p1", false)
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "post p1: not found", err.Error())
	assert.Equal(t, 1, repo.calls)
}

func TestToggleStopsRetryingWhenContextEnds(t *testing.T) {
	repo := &conflictingRepo{failures: 10}
	svc := NewService(repo, nil, Config{MaxAttempts: 5, Backoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Toggle(ctx, "alice", "like", "p1", false)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, repo.calls)
}

func TestInvalidationFailureDoesNotFailToggle(t *testing.T) {
	store := repositories.NewMemoryStore()
	postID := seed(t, store, "alice")
	notifier := &recordingNotifier{err: errors.New("redis down")}
	svc := newTestService(store, notifier)

	res, err := svc.Toggle(context.Background(), "alice", "like", postID, false)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	require.Equal(t, 1, notifier.count())
	ev := notifier.events[0]
	assert.Equal(t, events.TypeRelationToggled, ev.Type)
	assert.Equal(t, []events.Ref{{Collection: models.PostsCollection, ID: postID}}, ev.Stale)
}

func TestFollowInvalidatesBothProfiles(t *testing.T) {
	store := repositories.NewMemoryStore()
	seed(t, store, "alice", "bob")
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	_, err := svc.Toggle(context.Background(), "bob", "follow", "alice", false)
	require.NoError(t, err)
	require.Equal(t, 1, notifier.count())
	assert.ElementsMatch(t, []events.Ref{
		{Collection: models.UsersCollection, ID: "alice"},
		{Collection: models.UsersCollection, ID: "bob"},
	}, notifier.events[0].Stale)
}

type driftingRepo struct {
	repositories.RelationRepository
	before, after int64
}

func (r *driftingRepo) Reconcile(context.Context, models.Kind, string) (int64, int64, error) {
	return r.before, r.after, nil
}

func TestReconcileDriftInvalidatesTarget(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(&driftingRepo{before: 9, after: 1}, notifier)

	before, after, err := svc.Reconcile(context.Background(), "like", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), before)
	assert.Equal(t, int64(1), after)

	require.Equal(t, 1, notifier.count())
	ev := notifier.events[0]
	assert.Equal(t, events.TypeRelationToggled, ev.Type)
	assert.Equal(t, int64(1), ev.Count)
	assert.Equal(t, []events.Ref{{Collection: models.PostsCollection, ID: "p1"}}, ev.Stale)
}

func TestReconcileWithoutDriftIsSilent(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(&driftingRepo{before: 4, after: 4}, notifier)

	_, _, err := svc.Reconcile(context.Background(), "like", "p1")
	require.NoError(t, err)
	assert.Zero(t, notifier.count())
}
