package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. A single mutex is the
// atomic unit; it backs the tests and STORE_BACKEND=memory.
type MemoryStore struct {
	mu        sync.Mutex
	posts     map[string]*models.Post
	profiles  map[string]*models.Profile
	relations map[string]models.Relation
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:     make(map[string]*models.Post),
		profiles:  make(map[string]*models.Profile),
		relations: make(map[string]models.Relation),
		now:       time.Now,
	}
}

// counter returns a pointer to the named counter of an entity.
func (s *MemoryStore) counter(collection, id, field string) (*int64, bool) {
	switch collection {
	case models.PostsCollection:
		p, ok := s.posts[id]
		if !ok {
			return nil, false
		}
		switch field {
		case "likesCount":
			return &p.LikesCount, true
		case "savesCount":
			return &p.SavesCount, true
		}
	case models.UsersCollection:
		u, ok := s.profiles[id]
		if !ok {
			return nil, false
		}
		switch field {
		case "followersCount":
			return &u.FollowersCount, true
		case "followingCount":
			return &u.FollowingCount, true
		case "postsCount":
			return &u.PostsCount, true
		}
	}
	return nil, false
}

func (s *MemoryStore) Toggle(ctx context.Context, kind models.Kind, actorID, targetID string, related bool) (ToggleResult, error) {
	if err := ctx.Err(); err != nil {
		return ToggleResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.counter(kind.TargetCollection, targetID, kind.Counter)
	if !ok {
		return ToggleResult{}, fmt.Errorf("%s %s: %w", kind.TargetCollection, targetID, models.ErrNotFound)
	}
	var actor *int64
	if kind.HasActorCounter() {
		if actor, ok = s.counter(kind.ActorCollection, actorID, kind.ActorCounter); !ok {
			return ToggleResult{}, fmt.Errorf("%s %s: %w", kind.ActorCollection, actorID, models.ErrNotFound)
		}
	}

	key := relationKey(kind, targetID, actorID)
	_, exists := s.relations[key]
	if exists == related {
		return ToggleResult{Related: exists, Count: *target}, nil
	}

	delta := int64(1)
	if related {
		s.relations[key] = models.Relation{Kind: kind.Name, TargetID: targetID, ActorID: actorID, CreatedAt: s.now()}
	} else {
		delete(s.relations, key)
		delta = -1
	}
	*target += delta
	if actor != nil {
		*actor += delta
	}
	return ToggleResult{Related: related, Changed: true, Count: *target}, nil
}

func (s *MemoryStore) IsRelated(ctx context.Context, kind models.Kind, actorID, targetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.relations[relationKey(kind, targetID, actorID)]
	return ok, nil
}

func (s *MemoryStore) GetCount(ctx context.Context, kind models.Kind, targetID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counter(kind.TargetCollection, targetID, kind.Counter)
	if !ok {
		return 0, fmt.Errorf("%s %s: %w", kind.TargetCollection, targetID, models.ErrNotFound)
	}
	return *c, nil
}

func (s *MemoryStore) Reconcile(ctx context.Context, kind models.Kind, targetID string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counter(kind.TargetCollection, targetID, kind.Counter)
	if !ok {
		return 0, 0, fmt.Errorf("%s %s: %w", kind.TargetCollection, targetID, models.ErrNotFound)
	}
	var n int64
	for _, r := range s.relations {
		if r.Kind == kind.Name && r.TargetID == targetID {
			n++
		}
	}
	before := *c
	*c = n
	return before, n, nil
}

func (s *MemoryStore) UpsertPost(ctx context.Context, post *models.Post) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	author, ok := s.profiles[post.AuthorID]
	if !ok {
		return false, fmt.Errorf("author %s: %w", post.AuthorID, models.ErrNotFound)
	}
	now := s.now()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	existing, ok := s.posts[post.ID]
	if ok {
		if existing.AuthorID != post.AuthorID {
			return false, fmt.Errorf("post %s: %w", post.ID, models.ErrForbidden)
		}
		existing.Content = post.Content
		existing.ImageURLs = slices.Clone(post.ImageURLs)
		existing.CarTag = post.CarTag
		existing.UpdatedAt = now
		*post = copyPost(existing)
		return false, nil
	}

	post.LikesCount, post.SavesCount = 0, 0
	post.CreatedAt, post.UpdatedAt = now, now
	stored := copyPost(post)
	s.posts[post.ID] = &stored
	author.PostsCount++
	return true, nil
}

// copyPost detaches the returned post from the stored one.
func copyPost(p *models.Post) models.Post {
	cp := *p
	cp.ImageURLs = slices.Clone(p.ImageURLs)
	return cp
}

func (s *MemoryStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, models.ErrNotFound)
	}
	cp := copyPost(p)
	return &cp, nil
}

func (s *MemoryStore) GetPostsByAuthor(ctx context.Context, authorID string, limit int) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := []models.Post{}
	for _, p := range s.posts {
		if p.AuthorID == authorID {
			posts = append(posts, copyPost(p))
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, actorID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("post %s: %w", id, models.ErrNotFound)
	}
	if p.AuthorID != actorID {
		return fmt.Errorf("post %s: %w", id, models.ErrForbidden)
	}
	delete(s.posts, id)
	if author, ok := s.profiles[p.AuthorID]; ok {
		author.PostsCount--
	}
	return nil
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, profile *models.Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if existing, ok := s.profiles[profile.ID]; ok {
		existing.DisplayName = profile.DisplayName
		existing.Email = profile.Email
		existing.PhotoURL = profile.PhotoURL
		existing.Bio = profile.Bio
		existing.CarModel = profile.CarModel
		existing.UpdatedAt = now
		*profile = *existing
		return false, nil
	}
	profile.FollowersCount, profile.FollowingCount, profile.PostsCount = 0, 0, 0
	profile.CreatedAt, profile.UpdatedAt = now, now
	stored := *profile
	s.profiles[profile.ID] = &stored
	return true, nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
