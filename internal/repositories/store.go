package repositories

import (
	"context"

	"github.com/anonto42/garage-club/backend/internal/models"
	"gorm.io/gorm/schema"
)

// ToggleResult reports the state after a toggle committed.
type ToggleResult struct {
	Related bool
	// Changed is false when the relation was already in the requested state
	// and nothing was written.
	Changed bool
	// Count is the target counter after the unit of work.
	Count int64
}

// RelationRepository defines the counted relation operations. Every method
// that writes runs as a single atomic unit against the backing store.
type RelationRepository interface {
	// Toggle moves the relation between actor and target into the requested
	// state, creating or deleting the record and moving the counters together.
	Toggle(ctx context.Context, kind models.Kind, actorID, targetID string, related bool) (ToggleResult, error)
	IsRelated(ctx context.Context, kind models.Kind, actorID, targetID string) (bool, error)
	GetCount(ctx context.Context, kind models.Kind, targetID string) (int64, error)
	// Reconcile recounts the relation records of a target and rewrites its counter.
	Reconcile(ctx context.Context, kind models.Kind, targetID string) (before, after int64, err error)
}

// PostRepository defines the post upsert workflow.
type PostRepository interface {
	// UpsertPost creates the post (and bumps the author's posts count) or
	// updates the content of an existing post owned by the same author.
	UpsertPost(ctx context.Context, post *models.Post) (created bool, err error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	GetPostsByAuthor(ctx context.Context, authorID string, limit int) ([]models.Post, error)
	DeletePost(ctx context.Context, actorID, id string) error
}

// ProfileRepository defines profile data operations.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, profile *models.Profile) (created bool, err error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// Store bundles the repositories served by one backend.
type Store interface {
	RelationRepository
	PostRepository
	ProfileRepository
	Close(ctx context.Context) error
}

// columnName maps a camelCase document field to the snake_case name used by
// the relational and Mongo backends.
func columnName(field string) string {
	return schema.NamingStrategy{}.ColumnName("", field)
}

func relationKey(kind models.Kind, targetID, actorID string) string {
	return kind.Name + ":" + targetID + ":" + actorID
}
