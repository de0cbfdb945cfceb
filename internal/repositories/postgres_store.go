package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore implements Store for PostgreSQL through GORM. Toggles lock the
// counter rows FOR UPDATE, so concurrent toggles on one target serialize.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AutoMigrate creates or updates the tables backing the store.
func (s *PostgresStore) AutoMigrate() error {
	return s.db.AutoMigrate(&models.Profile{}, &models.Post{}, &models.Relation{})
}

type counterRow struct {
	ID    string
	Count int64
}

// lockCounters takes row locks on the given entities in a stable order and
// returns their counters keyed by counterRef.key().
func lockCounters(tx *gorm.DB, refs ...counterRef) (map[string]int64, error) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].table != refs[j].table {
			return refs[i].table < refs[j].table
		}
		return refs[i].id < refs[j].id
	})
	out := make(map[string]int64, len(refs))
	for _, ref := range refs {
		var row counterRow
		err := tx.Table(ref.table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id, " + ref.column + " AS count").
			Where("id = ?", ref.id).
			Take(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%s %s: %w", ref.table, ref.id, models.ErrNotFound)
			}
			return nil, err
		}
		out[ref.key()] = row.Count
	}
	return out, nil
}

type counterRef struct {
	table, id, column string
}

func (r counterRef) key() string {
	return r.table + ":" + r.id + ":" + r.column
}

func bump(tx *gorm.DB, ref counterRef, delta int64) error {
	return tx.Table(ref.table).
		Where("id = ?", ref.id).
		UpdateColumn(ref.column, gorm.Expr(ref.column+" + ?", delta)).Error
}

func (s *PostgresStore) Toggle(ctx context.Context, kind models.Kind, actorID, targetID string, related bool) (ToggleResult, error) {
	target := counterRef{table: kind.TargetCollection, id: targetID, column: columnName(kind.Counter)}
	refs := []counterRef{target}
	var actor *counterRef
	if kind.HasActorCounter() {
		actor = &counterRef{table: kind.ActorCollection, id: actorID, column: columnName(kind.ActorCounter)}
		refs = append(refs, *actor)
	}

	var res ToggleResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts, err := lockCounters(tx, refs...)
		if err != nil {
			return err
		}
		count := counts[target.key()]

		var n int64
		err = tx.Model(&models.Relation{}).
			Where("kind = ? AND target_id = ? AND actor_id = ?", kind.Name, targetID, actorID).
			Count(&n).Error
		if err != nil {
			return err
		}
		exists := n > 0
		if exists == related {
			res = ToggleResult{Related: exists, Count: count}
			return nil
		}

		delta := int64(1)
		if related {
			err = tx.Create(&models.Relation{Kind: kind.Name, TargetID: targetID, ActorID: actorID, CreatedAt: time.Now().UTC()}).Error
		} else {
			delta = -1
			err = tx.Where("kind = ? AND target_id = ? AND actor_id = ?", kind.Name, targetID, actorID).Delete(&models.Relation{}).Error
		}
		if err != nil {
			return err
		}
		if err := bump(tx, target, delta); err != nil {
			return err
		}
		if actor != nil {
			if err := bump(tx, *actor, delta); err != nil {
				return err
			}
		}
		res = ToggleResult{Related: related, Changed: true, Count: count + delta}
		return nil
	})
	if err != nil {
		return ToggleResult{}, translatePostgresErr(err)
	}
	return res, nil
}

func (s *PostgresStore) IsRelated(ctx context.Context, kind models.Kind, actorID, targetID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Relation{}).
		Where("kind = ? AND target_id = ? AND actor_id = ?", kind.Name, targetID, actorID).
		Count(&n).Error
	if err != nil {
		return false, translatePostgresErr(err)
	}
	return n > 0, nil
}

func (s *PostgresStore) GetCount(ctx context.Context, kind models.Kind, targetID string) (int64, error) {
	var row counterRow
	col := columnName(kind.Counter)
	err := s.db.WithContext(ctx).Table(kind.TargetCollection).
		Select("id, "+col+" AS count").
		Where("id = ?", targetID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%s %s: %w", kind.TargetCollection, targetID, models.ErrNotFound)
	}
	if err != nil {
		return 0, translatePostgresErr(err)
	}
	return row.Count, nil
}

func (s *PostgresStore) Reconcile(ctx context.Context, kind models.Kind, targetID string) (int64, int64, error) {
	target := counterRef{table: kind.TargetCollection, id: targetID, column: columnName(kind.Counter)}
	var before, after int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts, err := lockCounters(tx, target)
		if err != nil {
			return err
		}
		before = counts[target.key()]
		if err := tx.Model(&models.Relation{}).Where("kind = ? AND target_id = ?", kind.Name, targetID).Count(&after).Error; err != nil {
			return err
		}
		return tx.Table(target.table).Where("id = ?", targetID).UpdateColumn(target.column, after).Error
	})
	if err != nil {
		return 0, 0, translatePostgresErr(err)
	}
	return before, after, nil
}

// UpsertPost creates or updates a post and keeps the author's posts_count in step.
func (s *PostgresStore) UpsertPost(ctx context.Context, post *models.Post) (bool, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	author := counterRef{table: models.UsersCollection, id: post.AuthorID, column: "posts_count"}
	var created bool
	var stored models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCounters(tx, author); err != nil {
			return err
		}
		now := time.Now().UTC()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", post.ID).Take(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stored = *post
			stored.LikesCount, stored.SavesCount = 0, 0
			stored.CreatedAt, stored.UpdatedAt = now, now
			if err := tx.Create(&stored).Error; err != nil {
				return err
			}
			created = true
			return bump(tx, author, 1)
		}
		if err != nil {
			return err
		}
		if stored.AuthorID != post.AuthorID {
			return fmt.Errorf("post %s: %w", post.ID, models.ErrForbidden)
		}
		stored.Content, stored.ImageURLs, stored.CarTag, stored.UpdatedAt = post.Content, post.ImageURLs, post.CarTag, now
		created = false
		return tx.Model(&stored).Select("content", "image_urls", "car_tag", "updated_at").Updates(&stored).Error
	})
	if err != nil {
		return false, translatePostgresErr(err)
	}
	*post = stored
	return created, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("post %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, translatePostgresErr(err)
	}
	return &post, nil
}

func (s *PostgresStore) GetPostsByAuthor(ctx context.Context, authorID string, limit int) ([]models.Post, error) {
	posts := []models.Post{}
	q := s.db.WithContext(ctx).Where("author_id = ?", authorID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, translatePostgresErr(err)
	}
	return posts, nil
}

func (s *PostgresStore) DeletePost(ctx context.Context, actorID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&post).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("post %s: %w", id, models.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if post.AuthorID != actorID {
			return fmt.Errorf("post %s: %w", id, models.ErrForbidden)
		}
		if err := tx.Delete(&models.Post{}, "id = ?", id).Error; err != nil {
			return err
		}
		return bump(tx, counterRef{table: models.UsersCollection, id: post.AuthorID, column: "posts_count"}, -1)
	})
	return translatePostgresErr(err)
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, profile *models.Profile) (bool, error) {
	var created bool
	var stored models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", profile.ID).Take(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stored = *profile
			stored.FollowersCount, stored.FollowingCount, stored.PostsCount = 0, 0, 0
			stored.CreatedAt, stored.UpdatedAt = now, now
			created = true
			return tx.Create(&stored).Error
		}
		if err != nil {
			return err
		}
		stored.DisplayName, stored.Email, stored.PhotoURL = profile.DisplayName, profile.Email, profile.PhotoURL
		stored.Bio, stored.CarModel, stored.UpdatedAt = profile.Bio, profile.CarModel, now
		created = false
		return tx.Model(&stored).
			Select("display_name", "email", "photo_url", "bio", "car_model", "updated_at").
			Updates(&stored).Error
	})
	if err != nil {
		return false, translatePostgresErr(err)
	}
	*profile = stored
	return created, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, translatePostgresErr(err)
	}
	return &profile, nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translatePostgresErr(err error) error {
	if err == nil || isDomainErr(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("postgres: %w: %v", models.ErrTransactionConflict, err)
		case "22001":
			return fmt.Errorf("postgres: %w: %v", models.ErrInvalidArgument, err)
		}
	}
	return fmt.Errorf("postgres: %w: %v", models.ErrInternal, err)
}
