package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/garage-club/backend/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore. Relation records live
// in a subcollection of their target, keyed by actor ID:
//
//	posts/{postId}/likes/{uid}       {createdAt}
//	users/{uid}/followers/{followerUid} {createdAt}
type FirestoreStore struct {
	client      *firestore.Client
	maxAttempts int
}

// NewFirestoreStore creates a new FirestoreStore
func NewFirestoreStore(client *firestore.Client, maxAttempts int) *FirestoreStore {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &FirestoreStore{client: client, maxAttempts: maxAttempts}
}

func (s *FirestoreStore) doc(collection, id string) (*firestore.DocumentRef, error) {
	ref := s.client.Collection(collection).Doc(id)
	if ref == nil {
		return nil, fmt.Errorf("%s id %q: %w", collection, id, models.ErrInvalidArgument)
	}
	return ref, nil
}

func (s *FirestoreStore) run(ctx context.Context, f func(context.Context, *firestore.Transaction) error) error {
	return translateFirestoreErr(s.client.RunTransaction(ctx, f, firestore.MaxAttempts(s.maxAttempts)))
}

// Toggle reads target, actor and relation record, then writes the record and
// counters in the same transaction. Firestore retries the closure on contention.
func (s *FirestoreStore) Toggle(ctx context.Context, kind models.Kind, actorID, targetID string, related bool) (ToggleResult, error) {
	targetRef, err := s.doc(kind.TargetCollection, targetID)
	if err != nil {
		return ToggleResult{}, err
	}
	relRef := targetRef.Collection(kind.RelationCollection).Doc(actorID)
	if relRef == nil {
		return ToggleResult{}, fmt.Errorf("actor id %q: %w", actorID, models.ErrInvalidArgument)
	}
	var actorRef *firestore.DocumentRef
	if kind.HasActorCounter() {
		if actorRef, err = s.doc(kind.ActorCollection, actorID); err != nil {
			return ToggleResult{}, err
		}
	}

	var res ToggleResult
	err = s.run(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		target, err := tx.Get(targetRef)
		if err != nil {
			return notFoundOr(err, "%s %s", kind.TargetCollection, targetID)
		}
		count, err := counterValue(target, kind.Counter)
		if err != nil {
			return err
		}
		if actorRef != nil {
			if _, err := tx.Get(actorRef); err != nil {
				return notFoundOr(err, "%s %s", kind.ActorCollection, actorID)
			}
		}
		exists := true
		if _, err := tx.Get(relRef); err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			exists = false
		}

		if exists == related {
			res = ToggleResult{Related: exists, Count: count}
			return nil
		}

		delta := int64(1)
		if related {
			err = tx.Create(relRef, map[string]interface{}{
				"actorId":   actorID,
				"createdAt": time.Now().UTC(),
			})
		} else {
			delta = -1
			err = tx.Delete(relRef)
		}
		if err != nil {
			return err
		}
		if err := tx.Update(targetRef, []firestore.Update{{Path: kind.Counter, Value: firestore.Increment(delta)}}); err != nil {
			return err
		}
		if actorRef != nil {
			if err := tx.Update(actorRef, []firestore.Update{{Path: kind.ActorCounter, Value: firestore.Increment(delta)}}); err != nil {
				return err
			}
		}
		res = ToggleResult{Related: related, Changed: true, Count: count + delta}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}
	return res, nil
}

func (s *FirestoreStore) IsRelated(ctx context.Context, kind models.Kind, actorID, targetID string) (bool, error) {
	targetRef, err := s.doc(kind.TargetCollection, targetID)
	if err != nil {
		return false, err
	}
	relRef := targetRef.Collection(kind.RelationCollection).Doc(actorID)
	if relRef == nil {
		return false, fmt.Errorf("actor id %q: %w", actorID, models.ErrInvalidArgument)
	}
	if _, err := relRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, translateFirestoreErr(err)
	}
	return true, nil
}

func (s *FirestoreStore) GetCount(ctx context.Context, kind models.Kind, targetID string) (int64, error) {
	ref, err := s.doc(kind.TargetCollection, targetID)
	if err != nil {
		return 0, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return 0, translateFirestoreErr(notFoundOr(err, "%s %s", kind.TargetCollection, targetID))
	}
	return counterValue(snap, kind.Counter)
}

func (s *FirestoreStore) Reconcile(ctx context.Context, kind models.Kind, targetID string) (int64, int64, error) {
	targetRef, err := s.doc(kind.TargetCollection, targetID)
	if err != nil {
		return 0, 0, err
	}
	var before, after int64
	err = s.run(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		target, err := tx.Get(targetRef)
		if err != nil {
			return notFoundOr(err, "%s %s", kind.TargetCollection, targetID)
		}
		if before, err = counterValue(target, kind.Counter); err != nil {
			return err
		}
		records, err := tx.Documents(targetRef.Collection(kind.RelationCollection)).GetAll()
		if err != nil {
			return err
		}
		after = int64(len(records))
		return tx.Update(targetRef, []firestore.Update{{Path: kind.Counter, Value: after}})
	})
	return before, after, err
}

// UpsertPost creates or updates a post and keeps the author's postsCount in step.
func (s *FirestoreStore) UpsertPost(ctx context.Context, post *models.Post) (bool, error) {
	authorRef, err := s.doc(models.UsersCollection, post.AuthorID)
	if err != nil {
		return false, err
	}
	var postRef *firestore.DocumentRef
	if post.ID == "" {
		postRef = s.client.Collection(models.PostsCollection).NewDoc()
		post.ID = postRef.ID
	} else if postRef, err = s.doc(models.PostsCollection, post.ID); err != nil {
		return false, err
	}

	var created bool
	var stored models.Post
	err = s.run(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(authorRef); err != nil {
			return notFoundOr(err, "author %s", post.AuthorID)
		}
		now := time.Now().UTC()
		snap, err := tx.Get(postRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err != nil {
			stored = *post
			stored.LikesCount, stored.SavesCount = 0, 0
			stored.CreatedAt, stored.UpdatedAt = now, now
			if err := tx.Create(postRef, stored); err != nil {
				return err
			}
			created = true
			return tx.Update(authorRef, []firestore.Update{{Path: "postsCount", Value: firestore.Increment(1)}})
		}

		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if stored.AuthorID != post.AuthorID {
			return fmt.Errorf("post %s: %w", post.ID, models.ErrForbidden)
		}
		stored.Content, stored.ImageURLs, stored.CarTag, stored.UpdatedAt = post.Content, post.ImageURLs, post.CarTag, now
		created = false
		return tx.Update(postRef, []firestore.Update{
			{Path: "content", Value: stored.Content},
			{Path: "imageUrls", Value: stored.ImageURLs},
			{Path: "carTag", Value: stored.CarTag},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return false, err
	}
	stored.ID = post.ID
	*post = stored
	return created, nil
}

func (s *FirestoreStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	ref, err := s.doc(models.PostsCollection, id)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, translateFirestoreErr(notFoundOr(err, "post %s", id))
	}
	var post models.Post
	if err := snap.DataTo(&post); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", id, models.ErrInternal)
	}
	post.ID = snap.Ref.ID
	return &post, nil
}

func (s *FirestoreStore) GetPostsByAuthor(ctx context.Context, authorID string, limit int) ([]models.Post, error) {
	q := s.client.Collection(models.PostsCollection).
		Where("authorId", "==", authorID).
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	posts := []models.Post{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translateFirestoreErr(err)
		}
		var post models.Post
		if err := snap.DataTo(&post); err != nil {
			return nil, fmt.Errorf("decode post %s: %w", snap.Ref.ID, models.ErrInternal)
		}
		post.ID = snap.Ref.ID
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *FirestoreStore) DeletePost(ctx context.Context, actorID, id string) error {
	postRef, err := s.doc(models.PostsCollection, id)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(postRef)
		if err != nil {
			return notFoundOr(err, "post %s", id)
		}
		var post models.Post
		if err := snap.DataTo(&post); err != nil {
			return err
		}
		if post.AuthorID != actorID {
			return fmt.Errorf("post %s: %w", id, models.ErrForbidden)
		}
		authorRef, err := s.doc(models.UsersCollection, post.AuthorID)
		if err != nil {
			return err
		}
		_, authorErr := tx.Get(authorRef)
		if authorErr != nil && status.Code(authorErr) != codes.NotFound {
			return authorErr
		}
		if err := tx.Delete(postRef); err != nil {
			return err
		}
		if authorErr != nil {
			return nil
		}
		return tx.Update(authorRef, []firestore.Update{{Path: "postsCount", Value: firestore.Increment(-1)}})
	})
}

func (s *FirestoreStore) UpsertProfile(ctx context.Context, profile *models.Profile) (bool, error) {
	ref, err := s.doc(models.UsersCollection, profile.ID)
	if err != nil {
		return false, err
	}
	var created bool
	var stored models.Profile
	err = s.run(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			stored = *profile
			stored.FollowersCount, stored.FollowingCount, stored.PostsCount = 0, 0, 0
			stored.CreatedAt, stored.UpdatedAt = now, now
			created = true
			return tx.Create(ref, stored)
		}
		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		stored.DisplayName, stored.Email, stored.PhotoURL = profile.DisplayName, profile.Email, profile.PhotoURL
		stored.Bio, stored.CarModel, stored.UpdatedAt = profile.Bio, profile.CarModel, now
		created = false
		return tx.Update(ref, []firestore.Update{
			{Path: "displayName", Value: stored.DisplayName},
			{Path: "email", Value: stored.Email},
			{Path: "photoUrl", Value: stored.PhotoURL},
			{Path: "bio", Value: stored.Bio},
			{Path: "carModel", Value: stored.CarModel},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return false, err
	}
	stored.ID = profile.ID
	*profile = stored
	return created, nil
}

func (s *FirestoreStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	ref, err := s.doc(models.UsersCollection, id)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, translateFirestoreErr(notFoundOr(err, "profile %s", id))
	}
	var profile models.Profile
	if err := snap.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, models.ErrInternal)
	}
	profile.ID = snap.Ref.ID
	return &profile, nil
}

func (s *FirestoreStore) Close(ctx context.Context) error {
	return s.client.Close()
}

// counterValue reads an integer counter; a missing field counts as zero.
func counterValue(snap *firestore.DocumentSnapshot, field string) (int64, error) {
	v, err := snap.DataAt(field)
	if err != nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%s.%s has type %T: %w", snap.Ref.ID, field, v, models.ErrInternal)
}

// notFoundOr maps a gRPC NotFound into models.ErrNotFound and leaves other
// errors for translateFirestoreErr.
func notFoundOr(err error, format string, args ...interface{}) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf(format+": %w", append(args, models.ErrNotFound)...)
	}
	return err
}

func translateFirestoreErr(err error) error {
	if err == nil || isDomainErr(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Aborted:
		return fmt.Errorf("firestore: %w: %v", models.ErrTransactionConflict, err)
	case codes.NotFound:
		return fmt.Errorf("firestore: %w: %v", models.ErrNotFound, err)
	case codes.Canceled, codes.DeadlineExceeded:
		return err
	}
	return fmt.Errorf("firestore: %w: %v", models.ErrInternal, err)
}

func isDomainErr(err error) bool {
	for _, target := range []error{
		models.ErrNotFound, models.ErrForbidden, models.ErrInvalidArgument,
		models.ErrTransactionConflict, models.ErrInternal, models.ErrUnauthenticated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
