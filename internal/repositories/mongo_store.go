package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/garage-club/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// relationDoc is the Mongo shape of a relation record.
type relationDoc struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	TargetID  string    `bson:"target_id"`
	ActorID   string    `bson:"actor_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore implements Store for MongoDB. Writes run inside multi-document
// transactions, so the deployment must be a replica set.
type MongoStore struct {
	client    *mongo.Client
	posts     *mongo.Collection
	users     *mongo.Collection
	relations *mongo.Collection
}

// NewMongoStore creates a new MongoStore
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:    client,
		posts:     db.Collection(models.PostsCollection),
		users:     db.Collection(models.UsersCollection),
		relations: db.Collection("relations"),
	}
}

// EnsureIndexes creates the secondary indexes the queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.relations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "kind", Value: 1}, {Key: "target_id", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := s.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	if name == models.UsersCollection {
		return s.users
	}
	return s.posts
}

// withTransaction runs fn in a session transaction. The driver retries
// transient transaction errors until the context ends.
func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return translateMongoErr(err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return translateMongoErr(err)
}

func (s *MongoStore) Toggle(ctx context.Context, kind models.Kind, actorID, targetID string, related bool) (ToggleResult, error) {
	counter := columnName(kind.Counter)
	targets := s.collection(kind.TargetCollection)
	key := relationKey(kind, targetID, actorID)

	var res ToggleResult
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var target bson.M
		err := targets.FindOne(sc, bson.M{"_id": targetID}, options.FindOne().SetProjection(bson.M{counter: 1})).Decode(&target)
		if err != nil {
			return mongoNotFoundOr(err, "%s %s", kind.TargetCollection, targetID)
		}
		if kind.HasActorCounter() {
			err := s.collection(kind.ActorCollection).FindOne(sc, bson.M{"_id": actorID}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
			if err != nil {
				return mongoNotFoundOr(err, "%s %s", kind.ActorCollection, actorID)
			}
		}

		exists := true
		if err := s.relations.FindOne(sc, bson.M{"_id": key}).Err(); err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return err
			}
			exists = false
		}
		if exists == related {
			res = ToggleResult{Related: exists, Count: toInt64(target[counter])}
			return nil
		}

		delta := int64(1)
		if related {
			_, err = s.relations.InsertOne(sc, relationDoc{
				ID: key, Kind: kind.Name, TargetID: targetID, ActorID: actorID, CreatedAt: time.Now().UTC(),
			})
		} else {
			delta = -1
			_, err = s.relations.DeleteOne(sc, bson.M{"_id": key})
		}
		if err != nil {
			return err
		}

		var updated bson.M
		err = targets.FindOneAndUpdate(sc,
			bson.M{"_id": targetID},
			bson.M{"$inc": bson.M{counter: delta}},
			options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{counter: 1}),
		).Decode(&updated)
		if err != nil {
			return mongoNotFoundOr(err, "%s %s", kind.TargetCollection, targetID)
		}
		if kind.HasActorCounter() {
			if _, err := s.collection(kind.ActorCollection).UpdateOne(sc,
				bson.M{"_id": actorID},
				bson.M{"$inc": bson.M{columnName(kind.ActorCounter): delta}},
			); err != nil {
				return err
			}
		}
		res = ToggleResult{Related: related, Changed: true, Count: toInt64(updated[counter])}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}
	return res, nil
}

func (s *MongoStore) IsRelated(ctx context.Context, kind models.Kind, actorID, targetID string) (bool, error) {
	n, err := s.relations.CountDocuments(ctx, bson.M{"_id": relationKey(kind, targetID, actorID)})
	if err != nil {
		return false, translateMongoErr(err)
	}
	return n > 0, nil
}

func (s *MongoStore) GetCount(ctx context.Context, kind models.Kind, targetID string) (int64, error) {
	counter := columnName(kind.Counter)
	var target bson.M
	err := s.collection(kind.TargetCollection).FindOne(ctx, bson.M{"_id": targetID}, options.FindOne().SetProjection(bson.M{counter: 1})).Decode(&target)
	if err != nil {
		return 0, translateMongoErr(mongoNotFoundOr(err, "%s %s", kind.TargetCollection, targetID))
	}
	return toInt64(target[counter]), nil
}

func (s *MongoStore) Reconcile(ctx context.Context, kind models.Kind, targetID string) (int64, int64, error) {
	counter := columnName(kind.Counter)
	var before, after int64
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var target bson.M
		err := s.collection(kind.TargetCollection).FindOneAndUpdate(sc,
			bson.M{"_id": targetID},
			bson.M{"$set": bson.M{"reconciled_at": time.Now().UTC()}},
			options.FindOneAndUpdate().SetProjection(bson.M{counter: 1}),
		).Decode(&target)
		if err != nil {
			return mongoNotFoundOr(err, "%s %s", kind.TargetCollection, targetID)
		}
		before = toInt64(target[counter])
		if after, err = s.relations.CountDocuments(sc, bson.M{"kind": kind.Name, "target_id": targetID}); err != nil {
			return err
		}
		_, err = s.collection(kind.TargetCollection).UpdateOne(sc, bson.M{"_id": targetID}, bson.M{"$set": bson.M{counter: after}})
		return err
	})
	return before, after, err
}

// UpsertPost creates or updates a post and keeps the author's posts_count in step.
func (s *MongoStore) UpsertPost(ctx context.Context, post *models.Post) (bool, error) {
	if post.ID == "" {
		post.ID = primitive.NewObjectID().Hex()
	}
	var created bool
	var stored models.Post
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.users.FindOne(sc, bson.M{"_id": post.AuthorID}).Err(); err != nil {
			return mongoNotFoundOr(err, "author %s", post.AuthorID)
		}
		now := time.Now().UTC()
		err := s.posts.FindOne(sc, bson.M{"_id": post.ID}).Decode(&stored)
		if errors.Is(err, mongo.ErrNoDocuments) {
			stored = *post
			stored.LikesCount, stored.SavesCount = 0, 0
			stored.CreatedAt, stored.UpdatedAt = now, now
			if _, err := s.posts.InsertOne(sc, stored); err != nil {
				return err
			}
			created = true
			_, err = s.users.UpdateOne(sc, bson.M{"_id": post.AuthorID}, bson.M{"$inc": bson.M{"posts_count": 1}})
			return err
		}
		if err != nil {
			return err
		}
		if stored.AuthorID != post.AuthorID {
			return fmt.Errorf("post %s: %w", post.ID, models.ErrForbidden)
		}
		stored.Content, stored.ImageURLs, stored.CarTag, stored.UpdatedAt = post.Content, post.ImageURLs, post.CarTag, now
		created = false
		_, err = s.posts.UpdateOne(sc, bson.M{"_id": post.ID}, bson.M{"$set": bson.M{
			"content":    stored.Content,
			"image_urls": stored.ImageURLs,
			"car_tag":    stored.CarTag,
			"updated_at": now,
		}})
		return err
	})
	if err != nil {
		return false, err
	}
	*post = stored
	return created, nil
}

func (s *MongoStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return nil, translateMongoErr(mongoNotFoundOr(err, "post %s", id))
	}
	return &post, nil
}

func (s *MongoStore) GetPostsByAuthor(ctx context.Context, authorID string, limit int) ([]models.Post, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	cursor, err := s.posts.Find(ctx, bson.M{"author_id": authorID}, findOptions)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, translateMongoErr(err)
	}
	return posts, nil
}

func (s *MongoStore) DeletePost(ctx context.Context, actorID, id string) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var post models.Post
		if err := s.posts.FindOne(sc, bson.M{"_id": id}).Decode(&post); err != nil {
			return mongoNotFoundOr(err, "post %s", id)
		}
		if post.AuthorID != actorID {
			return fmt.Errorf("post %s: %w", id, models.ErrForbidden)
		}
		if _, err := s.posts.DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return err
		}
		_, err := s.users.UpdateOne(sc, bson.M{"_id": post.AuthorID}, bson.M{"$inc": bson.M{"posts_count": -1}})
		return err
	})
}

func (s *MongoStore) UpsertProfile(ctx context.Context, profile *models.Profile) (bool, error) {
	now := time.Now().UTC()
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": profile.ID},
		bson.M{
			"$set": bson.M{
				"display_name": profile.DisplayName,
				"email":        profile.Email,
				"photo_url":    profile.PhotoURL,
				"bio":          profile.Bio,
				"car_model":    profile.CarModel,
				"updated_at":   now,
			},
			"$setOnInsert": bson.M{
				"followers_count": 0,
				"following_count": 0,
				"posts_count":     0,
				"created_at":      now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, translateMongoErr(err)
	}
	stored, err := s.GetProfile(ctx, profile.ID)
	if err != nil {
		return false, err
	}
	*profile = *stored
	return res.UpsertedCount > 0, nil
}

func (s *MongoStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&profile); err != nil {
		return nil, translateMongoErr(mongoNotFoundOr(err, "profile %s", id))
	}
	return &profile, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func mongoNotFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf(format+": %w", append(args, models.ErrNotFound)...)
	}
	return err
}

func translateMongoErr(err error) error {
	if err == nil || isDomainErr(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(112)) {
		return fmt.Errorf("mongo: %w: %v", models.ErrTransactionConflict, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo: %w: %v", models.ErrTransactionConflict, err)
	}
	return fmt.Errorf("mongo: %w: %v", models.ErrInternal, err)
}
