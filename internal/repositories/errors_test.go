package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestTranslatePostgresErr(t *testing.T) {
	for code, want := range map[string]error{
		"40001": models.ErrTransactionConflict,
		"40P01": models.ErrTransactionConflict,
		"23505": models.ErrTransactionConflict,
		"22001": models.ErrInvalidArgument,
		"42P01": models.ErrInternal,
	} {
		err := translatePostgresErr(fmt.Errorf("exec: %w", &pgconn.PgError{Code: code}))
		assert.ErrorIs(t, err, want, code)
	}

	assert.NoError(t, translatePostgresErr(nil))
	assert.ErrorIs(t, translatePostgresErr(context.Canceled), context.Canceled)
	notFound := fmt.Errorf("posts x: %w", models.ErrNotFound)
	assert.Same(t, notFound, translatePostgresErr(notFound))
}

func TestTranslateFirestoreErr(t *testing.T) {
	assert.ErrorIs(t, translateFirestoreErr(status.Error(codes.Aborted, "contention")), models.ErrTransactionConflict)
	assert.ErrorIs(t, translateFirestoreErr(status.Error(codes.Unavailable, "down")), models.ErrInternal)
	assert.ErrorIs(t, translateFirestoreErr(fmt.Errorf("x: %w", models.ErrForbidden)), models.ErrForbidden)
	assert.NoError(t, translateFirestoreErr(nil))
}

func TestTranslateMongoErr(t *testing.T) {
	transient := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	assert.ErrorIs(t, translateMongoErr(transient), models.ErrTransactionConflict)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	assert.ErrorIs(t, translateMongoErr(dup), models.ErrTransactionConflict)

	assert.ErrorIs(t, translateMongoErr(errors.New("socket closed")), models.ErrInternal)
	assert.ErrorIs(t, translateMongoErr(context.DeadlineExceeded), context.DeadlineExceeded)
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "likes_count", columnName("likesCount"))
	assert.Equal(t, "followers_count", columnName("followersCount"))
	assert.Equal(t, "following_count", columnName("followingCount"))
}
