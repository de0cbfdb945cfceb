package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := CredentialFromRequest(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Bearer abc.def")
	cred, ok := CredentialFromRequest(req)
	require.True(t, ok)
	assert.Equal(t, Credential{Source: SourceBearer, Value: "abc.def"}, cred)

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-value"})
	cred, ok = CredentialFromRequest(req)
	require.True(t, ok)
	assert.Equal(t, SourceCookie, cred.Source)

	for _, header := range []string{"Basic abc", "Bearer", "Bearer a b", "token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		_, ok := CredentialFromRequest(req)
		assert.False(t, ok, header)
	}
}

func TestJWTResolver(t *testing.T) {
	r := NewJWTResolver("s3cret")
	ctx := context.Background()

	token, err := r.Issue("uid-1", "a@b.c", time.Hour)
	require.NoError(t, err)
	uid, ok := r.Resolve(ctx, Credential{Source: SourceBearer, Value: token})
	assert.True(t, ok)
	assert.Equal(t, "uid-1", uid)

	_, ok = r.Resolve(ctx, Credential{Source: SourceCookie, Value: token})
	assert.False(t, ok, "cookies carry firebase sessions only")

	expired, err := r.Issue("uid-1", "", -time.Minute)
	require.NoError(t, err)
	_, ok = r.Resolve(ctx, Credential{Source: SourceBearer, Value: expired})
	assert.False(t, ok)

	other, err := NewJWTResolver("other").Issue("uid-1", "", time.Hour)
	require.NoError(t, err)
	_, ok = r.Resolve(ctx, Credential{Source: SourceBearer, Value: other})
	assert.False(t, ok)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JwtCustomClaims{UID: "uid-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, ok = r.Resolve(ctx, Credential{Source: SourceBearer, Value: unsigned})
	assert.False(t, ok)

	noUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JwtCustomClaims{}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, ok = r.Resolve(ctx, Credential{Source: SourceBearer, Value: noUID})
	assert.False(t, ok)

	_, ok = r.Resolve(ctx, Credential{Source: SourceBearer, Value: "garbage"})
	assert.False(t, ok)
}

func TestJWTResolverWithoutSecret(t *testing.T) {
	r := NewJWTResolver("")
	_, err := r.Issue("uid-1", "", time.Hour)
	assert.Error(t, err)
	_, ok := r.Resolve(context.Background(), Credential{Source: SourceBearer, Value: "x"})
	assert.False(t, ok)
}

type fakeVerifier struct {
	cookies map[string]string
	tokens  map[string]string
}

func (f fakeVerifier) VerifySessionCookie(_ context.Context, v string) (*auth.Token, error) {
	if uid, ok := f.cookies[v]; ok {
		return &auth.Token{UID: uid}, nil
	}
	return nil, errors.New("invalid session cookie")
}

func (f fakeVerifier) VerifyIDToken(_ context.Context, v string) (*auth.Token, error) {
	if uid, ok := f.tokens[v]; ok {
		return &auth.Token{UID: uid}, nil
	}
	return nil, errors.New("invalid id token")
}

func TestFirebaseResolver(t *testing.T) {
	r := NewFirebaseResolver(fakeVerifier{
		cookies: map[string]string{"c1": "alice", "blank": ""},
		tokens:  map[string]string{"t1": "bob"},
	})
	ctx := context.Background()

	uid, ok := r.Resolve(ctx, Credential{Source: SourceCookie, Value: "c1"})
	assert.True(t, ok)
	assert.Equal(t, "alice", uid)

	uid, ok = r.Resolve(ctx, Credential{Source: SourceBearer, Value: "t1"})
	assert.True(t, ok)
	assert.Equal(t, "bob", uid)

	for _, cred := range []Credential{
		{Source: SourceCookie, Value: "t1"},
		{Source: SourceBearer, Value: "c1"},
		{Source: SourceCookie, Value: "blank"},
		{Value: "c1"},
	} {
		uid, ok := r.Resolve(ctx, cred)
		assert.False(t, ok)
		assert.Empty(t, uid)
	}
}

func TestChain(t *testing.T) {
	jwtResolver := NewJWTResolver("s3cret")
	token, err := jwtResolver.Issue("local-user", "", time.Hour)
	require.NoError(t, err)
	chain := Chain{nil, jwtResolver, NewFirebaseResolver(fakeVerifier{tokens: map[string]string{"t1": "bob"}})}
	ctx := context.Background()

	uid, ok := chain.Resolve(ctx, Credential{Source: SourceBearer, Value: token})
	assert.True(t, ok)
	assert.Equal(t, "local-user", uid)

	uid, ok = chain.Resolve(ctx, Credential{Source: SourceBearer, Value: "t1"})
	assert.True(t, ok)
	assert.Equal(t, "bob", uid)

	_, ok = chain.Resolve(ctx, Credential{Source: SourceBearer, Value: "nope"})
	assert.False(t, ok)
	_, ok = chain.Resolve(ctx, Credential{Source: SourceBearer})
	assert.False(t, ok)
	_, ok = Chain(nil).Resolve(ctx, Credential{Source: SourceBearer, Value: token})
	assert.False(t, ok)
}
