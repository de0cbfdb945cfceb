package session

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
)

// JWTResolver verifies locally signed HS256 bearer tokens.
type JWTResolver struct {
	secret []byte
	now    func() time.Time
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), now: time.Now}
}

func (r *JWTResolver) Resolve(ctx context.Context, cred Credential) (string, bool) {
	if cred.Source != SourceBearer || len(r.secret) == 0 {
		return "", false
	}
	claims := &models.JwtCustomClaims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.ParseWithClaims(cred.Value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		log.WithError(err).Debug("local token rejected")
		return "", false
	}
	if claims.UID == "" {
		return "", false
	}
	return claims.UID, true
}

// Issue signs a session token for uid valid for ttl.
func (r *JWTResolver) Issue(uid, email string, ttl time.Duration) (string, error) {
	if len(r.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := r.now()
	claims := &models.JwtCustomClaims{
		UID:   uid,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
