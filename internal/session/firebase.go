package session

import (
	"context"

	"firebase.google.com/go/v4/auth"
	log "github.com/sirupsen/logrus"
)

// TokenVerifier is the part of *auth.Client the resolver needs.
type TokenVerifier interface {
	VerifySessionCookie(ctx context.Context, sessionCookie string) (*auth.Token, error)
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseResolver verifies Firebase session cookies and ID tokens.
type FirebaseResolver struct {
	verifier TokenVerifier
}

func NewFirebaseResolver(verifier TokenVerifier) *FirebaseResolver {
	return &FirebaseResolver{verifier: verifier}
}

func (r *FirebaseResolver) Resolve(ctx context.Context, cred Credential) (string, bool) {
	var (
		token *auth.Token
		err   error
	)
	switch cred.Source {
	case SourceCookie:
		token, err = r.verifier.VerifySessionCookie(ctx, cred.Value)
	case SourceBearer:
		token, err = r.verifier.VerifyIDToken(ctx, cred.Value)
	default:
		return "", false
	}
	if err != nil {
		log.WithError(err).Debug("firebase credential rejected")
		return "", false
	}
	if token == nil || token.UID == "" {
		return "", false
	}
	return token.UID, true
}
