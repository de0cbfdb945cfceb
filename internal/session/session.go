package session

import (
	"context"
	"net/http"
	"strings"
)

// CookieName is the session cookie set by the session exchange endpoint.
const CookieName = "__session"

// Source tells where a credential came from.
type Source int

const (
	SourceCookie Source = iota + 1
	SourceBearer
)

// Credential is an opaque session credential taken from a request.
type Credential struct {
	Source Source
	Value  string
}

// CredentialFromRequest reads the session cookie first, then a Bearer
// Authorization header.
func CredentialFromRequest(r *http.Request) (Credential, bool) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return Credential{Source: SourceCookie, Value: c.Value}, true
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Credential{}, false
	}
	return Credential{Source: SourceBearer, Value: parts[1]}, true
}

// Resolver turns a credential into the caller's canonical identifier.
// Missing, malformed and expired credentials yield ("", false), never an error.
type Resolver interface {
	Resolve(ctx context.Context, cred Credential) (string, bool)
}

// Chain tries each resolver in order and returns the first identity found.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, cred Credential) (string, bool) {
	if cred.Value == "" {
		return "", false
	}
	for _, r := range c {
		if r == nil {
			continue
		}
		if uid, ok := r.Resolve(ctx, cred); ok {
			return uid, true
		}
	}
	return "", false
}
