package middleware

import (
	"net/http"

	"github.com/anonto42/garage-club/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// ActorKey is the echo context key holding the resolved actor ID.
const ActorKey = "actorID"

// ResolveSession resolves the caller from the session cookie or Bearer token
// and stores the actor ID in the context. It never rejects a request; routes
// that need an identity add RequireSession or check ActorID themselves.
func ResolveSession(resolver session.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cred, ok := session.CredentialFromRequest(c.Request()); ok {
				if uid, ok := resolver.Resolve(c.Request().Context(), cred); ok {
					c.Set(ActorKey, uid)
				}
			}
			return next(c)
		}
	}
}

// RequireSession rejects requests without a resolved actor.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ActorID(c) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			return next(c)
		}
	}
}

// ActorID returns the resolved actor, or "" when the request is anonymous.
func ActorID(c echo.Context) string {
	uid, _ := c.Get(ActorKey).(string)
	return uid
}
