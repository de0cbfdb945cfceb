package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/anonto42/garage-club/backend/internal/repositories"
	"github.com/anonto42/garage-club/backend/internal/session"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// FirebaseAuth is the part of *auth.Client used to exchange ID tokens.
type FirebaseAuth interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	firebaseAuth      FirebaseAuth
	profileRepository repositories.ProfileRepository
	tokens            *session.JWTResolver
	cookieTTL         time.Duration
	tokenTTL          time.Duration
	secureCookie      bool
}

// AuthConfig carries the session lifetimes.
type AuthConfig struct {
	CookieTTL    time.Duration
	TokenTTL     time.Duration
	SecureCookie bool
}

// NewAuthHandler creates a new AuthHandler. tokens may be nil when local
// tokens are disabled.
func NewAuthHandler(firebaseAuth FirebaseAuth, profileRepo repositories.ProfileRepository, tokens *session.JWTResolver, cfg AuthConfig) *AuthHandler {
	return &AuthHandler{
		firebaseAuth:      firebaseAuth,
		profileRepository: profileRepo,
		tokens:            tokens,
		cookieTTL:         cfg.CookieTTL,
		tokenTTL:          cfg.TokenTTL,
		secureCookie:      cfg.SecureCookie,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/session", h.CreateSession)
	g.POST("/logout", h.Logout)
	g.POST("/firebase-login", h.FirebaseLogin)
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// CreateSession exchanges a Firebase ID token for a session cookie
func (h *AuthHandler) CreateSession(c echo.Context) error {
	token, idToken, err := h.verify(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	cookie, err := h.firebaseAuth.SessionCookie(ctx, idToken, h.cookieTTL)
	if err != nil {
		log.WithError(err).Warn("session cookie creation failed")
		return echo.NewHTTPError(http.StatusUnauthorized, "Could not create session")
	}
	profile, err := h.ensureProfile(ctx, token)
	if err != nil {
		return httpError(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     session.CookieName,
		Value:    cookie,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return success(c, http.StatusOK, profile)
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.NoContent(http.StatusNoContent)
}

// FirebaseLogin handles Firebase ID token verification and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.tokens == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Local tokens are disabled")
	}
	token, _, err := h.verify(c)
	if err != nil {
		return err
	}
	profile, err := h.ensureProfile(c.Request().Context(), token)
	if err != nil {
		return httpError(c, err)
	}

	localJWT, err := h.tokens.Issue(token.UID, profile.Email, h.tokenTTL)
	if err != nil {
		log.WithError(err).Error("local token signing failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}
	return success(c, http.StatusOK, echo.Map{"token": localJWT, "profile": profile})
}

func (h *AuthHandler) verify(c echo.Context) (*auth.Token, string, error) {
	if h.firebaseAuth == nil {
		return nil, "", echo.NewHTTPError(http.StatusNotImplemented, "Firebase authentication is not configured")
	}
	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return nil, "", err
	}

	token, err := h.firebaseAuth.VerifyIDToken(c.Request().Context(), req.IDToken)
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}
	return token, req.IDToken, nil
}

// ensureProfile creates the caller's profile on first sign-in. Existing
// profiles are left untouched.
func (h *AuthHandler) ensureProfile(ctx context.Context, token *auth.Token) (*models.Profile, error) {
	profile, err := h.profileRepository.GetProfile(ctx, token.UID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	profile = &models.Profile{ID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		profile.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		profile.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		profile.PhotoURL = picture
	}
	if _, err := h.profileRepository.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	log.WithField("uid", token.UID).Info("profile created on first sign-in")
	return profile, nil
}
