package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/garage-club/backend/internal/cache"
	"github.com/anonto42/garage-club/backend/internal/events"
	"github.com/anonto42/garage-club/backend/internal/middleware"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/anonto42/garage-club/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// UserHandler handles HTTP requests related to profiles
type UserHandler struct {
	profileRepository repositories.ProfileRepository
	cache             *cache.Cache
	notifier          events.Notifier
}

// NewUserHandler creates a new UserHandler. cache may be nil.
func NewUserHandler(profileRepo repositories.ProfileRepository, c *cache.Cache, notifier events.Notifier) *UserHandler {
	if notifier == nil {
		notifier = events.Noop{}
	}
	return &UserHandler{profileRepository: profileRepo, cache: c, notifier: notifier}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	g.GET("/users/me", h.GetMe, auth)
	g.PUT("/users/me", h.UpdateMe, auth)
	g.GET("/users/:id", h.GetUser)
}

// GetUser retrieves a profile by UID
func (h *UserHandler) GetUser(c echo.Context) error {
	return h.render(c, c.Param("id"))
}

// GetMe retrieves the caller's own profile
func (h *UserHandler) GetMe(c echo.Context) error {
	return h.render(c, middleware.ActorID(c))
}

func (h *UserHandler) render(c echo.Context, id string) error {
	ctx := c.Request().Context()
	if profile, ok := h.cache.GetProfile(ctx, id); ok {
		return success(c, http.StatusOK, profile)
	}
	profile, err := h.profileRepository.GetProfile(ctx, id)
	if err != nil {
		return httpError(c, err)
	}
	h.cache.SetProfile(ctx, profile)
	return success(c, http.StatusOK, profile)
}

// UpdateMe creates or updates the caller's profile. Counters are never
// taken from the request.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	actorID := middleware.ActorID(c)
	ctx := c.Request().Context()

	profile := &models.Profile{ID: actorID}
	existing, err := h.profileRepository.GetProfile(ctx, actorID)
	switch {
	case err == nil:
		profile.Email = existing.Email
	case !errors.Is(err, models.ErrNotFound):
		return httpError(c, err)
	}
	profile.DisplayName = req.DisplayName
	profile.PhotoURL = req.PhotoURL
	profile.Bio = req.Bio
	profile.CarModel = req.CarModel

	created, err := h.profileRepository.UpsertProfile(ctx, profile)
	if err != nil {
		return httpError(c, err)
	}
	ev := events.Event{
		Type:     events.TypeProfileUpserted,
		ActorID:  actorID,
		TargetID: actorID,
		Stale:    []events.Ref{{Collection: models.UsersCollection, ID: actorID}},
		At:       time.Now().UTC(),
	}
	if err := h.notifier.Notify(ctx, ev); err != nil {
		log.WithError(err).WithField("actor_id", actorID).Error("invalidation failed after profile write")
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return success(c, code, profile)
}
