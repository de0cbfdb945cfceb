package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/garage-club/backend/internal/cache"
	"github.com/anonto42/garage-club/backend/internal/events"
	"github.com/anonto42/garage-club/backend/internal/metrics"
	"github.com/anonto42/garage-club/backend/internal/middleware"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/anonto42/garage-club/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPostsLimit = 20
	maxPostsLimit     = 100
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	cache          *cache.Cache
	notifier       events.Notifier
}

// NewPostHandler creates a new PostHandler. cache may be nil.
func NewPostHandler(postRepo repositories.PostRepository, c *cache.Cache, notifier events.Notifier) *PostHandler {
	if notifier == nil {
		notifier = events.Noop{}
	}
	return &PostHandler{postRepository: postRepo, cache: c, notifier: notifier}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	g.POST("/posts", h.CreatePost, auth)
	g.PUT("/posts/:id", h.UpsertPost, auth)
	g.DELETE("/posts/:id", h.DeletePost, auth)
	g.GET("/posts/:id", h.GetPost)
	g.GET("/users/:id/posts", h.GetPostsByAuthor)
}

// CreatePost creates a new post with a server-allocated ID
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	post := &models.Post{
		AuthorID:  middleware.ActorID(c),
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
		CarTag:    req.CarTag,
	}
	return h.upsert(c, post)
}

// UpsertPost creates the post under the given ID or updates it when the
// caller already owns it
func (h *PostHandler) UpsertPost(c echo.Context) error {
	if !models.ValidID(c.Param("id")) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid post id")
	}
	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	post := &models.Post{
		ID:        c.Param("id"),
		AuthorID:  middleware.ActorID(c),
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
		CarTag:    req.CarTag,
	}
	return h.upsert(c, post)
}

func (h *PostHandler) upsert(c echo.Context, post *models.Post) error {
	ctx := c.Request().Context()
	created, err := h.postRepository.UpsertPost(ctx, post)
	if err != nil {
		return httpError(c, err)
	}

	h.notify(c, events.Event{
		Type:     events.TypePostUpserted,
		ActorID:  post.AuthorID,
		TargetID: post.ID,
		Stale: []events.Ref{
			{Collection: models.PostsCollection, ID: post.ID},
			{Collection: models.UsersCollection, ID: post.AuthorID},
		},
		At: time.Now().UTC(),
	})

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return success(c, code, post)
}

// GetPost retrieves a post by ID, served from the render cache when warm
func (h *PostHandler) GetPost(c echo.Context) error {
	ctx := c.Request().Context()
	postID := c.Param("id")

	if post, ok := h.cache.GetPost(ctx, postID); ok {
		return success(c, http.StatusOK, post)
	}
	post, err := h.postRepository.GetPost(ctx, postID)
	if err != nil {
		return httpError(c, err)
	}
	h.cache.SetPost(ctx, post)
	return success(c, http.StatusOK, post)
}

// GetPostsByAuthor lists the newest posts of a user
func (h *PostHandler) GetPostsByAuthor(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = defaultPostsLimit
	}
	if limit > maxPostsLimit {
		limit = maxPostsLimit
	}

	posts, err := h.postRepository.GetPostsByAuthor(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, posts)
}

// DeletePost deletes a post owned by the caller
func (h *PostHandler) DeletePost(c echo.Context) error {
	actorID := middleware.ActorID(c)
	postID := c.Param("id")

	if err := h.postRepository.DeletePost(c.Request().Context(), actorID, postID); err != nil {
		return httpError(c, err)
	}

	h.notify(c, events.Event{
		Type:     events.TypePostDeleted,
		ActorID:  actorID,
		TargetID: postID,
		Stale: []events.Ref{
			{Collection: models.PostsCollection, ID: postID},
			{Collection: models.UsersCollection, ID: actorID},
		},
		At: time.Now().UTC(),
	})
	return c.NoContent(http.StatusNoContent)
}

func (h *PostHandler) notify(c echo.Context, ev events.Event) {
	if err := h.notifier.Notify(c.Request().Context(), ev); err != nil {
		metrics.InvalidationFailures.WithLabelValues(ev.Type).Inc()
		log.WithError(err).WithField("target_id", ev.TargetID).Error("invalidation failed after post write")
	}
}
