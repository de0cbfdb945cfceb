package handlers

import (
	"net/http"

	"github.com/anonto42/garage-club/backend/internal/middleware"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/anonto42/garage-club/backend/internal/relations"
	"github.com/labstack/echo/v4"
)

// RelationHandler exposes the counted relation toggle and its reads
type RelationHandler struct {
	service *relations.Service
}

// NewRelationHandler creates a new RelationHandler
func NewRelationHandler(service *relations.Service) *RelationHandler {
	return &RelationHandler{service: service}
}

// RegisterRelationRoutes registers the generic toggle plus the like, save and
// follow shortcuts
func (h *RelationHandler) RegisterRelationRoutes(g *echo.Group) {
	g.POST("/relations/:kind/:target_id/toggle", h.Toggle)
	g.GET("/relations/:kind/:target_id/status", h.Status)
	g.GET("/relations/:kind/:target_id/count", h.Count)

	g.POST("/posts/:post_id/likes", h.set(models.LikeKind.Name, "post_id", true))
	g.DELETE("/posts/:post_id/likes", h.set(models.LikeKind.Name, "post_id", false))
	g.GET("/posts/:post_id/likes/count", h.count(models.LikeKind.Name, "post_id"))
	g.GET("/posts/:post_id/likes/status", h.status(models.LikeKind.Name, "post_id"))

	g.POST("/posts/:post_id/saves", h.set(models.SaveKind.Name, "post_id", true))
	g.DELETE("/posts/:post_id/saves", h.set(models.SaveKind.Name, "post_id", false))
	g.GET("/posts/:post_id/saves/status", h.status(models.SaveKind.Name, "post_id"))

	g.POST("/users/:id/follow", h.set(models.FollowKind.Name, "id", true))
	g.DELETE("/users/:id/follow", h.set(models.FollowKind.Name, "id", false))
	g.GET("/users/:id/follow/status", h.status(models.FollowKind.Name, "id"))
	g.GET("/users/:id/followers/count", h.count(models.FollowKind.Name, "id"))
}

// Toggle flips a relation. The body carries the caller's current view of it.
func (h *RelationHandler) Toggle(c echo.Context) error {
	actorID := middleware.ActorID(c)
	if actorID == "" {
		return httpError(c, models.ErrUnauthenticated)
	}

	var req models.ToggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.service.Toggle(c.Request().Context(), actorID, c.Param("kind"), c.Param("target_id"), *req.CurrentlyRelated)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, res)
}

func (h *RelationHandler) Status(c echo.Context) error {
	return h.status(c.Param("kind"), "target_id")(c)
}

func (h *RelationHandler) Count(c echo.Context) error {
	return h.count(c.Param("kind"), "target_id")(c)
}

// set moves the relation into the given state; POST relates, DELETE unrelates.
func (h *RelationHandler) set(kind, param string, related bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := h.service.Toggle(c.Request().Context(), middleware.ActorID(c), kind, c.Param(param), !related)
		if err != nil {
			return httpError(c, err)
		}
		return success(c, http.StatusOK, res)
	}
}

func (h *RelationHandler) status(kind, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		targetID := c.Param(param)
		related, err := h.service.Status(c.Request().Context(), middleware.ActorID(c), kind, targetID)
		if err != nil {
			return httpError(c, err)
		}
		return success(c, http.StatusOK, echo.Map{"kind": kind, "target_id": targetID, "related": related})
	}
}

func (h *RelationHandler) count(kind, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		targetID := c.Param(param)
		n, err := h.service.Count(c.Request().Context(), kind, targetID)
		if err != nil {
			return httpError(c, err)
		}
		return success(c, http.StatusOK, echo.Map{"kind": kind, "target_id": targetID, "count": n})
	}
}
