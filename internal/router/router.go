package router

import (
	"github.com/anonto42/garage-club/backend/internal/cache"
	"github.com/anonto42/garage-club/backend/internal/events"
	"github.com/anonto42/garage-club/backend/internal/handlers"
	"github.com/anonto42/garage-club/backend/internal/middleware"
	"github.com/anonto42/garage-club/backend/internal/relations"
	"github.com/anonto42/garage-club/backend/internal/repositories"
	"github.com/anonto42/garage-club/backend/internal/session"
	"github.com/anonto42/garage-club/backend/internal/uploads"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// Deps are the collaborators the routes are built from. Cache, Uploader,
// FirebaseAuth and Tokens are optional.
type Deps struct {
	Store     repositories.Store
	Relations *relations.Service
	Resolver  session.Resolver
	Notifier  events.Notifier
	Cache     *cache.Cache

	FirebaseAuth handlers.FirebaseAuth
	Tokens       *session.JWTResolver
	Auth         handlers.AuthConfig

	Uploader       uploads.Uploader
	UploadMaxBytes int64
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.Use(eMiddleware.RequestLoggerWithConfig(eMiddleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v eMiddleware.RequestLoggerValues) error {
			entry := log.WithFields(log.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	}))
	e.Use(middleware.Metrics())
	log.Debug("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Deps) {
	e.GET("/health", handlers.HealthCheck)

	api := e.Group("/api/v1")
	api.Use(middleware.ResolveSession(deps.Resolver))
	requireSession := middleware.RequireSession()

	authHandler := handlers.NewAuthHandler(deps.FirebaseAuth, deps.Store, deps.Tokens, deps.Auth)
	authHandler.RegisterAuthRoutes(api.Group("/auth"))

	// The toggle handlers answer anonymous callers with 401 themselves.
	relationHandler := handlers.NewRelationHandler(deps.Relations)
	relationHandler.RegisterRelationRoutes(api)

	postHandler := handlers.NewPostHandler(deps.Store, deps.Cache, deps.Notifier)
	postHandler.RegisterPostRoutes(api, requireSession)

	userHandler := handlers.NewUserHandler(deps.Store, deps.Cache, deps.Notifier)
	userHandler.RegisterProfileRoutes(api, requireSession)

	uploadHandler := handlers.NewUploadHandler(deps.Uploader, deps.UploadMaxBytes)
	uploadHandler.RegisterUploadRoutes(api, requireSession)

	log.WithField("routes", len(e.Routes())).Info("All routes configured.")
}
