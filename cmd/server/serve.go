package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/garage-club/backend/internal/handlers"
	"github.com/anonto42/garage-club/backend/internal/metrics"
	"github.com/anonto42/garage-club/backend/internal/relations"
	"github.com/anonto42/garage-club/backend/internal/router"
	"github.com/anonto42/garage-club/backend/internal/session"
	"github.com/anonto42/garage-club/backend/internal/uploads"
	"github.com/anonto42/garage-club/backend/pkg/config"
	"github.com/anonto42/garage-club/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := initFirebase(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	notifier, renderCache, closeNotifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	deps := router.Deps{
		Store:    store,
		Notifier: notifier,
		Cache:    renderCache,
		Relations: relations.NewService(store, notifier, relations.Config{
			MaxAttempts: cfg.ToggleMaxAttempts,
			Backoff:     cfg.ToggleBackoff,
		}),
		Auth: handlers.AuthConfig{
			CookieTTL:    cfg.SessionCookieTTL,
			TokenTTL:     cfg.JWTTTL,
			SecureCookie: cfg.IsProduction(),
		},
		UploadMaxBytes: cfg.UploadMaxBytes,
	}

	var chain session.Chain
	if cfg.JWTSecret != "" {
		deps.Tokens = session.NewJWTResolver(cfg.JWTSecret)
		chain = append(chain, deps.Tokens)
	}
	if app != nil {
		deps.FirebaseAuth = app.AuthClient
		chain = append(chain, session.NewFirebaseResolver(app.AuthClient))

		bucket, err := app.Bucket(ctx)
		if err != nil {
			return err
		}
		if bucket != nil {
			deps.Uploader = uploads.NewBucketUploader(bucket)
		}
	}
	if len(chain) == 0 {
		log.Warn("No session resolver configured; every request is anonymous.")
	}
	deps.Resolver = chain

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return err
	}
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	router.SetupMiddleware(e)
	router.SetupRoutes(e, deps)

	errc := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "backend": cfg.StoreBackend}).Info("Starting server")
		errc <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return e.Shutdown(shutdownCtx)
}
