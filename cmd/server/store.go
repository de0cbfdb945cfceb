package main

import (
	"context"
	"fmt"

	"github.com/anonto42/garage-club/backend/internal/repositories"
	"github.com/anonto42/garage-club/backend/pkg/config"
	"github.com/anonto42/garage-club/backend/pkg/firebase"
	log "github.com/sirupsen/logrus"
)

// openStore connects the backend named by STORE_BACKEND. app is only needed
// for the Firestore backend.
func openStore(ctx context.Context, cfg *config.Config, app *firebase.App) (repositories.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		if app == nil {
			return nil, fmt.Errorf("firestore backend requires firebase configuration")
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		return repositories.NewFirestoreStore(client, cfg.ToggleMaxAttempts), nil
	case config.BackendMongo:
		client, err := config.InitMongo(cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		return repositories.NewMongoStore(client, client.Database(cfg.MongoDatabase)), nil
	case config.BackendPostgres:
		db, err := config.InitPostgres(cfg.PostgresConnStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return repositories.NewPostgresStore(db), nil
	case config.BackendMemory:
		log.Warn("Using the in-memory store; data is lost on restart.")
		return repositories.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func initFirebase(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	if !cfg.NeedsFirebase() {
		return nil, nil
	}
	return firebase.InitFirebase(ctx, firebase.Options{
		CredentialsPath: cfg.FirebaseCredentialsPath,
		ProjectID:       cfg.FirebaseProjectID,
		StorageBucket:   cfg.FirebaseStorageBucket,
	})
}

func migrate(ctx context.Context, cfg *config.Config) error {
	app, err := initFirebase(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	switch s := store.(type) {
	case *repositories.PostgresStore:
		if err := s.AutoMigrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("PostgreSQL auto-migrations completed.")
	case *repositories.MongoStore:
		if err := s.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		log.Info("MongoDB indexes ensured.")
	default:
		log.WithField("backend", cfg.StoreBackend).Info("Nothing to migrate.")
	}
	return nil
}
