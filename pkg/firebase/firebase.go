package firebase

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Options selects the Firebase project and credentials.
type Options struct {
	CredentialsPath string
	ProjectID       string
	StorageBucket   string
}

// App holds the initialized Firebase app and auth client
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
	bucketName  string
}

// InitFirebase initializes the Firebase application and authentication client.
// Without a credentials file the SDK falls back to application default
// credentials, which also covers the emulators.
func InitFirebase(ctx context.Context, opts Options) (*App, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsPath != "" {
		// Check if the credentials file exists
		if _, err := os.Stat(opts.CredentialsPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("Firebase credentials file not found at %s", opts.CredentialsPath)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsPath))
	}

	conf := &firebase.Config{ProjectID: opts.ProjectID, StorageBucket: opts.StorageBucket}
	firebaseApp, err := firebase.NewApp(ctx, conf, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	log.Info("Firebase app and auth client initialized successfully!")
	return &App{FirebaseApp: firebaseApp, AuthClient: authClient, bucketName: opts.StorageBucket}, nil
}

// Firestore returns a Firestore client for the project.
func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := a.FirebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}
	return client, nil
}

// Bucket returns the configured default Storage bucket, or nil when no
// bucket is configured.
func (a *App) Bucket(ctx context.Context) (*gcs.BucketHandle, error) {
	if a.bucketName == "" {
		return nil, nil
	}
	client, err := a.FirebaseApp.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting storage client: %w", err)
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("error opening storage bucket: %w", err)
	}
	return bucket, nil
}
