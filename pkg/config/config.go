package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

type Config struct {
	Port        string
	Env         string
	MetricsPort string
	LogLevel    string

	StoreBackend string

	FirebaseCredentialsPath string
	FirebaseProjectID       string
	FirebaseStorageBucket   string

	PostgresConnStr string
	MongoURI        string
	MongoDatabase   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	NatsURL string

	JWTSecret        string
	JWTTTL           time.Duration
	SessionCookieTTL time.Duration

	ToggleMaxAttempts int
	ToggleBackoff     time.Duration
	UploadMaxBytes    int64
}

// Load reads the configuration from the environment, after loading a .env
// file when one is present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, assuming environment variables are set.")
	}
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StoreBackend: getEnv("STORE_BACKEND", BackendFirestore),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),

		PostgresConnStr: getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "garageclub"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),

		NatsURL: getEnv("NATS_URL", ""),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTTTL:           getEnvDuration("JWT_TTL", 72*time.Hour),
		SessionCookieTTL: getEnvDuration("SESSION_COOKIE_TTL", 5*24*time.Hour),

		ToggleMaxAttempts: getEnvInt("TOGGLE_MAX_ATTEMPTS", 3),
		ToggleBackoff:     getEnvDuration("TOGGLE_BACKOFF", 20*time.Millisecond),
		UploadMaxBytes:    int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
	}
}

// IsProduction reports whether the service runs outside development.
func (c *Config) IsProduction() bool {
	return c.Env != "development" && c.Env != "test"
}

// NeedsFirebase reports whether the Firebase app must be initialized.
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == BackendFirestore || c.FirebaseCredentialsPath != "" || c.FirebaseProjectID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("Invalid integer for %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warnf("Invalid duration for %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// SetupLogging configures the global logrus logger.
func SetupLogging(cfg *Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
