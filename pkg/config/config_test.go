package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "STORE_BACKEND", "CACHE_TTL", "TOGGLE_MAX_ATTEMPTS", "TOGGLE_BACKOFF", "UPLOAD_MAX_BYTES"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, BackendFirestore, cfg.StoreBackend)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.ToggleMaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.ToggleBackoff)
	assert.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("STORE_BACKEND", BackendPostgres)
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("TOGGLE_MAX_ATTEMPTS", "7")
	t.Setenv("TOGGLE_BACKOFF", "not-a-duration")
	t.Setenv("REDIS_DB", "x")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 7, cfg.ToggleMaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.ToggleBackoff)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestNeedsFirebase(t *testing.T) {
	assert.True(t, (&Config{StoreBackend: BackendFirestore}).NeedsFirebase())
	assert.False(t, (&Config{StoreBackend: BackendMemory}).NeedsFirebase())
	assert.True(t, (&Config{StoreBackend: BackendPostgres, FirebaseProjectID: "garage"}).NeedsFirebase())
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	SetupLogging(&Config{Env: "production", LogLevel: "warn"})
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	SetupLogging(&Config{Env: "development", LogLevel: "bogus"})
	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}

func TestInitRedisDisabled(t *testing.T) {
	rdb, err := InitRedis(&Config{})
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
