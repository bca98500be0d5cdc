package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ENV", "PORT", "STORE_DRIVER", "ALLOWED_ORIGINS", "FRONTEND_URL", "FRONTEND_URL_2", "REDIS_URI", "REQUEST_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, "dating_app", cfg.MongoDB)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.RedisURI)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.CloudinaryEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", " Production ")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://www.example.com ,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("TRUST_PROXY", "yes")
	t.Setenv("REQUEST_TIMEOUT", "12s")
	t.Setenv("PUBLIC_BASE_URL", "https://api.example.com/")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"https://app.example.com", "https://www.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 7, cfg.RateLimitBurst)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "https://api.example.com", cfg.PublicBaseURL)
	assert.True(t, cfg.CloudinaryEnabled())
}

func TestLoadUnknownDriverFallsBackToMongo(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")
	assert.Equal(t, StoreMongo, Load().StoreDriver)
}

func TestLoadFrontendURLFallback(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("FRONTEND_URL", "http://localhost:3000")
	t.Setenv("FRONTEND_URL_2", "")
	assert.Equal(t, []string{"http://localhost:3000"}, Load().AllowedOrigins)
}
