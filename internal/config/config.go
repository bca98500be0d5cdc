package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers selectable through STORE_DRIVER.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Environment string // ENV: production, development, etc.
	Port        string

	StoreDriver string
	MongoURI    string
	MongoDB     string
	PostgresURI string
	RedisURI    string // empty disables cache, distributed pair lock and cross-instance chat events

	AllowedOrigins []string

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
	UploadDir           string // local photo storage when Cloudinary is not configured
	PublicBaseURL       string // prefix for locally stored photo URLs, e.g. https://api.example.com

	LogLevel  string
	LogFormat string

	RateLimitRPS    float64
	RateLimitBurst  int
	TrustProxy      bool // honour X-Forwarded-For for client IPs
	RequestTimeout  time.Duration
	ProfileCacheTTL time.Duration
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseList(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", ""), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	if len(allowedOrigins) == 0 {
		// the Telegram web app is served from arbitrary hosts during development
		allowedOrigins = []string{"*"}
	}

	driver := strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", StoreMongo)))
	switch driver {
	case StoreMongo, StorePostgres, StoreMemory:
	default:
		driver = StoreMongo
	}

	return &Config{
		Environment:         env,
		Port:                getEnv("PORT", "8000"),
		StoreDriver:         driver,
		MongoURI:            getEnv("MONGODB_URI", getEnv("MONGO_URI", getEnv("MONGO_URL", "mongodb://localhost:27017"))),
		MongoDB:             getEnv("MONGO_DB", "dating_app"),
		PostgresURI:         getEnv("POSTGRES_URI", "postgres://localhost:5432/dating_app?sslmode=disable"),
		RedisURI:            getEnv("REDIS_URI", ""),
		AllowedOrigins:      allowedOrigins,
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "spokies/profiles"),
		UploadDir:           getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		RateLimitRPS:        getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:      getEnvInt("RATE_LIMIT_BURST", 20),
		TrustProxy:          isTruthy(getEnv("TRUST_PROXY", "")),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 5*time.Second),
		ProfileCacheTTL:     getEnvDuration("PROFILE_CACHE_TTL", 10*time.Minute),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CloudinaryEnabled reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
