package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

const (
	profileCacheKeyPrefix  = "cache:profile:"
	defaultProfileCacheTTL = 10 * time.Minute
)

// ProfileCache is a Redis read-through cache for GetProfile. A nil cache or
// nil client turns every call into a miss. Failures are logged, never returned.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewProfileCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *ProfileCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultProfileCacheTTL
	}
	return &ProfileCache{client: client, ttl: ttl, log: log}
}

// profileKey hashes the external id so raw identity tokens never land in Redis.
func profileKey(telegramID string) string {
	sum := blake2b.Sum256([]byte(telegramID))
	return profileCacheKeyPrefix + hex.EncodeToString(sum[:16])
}

func (c *ProfileCache) Get(ctx context.Context, telegramID string) (*models.User, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, profileKey(telegramID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("profile cache read failed", "error", err)
		}
		return nil, false
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		c.log.Warn("profile cache entry corrupt", "error", err)
		return nil, false
	}
	return &u, true
}

// Set caches u unless a newer version of the profile was written after u was
// loaded. The version is u.UpdatedAt.
func (c *ProfileCache) Set(ctx context.Context, u *models.User) {
	if c == nil {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	key := profileKey(u.TelegramID)
	err = setIfNotStale.Run(ctx, c.client, []string{key, versionKey(key)},
		data, u.UpdatedAt.UnixMicro(), c.ttl.Milliseconds()).Err()
	if err != nil {
		c.log.Warn("profile cache write failed", "error", err)
	}
}

// Invalidate drops the cached profile and records version so that readers
// still holding an older row cannot put it back.
func (c *ProfileCache) Invalidate(ctx context.Context, telegramID string, version time.Time) {
	if c == nil {
		return
	}
	key := profileKey(telegramID)
	err := invalidateAndBump.Run(ctx, c.client, []string{key, versionKey(key)},
		version.UnixMicro(), c.ttl.Milliseconds()).Err()
	if err != nil {
		c.log.Warn("profile cache invalidate failed", "error", err)
	}
}

func versionKey(key string) string { return key + ":v" }

// KEYS[1] entry, KEYS[2] version; ARGV[1] payload, ARGV[2] version, ARGV[3] ttl ms.
var setIfNotStale = redis.NewScript(`
local cur = redis.call("GET", KEYS[2])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// KEYS[1] entry, KEYS[2] version; ARGV[1] version, ARGV[2] ttl ms.
var invalidateAndBump = redis.NewScript(`
redis.call("DEL", KEYS[1])
local cur = redis.call("GET", KEYS[2])
if not cur or tonumber(cur) < tonumber(ARGV[1]) then
	redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
end
return 1
`)
