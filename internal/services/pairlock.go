package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PairLocker serializes match handling for one unordered user pair so two
// reciprocal likes cannot both create a room.
type PairLocker interface {
	Lock(ctx context.Context, pairKey string) (unlock func(), err error)
}

const (
	pairLockKeyPrefix = "lock:pair:"
	pairLockTTL       = 5 * time.Second
	pairLockRetry     = 25 * time.Millisecond
)

var ErrLockTimeout = errors.New("pair lock: timed out")

// unlockScript deletes the lock only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisPairLocker is a SET NX PX lock shared by every instance.
type RedisPairLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedisPairLocker(client *redis.Client, log *slog.Logger) *RedisPairLocker {
	return &RedisPairLocker{client: client, ttl: pairLockTTL, log: log}
}

func (l *RedisPairLocker) Lock(ctx context.Context, pairKey string) (func(), error) {
	key := pairLockKeyPrefix + pairKey
	token := uuid.NewString()

	ticker := time.NewTicker(pairLockRetry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire pair lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn("failed to release pair lock", "key", key, "error", err)
		}
	}, nil
}

// LocalPairLocker is the in-process fallback used when Redis is not configured.
type LocalPairLocker struct {
	mu    sync.Mutex
	locks map[string]*pairSlot
}

type pairSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalPairLocker() *LocalPairLocker {
	return &LocalPairLocker{locks: make(map[string]*pairSlot)}
}

func (l *LocalPairLocker) Lock(ctx context.Context, pairKey string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.locks[pairKey]
	if !ok {
		slot = &pairSlot{ch: make(chan struct{}, 1)}
		l.locks[pairKey] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(pairKey, slot)
		return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.release(pairKey, slot)
		})
	}, nil
}

func (l *LocalPairLocker) release(pairKey string, slot *pairSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.locks, pairKey)
	}
}
