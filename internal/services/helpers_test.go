package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/spokies-backend/internal/logger"
	"github.com/AnshRaj112/spokies-backend/internal/models"
	"github.com/AnshRaj112/spokies-backend/internal/store"
)

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var (
		mu sync.Mutex
		t  = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type testEnv struct {
	store   *store.MemoryStore
	users   *UserService
	search  *SearchService
	matches *MatchService
	chats   *ChatService
	bus     *LocalBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	opts := []Option{WithLogger(logger.Discard()), WithClock(stepClock())}
	bus := NewLocalBus(logger.Discard())
	return &testEnv{
		store:   st,
		users:   NewUserService(st, nil, nil, opts...),
		search:  NewSearchService(st, st, opts...),
		matches: NewMatchService(st, st, st, NewLocalPairLocker(), opts...),
		chats:   NewChatService(st, st, st, bus, opts...),
		bus:     bus,
	}
}

func (e *testEnv) register(t *testing.T, telegramID, name, gender string, interestedIn ...string) *models.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), models.Registration{
		TelegramID:   telegramID,
		Name:         name,
		Age:          25,
		Gender:       gender,
		Orientation:  "straight",
		InterestedIn: interestedIn,
	}, nil)
	require.NoError(t, err)
	return u
}

// match registers two users who like each other and returns the room id.
func (e *testEnv) match(t *testing.T, a, b *models.User) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.matches.RecordInteraction(ctx, a.TelegramID, b.UserID, "like")
	require.NoError(t, err)
	res, err := e.matches.RecordInteraction(ctx, b.TelegramID, a.UserID, "like")
	require.NoError(t, err)
	require.True(t, res.IsMatch)
	return res.ChatID
}
