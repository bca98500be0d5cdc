package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newUser(n int) *models.User {
	return &models.User{
		UserID:           fmt.Sprintf("user-%02d", n),
		TelegramID:       fmt.Sprintf("tg-%02d", n),
		Name:             fmt.Sprintf("User %d", n),
		Age:              20 + n,
		Gender:           "female",
		Orientation:      "straight",
		InterestedIn:     []string{"male"},
		RelationshipType: []string{"long_term"},
		TraitTags:        []int{n, n + 1},
		Photos:           []string{},
		Tokens:           models.DefaultTokenBalance,
		IsActive:         true,
		CreatedAt:        base.Add(time.Duration(n) * time.Minute),
		UpdatedAt:        base.Add(time.Duration(n) * time.Minute),
	}
}

// runStoreSuite checks the behaviour every backend must share.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		s := open(t)
		u := newUser(1)
		u.Location = &models.Location{Lat: 50.45, Lng: 30.52}
		require.NoError(t, s.CreateUser(ctx, u))

		got, err := s.GetUserByTelegramID(ctx, "tg-01")
		require.NoError(t, err)
		assert.Equal(t, u.UserID, got.UserID)
		assert.Equal(t, []int{1, 2}, got.TraitTags)
		assert.Equal(t, u.Location, got.Location)
		assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

		byID, err := s.GetUserByID(ctx, "user-01")
		require.NoError(t, err)
		assert.Equal(t, "tg-01", byID.TelegramID)

		_, err = s.GetUserByTelegramID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		dup := newUser(1)
		dup.UserID = "other"
		assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrDuplicate)
	})

	t.Run("update user", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateUser(ctx, newUser(1)))

		bio := "new bio"
		later := base.Add(time.Hour)
		upd := models.ProfileUpdate{Bio: &bio, TraitTags: &[]int{7}}
		require.NoError(t, s.UpdateUser(ctx, "tg-01", upd, later))

		got, err := s.GetUserByTelegramID(ctx, "tg-01")
		require.NoError(t, err)
		assert.Equal(t, "new bio", got.Bio)
		assert.Equal(t, []int{7}, got.TraitTags)
		assert.Equal(t, "User 1", got.Name)
		assert.True(t, later.Equal(got.UpdatedAt))

		assert.ErrorIs(t, s.UpdateUser(ctx, "missing", upd, later), ErrNotFound)
	})

	t.Run("search order and exclusions", func(t *testing.T) {
		s := open(t)
		for i := 5; i >= 1; i-- {
			require.NoError(t, s.CreateUser(ctx, newUser(i)))
		}
		inactive := newUser(6)
		inactive.IsActive = false
		require.NoError(t, s.CreateUser(ctx, inactive))

		got, err := s.SearchUsers(ctx, SearchFilter{
			ExcludeTelegramID: "tg-01",
			ExcludeUserIDs:    []string{"user-03"},
			Limit:             10,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"user-02", "user-04", "user-05"}, userIDs(got))

		page2, err := s.SearchUsers(ctx, SearchFilter{ExcludeTelegramID: "tg-01", Skip: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"user-03", "user-04"}, userIDs(page2))

		empty, err := s.SearchUsers(ctx, SearchFilter{ExcludeTelegramID: "tg-01", Skip: 50, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("interactions", func(t *testing.T) {
		s := open(t)
		for i := 1; i <= 3; i++ {
			require.NoError(t, s.CreateUser(ctx, newUser(i)))
		}
		appendInteraction(t, s, "i1", "user-01", "user-02", models.ActionDislike, base)
		appendInteraction(t, s, "i2", "user-01", "user-02", models.ActionLike, base.Add(time.Second))
		appendInteraction(t, s, "i3", "user-03", "user-02", models.ActionSuperLike, base.Add(2*time.Second))

		ids, err := s.InteractedTargetIDs(ctx, "user-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"user-02"}, ids)

		ok, err := s.HasInteraction(ctx, "user-01", "user-02", models.PositiveActions)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.HasInteraction(ctx, "user-02", "user-01", models.PositiveActions)
		require.NoError(t, err)
		assert.False(t, ok)

		received, err := s.InteractionsReceived(ctx, "user-02", models.PositiveActions)
		require.NoError(t, err)
		require.Len(t, received, 2)
		assert.Equal(t, "user-03", received[0].UserID)
		assert.Equal(t, "user-01", received[1].UserID)

		supers, err := s.InteractionsReceived(ctx, "user-02", []models.Action{models.ActionSuperLike})
		require.NoError(t, err)
		assert.Len(t, supers, 1)
	})

	t.Run("chats and messages", func(t *testing.T) {
		s := open(t)
		for i := 1; i <= 3; i++ {
			require.NoError(t, s.CreateUser(ctx, newUser(i)))
		}
		c1 := &models.ChatRoom{
			ChatID: "chat-1", Participants: []string{"user-01", "user-02"},
			PairKey: models.PairKey("user-01", "user-02"), CreatedAt: base, LastMessageTime: base,
		}
		c2 := &models.ChatRoom{
			ChatID: "chat-2", Participants: []string{"user-03", "user-01"},
			PairKey: models.PairKey("user-03", "user-01"), CreatedAt: base, LastMessageTime: base.Add(time.Minute),
		}
		require.NoError(t, s.CreateChat(ctx, c1))
		require.NoError(t, s.CreateChat(ctx, c2))

		dup := *c1
		dup.ChatID = "chat-dup"
		dup.Participants = []string{"user-02", "user-01"}
		assert.ErrorIs(t, s.CreateChat(ctx, &dup), ErrDuplicate)

		byPair, err := s.GetChatByPair(ctx, models.PairKey("user-02", "user-01"))
		require.NoError(t, err)
		assert.Equal(t, "chat-1", byPair.ChatID)
		assert.Nil(t, byPair.LastMessage)

		list, err := s.ListChatsForUser(ctx, "user-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"chat-2", "chat-1"}, chatIDs(list))

		for i, sender := range []string{"user-01", "user-02", "user-02"} {
			require.NoError(t, s.AppendMessage(ctx, &models.Message{
				MessageID: fmt.Sprintf("m%d", i), ChatID: "chat-1", SenderID: sender,
				Body: fmt.Sprintf("hello %d", i), Timestamp: base.Add(time.Duration(i+1) * time.Hour),
			}))
		}
		require.NoError(t, s.SetLastMessage(ctx, "chat-1", "hello 2", base.Add(3*time.Hour)))
		assert.ErrorIs(t, s.SetLastMessage(ctx, "nope", "x", base), ErrNotFound)

		list, err = s.ListChatsForUser(ctx, "user-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"chat-1", "chat-2"}, chatIDs(list))
		require.NotNil(t, list[0].LastMessage)
		assert.Equal(t, "hello 2", *list[0].LastMessage)

		msgs, err := s.ListMessages(ctx, "chat-1", 1, 5)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "m1", msgs[0].MessageID)
		assert.Equal(t, "m2", msgs[1].MessageID)

		unread, err := s.CountUnread(ctx, "chat-1", "user-01")
		require.NoError(t, err)
		assert.Equal(t, int64(2), unread)

		n, err := s.MarkRead(ctx, "chat-1", "user-01")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		unread, err = s.CountUnread(ctx, "chat-1", "user-01")
		require.NoError(t, err)
		assert.Zero(t, unread)

		unread, err = s.CountUnread(ctx, "chat-1", "user-02")
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread)
	})

	t.Run("concurrent pair inserts keep one room", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateUser(ctx, newUser(1)))
		require.NoError(t, s.CreateUser(ctx, newUser(2)))

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.CreateChat(ctx, &models.ChatRoom{
					ChatID: fmt.Sprintf("race-%d", i), Participants: []string{"user-01", "user-02"},
					PairKey: models.PairKey("user-01", "user-02"), CreatedAt: base, LastMessageTime: base,
				})
				if err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, created)
	})
}

func appendInteraction(t *testing.T, s Store, id, from, to string, action models.Action, at time.Time) {
	t.Helper()
	require.NoError(t, s.AppendInteraction(context.Background(), &models.Interaction{
		InteractionID: id, UserID: from, TargetUserID: to, Action: action, Timestamp: at,
	}))
}

func userIDs(users []models.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.UserID
	}
	return out
}

func chatIDs(chats []models.ChatRoom) []string {
	out := make([]string, len(chats))
	for i, c := range chats {
		out[i] = c.ChatID
	}
	return out
}
