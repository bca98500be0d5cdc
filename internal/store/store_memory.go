package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// STORE_DRIVER=memory mode; data is lost on restart.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*models.User // by user_id
	byTelegramID map[string]string       // telegram_id -> user_id
	interactions []models.Interaction
	chats        map[string]*models.ChatRoom
	chatByPair   map[string]string
	messages     map[string][]models.Message // by chat_id, insertion order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*models.User),
		byTelegramID: make(map[string]string),
		chats:        make(map[string]*models.ChatRoom),
		chatByPair:   make(map[string]string),
		messages:     make(map[string][]models.Message),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byTelegramID[u.TelegramID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.users[u.UserID]; ok {
		return ErrDuplicate
	}
	cp := u.Clone()
	s.users[u.UserID] = &cp
	s.byTelegramID[u.TelegramID] = u.UserID
	return nil
}

func (s *MemoryStore) GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byTelegramID[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := s.users[id].Clone()
	return &cp, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u.Clone()
	return &cp, nil
}

func (s *MemoryStore) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := s.users[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, telegramID string, upd models.ProfileUpdate, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byTelegramID[telegramID]
	if !ok {
		return ErrNotFound
	}
	u := s.users[id]
	upd.Apply(u)
	u.UpdatedAt = updatedAt
	return nil
}

func (s *MemoryStore) SearchUsers(ctx context.Context, f SearchFilter) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.User
	for _, u := range s.users {
		if u.TelegramID == f.ExcludeTelegramID || !u.IsActive {
			continue
		}
		if slices.Contains(f.ExcludeUserIDs, u.UserID) {
			continue
		}
		if len(f.Genders) > 0 && !slices.Contains(f.Genders, u.Gender) {
			continue
		}
		matched = append(matched, u.Clone())
	}
	slices.SortFunc(matched, func(a, b models.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return page(matched, f.Skip, f.Limit), nil
}

func (s *MemoryStore) AppendInteraction(ctx context.Context, in *models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, *in)
	return nil
}

func (s *MemoryStore) InteractedTargetIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, in := range s.interactions {
		if in.UserID != userID {
			continue
		}
		if _, ok := seen[in.TargetUserID]; ok {
			continue
		}
		seen[in.TargetUserID] = struct{}{}
		out = append(out, in.TargetUserID)
	}
	return out, nil
}

func (s *MemoryStore) HasInteraction(ctx context.Context, actorID, targetID string, actions []models.Action) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, in := range s.interactions {
		if in.UserID == actorID && in.TargetUserID == targetID && slices.Contains(actions, in.Action) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) InteractionsReceived(ctx context.Context, userID string, actions []models.Action) ([]models.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Interaction
	for _, in := range s.interactions {
		if in.TargetUserID == userID && slices.Contains(actions, in.Action) {
			out = append(out, in)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Interaction) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}

func (s *MemoryStore) CreateChat(ctx context.Context, c *models.ChatRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chatByPair[c.PairKey]; ok {
		return ErrDuplicate
	}
	if _, ok := s.chats[c.ChatID]; ok {
		return ErrDuplicate
	}
	cp := c.Clone()
	s.chats[c.ChatID] = &cp
	s.chatByPair[c.PairKey] = c.ChatID
	return nil
}

func (s *MemoryStore) GetChat(ctx context.Context, chatID string) (*models.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := c.Clone()
	return &cp, nil
}

func (s *MemoryStore) GetChatByPair(ctx context.Context, pairKey string) (*models.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.chatByPair[pairKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := s.chats[id].Clone()
	return &cp, nil
}

func (s *MemoryStore) ListChatsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChatRoom
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.ChatRoom) int {
		if c := b.LastMessageTime.Compare(a.LastMessageTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ChatID, b.ChatID)
	})
	return out, nil
}

func (s *MemoryStore) SetLastMessage(ctx context.Context, chatID, body string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return ErrNotFound
	}
	c.LastMessage = &body
	c.LastMessageTime = at
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ChatID] = append(s.messages[m.ChatID], *m)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, chatID string, skip, limit int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := slices.Clone(s.messages[chatID])
	slices.SortStableFunc(msgs, func(a, b models.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.MessageID, b.MessageID)
	})
	return page(msgs, skip, limit), nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, chatID, readerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, m := range s.messages[chatID] {
		if m.SenderID != readerID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	msgs := s.messages[chatID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, skip, limit int64) []T {
	if skip >= int64(len(items)) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}
