// Package store persists users, interactions, chat rooms and messages.
//
// Three backends implement Store: MongoStore (the default document store),
// PostgresStore and MemoryStore. Each returns ErrNotFound for missing records
// and ErrDuplicate when a unique key (telegram_id, user_id, pair_key) is taken,
// optionally wrapped.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// SearchFilter selects active candidates for a requester. Results are ordered
// by created_at ascending, then user_id ascending, so skip/limit pages are stable.
type SearchFilter struct {
	ExcludeTelegramID string
	ExcludeUserIDs    []string
	Genders           []string // empty means any gender
	Skip              int64
	Limit             int64
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)
	// UpdateUser sets the present fields of upd plus updated_at.
	UpdateUser(ctx context.Context, telegramID string, upd models.ProfileUpdate, updatedAt time.Time) error
	SearchUsers(ctx context.Context, f SearchFilter) ([]models.User, error)
}

type InteractionStore interface {
	AppendInteraction(ctx context.Context, in *models.Interaction) error
	// InteractedTargetIDs returns the distinct targets userID has acted on.
	InteractedTargetIDs(ctx context.Context, userID string) ([]string, error)
	// HasInteraction reports whether actorID ever acted on targetID with one of actions.
	HasInteraction(ctx context.Context, actorID, targetID string, actions []models.Action) (bool, error)
	// InteractionsReceived lists interactions targeting userID, newest first.
	InteractionsReceived(ctx context.Context, userID string, actions []models.Action) ([]models.Interaction, error)
}

type ChatStore interface {
	CreateChat(ctx context.Context, c *models.ChatRoom) error
	GetChat(ctx context.Context, chatID string) (*models.ChatRoom, error)
	GetChatByPair(ctx context.Context, pairKey string) (*models.ChatRoom, error)
	// ListChatsForUser orders by last_message_time descending, chat_id ascending.
	ListChatsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error)
	SetLastMessage(ctx context.Context, chatID, body string, at time.Time) error
}

type MessageStore interface {
	AppendMessage(ctx context.Context, m *models.Message) error
	// ListMessages orders by timestamp ascending, message_id ascending.
	ListMessages(ctx context.Context, chatID string, skip, limit int64) ([]models.Message, error)
	CountUnread(ctx context.Context, chatID, readerID string) (int64, error)
	// MarkRead flags every unread message in chatID not sent by readerID.
	MarkRead(ctx context.Context, chatID, readerID string) (int64, error)
}

type Store interface {
	UserStore
	InteractionStore
	ChatStore
	MessageStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
