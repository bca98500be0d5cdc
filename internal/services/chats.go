package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AnshRaj112/spokies-backend/internal/apperrors"
	"github.com/AnshRaj112/spokies-backend/internal/metrics"
	"github.com/AnshRaj112/spokies-backend/internal/models"
	"github.com/AnshRaj112/spokies-backend/internal/store"
	"github.com/AnshRaj112/spokies-backend/pkg/utils"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

// ChatService serves room lists, history and message sends for matched pairs.
type ChatService struct {
	users    store.UserStore
	chats    store.ChatStore
	messages store.MessageStore
	bus      EventBus
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewChatService(users store.UserStore, chats store.ChatStore, messages store.MessageStore, bus EventBus, opts ...Option) *ChatService {
	o := buildOptions(opts)
	return &ChatService{
		users:    users,
		chats:    chats,
		messages: messages,
		bus:      bus,
		log:      o.log,
		metrics:  o.metrics,
		now:      o.now,
	}
}

// ListChats returns the rooms of telegramID, most recently active first,
// each with the other participant's name, first photo and unread count.
func (s *ChatService) ListChats(ctx context.Context, telegramID string) ([]models.ChatSummary, error) {
	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, userLookupErr(err)
	}

	rooms, err := s.chats.ListChatsForUser(ctx, user.UserID)
	if err != nil {
		return nil, apperrors.Internal("list chats", err)
	}

	otherIDs := make([]string, 0, len(rooms))
	for i := range rooms {
		otherIDs = append(otherIDs, rooms[i].OtherParticipant(user.UserID))
	}
	others, err := s.users.GetUsersByIDs(ctx, otherIDs)
	if err != nil {
		return nil, apperrors.Internal("load chat participants", err)
	}
	byID := make(map[string]*models.User, len(others))
	for i := range others {
		byID[others[i].UserID] = &others[i]
	}

	out := make([]models.ChatSummary, 0, len(rooms))
	for i := range rooms {
		summary := models.ChatSummary{ChatRoom: rooms[i], ParticipantID: otherIDs[i]}
		if other, ok := byID[otherIDs[i]]; ok {
			summary.ParticipantName = other.Name
			summary.ParticipantPhoto = other.FirstPhoto()
		}
		unread, err := s.messages.CountUnread(ctx, rooms[i].ChatID, user.UserID)
		if err != nil {
			return nil, apperrors.Internal("count unread", err)
		}
		summary.UnreadCount = unread
		out = append(out, summary)
	}
	return out, nil
}

// GetMessages returns a page of history, oldest first.
func (s *ChatService) GetMessages(ctx context.Context, chatID string, skip, limit int64) ([]models.Message, error) {
	if skip < 0 || limit < 0 {
		return nil, apperrors.BadInput("skip and limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultMessageLimit
	}
	limit = min(limit, MaxMessageLimit)

	if _, err := s.getRoom(ctx, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, chatID, skip, limit)
	if err != nil {
		return nil, apperrors.Internal("list messages", err)
	}
	return msgs, nil
}

// SendMessage appends body to the room and refreshes its last-message fields.
// The two writes are separate; concurrent senders may leave either message
// as the room's last_message.
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderTelegramID, body string) (*models.Message, error) {
	sender, room, err := s.member(ctx, chatID, senderTelegramID)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateMessage(body); err != nil {
		return nil, apperrors.BadInput(err.Error())
	}

	msg := &models.Message{
		MessageID: uuid.NewString(),
		ChatID:    room.ChatID,
		SenderID:  sender.UserID,
		Body:      body,
		Timestamp: s.now(),
	}
	if err := s.messages.AppendMessage(ctx, msg); err != nil {
		return nil, apperrors.Internal("append message", err)
	}
	if err := s.chats.SetLastMessage(ctx, room.ChatID, body, msg.Timestamp); err != nil {
		return nil, apperrors.Internal("update last message", err)
	}
	s.metrics.IncMessagesSent()

	s.publish(ctx, ChatEvent{
		Type:      EventMessage,
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		SenderID:  msg.SenderID,
		Message:   msg.Body,
		Timestamp: msg.Timestamp,
	})
	return msg, nil
}

// MarkRead flags the messages the other participant sent as read and returns
// how many changed.
func (s *ChatService) MarkRead(ctx context.Context, chatID, readerTelegramID string) (int64, error) {
	reader, room, err := s.member(ctx, chatID, readerTelegramID)
	if err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, room.ChatID, reader.UserID)
	if err != nil {
		return 0, apperrors.Internal("mark read", err)
	}
	if n > 0 {
		s.publish(ctx, ChatEvent{
			Type:      EventRead,
			ChatID:    room.ChatID,
			ReaderID:  reader.UserID,
			Updated:   n,
			Timestamp: s.now(),
		})
	}
	return n, nil
}

// Authorize resolves telegramID and checks it participates in chatID.
func (s *ChatService) Authorize(ctx context.Context, chatID, telegramID string) (*models.User, error) {
	u, _, err := s.member(ctx, chatID, telegramID)
	return u, err
}

// Subscribe attaches a live listener to the room's events.
func (s *ChatService) Subscribe(chatID string) (<-chan ChatEvent, func()) {
	return s.bus.Subscribe(chatID)
}

func (s *ChatService) member(ctx context.Context, chatID, telegramID string) (*models.User, *models.ChatRoom, error) {
	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, nil, userLookupErr(err)
	}
	room, err := s.getRoom(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if !room.HasParticipant(user.UserID) {
		return nil, nil, apperrors.Forbidden("Not a participant in this chat")
	}
	return user, room, nil
}

func (s *ChatService) getRoom(ctx context.Context, chatID string) (*models.ChatRoom, error) {
	room, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Chat not found")
		}
		return nil, apperrors.Internal("load chat", err)
	}
	return room, nil
}

// publish is fire-and-forget; the message is already stored.
func (s *ChatService) publish(ctx context.Context, ev ChatEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("failed to publish chat event", "chat_id", ev.ChatID, "type", ev.Type, "error", err)
	}
}
