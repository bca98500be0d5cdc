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
)

// MatchService records swipes and opens a chat room when two users like
// each other.
type MatchService struct {
	users        store.UserStore
	interactions store.InteractionStore
	chats        store.ChatStore
	locker       PairLocker
	log          *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewMatchService(users store.UserStore, interactions store.InteractionStore, chats store.ChatStore, locker PairLocker, opts ...Option) *MatchService {
	o := buildOptions(opts)
	if locker == nil {
		locker = NewLocalPairLocker()
	}
	return &MatchService{
		users:        users,
		interactions: interactions,
		chats:        chats,
		locker:       locker,
		log:          o.log,
		metrics:      o.metrics,
		now:          o.now,
	}
}

// RecordInteraction appends the actor's action on target. For like and
// super_like it checks for a positive action in the other direction and, on
// a match, makes sure the pair has exactly one chat room.
func (s *MatchService) RecordInteraction(ctx context.Context, actorTelegramID, targetUserID, rawAction string) (models.MatchResult, error) {
	action, ok := models.ParseAction(rawAction)
	if !ok {
		return models.MatchResult{}, apperrors.BadInput("Invalid action. Use like, dislike or super_like")
	}
	if targetUserID == "" {
		return models.MatchResult{}, apperrors.BadInput("target_user_id is required")
	}

	actor, err := s.users.GetUserByTelegramID(ctx, actorTelegramID)
	if err != nil {
		return models.MatchResult{}, userLookupErr(err)
	}
	if actor.UserID == targetUserID {
		return models.MatchResult{}, apperrors.BadInput("Cannot interact with yourself")
	}
	if _, err := s.users.GetUserByID(ctx, targetUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.MatchResult{}, apperrors.NotFound("Target user not found")
		}
		return models.MatchResult{}, apperrors.Internal("load target user", err)
	}

	err = s.interactions.AppendInteraction(ctx, &models.Interaction{
		InteractionID: uuid.NewString(),
		UserID:        actor.UserID,
		TargetUserID:  targetUserID,
		Action:        action,
		Timestamp:     s.now(),
	})
	if err != nil {
		return models.MatchResult{}, apperrors.Internal("record interaction", err)
	}
	s.metrics.IncInteraction(string(action))

	if !action.IsPositive() {
		return models.MatchResult{}, nil
	}
	return s.detectMatch(ctx, actor.UserID, targetUserID)
}

func (s *MatchService) detectMatch(ctx context.Context, actorID, targetID string) (models.MatchResult, error) {
	pairKey := models.PairKey(actorID, targetID)
	unlock, err := s.locker.Lock(ctx, pairKey)
	if err != nil {
		return models.MatchResult{}, apperrors.Internal("lock pair", err)
	}
	defer unlock()

	reciprocal, err := s.interactions.HasInteraction(ctx, targetID, actorID, models.PositiveActions)
	if err != nil {
		return models.MatchResult{}, apperrors.Internal("check reciprocal like", err)
	}
	if !reciprocal {
		return models.MatchResult{}, nil
	}

	room, created, err := s.ensureRoom(ctx, actorID, targetID, pairKey)
	if err != nil {
		return models.MatchResult{}, err
	}
	if created {
		s.metrics.IncMatches()
		s.log.Info("match created", "chat_id", room.ChatID, "pair", pairKey)
	}
	return models.MatchResult{IsMatch: true, ChatID: room.ChatID}, nil
}

// ensureRoom returns the pair's room, creating it when missing. A racing
// insert that loses on the unique pair key resolves to the winner's room.
func (s *MatchService) ensureRoom(ctx context.Context, actorID, targetID, pairKey string) (*models.ChatRoom, bool, error) {
	existing, err := s.chats.GetChatByPair(ctx, pairKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, apperrors.Internal("load chat room", err)
	}

	now := s.now()
	room := &models.ChatRoom{
		ChatID:          uuid.NewString(),
		Participants:    []string{actorID, targetID},
		PairKey:         pairKey,
		CreatedAt:       now,
		LastMessageTime: now,
	}
	if err := s.chats.CreateChat(ctx, room); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, false, apperrors.Internal("create chat room", err)
		}
		existing, err := s.chats.GetChatByPair(ctx, pairKey)
		if err != nil {
			return nil, false, apperrors.Internal("load chat room", err)
		}
		return existing, false, nil
	}
	return room, true, nil
}

// ReceivedLikes lists the users who liked telegramID, most recent first and
// one entry per liker. A positive action restricts the list to that action;
// the empty action means every positive one.
func (s *MatchService) ReceivedLikes(ctx context.Context, telegramID string, action models.Action) ([]models.UserSummary, error) {
	actions := models.PositiveActions
	if action != "" {
		if !action.IsPositive() {
			return nil, apperrors.BadInput("action must be like or super_like")
		}
		actions = []models.Action{action}
	}

	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, userLookupErr(err)
	}

	received, err := s.interactions.InteractionsReceived(ctx, user.UserID, actions)
	if err != nil {
		return nil, apperrors.Internal("load received likes", err)
	}

	var likerIDs []string
	seen := make(map[string]struct{}, len(received))
	for _, in := range received {
		if _, dup := seen[in.UserID]; dup {
			continue
		}
		seen[in.UserID] = struct{}{}
		likerIDs = append(likerIDs, in.UserID)
	}

	likers, err := s.users.GetUsersByIDs(ctx, likerIDs)
	if err != nil {
		return nil, apperrors.Internal("load likers", err)
	}
	byID := make(map[string]*models.User, len(likers))
	for i := range likers {
		byID[likers[i].UserID] = &likers[i]
	}

	out := make([]models.UserSummary, 0, len(likerIDs))
	for _, id := range likerIDs {
		if u, ok := byID[id]; ok && u.IsActive {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}
