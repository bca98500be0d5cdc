package services

import (
	"context"
	"log/slog"

	"github.com/AnshRaj112/spokies-backend/internal/apperrors"
	"github.com/AnshRaj112/spokies-backend/internal/models"
	"github.com/AnshRaj112/spokies-backend/internal/store"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// SearchService lists candidates a user has not acted on yet.
type SearchService struct {
	users        store.UserStore
	interactions store.InteractionStore
	log          *slog.Logger
}

func NewSearchService(users store.UserStore, interactions store.InteractionStore, opts ...Option) *SearchService {
	o := buildOptions(opts)
	return &SearchService{users: users, interactions: interactions, log: o.log}
}

// SearchCandidates returns active users other than the requester that the
// requester never interacted with, filtered by the requester's interested_in
// genders, ordered by created_at then user_id.
func (s *SearchService) SearchCandidates(ctx context.Context, telegramID string, skip, limit int64) ([]models.UserSummary, error) {
	if skip < 0 || limit < 0 {
		return nil, apperrors.BadInput("skip and limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	requester, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, userLookupErr(err)
	}

	excluded, err := s.interactions.InteractedTargetIDs(ctx, requester.UserID)
	if err != nil {
		return nil, apperrors.Internal("load interacted users", err)
	}

	candidates, err := s.users.SearchUsers(ctx, store.SearchFilter{
		ExcludeTelegramID: requester.TelegramID,
		ExcludeUserIDs:    excluded,
		Genders:           requester.InterestedIn,
		Skip:              skip,
		Limit:             limit,
	})
	if err != nil {
		return nil, apperrors.Internal("search users", err)
	}

	out := make([]models.UserSummary, len(candidates))
	for i := range candidates {
		out[i] = candidates[i].Summary()
	}
	return out, nil
}
