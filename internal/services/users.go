package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AnshRaj112/spokies-backend/internal/apperrors"
	"github.com/AnshRaj112/spokies-backend/internal/blob"
	"github.com/AnshRaj112/spokies-backend/internal/metrics"
	"github.com/AnshRaj112/spokies-backend/internal/models"
	"github.com/AnshRaj112/spokies-backend/internal/store"
	"github.com/AnshRaj112/spokies-backend/pkg/utils"
)

// maxConcurrentUploads bounds the photo uploads of a single registration.
const maxConcurrentUploads = 4

type UserService struct {
	users   store.UserStore
	blobs   blob.Store
	cache   *ProfileCache
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewUserService(users store.UserStore, blobs blob.Store, cache *ProfileCache, opts ...Option) *UserService {
	o := buildOptions(opts)
	return &UserService{
		users:   users,
		blobs:   blobs,
		cache:   cache,
		log:     o.log,
		metrics: o.metrics,
		now:     o.now,
	}
}

// Register creates a profile. Photos are stored first; if any upload fails or
// the user row cannot be written, the photos already stored are deleted.
func (s *UserService) Register(ctx context.Context, reg models.Registration, photos []models.Photo) (*models.User, error) {
	reg.TelegramID = strings.TrimSpace(reg.TelegramID)
	reg.Name = strings.TrimSpace(reg.Name)
	if err := validateRegistration(reg); err != nil {
		return nil, err
	}

	_, err := s.users.GetUserByTelegramID(ctx, reg.TelegramID)
	switch {
	case err == nil:
		return nil, apperrors.Conflict("User already exists")
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperrors.Internal("lookup user", err)
	}

	urls, err := s.storePhotos(ctx, photos)
	if err != nil {
		return nil, apperrors.Internal("store photos", err)
	}

	now := s.now()
	u := &models.User{
		UserID:           uuid.NewString(),
		TelegramID:       reg.TelegramID,
		Name:             reg.Name,
		Age:              reg.Age,
		Gender:           reg.Gender,
		Orientation:      reg.Orientation,
		InterestedIn:     nonNilStrings(reg.InterestedIn),
		RelationshipType: nonNilStrings(reg.RelationshipType),
		TraitTags:        nonNilInts(reg.TraitTags),
		Photos:           urls,
		Bio:              reg.Bio,
		Tokens:           models.DefaultTokenBalance,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.users.CreateUser(ctx, u); err != nil {
		s.deletePhotos(ctx, urls)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.Conflict("User already exists")
		}
		return nil, apperrors.Internal("create user", err)
	}

	s.metrics.IncUsersRegistered()
	s.log.Info("user registered", "user_id", u.UserID, "photos", len(urls))
	return u, nil
}

func validateRegistration(reg models.Registration) error {
	err := utils.FirstError(
		utils.ValidateExternalID(reg.TelegramID),
		utils.ValidateName(reg.Name),
		utils.ValidateAge(reg.Age),
		utils.ValidateRequired("gender", reg.Gender),
		utils.ValidateRequired("orientation", reg.Orientation),
		utils.ValidateList("interested_in", reg.InterestedIn),
		utils.ValidateList("relationship_type", reg.RelationshipType),
		utils.ValidateBio(reg.Bio),
	)
	if err != nil {
		return apperrors.BadInput(err.Error())
	}
	return nil
}

// storePhotos uploads concurrently and returns URLs in upload order.
func (s *UserService) storePhotos(ctx context.Context, photos []models.Photo) ([]string, error) {
	urls := make([]string, len(photos))
	if len(photos) == 0 {
		return urls, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for i, p := range photos {
		g.Go(func() error {
			url, err := s.blobs.Put(gctx, p.Filename, p.Data)
			if err != nil {
				s.metrics.IncPhotoUpload("error")
				return fmt.Errorf("photo %d (%s): %w", i, p.Filename, err)
			}
			s.metrics.IncPhotoUpload("ok")
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.deletePhotos(ctx, urls)
		return nil, err
	}
	return urls, nil
}

// deletePhotos is best-effort cleanup; it outlives a cancelled request.
func (s *UserService) deletePhotos(ctx context.Context, urls []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, url); err != nil {
			s.log.Warn("failed to delete orphaned photo", "url", url, "error", err)
		}
	}
}

func (s *UserService) GetProfile(ctx context.Context, telegramID string) (*models.User, error) {
	if u, ok := s.cache.Get(ctx, telegramID); ok {
		return u, nil
	}
	u, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, userLookupErr(err)
	}
	s.cache.Set(ctx, u)
	return u, nil
}

// UpdateProfile writes the present fields and reports whether any stored
// value actually changed. updated_at is refreshed either way.
func (s *UserService) UpdateProfile(ctx context.Context, telegramID string, upd models.ProfileUpdate) (bool, error) {
	if err := validateUpdate(upd); err != nil {
		return false, err
	}

	current, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return false, userLookupErr(err)
	}
	changed := upd.Apply(current)

	updatedAt := s.now()
	if err := s.users.UpdateUser(ctx, telegramID, upd, updatedAt); err != nil {
		return false, userLookupErr(err)
	}
	s.cache.Invalidate(ctx, telegramID, updatedAt)
	return changed, nil
}

func validateUpdate(upd models.ProfileUpdate) error {
	var errs []error
	if upd.Name != nil {
		errs = append(errs, utils.ValidateName(*upd.Name))
	}
	if upd.Age != nil {
		errs = append(errs, utils.ValidateAge(*upd.Age))
	}
	if upd.Bio != nil {
		errs = append(errs, utils.ValidateBio(*upd.Bio))
	}
	if upd.Gender != nil {
		errs = append(errs, utils.ValidateRequired("gender", *upd.Gender))
	}
	if upd.Orientation != nil {
		errs = append(errs, utils.ValidateRequired("orientation", *upd.Orientation))
	}
	if upd.InterestedIn != nil {
		errs = append(errs, utils.ValidateList("interested_in", *upd.InterestedIn))
	}
	if upd.RelationshipType != nil {
		errs = append(errs, utils.ValidateList("relationship_type", *upd.RelationshipType))
	}
	if err := utils.FirstError(errs...); err != nil {
		return apperrors.BadInput(err.Error())
	}
	return nil
}

// userLookupErr maps store failures for a user lookup.
func userLookupErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("User not found")
	}
	return apperrors.Internal("load user", err)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
