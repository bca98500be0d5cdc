package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/AnshRaj112/spokies-backend/internal/apperrors"
	"github.com/AnshRaj112/spokies-backend/internal/blob"
	"github.com/AnshRaj112/spokies-backend/internal/blob/mocks"
	"github.com/AnshRaj112/spokies-backend/internal/logger"
	"github.com/AnshRaj112/spokies-backend/internal/models"
	"github.com/AnshRaj112/spokies-backend/internal/store"
)

func validRegistration(telegramID string) models.Registration {
	return models.Registration{
		TelegramID:       telegramID,
		Name:             "Ann",
		Age:              27,
		Gender:           "female",
		Orientation:      "straight",
		InterestedIn:     []string{"male"},
		RelationshipType: []string{"long_term"},
		TraitTags:        []int{1, 4},
		Bio:              "hello",
	}
}

func newUserService(t *testing.T, st store.UserStore, blobs blob.Store, cache *ProfileCache) *UserService {
	t.Helper()
	return NewUserService(st, blobs, cache, WithLogger(logger.Discard()), WithClock(stepClock()))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	blobs := mocks.NewMockStore(ctrl)
	st := store.NewMemoryStore()
	svc := newUserService(t, st, blobs, nil)

	blobs.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, name string, _ []byte) (string, error) {
			return "/uploads/" + name, nil
		}).Times(3)

	photos := []models.Photo{
		{Filename: "one.jpg", Data: []byte("1")},
		{Filename: "two.jpg", Data: []byte("2")},
		{Filename: "three.jpg", Data: []byte("3")},
	}
	u, err := svc.Register(ctx, validRegistration(" 42 "), photos)
	require.NoError(t, err)

	assert.NotEmpty(t, u.UserID)
	assert.Equal(t, "42", u.TelegramID)
	assert.Equal(t, models.DefaultTokenBalance, u.Tokens)
	assert.True(t, u.IsActive)
	assert.Nil(t, u.Location)
	assert.Equal(t, []string{"/uploads/one.jpg", "/uploads/two.jpg", "/uploads/three.jpg"}, u.Photos)
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)

	stored, err := st.GetUserByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, stored.UserID)
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "42", "Ann", "female")

	_, err := env.users.Register(context.Background(), validRegistration("42"), nil)
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := map[string]func(r *models.Registration){
		"missing telegram id": func(r *models.Registration) { r.TelegramID = "" },
		"blank name":          func(r *models.Registration) { r.Name = "  " },
		"under age":           func(r *models.Registration) { r.Age = 17 },
		"implausible age":     func(r *models.Registration) { r.Age = 200 },
		"missing gender":      func(r *models.Registration) { r.Gender = "" },
		"missing orientation": func(r *models.Registration) { r.Orientation = "" },
		"blank interest":      func(r *models.Registration) { r.InterestedIn = []string{""} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			reg := validRegistration("42")
			mutate(&reg)
			_, err := env.users.Register(context.Background(), reg, nil)
			assert.Equal(t, apperrors.CodeBadInput, apperrors.CodeOf(err))
		})
	}
}

func TestRegisterPhotoFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	blobs := mocks.NewMockStore(ctrl)
	st := store.NewMemoryStore()
	svc := newUserService(t, st, blobs, nil)

	blobs.EXPECT().Put(gomock.Any(), "good.jpg", gomock.Any()).Return("/uploads/good.jpg", nil)
	blobs.EXPECT().Put(gomock.Any(), "bad.jpg", gomock.Any()).Return("", errors.New("disk full"))
	blobs.EXPECT().Delete(gomock.Any(), "/uploads/good.jpg").Return(nil)

	_, err := svc.Register(ctx, validRegistration("42"), []models.Photo{
		{Filename: "good.jpg", Data: []byte("g")},
		{Filename: "bad.jpg", Data: []byte("b")},
	})
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))

	_, err = st.GetUserByTelegramID(ctx, "42")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// racingStore reports a duplicate on insert, as a unique index would when a
// concurrent registration wins.
type racingStore struct {
	*store.MemoryStore
}

func (racingStore) CreateUser(context.Context, *models.User) error {
	return store.ErrDuplicate
}

func TestRegisterLostRaceDeletesPhotos(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := mocks.NewMockStore(ctrl)
	svc := newUserService(t, racingStore{store.NewMemoryStore()}, blobs, nil)

	blobs.EXPECT().Put(gomock.Any(), "a.jpg", gomock.Any()).Return("/uploads/a.jpg", nil)
	blobs.EXPECT().Delete(gomock.Any(), "/uploads/a.jpg").Return(nil)

	_, err := svc.Register(context.Background(), validRegistration("42"), []models.Photo{{Filename: "a.jpg"}})
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
}

func TestGetProfileNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.users.GetProfile(context.Background(), "nobody")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.register(t, "42", "Ann", "female")

	bio := "new bio"
	changed, err := env.users.UpdateProfile(ctx, "42", models.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := env.users.GetProfile(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "new bio", got.Bio)
	assert.True(t, got.UpdatedAt.After(u.UpdatedAt))

	changed, err = env.users.UpdateProfile(ctx, "42", models.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := env.users.GetProfile(ctx, "42")
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(got.UpdatedAt), "updated_at refreshes even without changes")

	_, err = env.users.UpdateProfile(ctx, "missing", models.ProfileUpdate{Bio: &bio})
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	age := 12
	_, err = env.users.UpdateProfile(ctx, "42", models.ProfileUpdate{Age: &age})
	assert.Equal(t, apperrors.CodeBadInput, apperrors.CodeOf(err))
}

func TestProfileCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	st := store.NewMemoryStore()
	cache := NewProfileCache(client, 0, logger.Discard())
	svc := newUserService(t, st, nil, cache)

	_, err := svc.Register(ctx, validRegistration("42"), nil)
	require.NoError(t, err)

	_, err = svc.GetProfile(ctx, "42")
	require.NoError(t, err)
	key := profileKey("42")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, "cache:profile:2f0039e93a27221fcf657fb877a1d4f6", key)

	cached, ok := cache.Get(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "Ann", cached.Name)

	name := "Bea"
	_, err = svc.UpdateProfile(ctx, "42", models.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	got, err := svc.GetProfile(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Bea", got.Name)
}

func TestNilProfileCacheIsMiss(t *testing.T) {
	var c *ProfileCache
	assert.Nil(t, NewProfileCache(nil, 0, logger.Discard()))
	_, ok := c.Get(context.Background(), "42")
	assert.False(t, ok)
	c.Set(context.Background(), &models.User{TelegramID: "42"})
	c.Invalidate(context.Background(), "42", time.Now())
}

// pausingStore blocks the first armed profile read after it has loaded the row.
type pausingStore struct {
	store.UserStore
	armed   atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausingStore) GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	u, err := p.UserStore.GetUserByTelegramID(ctx, telegramID)
	if p.armed.CompareAndSwap(true, false) {
		close(p.loaded)
		<-p.release
	}
	return u, err
}

func TestProfileCacheIgnoresStaleFill(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	st := &pausingStore{
		UserStore: store.NewMemoryStore(),
		loaded:    make(chan struct{}),
		release:   make(chan struct{}),
	}
	cache := NewProfileCache(client, time.Minute, logger.Discard())
	svc := newUserService(t, st, nil, cache)

	_, err := svc.Register(ctx, validRegistration("42"), nil)
	require.NoError(t, err)

	// the reader loads "Ann" and stalls before filling the cache
	st.armed.Store(true)
	readDone := make(chan error, 1)
	go func() {
		_, err := svc.GetProfile(ctx, "42")
		readDone <- err
	}()
	<-st.loaded

	name := "Bea"
	_, err = svc.UpdateProfile(ctx, "42", models.ProfileUpdate{Name: &name})
	require.NoError(t, err)

	close(st.release)
	require.NoError(t, <-readDone)

	if cached, ok := cache.Get(ctx, "42"); ok {
		assert.Equal(t, "Bea", cached.Name)
	}
	got, err := svc.GetProfile(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Bea", got.Name)
}
