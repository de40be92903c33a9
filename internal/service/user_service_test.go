package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ford-at-home/ecko/internal/apperr"
	"github.com/ford-at-home/ecko/internal/auth"
	"github.com/ford-at-home/ecko/internal/model"
	"github.com/ford-at-home/ecko/internal/repository"
)

type fakeUserRepo struct {
	repository.UserRepository

	users     map[string]*model.User
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (f *fakeUserRepo) UpsertUser(ctx context.Context, u *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.users[u.ID]; ok {
		existing.Email = u.Email
		existing.Username = u.Username
		*u = *existing
		return nil
	}
	u.IsActive = true
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) DeleteUser(ctx context.Context, id string) (bool, error) {
	if _, ok := f.users[id]; !ok {
		return false, nil
	}
	delete(f.users, id)
	return true, nil
}

func (f *fakeEchoRepo) ListEchoKeysByUser(ctx context.Context, userID string) ([]string, error) {
	var keys []string
	for _, e := range f.echoes {
		if e.UserID == userID {
			keys = append(keys, e.S3Key)
		}
	}
	return keys, nil
}

func (f *fakeEchoRepo) DeleteEchoesByUser(ctx context.Context, userID string) error {
	for id, e := range f.echoes {
		if e.UserID == userID {
			delete(f.echoes, id)
		}
	}
	return nil
}

func TestEnsureUserUpserts(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewUserService(users, newFakeEchoRepo(), &fakeStore{}, zerolog.Nop())

	identity := &auth.Identity{UserID: "u1", Email: "a@example.com", Username: "ana"}
	u, err := svc.EnsureUser(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.True(t, u.IsActive)

	identity.Email = "new@example.com"
	u, err = svc.EnsureUser(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Len(t, users.users, 1)
}

func TestEnsureUserStoreFailure(t *testing.T) {
	users := newFakeUserRepo()
	users.upsertErr = errors.New("db down")
	svc := NewUserService(users, newFakeEchoRepo(), &fakeStore{}, zerolog.Nop())

	_, err := svc.EnsureUser(context.Background(), &auth.Identity{UserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(err))
}

func TestDeleteAccountCascades(t *testing.T) {
	users := newFakeUserRepo()
	echoes := newFakeEchoRepo()
	store := &fakeStore{deleteErr: errors.New("flaky storage")}
	svc := NewUserService(users, echoes, store, zerolog.Nop())

	users.users["u1"] = &model.User{ID: "u1", Email: "a@example.com"}
	echoes.echoes["e1"] = &model.Echo{ID: "e1", UserID: "u1", S3Key: "u1/2026/08/30/e1.webm"}
	echoes.echoes["e2"] = &model.Echo{ID: "e2", UserID: "u1", S3Key: "u1/2026/08/30/e2.ogg"}
	echoes.echoes["e3"] = &model.Echo{ID: "e3", UserID: "u2", S3Key: "u2/2026/08/30/e3.ogg"}

	require.NoError(t, svc.DeleteAccount(context.Background(), "u1"))

	assert.Len(t, store.deleted, 2, "every owned blob delete should be attempted")
	assert.NotContains(t, echoes.echoes, "e1")
	assert.NotContains(t, echoes.echoes, "e2")
	assert.Contains(t, echoes.echoes, "e3", "other users' echoes are untouched")
	assert.NotContains(t, users.users, "u1")
}

func TestDeleteAccountUnknownUser(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), newFakeEchoRepo(), &fakeStore{}, zerolog.Nop())

	err := svc.DeleteAccount(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
