package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ford-at-home/ecko/internal/apperr"
	"github.com/ford-at-home/ecko/internal/auth"
	"github.com/ford-at-home/ecko/internal/model"
	"github.com/ford-at-home/ecko/internal/repository"
	"github.com/ford-at-home/ecko/internal/storage"
)

// UserService maintains the local mirror of identity-provider accounts and
// performs the account cascade delete.
type UserService interface {
	EnsureUser(ctx context.Context, identity *auth.Identity) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	DeleteAccount(ctx context.Context, userID string) error
}

type userService struct {
	userRepo repository.UserRepository
	echoRepo repository.EchoRepository
	store    storage.ObjectStore
	logger   zerolog.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	echoRepo repository.EchoRepository,
	store storage.ObjectStore,
	logger zerolog.Logger,
) UserService {
	return &userService{
		userRepo: userRepo,
		echoRepo: echoRepo,
		store:    store,
		logger:   logger.With().Str("service", "UserService").Logger(),
	}
}

// EnsureUser upserts the users row from a verified identity. The identity
// provider owns the id; this only mirrors profile fields.
func (s *userService) EnsureUser(ctx context.Context, identity *auth.Identity) (*model.User, error) {
	user := &model.User{
		ID:       identity.UserID,
		Email:    identity.Email,
		Username: identity.Username,
	}
	if err := s.userRepo.UpsertUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", identity.UserID).Msg("Failed to upsert user")
		return nil, apperr.Dependency("record store is unavailable", err)
	}
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get user")
		return nil, apperr.Dependency("record store is unavailable", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

// DeleteAccount removes the user's echoes first and the user row last, as an
// explicit two-step cascade. Blob deletes are best effort.
func (s *userService) DeleteAccount(ctx context.Context, userID string) error {
	keys, err := s.echoRepo.ListEchoKeysByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list echo keys for account deletion")
		return apperr.Dependency("record store is unavailable", err)
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("s3_key", key).Msg("Failed to delete echo blob during account deletion")
		}
	}

	if err := s.echoRepo.DeleteEchoesByUser(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete echoes for account deletion")
		return apperr.Dependency("record store is unavailable", err)
	}

	deleted, err := s.userRepo.DeleteUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete user row")
		return apperr.Dependency("record store is unavailable", err)
	}
	if !deleted {
		return apperr.NotFound("user not found")
	}
	return nil
}
