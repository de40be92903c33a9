package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ford-at-home/ecko/internal/apperr"
	"github.com/ford-at-home/ecko/internal/events"
	"github.com/ford-at-home/ecko/internal/model"
	"github.com/ford-at-home/ecko/internal/repository"
	"github.com/ford-at-home/ecko/internal/storage"
)

// allowedExtensions is the closed set of audio container formats accepted for
// upload.
var allowedExtensions = map[string]struct{}{
	"webm": {},
	"wav":  {},
	"mp3":  {},
	"m4a":  {},
	"ogg":  {},
}

// InitUploadResult is what a client needs to perform the direct-to-storage
// upload and later commit the metadata.
type InitUploadResult struct {
	UploadURL string
	EchoID    string
	S3Key     string
	ExpiresIn int
}

// CommitEchoParams is the metadata supplied in phase two of the upload.
type CommitEchoParams struct {
	Emotion         model.Emotion
	Caption         string
	Location        *model.Location
	DurationSeconds *float64
	FileSizeBytes   *int64
	Transcript      string
	Tags            model.Tags
}

// EchoPage is one page of a user's echoes plus the position to resume from.
// NextCursor is empty when the listing is exhausted.
type EchoPage struct {
	Items      []model.Echo
	NextCursor string
}

// EchoService coordinates the two-phase upload and serves ownership-scoped
// queries over committed echoes.
type EchoService interface {
	InitiateUpload(ctx context.Context, userID, fileExtension string) (*InitUploadResult, error)
	CommitEcho(ctx context.Context, userID, echoID string, params CommitEchoParams) (*model.Echo, error)
	ListEchoes(ctx context.Context, userID, cursor string, pageSize int, emotion *model.Emotion) (*EchoPage, error)
	GetRandomEcho(ctx context.Context, userID string, emotion model.Emotion) (*model.Echo, error)
	GetEcho(ctx context.Context, userID, echoID string) (*model.Echo, error)
	DeleteEcho(ctx context.Context, userID, echoID string) error
}

type echoService struct {
	repo          repository.EchoRepository
	store         storage.ObjectStore
	publisher     events.Publisher
	analysisTopic string
	uploadTTL     time.Duration
	logger        zerolog.Logger
}

// NewEchoService creates a new EchoService. publisher may be nil when the
// analysis pipeline is not configured.
func NewEchoService(
	repo repository.EchoRepository,
	store storage.ObjectStore,
	publisher events.Publisher,
	analysisTopic string,
	uploadTTL time.Duration,
	logger zerolog.Logger,
) EchoService {
	return &echoService{
		repo:          repo,
		store:         store,
		publisher:     publisher,
		analysisTopic: analysisTopic,
		uploadTTL:     uploadTTL,
		logger:        logger.With().Str("service", "EchoService").Logger(),
	}
}

// InitiateUpload allocates a fresh echo id, issues a presigned PUT URL for its
// deterministic storage key, and records the pending upload in the ledger. No
// echo row exists until CommitEcho.
func (s *echoService) InitiateUpload(ctx context.Context, userID, fileExtension string) (*InitUploadResult, error) {
	if _, ok := allowedExtensions[fileExtension]; !ok {
		return nil, apperr.Validation("file_extension %q is not supported", fileExtension)
	}

	now := time.Now().UTC()
	echoID := uuid.NewString()
	key := storage.BuildObjectKey(userID, echoID, fileExtension, now)

	uploadURL, err := s.store.PresignPut(ctx, key, s.uploadTTL)
	if err != nil {
		s.logger.Error().Err(err).Str("echo_id", echoID).Msg("Failed to generate presigned upload URL")
		return nil, apperr.Dependency("object storage is unavailable", err)
	}

	pending := &model.PendingUpload{
		EchoID:        echoID,
		UserID:        userID,
		S3Key:         key,
		FileExtension: fileExtension,
		ExpiresAt:     now.Add(s.uploadTTL),
		CreatedAt:     now,
	}
	if err := s.repo.CreatePendingUpload(ctx, pending); err != nil {
		s.logger.Error().Err(err).Str("echo_id", echoID).Msg("Failed to record pending upload")
		return nil, apperr.Dependency("record store is unavailable", err)
	}

	return &InitUploadResult{
		UploadURL: uploadURL,
		EchoID:    echoID,
		S3Key:     key,
		ExpiresIn: int(s.uploadTTL.Seconds()),
	}, nil
}

// CommitEcho binds the supplied metadata to a previously issued echo id. The
// id must trace back to InitiateUpload; a duplicate commit is rejected, never
// overwritten. The blob write and the metadata write are not transactional:
// an orphan upload is tolerated, a metadata row without an authorized upload
// is not.
func (s *echoService) CommitEcho(ctx context.Context, userID, echoID string, params CommitEchoParams) (*model.Echo, error) {
	pending, err := s.repo.GetPendingUpload(ctx, echoID)
	if err != nil {
		return nil, apperr.Dependency("record store is unavailable", err)
	}
	if pending == nil || pending.UserID != userID {
		// The ledger row is gone once a commit succeeds, so a repeat commit
		// shows up here. Distinguish it from an id that was never issued.
		existing, err := s.repo.GetEchoByID(ctx, userID, echoID)
		if err != nil {
			return nil, apperr.Dependency("record store is unavailable", err)
		}
		if existing != nil {
			return nil, apperr.Conflict("echo is already committed")
		}
		return nil, apperr.Validation("echo_id was not issued by a prior init-upload")
	}
	if time.Now().After(pending.ExpiresAt) {
		return nil, apperr.Validation("upload authorization has expired")
	}

	now := time.Now().UTC()
	echo := &model.Echo{
		ID:              echoID,
		UserID:          userID,
		Emotion:         params.Emotion,
		Caption:         params.Caption,
		S3Key:           pending.S3Key,
		S3URL:           s.store.ObjectURL(pending.S3Key),
		Location:        params.Location,
		DurationSeconds: params.DurationSeconds,
		FileSizeBytes:   params.FileSizeBytes,
		Transcript:      params.Transcript,
		Tags:            params.Tags,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := echo.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateEcho(ctx, echo); err != nil {
		if err == repository.ErrDuplicate {
			return nil, apperr.Conflict("echo is already committed")
		}
		s.logger.Error().Err(err).Str("echo_id", echoID).Msg("Failed to insert echo")
		return nil, apperr.Dependency("record store is unavailable", err)
	}

	// The ledger row has served its purpose; losing this delete only leaves a
	// row that expires on its own.
	if err := s.repo.DeletePendingUpload(ctx, echoID); err != nil {
		s.logger.Warn().Err(err).Str("echo_id", echoID).Msg("Failed to clear pending upload entry")
	}

	s.publishCommitted(ctx, echo)

	return echo, nil
}

// publishCommitted hands the echo to the async analysis pipeline. Failures are
// logged and never fail the commit.
func (s *echoService) publishCommitted(ctx context.Context, echo *model.Echo) {
	if s.publisher == nil || s.analysisTopic == "" {
		return
	}
	payload, err := json.Marshal(events.EchoCommitted{
		EchoID:  echo.ID,
		UserID:  echo.UserID,
		S3Key:   echo.S3Key,
		Emotion: string(echo.Emotion),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("echo_id", echo.ID).Msg("Failed to marshal analysis event")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.analysisTopic, payload); err != nil {
		s.logger.Error().Err(err).Str("topic", s.analysisTopic).Str("echo_id", echo.ID).Msg("Failed to publish analysis event")
	}
}

// ListEchoes returns one page of the caller's echoes, newest first, with an
// opaque cursor for the next page.
func (s *echoService) ListEchoes(ctx context.Context, userID, cursor string, pageSize int, emotion *model.Emotion) (*EchoPage, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if emotion != nil && !emotion.Valid() {
		return nil, apperr.Validation("emotion %q is not a recognized emotion", *emotion)
	}

	var after *repository.EchoCursor
	if cursor != "" {
		c, err := decodeCursor(cursor)
		if err != nil {
			return nil, apperr.Validation("cursor is not valid")
		}
		after = c
	}

	// Fetch one extra row to learn whether another page exists.
	items, err := s.repo.ListEchoesByUser(ctx, userID, emotion, after, pageSize+1)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list echoes")
		return nil, apperr.Dependency("record store is unavailable", err)
	}

	page := &EchoPage{}
	if len(items) > pageSize {
		items = items[:pageSize]
		last := items[len(items)-1]
		page.NextCursor = encodeCursor(repository.EchoCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	page.Items = items
	return page, nil
}

// GetRandomEcho selects uniformly among the caller's echoes with the given
// emotion.
func (s *echoService) GetRandomEcho(ctx context.Context, userID string, emotion model.Emotion) (*model.Echo, error) {
	if !emotion.Valid() {
		return nil, apperr.Validation("emotion %q is not a recognized emotion", emotion)
	}
	echo, err := s.repo.GetRandomEcho(ctx, userID, emotion)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to select random echo")
		return nil, apperr.Dependency("record store is unavailable", err)
	}
	if echo == nil {
		return nil, apperr.NotFound("no echo matches the requested emotion")
	}
	return echo, nil
}

// GetEcho returns the echo when owned by the caller. A row owned by someone
// else and a missing row are the same NotFound.
func (s *echoService) GetEcho(ctx context.Context, userID, echoID string) (*model.Echo, error) {
	echo, err := s.repo.GetEchoByID(ctx, userID, echoID)
	if err != nil {
		s.logger.Error().Err(err).Str("echo_id", echoID).Msg("Failed to get echo")
		return nil, apperr.Dependency("record store is unavailable", err)
	}
	if echo == nil {
		return nil, apperr.NotFound("echo not found")
	}
	return echo, nil
}

// DeleteEcho removes the metadata row when owned by the caller. The blob
// delete is best effort: its failure is logged and the row is removed anyway,
// so an unreachable blob never pins an undeletable record.
func (s *echoService) DeleteEcho(ctx context.Context, userID, echoID string) error {
	echo, err := s.repo.GetEchoByID(ctx, userID, echoID)
	if err != nil {
		s.logger.Error().Err(err).Str("echo_id", echoID).Msg("Failed to get echo for deletion")
		return apperr.Dependency("record store is unavailable", err)
	}
	if echo == nil {
		return apperr.NotFound("echo not found")
	}

	if err := s.store.Delete(ctx, echo.S3Key); err != nil {
		s.logger.Warn().Err(err).Str("echo_id", echoID).Str("s3_key", echo.S3Key).Msg("Failed to delete echo blob, removing metadata anyway")
	}

	deleted, err := s.repo.DeleteEcho(ctx, userID, echoID)
	if err != nil {
		s.logger.Error().Err(err).Str("echo_id", echoID).Msg("Failed to delete echo row")
		return apperr.Dependency("record store is unavailable", err)
	}
	if !deleted {
		return apperr.NotFound("echo not found")
	}
	return nil
}
