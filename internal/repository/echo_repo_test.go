package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ford-at-home/ecko/internal/model"
)

func newMockRepo(t *testing.T) (EchoRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEchoRepository(db), mock
}

func sampleEcho() *model.Echo {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return &model.Echo{
		ID:        "e1",
		UserID:    "u1",
		Emotion:   model.EmotionJoy,
		S3Key:     "u1/2026/08/30/e1.webm",
		S3URL:     "http://s3.local/echoes/u1/2026/08/30/e1.webm",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func echoRows() *sqlmock.Rows {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "user_id", "emotion", "caption", "s3_key", "s3_url", "latitude", "longitude", "address",
		"duration_seconds", "file_size_bytes", "transcript", "detected_mood", "tags", "created_at", "updated_at",
	}).AddRow(
		"e1", "u1", "joy", nil, "u1/2026/08/30/e1.webm", "http://s3.local/echoes/u1/2026/08/30/e1.webm",
		48.85, 2.35, "Paris", 4.2, int64(1024), nil, nil, []byte(`["walk"]`), now, now,
	)
}

func TestCreateEchoInserts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO echoes`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateEcho(context.Background(), sampleEcho()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEchoDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	// ON CONFLICT DO NOTHING reports zero affected rows for a duplicate key.
	mock.ExpectExec(`INSERT INTO echoes`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CreateEcho(context.Background(), sampleEcho())
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEchoByIDScansOptionalFields(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM echoes`).
		WithArgs("e1", "u1").
		WillReturnRows(echoRows())

	echo, err := repo.GetEchoByID(context.Background(), "u1", "e1")
	require.NoError(t, err)
	require.NotNil(t, echo)
	assert.Equal(t, model.EmotionJoy, echo.Emotion)
	require.NotNil(t, echo.Location)
	assert.Equal(t, "Paris", echo.Location.Address)
	require.NotNil(t, echo.DurationSeconds)
	assert.Equal(t, 4.2, *echo.DurationSeconds)
	assert.Equal(t, model.Tags{"walk"}, echo.Tags)
	assert.Empty(t, echo.Transcript)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEchoByIDNoRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM echoes`).
		WithArgs("e1", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	echo, err := repo.GetEchoByID(context.Background(), "u2", "e1")
	require.NoError(t, err)
	assert.Nil(t, echo, "missing and foreign rows are both nil")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEchoesAddsKeysetPredicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	after := &EchoCursor{
		CreatedAt: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		ID:        "e0",
	}
	mock.ExpectQuery(`SELECT .+ FROM echoes WHERE user_id = \$1 AND emotion = \$2 AND \(created_at, id\) < \(\$3, \$4\) ORDER BY created_at DESC, id DESC LIMIT \$5`).
		WithArgs("u1", "joy", after.CreatedAt, "e0", 21).
		WillReturnRows(echoRows())

	emotion := model.EmotionJoy
	items, err := repo.ListEchoesByUser(context.Background(), "u1", &emotion, after, 21)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRandomEchoScopesByOwnerAndEmotion(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM echoes WHERE user_id = \$1 AND emotion = \$2 ORDER BY random\(\) LIMIT 1`).
		WithArgs("u1", "joy").
		WillReturnRows(echoRows())

	echo, err := repo.GetRandomEcho(context.Background(), "u1", model.EmotionJoy)
	require.NoError(t, err)
	require.NotNil(t, echo)
	assert.Equal(t, model.EmotionJoy, echo.Emotion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRandomEchoNoMatch(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM echoes WHERE user_id = \$1 AND emotion = \$2`).
		WithArgs("u1", "fear").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	echo, err := repo.GetRandomEcho(context.Background(), "u1", model.EmotionFear)
	require.NoError(t, err)
	assert.Nil(t, echo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEchoKeysByUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT s3_key FROM echoes WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"s3_key"}).
			AddRow("u1/2026/08/30/e1.webm").
			AddRow("u1/2026/08/30/e2.ogg"))

	keys, err := repo.ListEchoKeysByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/2026/08/30/e1.webm", "u1/2026/08/30/e2.ogg"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEchoesByUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM echoes WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteEchoesByUser(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEchoReportsOwnership(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM echoes`).
		WithArgs("e1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM echoes`).
		WithArgs("e1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteEcho(context.Background(), "u1", "e1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteEcho(context.Background(), "u2", "e1")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingUploadRoundTrip(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	p := &model.PendingUpload{
		EchoID:        "e1",
		UserID:        "u1",
		S3Key:         "u1/2026/08/30/e1.webm",
		FileExtension: "webm",
		ExpiresAt:     now.Add(time.Hour),
		CreatedAt:     now,
	}

	mock.ExpectExec(`INSERT INTO pending_uploads`).
		WithArgs(p.EchoID, p.UserID, p.S3Key, p.FileExtension, p.ExpiresAt, p.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM pending_uploads`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"echo_id", "user_id", "s3_key", "file_extension", "expires_at", "created_at"}).
			AddRow(p.EchoID, p.UserID, p.S3Key, p.FileExtension, p.ExpiresAt, p.CreatedAt))
	mock.ExpectExec(`DELETE FROM pending_uploads`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreatePendingUpload(context.Background(), p))

	got, err := repo.GetPendingUpload(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, repo.DeletePendingUpload(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
