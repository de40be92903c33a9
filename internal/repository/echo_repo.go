package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ford-at-home/ecko/internal/model"
)

// ErrDuplicate is returned when an insert hits an existing primary key.
var ErrDuplicate = errors.New("duplicate record")

// EchoCursor is the keyset position a list call resumes from. Ordering is
// created_at descending with id as the tie-break, so the pair identifies a
// unique position even when timestamps collide.
type EchoCursor struct {
	CreatedAt time.Time
	ID        string
}

type EchoRepository interface {
	CreateEcho(ctx context.Context, e *model.Echo) error
	GetEchoByID(ctx context.Context, userID, echoID string) (*model.Echo, error)
	ListEchoesByUser(ctx context.Context, userID string, emotion *model.Emotion, after *EchoCursor, limit int) ([]model.Echo, error)
	GetRandomEcho(ctx context.Context, userID string, emotion model.Emotion) (*model.Echo, error)
	DeleteEcho(ctx context.Context, userID, echoID string) (bool, error)
	ListEchoKeysByUser(ctx context.Context, userID string) ([]string, error)
	DeleteEchoesByUser(ctx context.Context, userID string) error

	CreatePendingUpload(ctx context.Context, p *model.PendingUpload) error
	GetPendingUpload(ctx context.Context, echoID string) (*model.PendingUpload, error)
	DeletePendingUpload(ctx context.Context, echoID string) error
}

type echoRepository struct {
	db *sql.DB
}

func NewEchoRepository(db *sql.DB) EchoRepository {
	return &echoRepository{db: db}
}

const echoColumns = `id, user_id, emotion, caption, s3_key, s3_url, latitude, longitude, address,
		duration_seconds, file_size_bytes, transcript, detected_mood, tags, created_at, updated_at`

func scanEcho(row interface{ Scan(...any) error }) (*model.Echo, error) {
	var (
		e          model.Echo
		caption    sql.NullString
		lat        sql.NullFloat64
		lng        sql.NullFloat64
		address    sql.NullString
		duration   sql.NullFloat64
		fileSize   sql.NullInt64
		transcript sql.NullString
		detected   sql.NullString
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Emotion,
		&caption,
		&e.S3Key,
		&e.S3URL,
		&lat,
		&lng,
		&address,
		&duration,
		&fileSize,
		&transcript,
		&detected,
		&e.Tags,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Caption = caption.String
	e.Transcript = transcript.String
	e.DetectedMood = detected.String
	if lat.Valid && lng.Valid {
		e.Location = &model.Location{
			Latitude:  lat.Float64,
			Longitude: lng.Float64,
			Address:   address.String,
		}
	}
	if duration.Valid {
		e.DurationSeconds = &duration.Float64
	}
	if fileSize.Valid {
		e.FileSizeBytes = &fileSize.Int64
	}
	return &e, nil
}

// echoInsertParams flattens the optional fields into nullable SQL values.
func echoInsertParams(e *model.Echo) []any {
	var lat, lng, address, duration, fileSize any
	if e.Location != nil {
		lat = e.Location.Latitude
		lng = e.Location.Longitude
		if e.Location.Address != "" {
			address = e.Location.Address
		}
	}
	if e.DurationSeconds != nil {
		duration = *e.DurationSeconds
	}
	if e.FileSizeBytes != nil {
		fileSize = *e.FileSizeBytes
	}
	var caption, transcript, detected any
	if e.Caption != "" {
		caption = e.Caption
	}
	if e.Transcript != "" {
		transcript = e.Transcript
	}
	if e.DetectedMood != "" {
		detected = e.DetectedMood
	}
	return []any{
		e.ID, e.UserID, e.Emotion, caption, e.S3Key, e.S3URL,
		lat, lng, address, duration, fileSize, transcript, detected, e.Tags,
		e.CreatedAt, e.UpdatedAt,
	}
}

// CreateEcho inserts a new echo row. A primary-key collision is reported as
// ErrDuplicate and never overwrites the existing row.
func (r *echoRepository) CreateEcho(ctx context.Context, e *model.Echo) error {
	query := `
		INSERT INTO echoes (` + echoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, echoInsertParams(e)...)
	if err != nil {
		return fmt.Errorf("failed to insert echo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetEchoByID returns the echo only when owned by userID; a missing row and a
// row owned by someone else are both (nil, nil).
func (r *echoRepository) GetEchoByID(ctx context.Context, userID, echoID string) (*model.Echo, error) {
	query := `
		SELECT ` + echoColumns + `
		FROM echoes
		WHERE id = $1 AND user_id = $2
	`
	e, err := scanEcho(r.db.QueryRowContext(ctx, query, echoID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan echo row: %w", err)
	}
	return e, nil
}

// ListEchoesByUser pages through a user's echoes newest first. The keyset
// comparison (created_at, id) < (cursor) keeps ordering stable under
// concurrent inserts.
func (r *echoRepository) ListEchoesByUser(ctx context.Context, userID string, emotion *model.Emotion, after *EchoCursor, limit int) ([]model.Echo, error) {
	query := `
		SELECT ` + echoColumns + `
		FROM echoes
		WHERE user_id = $1
	`
	args := []any{userID}
	if emotion != nil {
		args = append(args, *emotion)
		query += fmt.Sprintf(" AND emotion = $%d", len(args))
	}
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query echoes: %w", err)
	}
	defer rows.Close()

	var echoes []model.Echo
	for rows.Next() {
		e, err := scanEcho(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan echo row: %w", err)
		}
		echoes = append(echoes, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return echoes, nil
}

// GetRandomEcho selects uniformly among the caller's echoes with the given
// emotion. ORDER BY random() is uniform over the matching set at call time.
func (r *echoRepository) GetRandomEcho(ctx context.Context, userID string, emotion model.Emotion) (*model.Echo, error) {
	query := `
		SELECT ` + echoColumns + `
		FROM echoes
		WHERE user_id = $1 AND emotion = $2
		ORDER BY random()
		LIMIT 1
	`
	e, err := scanEcho(r.db.QueryRowContext(ctx, query, userID, emotion))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan echo row: %w", err)
	}
	return e, nil
}

// DeleteEcho removes the row when owned by userID and reports whether a row
// was actually deleted.
func (r *echoRepository) DeleteEcho(ctx context.Context, userID, echoID string) (bool, error) {
	query := `DELETE FROM echoes WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, echoID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete echo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListEchoKeysByUser returns the storage keys of every echo owned by userID,
// used for blob cleanup during a user cascade delete.
func (r *echoRepository) ListEchoKeysByUser(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT s3_key FROM echoes WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query echo keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan echo key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return keys, nil
}

func (r *echoRepository) DeleteEchoesByUser(ctx context.Context, userID string) error {
	query := `DELETE FROM echoes WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete echoes for user: %w", err)
	}
	return nil
}

// CreatePendingUpload records that an upload URL was issued for echoID.
func (r *echoRepository) CreatePendingUpload(ctx context.Context, p *model.PendingUpload) error {
	query := `
		INSERT INTO pending_uploads (echo_id, user_id, s3_key, file_extension, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		p.EchoID, p.UserID, p.S3Key, p.FileExtension, p.ExpiresAt, p.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert pending upload: %w", err)
	}
	return nil
}

func (r *echoRepository) GetPendingUpload(ctx context.Context, echoID string) (*model.PendingUpload, error) {
	query := `
		SELECT echo_id, user_id, s3_key, file_extension, expires_at, created_at
		FROM pending_uploads
		WHERE echo_id = $1
	`
	var p model.PendingUpload
	if err := r.db.QueryRowContext(ctx, query, echoID).Scan(
		&p.EchoID, &p.UserID, &p.S3Key, &p.FileExtension, &p.ExpiresAt, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan pending upload row: %w", err)
	}
	return &p, nil
}

func (r *echoRepository) DeletePendingUpload(ctx context.Context, echoID string) error {
	query := `DELETE FROM pending_uploads WHERE echo_id = $1`
	if _, err := r.db.ExecContext(ctx, query, echoID); err != nil {
		return fmt.Errorf("failed to delete pending upload: %w", err)
	}
	return nil
}
