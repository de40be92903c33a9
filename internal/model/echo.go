package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/ford-at-home/ecko/internal/apperr"
)

// Emotion is the closed set of emotions an echo can be tagged with.
type Emotion string

const (
	EmotionJoy        Emotion = "joy"
	EmotionSadness    Emotion = "sadness"
	EmotionAnger      Emotion = "anger"
	EmotionFear       Emotion = "fear"
	EmotionSurprise   Emotion = "surprise"
	EmotionDisgust    Emotion = "disgust"
	EmotionCalm       Emotion = "calm"
	EmotionExcitement Emotion = "excitement"
	EmotionNostalgia  Emotion = "nostalgia"
	EmotionGratitude  Emotion = "gratitude"
)

var emotions = map[Emotion]struct{}{
	EmotionJoy:        {},
	EmotionSadness:    {},
	EmotionAnger:      {},
	EmotionFear:       {},
	EmotionSurprise:   {},
	EmotionDisgust:    {},
	EmotionCalm:       {},
	EmotionExcitement: {},
	EmotionNostalgia:  {},
	EmotionGratitude:  {},
}

func (e Emotion) Valid() bool {
	_, ok := emotions[e]
	return ok
}

// Location is an optional place attached to an echo. Latitude and longitude
// are required together; the address is free text and optional.
type Location struct {
	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
	Address   string  `db:"address" json:"address,omitempty"`
}

func (l *Location) Validate() error {
	if l == nil {
		return nil
	}
	if math.IsNaN(l.Latitude) || math.IsInf(l.Latitude, 0) || l.Latitude < -90 || l.Latitude > 90 {
		return apperr.Validation("latitude must be a finite number in [-90, 90]")
	}
	if math.IsNaN(l.Longitude) || math.IsInf(l.Longitude, 0) || l.Longitude < -180 || l.Longitude > 180 {
		return apperr.Validation("longitude must be a finite number in [-180, 180]")
	}
	return nil
}

// Tags is an ordered list of free-text labels, stored as JSONB.
type Tags []string

// Value implements the driver.Valuer interface for JSONB
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for JSONB
func (t *Tags) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*t = nil
		return fmt.Errorf("cannot scan %T into Tags", value)
	}

	if len(bytes) == 0 {
		*t = nil
		return nil
	}

	return json.Unmarshal(bytes, t)
}

// Echo is the metadata record for one uploaded audio recording. The binary
// itself lives in object storage under S3Key; only transcript, detected mood
// and tags may change after commit.
type Echo struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Emotion         Emotion   `db:"emotion" json:"emotion"`
	Caption         string    `db:"caption" json:"caption,omitempty"`
	S3Key           string    `db:"s3_key" json:"s3_key"`
	S3URL           string    `db:"s3_url" json:"s3_url"`
	Location        *Location `json:"location,omitempty"`
	DurationSeconds *float64  `db:"duration_seconds" json:"duration_seconds,omitempty"`
	FileSizeBytes   *int64    `db:"file_size_bytes" json:"file_size_bytes,omitempty"`
	Transcript      string    `db:"transcript" json:"transcript,omitempty"`
	DetectedMood    string    `db:"detected_mood" json:"detected_mood,omitempty"`
	Tags            Tags      `db:"tags" json:"tags,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks the invariants that must hold before an echo is persisted.
func (e *Echo) Validate() error {
	if e.ID == "" {
		return apperr.Validation("id is required")
	}
	if e.UserID == "" {
		return apperr.Validation("user_id is required")
	}
	if !e.Emotion.Valid() {
		return apperr.Validation("emotion %q is not a recognized emotion", e.Emotion)
	}
	if e.S3Key == "" {
		return apperr.Validation("s3_key is required")
	}
	if err := e.Location.Validate(); err != nil {
		return err
	}
	if e.DurationSeconds != nil && (*e.DurationSeconds < 0 || math.IsNaN(*e.DurationSeconds) || math.IsInf(*e.DurationSeconds, 0)) {
		return apperr.Validation("duration_seconds must be a finite non-negative number")
	}
	return nil
}

// PendingUpload is the ledger entry written when an upload URL is issued and
// consumed when the matching metadata is committed. It is what ties a commit
// back to a prior init-upload call.
type PendingUpload struct {
	EchoID        string    `db:"echo_id" json:"echo_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	S3Key         string    `db:"s3_key" json:"s3_key"`
	FileExtension string    `db:"file_extension" json:"file_extension"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
