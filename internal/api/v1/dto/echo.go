package dto

import (
	"time"

	"github.com/ford-at-home/ecko/internal/model"
)

// InitUploadRequest starts phase one of the two-phase upload.
type InitUploadRequest struct {
	FileExtension string `json:"file_extension" validate:"required"`
}

// InitUploadResponse carries everything the client needs to upload directly
// to object storage and commit afterwards.
type InitUploadResponse struct {
	UploadURL string `json:"upload_url"`
	EchoID    string `json:"echo_id"`
	S3Key     string `json:"s3_key"`
	ExpiresIn int    `json:"expires_in"`
}

// LocationDTO is an optional place attached to an echo.
type LocationDTO struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Address   string  `json:"address,omitempty"`
}

// CommitEchoRequest is phase two: the metadata bound to a previously issued
// echo id.
type CommitEchoRequest struct {
	EchoID          string       `json:"echo_id" validate:"required"`
	Emotion         string       `json:"emotion" validate:"required"`
	Caption         string       `json:"caption,omitempty"`
	Location        *LocationDTO `json:"location,omitempty"`
	DurationSeconds *float64     `json:"duration_seconds,omitempty" validate:"omitempty,gte=0"`
	FileSizeBytes   *int64       `json:"file_size_bytes,omitempty" validate:"omitempty,gte=0"`
	Transcript      string       `json:"transcript,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
}

// EchoResponse is the full persisted representation of an echo.
type EchoResponse struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Emotion         string       `json:"emotion"`
	Caption         string       `json:"caption,omitempty"`
	S3Key           string       `json:"s3_key"`
	S3URL           string       `json:"s3_url"`
	Location        *LocationDTO `json:"location,omitempty"`
	DurationSeconds *float64     `json:"duration_seconds,omitempty"`
	FileSizeBytes   *int64       `json:"file_size_bytes,omitempty"`
	Transcript      string       `json:"transcript,omitempty"`
	DetectedMood    string       `json:"detected_mood,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// EchoListResponse is one page of echoes. NextCursor is omitted on the last
// page.
type EchoListResponse struct {
	Items      []EchoResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// NewEchoResponse maps a model echo onto its wire representation.
func NewEchoResponse(e *model.Echo) EchoResponse {
	resp := EchoResponse{
		ID:              e.ID,
		UserID:          e.UserID,
		Emotion:         string(e.Emotion),
		Caption:         e.Caption,
		S3Key:           e.S3Key,
		S3URL:           e.S3URL,
		DurationSeconds: e.DurationSeconds,
		FileSizeBytes:   e.FileSizeBytes,
		Transcript:      e.Transcript,
		DetectedMood:    e.DetectedMood,
		Tags:            e.Tags,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if e.Location != nil {
		resp.Location = &LocationDTO{
			Latitude:  e.Location.Latitude,
			Longitude: e.Location.Longitude,
			Address:   e.Location.Address,
		}
	}
	return resp
}
