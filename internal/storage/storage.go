package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectStore is the capability set this service needs from blob storage:
// issuing time-limited write URLs, deleting objects, and deriving the public
// URL of a stored object.
type ObjectStore interface {
	PresignPut(ctx context.Context, key string, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	ObjectURL(key string) string
}

// S3Store implements ObjectStore against an S3-compatible endpoint.
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	baseURL       string
	logger        zerolog.Logger
}

func NewS3Store(client *s3.Client, bucket, baseURL string, logger zerolog.Logger) *S3Store {
	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        bucket,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		logger:        logger.With().Str("component", "S3Store").Logger(),
	}
}

// PresignPut generates a presigned URL for uploading an object.
func (s *S3Store) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	request, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to generate presigned PUT URL")
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return request.URL, nil
}

// Delete removes a single object. Callers decide whether a failure is fatal.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to delete object")
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// ObjectURL derives the durable path-style URL of a stored object.
func (s *S3Store) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}

// BuildObjectKey computes the deterministic storage key for an echo:
// owner_id/YYYY/MM/DD/echo_id.ext, using the UTC date.
func BuildObjectKey(ownerID, echoID, ext string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.%s",
		ownerID, now.Year(), int(now.Month()), now.Day(), echoID, ext)
}
