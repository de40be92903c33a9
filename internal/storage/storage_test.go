package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC)
	key := BuildObjectKey("user-a", "echo-1", "webm", at)
	assert.Equal(t, "user-a/2026/03/07/echo-1.webm", key)
}

func TestBuildObjectKeyUsesUTCDate(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2026, 12, 31, 23, 30, 0, 0, loc)
	key := BuildObjectKey("user-a", "echo-1", "mp3", at)
	assert.Equal(t, "user-a/2027/01/01/echo-1.mp3", key)
}
