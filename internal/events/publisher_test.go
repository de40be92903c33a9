package events

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReusesTopicHandle(t *testing.T) {
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	pub, err := NewPublisher(ctx, "test-project")
	require.NoError(t, err)
	defer pub.Close()

	topic, err := pub.client.CreateTopic(ctx, "echo-analysis")
	require.NoError(t, err)
	defer topic.Delete(ctx)

	for i := 0; i < 3; i++ {
		id, err := pub.Publish(ctx, "echo-analysis", []byte(`{"echo_id":"e1"}`))
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}

	pub.mu.Lock()
	handles := len(pub.topics)
	pub.mu.Unlock()
	assert.Equal(t, 1, handles, "repeated publishes share one topic handle")
}

func TestCloseReleasesHandles(t *testing.T) {
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	pub, err := NewPublisher(ctx, "test-project")
	require.NoError(t, err)

	topic, err := pub.client.CreateTopic(ctx, "close-test")
	require.NoError(t, err)
	defer topic.Delete(ctx)

	_, err = pub.Publish(ctx, "close-test", []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, pub.Close())

	pub.mu.Lock()
	handles := len(pub.topics)
	pub.mu.Unlock()
	assert.Zero(t, handles, "close must drop every cached handle")
}
