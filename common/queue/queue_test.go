package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/common/logger"
)

func TestMemoryQueue_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryQueue(logger.Discard())
	defer q.Close()

	type received struct {
		key   string
		value string
	}
	got := make(chan received, 2)

	require.NoError(t, q.Subscribe(ctx, "build.events", func(ctx context.Context, key string, value []byte) error {
		got <- received{key: key, value: string(value)}
		return nil
	}))

	require.NoError(t, q.Publish(ctx, "build.events", "b1", []byte(`{"status":"started"}`)))
	require.NoError(t, q.Publish(ctx, "build.events", "b1", []byte(`{"status":"done"}`)))

	for _, want := range []string{`{"status":"started"}`, `{"status":"done"}`} {
		select {
		case msg := <-got:
			assert.Equal(t, "b1", msg.key)
			assert.Equal(t, want, msg.value)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestMemoryQueue_HandlerErrorDoesNotStopSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryQueue(logger.Discard())
	defer q.Close()

	calls := make(chan string, 2)
	require.NoError(t, q.Subscribe(ctx, "t", func(ctx context.Context, key string, value []byte) error {
		calls <- key
		return errors.New("poison")
	}))

	require.NoError(t, q.Publish(ctx, "t", "first", nil))
	require.NoError(t, q.Publish(ctx, "t", "second", nil))

	for _, want := range []string{"first", "second"} {
		select {
		case key := <-calls:
			assert.Equal(t, want, key)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(logger.Discard())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), "t", "k", nil)
	assert.ErrorIs(t, err, ErrClosed)

	err = q.Subscribe(context.Background(), "t", func(context.Context, string, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
