package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
	"github.com/lyzr/launchpad/common/queue"
)

type mockHandler struct {
	mu       sync.Mutex
	events   []models.BuildEvent
	failures int
	err      error
}

func (m *mockHandler) HandleEvent(ctx context.Context, event models.BuildEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if m.failures > 0 {
		m.failures--
		return m.err
	}
	return nil
}

func (m *mockHandler) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func newTestConsumer(h EventHandler) *BuildEventConsumer {
	c := NewBuildEventConsumer(queue.NewMemoryQueue(logger.Discard()), h, logger.Discard())
	c.backoff = time.Millisecond
	return c
}

func TestHandle_DecodesAndForwards(t *testing.T) {
	h := &mockHandler{}
	c := newTestConsumer(h)

	err := c.handle(context.Background(), "b1", []byte(`{"build_id":"b1","status":"started","container_id":"w-1","timestamp":1700000000}`))
	require.NoError(t, err)

	require.Len(t, h.events, 1)
	assert.Equal(t, models.BuildEvent{BuildID: "b1", Status: "started", ContainerID: "w-1", Timestamp: 1700000000}, h.events[0])
}

func TestHandle_PoisonMessageIsDropped(t *testing.T) {
	h := &mockHandler{}
	c := newTestConsumer(h)

	assert.NoError(t, c.handle(context.Background(), "b1", []byte(`{not json`)))
	assert.Equal(t, 0, h.calls())
}

func TestHandle_RetriesTransientFailures(t *testing.T) {
	h := &mockHandler{failures: 2, err: errors.New("connection reset")}
	c := newTestConsumer(h)

	assert.NoError(t, c.handle(context.Background(), "b1", []byte(`{"build_id":"b1","status":"done"}`)))
	assert.Equal(t, 3, h.calls())
}

func TestHandle_GivesUpAfterAttempts(t *testing.T) {
	h := &mockHandler{failures: 10, err: errors.New("db down")}
	c := newTestConsumer(h)

	err := c.handle(context.Background(), "b1", []byte(`{"build_id":"b1","status":"done"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 3, h.calls())
}

func TestStart_ConsumesFromQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemoryQueue(logger.Discard())
	h := &mockHandler{}
	c := NewBuildEventConsumer(q, h, logger.Discard())
	require.NoError(t, c.Start(ctx))

	require.NoError(t, q.Publish(ctx, models.TopicBuildEvents, "b1", []byte(`{"build_id":"b1","status":"started"}`)))
	require.NoError(t, q.Publish(ctx, models.TopicBuildEvents, "b1", []byte(`{"build_id":"b1","status":"done"}`)))

	assert.Eventually(t, func() bool { return h.calls() == 2 }, time.Second, 5*time.Millisecond)
}
