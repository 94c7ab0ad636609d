package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
	"github.com/lyzr/launchpad/common/queue"
)

// EventHandler applies one build event
type EventHandler interface {
	HandleEvent(ctx context.Context, event models.BuildEvent) error
}

// BuildEventConsumer consumes worker build events and hands them to the
// status reactor. The queue acknowledges every message, so transient
// failures are retried here before the event is dropped.
type BuildEventConsumer struct {
	queue    queue.Queue
	handler  EventHandler
	log      *logger.Logger
	attempts int
	backoff  time.Duration
}

// NewBuildEventConsumer creates a new build event consumer
func NewBuildEventConsumer(q queue.Queue, handler EventHandler, log *logger.Logger) *BuildEventConsumer {
	return &BuildEventConsumer{
		queue:    q,
		handler:  handler,
		log:      log,
		attempts: 3,
		backoff:  time.Second,
	}
}

// Start subscribes to the build events topic. Messages are processed until
// ctx is done.
func (c *BuildEventConsumer) Start(ctx context.Context) error {
	c.log.Info("starting build event consumer", "topic", models.TopicBuildEvents)

	if err := c.queue.Subscribe(ctx, models.TopicBuildEvents, c.handle); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", models.TopicBuildEvents, err)
	}
	return nil
}

func (c *BuildEventConsumer) handle(ctx context.Context, key string, value []byte) error {
	var event models.BuildEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// Poison message: acknowledging it is the only way forward
		c.log.Warn("dropping undecodable build event", "key", key, "error", err)
		return nil
	}

	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = c.handler.HandleEvent(ctx, event); err == nil {
			return nil
		}

		c.log.Warn("build event failed",
			"build_id", event.BuildID,
			"status", event.Status,
			"attempt", attempt,
			"error", err)

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("build %s: giving up on %q event: %w", event.BuildID, event.Status, err)
}
