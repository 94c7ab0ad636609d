package notifier

import (
	"context"
	"fmt"

	"github.com/lyzr/launchpad/common/logger"
	rediscommon "github.com/lyzr/launchpad/common/redis"
)

// RedisRelay listens on build:status:* and forwards messages to a Broadcaster
type RedisRelay struct {
	client      *rediscommon.Client
	broadcaster *Broadcaster
	log         *logger.Logger
}

// NewRedisRelay creates a relay
func NewRedisRelay(client *rediscommon.Client, b *Broadcaster, log *logger.Logger) *RedisRelay {
	return &RedisRelay{client: client, broadcaster: b, log: log}
}

// Start subscribes and blocks until ctx is done
func (r *RedisRelay) Start(ctx context.Context) error {
	pattern := channelPrefix + "*"
	pubsub := r.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}
	r.log.Info("build status relay subscribed", "pattern", pattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("build status relay stopping")
			return nil

		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}

			appID := appFromChannel(msg.Channel)
			if appID == "" {
				r.log.Warn("invalid status channel", "channel", msg.Channel)
				continue
			}

			r.broadcaster.Publish(appID, []byte(msg.Payload))
		}
	}
}
