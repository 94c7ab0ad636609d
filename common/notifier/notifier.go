// Package notifier publishes build status changes and relays them to
// connected websocket clients.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
	rediscommon "github.com/lyzr/launchpad/common/redis"
)

const (
	channelPrefix = "build:status:"
	lastPrefix    = "build:status:last:"
	lastStatusTTL = 24 * time.Hour
)

// Notifier publishes a build status change for an app
type Notifier interface {
	Notify(ctx context.Context, msg models.BuildStatusMessage) error
}

// ChannelForApp returns the pub/sub channel for an app's build status
func ChannelForApp(appID string) string {
	return channelPrefix + appID
}

func appFromChannel(channel string) string {
	if !strings.HasPrefix(channel, channelPrefix) {
		return ""
	}
	appID := strings.TrimPrefix(channel, channelPrefix)
	if appID == "" || strings.Contains(appID, ":") {
		return ""
	}
	return appID
}

// LocalNotifier publishes straight into an in-process Broadcaster
type LocalNotifier struct {
	broadcaster *Broadcaster
}

// NewLocalNotifier creates a notifier for single-process deployments
func NewLocalNotifier(b *Broadcaster) *LocalNotifier {
	return &LocalNotifier{broadcaster: b}
}

// Notify implements Notifier
func (n *LocalNotifier) Notify(ctx context.Context, msg models.BuildStatusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}
	n.broadcaster.Publish(msg.AppID, data)
	return nil
}

// RedisPublisher publishes status messages on Redis so API replicas can relay
// them. The latest message per app is kept for clients that connect late.
type RedisPublisher struct {
	client *rediscommon.Client
	log    *logger.Logger
}

// NewRedisPublisher creates a Redis-backed notifier
func NewRedisPublisher(client *rediscommon.Client, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

// Notify implements Notifier
func (p *RedisPublisher) Notify(ctx context.Context, msg models.BuildStatusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	appID := msg.AppID
	pipe := p.client.NewPipeline()
	pipe.SetWithExpiry(ctx, lastPrefix+appID, string(data), lastStatusTTL)
	pipe.PublishEvent(ctx, ChannelForApp(appID), string(data))
	if err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish build status: %w", err)
	}

	p.log.Debug("published build status", "app_id", appID, "build_id", msg.BuildID, "status", msg.Status)
	return nil
}

// Last returns the most recent status message for an app, if any
func (p *RedisPublisher) Last(ctx context.Context, appID string) ([]byte, bool, error) {
	val, err := p.client.Get(ctx, lastPrefix+appID)
	if err == rediscommon.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(val), true, nil
}
