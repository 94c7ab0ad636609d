package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lyzr/launchpad/common/logger"
	rediscommon "github.com/lyzr/launchpad/common/redis"
)

const (
	fieldKey     = "key"
	fieldPayload = "payload"
)

// RedisStreamQueue maps topics onto Redis streams read through a consumer group
type RedisStreamQueue struct {
	client        *rediscommon.Client
	log           *logger.Logger
	consumerGroup string
	consumerName  string
	block         time.Duration
}

// NewRedisStreamQueue creates a stream-backed queue. consumerGroup is shared
// by every replica of a service so each entry is handled once.
func NewRedisStreamQueue(client *rediscommon.Client, consumerGroup string, block time.Duration, log *logger.Logger) *RedisStreamQueue {
	if block <= 0 {
		block = 5 * time.Second
	}
	return &RedisStreamQueue{
		client:        client,
		log:           log,
		consumerGroup: consumerGroup,
		consumerName:  fmt.Sprintf("%s_%d", consumerGroup, time.Now().UnixNano()),
		block:         block,
	}
}

// Publish appends the message to the topic's stream
func (q *RedisStreamQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	_, err := q.client.AddToStream(ctx, topic, map[string]interface{}{
		fieldKey:     key,
		fieldPayload: string(message),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe creates the consumer group if needed and starts the read loop
func (q *RedisStreamQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if err := q.client.CreateStreamGroup(ctx, topic, q.consumerGroup); err != nil {
		return err
	}

	q.log.Info("subscribing to stream",
		"stream", topic,
		"consumer_group", q.consumerGroup,
		"consumer_name", q.consumerName)

	go q.consume(ctx, topic, handler)
	return nil
}

func (q *RedisStreamQueue) consume(ctx context.Context, topic string, handler MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			q.log.Info("stream consumer stopping", "stream", topic)
			return
		default:
		}

		streams, err := q.client.ReadFromStreamGroup(ctx, q.consumerGroup, q.consumerName, topic, 10, q.block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("failed to read stream", "stream", topic, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				q.dispatch(ctx, topic, message, handler)
			}
		}
	}
}

func (q *RedisStreamQueue) dispatch(ctx context.Context, topic string, message redis.XMessage, handler MessageHandler) {
	key, _ := message.Values[fieldKey].(string)
	payload, ok := message.Values[fieldPayload].(string)
	if !ok {
		q.log.Warn("stream message missing payload", "stream", topic, "message_id", message.ID)
	} else if err := handler(ctx, key, []byte(payload)); err != nil {
		q.log.Error("message handler error", "stream", topic, "message_id", message.ID, "key", key, "error", err)
	}

	// Always ack: redelivering a message the handler rejected would loop forever.
	if err := q.client.AckStreamMessage(ctx, topic, q.consumerGroup, message.ID); err != nil {
		q.log.Error("failed to ACK message", "stream", topic, "message_id", message.ID, "error", err)
	}
}

// Close is a no-op; the Redis client is owned by bootstrap
func (q *RedisStreamQueue) Close() error {
	return nil
}
