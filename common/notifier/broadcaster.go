package notifier

import (
	"context"
	"sync"

	"github.com/lyzr/launchpad/common/logger"
)

const subscriberBuffer = 64

// Broadcaster fans messages out to in-process subscribers grouped by key
// (an app id). Subscribers are removed when their context ends.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan []byte]struct{}
	log         *logger.Logger
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster(log *logger.Logger) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]map[chan []byte]struct{}),
		log:         log,
	}
}

// Subscribe registers a subscriber for key. The returned channel is closed
// after ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, key string) <-chan []byte {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subscribers[key]
	if !ok {
		set = make(map[chan []byte]struct{})
		b.subscribers[key] = set
	}
	set[ch] = struct{}{}
	total := len(set)
	b.mu.Unlock()

	b.log.Debug("subscriber registered", "key", key, "total_for_key", total)

	go func() {
		<-ctx.Done()
		b.unsubscribe(key, ch)
	}()

	return ch
}

func (b *Broadcaster) unsubscribe(key string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.subscribers[key]
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(b.subscribers, key)
	}
	b.log.Debug("subscriber removed", "key", key, "remaining_for_key", len(set))
}

// Publish delivers data to every subscriber of key without blocking.
// A subscriber whose buffer is full misses the message.
func (b *Broadcaster) Publish(key string, data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[key] {
		select {
		case ch <- data:
		default:
			b.log.Warn("subscriber buffer full, dropping message", "key", key)
		}
	}
}

// SubscriberCount returns the number of subscribers for key
func (b *Broadcaster) SubscriberCount(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[key])
}
