// Package notifications delivers row change events to realtime websocket subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ChangesChannel is the Redis channel every instance publishes changes to.
const ChangesChannel = "realtime:changes"

// Notifier publishes changes into Redis, or straight to a local handler when
// Redis is not configured.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(Change)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// SetLocalHandler registers the in-process receiver used when Redis is nil.
func (n *Notifier) SetLocalHandler(fn func(Change)) {
	n.mu.Lock()
	n.local = fn
	n.mu.Unlock()
}

// HasRedis reports whether changes travel through Redis.
func (n *Notifier) HasRedis() bool {
	return n != nil && n.rdb != nil
}

// PublishChange fans a change out to every instance.
func (n *Notifier) PublishChange(ctx context.Context, change Change) error {
	if n == nil {
		return nil
	}
	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(change)
		}
		return nil
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return n.rdb.Publish(ctx, ChangesChannel, payload).Err()
}

// StartChangeSubscriber subscribes to ChangesChannel and calls onChange for each
// decodable message until ctx is done.
func (n *Notifier) StartChangeSubscriber(ctx context.Context, onChange func(Change)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, ChangesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", ChangesChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in change subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					var change Change
					if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
						slog.Warn("dropping malformed change", "error", err)
						return
					}
					onChange(change)
				}()
			}
		}
	}()

	return nil
}
