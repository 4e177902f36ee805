// ABOUTME: In-memory fan-out of session updates keyed by update type tag.
// ABOUTME: Implements session.UpdateHandler; slow subscribers drop updates.

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/tdsession/internal/tdapi"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// AllUpdates subscribes to every update regardless of type.
	AllUpdates = ""
)

// UpdateBroadcaster provides in-memory pub/sub for decoded updates.
type UpdateBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan tdapi.Object // type tag -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewUpdateBroadcaster creates a broadcaster. Pass nil logger for default.
func NewUpdateBroadcaster(logger *slog.Logger) *UpdateBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateBroadcaster{
		subscribers: make(map[string]map[string]chan tdapi.Object),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for updates with the given type tag, or AllUpdates.
// It returns the update channel and a subscription ID for Unsubscribe. The
// subscription is removed when ctx is cancelled.
func (b *UpdateBroadcaster) Subscribe(ctx context.Context, typeTag string) (<-chan tdapi.Object, string) {
	subID := uuid.New().String()
	ch := make(chan tdapi.Object, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[typeTag]; !ok {
		b.subscribers[typeTag] = make(map[string]chan tdapi.Object)
	}
	b.subscribers[typeTag][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"type", typeTag,
		"sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(typeTag, subID)
	}()

	return ch, subID
}

// HandleUpdate publishes update; it implements session.UpdateHandler.
func (b *UpdateBroadcaster) HandleUpdate(_ context.Context, update tdapi.Object) {
	b.Publish(update)
}

// Publish sends update to the subscribers of its type and of all updates.
// Non-blocking: updates are dropped for subscribers whose channels are full.
func (b *UpdateBroadcaster) Publish(update tdapi.Object) {
	typeTag := update.Type()

	b.mu.RLock()
	targets := make([]chan tdapi.Object, 0, len(b.subscribers[typeTag])+len(b.subscribers[AllUpdates]))
	for _, ch := range b.subscribers[typeTag] {
		targets = append(targets, ch)
	}
	if typeTag != AllUpdates {
		for _, ch := range b.subscribers[AllUpdates] {
			targets = append(targets, ch)
		}
	}

	// Sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send; they never block.
	for _, ch := range targets {
		select {
		case ch <- update:
		default:
			b.logger.Debug("dropped update for slow subscriber", "type", typeTag)
		}
	}
	b.mu.RUnlock()
}

// Unsubscribe removes a subscription and closes its channel.
func (b *UpdateBroadcaster) Unsubscribe(typeTag, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[typeTag]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, typeTag)
	}

	b.logger.Debug("subscriber removed",
		"type", typeTag,
		"sub_id", subID)
}

// SubscriberCount returns the number of subscriptions for typeTag.
func (b *UpdateBroadcaster) SubscriberCount(typeTag string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[typeTag])
}

// Close closes all subscriber channels. Later subscriptions get a closed channel.
func (b *UpdateBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for typeTag, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, typeTag)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
