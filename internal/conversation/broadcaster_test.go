// ABOUTME: Tests for UpdateBroadcaster fan-out pub/sub
// ABOUTME: Covers type routing, all-updates subscribers, cancellation, backpressure and concurrency

package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tdsession/internal/tdapi"
)

func makeUpdate(typeTag, id string) tdapi.Object {
	return &tdapi.Unknown{TypeTag: typeTag, Raw: []byte(fmt.Sprintf(`{"@type":%q,"id":%q}`, typeTag, id))}
}

func rawOf(obj tdapi.Object) string {
	return string(obj.(*tdapi.Unknown).Raw)
}

func TestBroadcaster_SubscriberReceivesMatchingType(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "updateNewMessage")

	b.Publish(makeUpdate("updateNewMessage", "m-1"))

	select {
	case received := <-ch:
		assert.Contains(t, rawOf(received), "m-1")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestBroadcaster_TypesAreIsolated(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	messages, _ := b.Subscribe(ctx, "updateNewMessage")
	users, _ := b.Subscribe(ctx, "updateUser")

	b.Publish(makeUpdate("updateNewMessage", "m-2"))

	select {
	case received := <-messages:
		assert.Equal(t, "updateNewMessage", received.Type())
	case <-time.After(time.Second):
		t.Fatal("message subscriber timed out")
	}

	select {
	case <-users:
		t.Fatal("updateUser subscriber should not receive updateNewMessage")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcaster_AllUpdatesSubscriber(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	all, _ := b.Subscribe(t.Context(), AllUpdates)

	b.Publish(makeUpdate("updateNewMessage", "1"))
	b.Publish(makeUpdate("updateUser", "2"))

	var got []string
	for range 2 {
		select {
		case u := <-all:
			got = append(got, u.Type())
		case <-time.After(time.Second):
			t.Fatal("all-updates subscriber timed out")
		}
	}
	assert.Equal(t, []string{"updateNewMessage", "updateUser"}, got)
}

func TestBroadcaster_HandleUpdatePublishes(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), tdapi.TypeUpdateAuthorizationState)

	b.HandleUpdate(t.Context(), &tdapi.UpdateAuthorizationState{
		AuthorizationState: &tdapi.AuthorizationStateReady{},
	})

	select {
	case received := <-ch:
		st, ok := tdapi.AsAuthorizationState(received)
		require.True(t, ok)
		assert.IsType(t, &tdapi.AuthorizationStateReady{}, st)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestBroadcaster_SlowConsumerDoesNotBlockPublisher(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	_, _ = b.Subscribe(ctx, "updateNewMessage") // never read
	fast, _ := b.Subscribe(ctx, "updateNewMessage")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 200 {
			b.Publish(makeUpdate("updateNewMessage", fmt.Sprint(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked by slow subscriber")
	}

	received := 0
	for len(fast) > 0 {
		<-fast
		received++
	}
	assert.Equal(t, subscriberBufferSize, received)
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "updateUser")
	assert.Equal(t, 1, b.SubscriberCount("updateUser"))

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	assert.Equal(t, 0, b.SubscriberCount("updateUser"))
}

func TestBroadcaster_ManualUnsubscribe(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context(), "updateUser")
	b.Unsubscribe("updateUser", subID)
	b.Unsubscribe("updateUser", subID)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	assert.NotPanics(t, func() { b.Publish(makeUpdate("updateUser", "after")) })
}

func TestBroadcaster_CloseClosesAllSubscriptions(t *testing.T) {
	b := NewUpdateBroadcaster(nil)

	ch1, _ := b.Subscribe(t.Context(), "updateUser")
	ch2, _ := b.Subscribe(t.Context(), AllUpdates)

	b.Close()

	for i, ch := range []<-chan tdapi.Object{ch1, ch2} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "channel %d should be closed after Close()", i)
		case <-time.After(time.Second):
			t.Fatalf("channel %d not closed after Close()", i)
		}
	}

	late, _ := b.Subscribe(t.Context(), "updateUser")
	_, ok := <-late
	assert.False(t, ok, "subscriptions after Close get a closed channel")
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	ctx := t.Context()

	for range 10 {
		wg.Go(func() {
			ch, _ := b.Subscribe(ctx, "updateConcurrent")
			for range 5 {
				select {
				case <-ch:
				case <-time.After(500 * time.Millisecond):
					return
				}
			}
		})
	}

	for range 10 {
		wg.Go(func() {
			for range 10 {
				b.Publish(makeUpdate("updateConcurrent", "c"))
			}
		})
	}

	wg.Wait()
}

func TestBroadcaster_SubscribeReturnsUniqueIDs(t *testing.T) {
	b := NewUpdateBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	_, id1 := b.Subscribe(ctx, "updateUser")
	_, id2 := b.Subscribe(ctx, "updateUser")
	_, id3 := b.Subscribe(ctx, AllUpdates)

	require.NotEqual(t, id1, id2)
	require.NotEqual(t, id1, id3)
	require.NotEqual(t, id2, id3)
}
