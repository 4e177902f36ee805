// Package conversation fans session updates out to in-process subscribers.
//
// # Overview
//
// UpdateBroadcaster is a session.UpdateHandler. Stage-2 workers hand it every
// update delivered after login, and it publishes each one to the subscribers
// of the update's type tag and to the subscribers of all updates.
//
//	b := conversation.NewUpdateBroadcaster(logger)
//	ctrl.AddHandler(b)
//
//	msgs, _ := b.Subscribe(ctx, "updateNewMessage")
//	all, _ := b.Subscribe(ctx, conversation.AllUpdates)
//
// # Backpressure
//
// Publishing never blocks the session. Each subscriber has a buffered channel
// and an update is dropped for a subscriber whose buffer is full.
//
// # Lifetime
//
// A subscription ends when its context is cancelled, on Unsubscribe, or when
// the broadcaster is closed; in each case the channel is closed.
package conversation
