// Package pending tracks requests that are waiting for an engine response.
//
// A caller registers a correlation id before the request leaves the process,
// which closes the race with a response that arrives immediately. The
// dispatch loop then signals or fails the slot, and the caller waits on it.
//
// # Ownership
//
// Slots are one-shot. Only the waiter removes its slot; Signal and Fail never
// do, so a waiter is never left holding a slot that someone else deleted.
// Signal and Fail on an id that is not registered are no-ops.
//
// # Late responses
//
// When a waiter gives up (timeout or cancellation) the id is remembered for a
// while in a bounded TTL set. A response carrying such an id is reported by
// IsLate so the dispatcher can drop it instead of treating it as an update.
//
// # Shutdown
//
// Close fails every outstanding slot with the given error and makes further
// registrations fail, so no caller stays blocked after a session stops.
package pending
