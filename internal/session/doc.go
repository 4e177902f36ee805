// Package session binds a process to one engine handle.
//
// Controller owns the engine client, a single dispatch goroutine that reads
// every event the engine emits, and two pools of workers. The dispatch loop
// routes responses straight to the pending-request table and queues
// everything else for stage-1 workers, which decode events and run
// authorization states through the login machine. Stage-1 workers forward
// decoded updates to stage-2 workers, which hand them to the registered
// UpdateHandlers once the session is logged in.
//
// # Requests
//
// Send correlates a request with its response through a fresh correlation id
// per attempt and retries transport failures and timeouts a bounded number
// of times, after which it returns ErrTimeout. Engine errors are returned at
// once as *tderr.Error. Post sends without waiting for a response and
// Execute makes a direct synchronous call that needs no running session.
//
// # Lifecycle
//
// Start creates the engine client and the goroutines, and sends the
// parameters and encryption key requests. Stop marks the session stopped,
// fails every waiting Send with ErrSessionClosed, queues one shutdown
// sentinel per worker and waits, up to StopTimeout, for all goroutines to
// exit before destroying the client. A Closed or LoggingOut state from the
// engine stops the session on its own; later calls fail with ErrNotRunning.
//
// # Ordering
//
// Events enter the stage-1 queue in engine order. With more than one worker
// per stage, updates handed to different workers may be processed in any
// order; each worker handles its own events in FIFO order.
package session
