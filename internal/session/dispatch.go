// ABOUTME: Dispatch loop and the two worker stages.
// ABOUTME: Routes responses to waiters and updates through decode, auth and delivery.

package session

import (
	"fmt"

	"github.com/2389/tdsession/internal/tdapi"
)

// dispatch is the only reader of the engine client. Responses to pending
// requests are signalled here rather than in a worker, so a worker blocked
// on its own request never holds up the answer it is waiting for.
func (c *Controller) dispatch(rs *run) error {
	logger := c.logger.With("session_id", rs.id)
	logger.Debug("dispatch loop started")
	defer logger.Debug("dispatch loop stopped")

	for rs.running.Load() {
		data, err := rs.client.Receive(c.cfg.PollTimeout)
		if err != nil {
			if !rs.running.Load() {
				return nil
			}
			logger.Error("engine receive failed", "error", err)
			c.stopAsync(rs, fmt.Errorf("%w: %w", ErrTransport, err))
			return nil
		}
		if data == nil {
			continue
		}
		c.route(rs, data)
	}
	return nil
}

func (c *Controller) route(rs *run, data []byte) {
	env, err := tdapi.DecodeEnvelope(data)
	if err != nil {
		c.metrics.IncDecodeError()
		c.logger.Warn("dropping malformed event", "session_id", rs.id, "error", err)
		return
	}

	if id, ok := env.CorrelationID(); ok {
		if c.pending.Signal(id, env) {
			return
		}
		if c.pending.IsLate(id) {
			c.metrics.IncLateResponse()
			c.logger.Debug("dropping late response", "id", id, "type", env.Type)
			return
		}
	}

	var terminal bool
	switch env.LifecycleState() {
	case tdapi.TypeAuthorizationStateClosing:
		rs.closing.Store(true)
		c.logger.Info("engine closing", "session_id", rs.id)
	case tdapi.TypeAuthorizationStateClosed, tdapi.TypeAuthorizationStateLoggingOut:
		terminal = true
		c.logger.Info("engine terminal state", "session_id", rs.id, "state", env.LifecycleState())
	}

	c.metrics.IncUpdate("received")
	rs.stage1.push(item{env: env})

	if terminal {
		c.stopAsync(rs, fmt.Errorf("engine reported %s", env.LifecycleState()))
	}
}

// stage1Worker decodes events, drives the login machine and forwards the
// result to stage 2.
func (c *Controller) stage1Worker(rs *run, n int) error {
	for {
		it := rs.stage1.pop()
		if it.stop {
			rs.stage2 <- it
			c.logger.Debug("stage-1 worker exiting", "session_id", rs.id, "worker", n)
			return nil
		}
		if !rs.running.Load() {
			continue
		}
		c.process(rs, it.env)
	}
}

func (c *Controller) process(rs *run, env *tdapi.Envelope) {
	obj, err := c.registry.Decode(env)
	if err != nil {
		c.metrics.IncDecodeError()
		c.logger.Warn("skipping undecodable update", "type", env.Type, "error", err)
		return
	}

	if st, ok := tdapi.AsAuthorizationState(obj); ok {
		// Errors stop the session through the machine's stop callback.
		_ = c.auth.Handle(rs.ctx, st)
	}

	rs.stage2 <- item{obj: obj}
}

// stage2Worker hands updates to the application once logged in.
func (c *Controller) stage2Worker(rs *run, n int) error {
	for it := range rs.stage2 {
		if it.stop {
			c.logger.Debug("stage-2 worker exiting", "session_id", rs.id, "worker", n)
			return nil
		}
		if !rs.running.Load() {
			continue
		}
		if !c.auth.LoggedIn() {
			c.metrics.IncUpdate("dropped")
			continue
		}
		c.deliver(rs, it.obj)
	}
	return nil
}

func (c *Controller) deliver(rs *run, obj tdapi.Object) {
	c.metrics.IncUpdate("delivered")
	for _, h := range c.currentHandlers() {
		c.callHandler(rs, h, obj)
	}
}

func (c *Controller) callHandler(rs *run, h UpdateHandler, obj tdapi.Object) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("update handler panicked", "type", obj.Type(), "panic", r)
		}
	}()
	h.HandleUpdate(rs.ctx, obj)
}
