// ABOUTME: Application update handlers fed by stage-2 workers.
// ABOUTME: Handlers only see updates once the session is logged in.

package session

import (
	"context"

	"github.com/2389/tdsession/internal/tdapi"
)

// UpdateHandler receives decoded updates. It is called concurrently from
// every stage-2 worker and must not block for long; ctx is cancelled when the
// session stops.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tdapi.Object)
}

// UpdateHandlerFunc adapts a function to UpdateHandler.
type UpdateHandlerFunc func(ctx context.Context, update tdapi.Object)

// HandleUpdate implements UpdateHandler.
func (f UpdateHandlerFunc) HandleUpdate(ctx context.Context, update tdapi.Object) {
	f(ctx, update)
}

// AddHandler registers h for all later updates.
func (c *Controller) AddHandler(h UpdateHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Controller) currentHandlers() []UpdateHandler {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return c.handlers
}
