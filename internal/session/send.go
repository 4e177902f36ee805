// ABOUTME: Request surface: Send with bounded retry, Post and Execute.
// ABOUTME: Retry decisions use an internal outcome; callers see terminal errors only.

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/tdsession/internal/engine"
	"github.com/2389/tdsession/internal/metrics"
	"github.com/2389/tdsession/internal/pending"
	"github.com/2389/tdsession/internal/tdapi"
)

// outcome classifies one attempt for the retry loop.
type outcome int

const (
	outcomeDone outcome = iota
	outcomeTransportFailure
	outcomeTimeout
	outcomeAborted
)

// Send transmits req and waits for its response. Transport failures and
// unanswered attempts are retried up to MaxRetries times with a new
// correlation id each time; then ErrTimeout is returned. An engine error
// response is returned at once as *tderr.Error.
func (c *Controller) Send(ctx context.Context, req tdapi.Object) (tdapi.Object, error) {
	rs := c.run.Load()
	if rs == nil || !rs.running.Load() {
		c.metrics.ObserveRequest(metrics.OutcomeNotRunning, 0)
		return nil, ErrNotRunning
	}
	return c.send(ctx, rs, req)
}

func (c *Controller) send(ctx context.Context, rs *run, req tdapi.Object) (tdapi.Object, error) {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if !rs.running.Load() {
			c.metrics.ObserveRequest(metrics.OutcomeNotRunning, time.Since(start))
			return nil, ErrNotRunning
		}

		env, out, err := c.attempt(ctx, rs, req)
		switch out {
		case outcomeDone:
			return c.result(ctx, env, start)
		case outcomeTransportFailure:
			c.metrics.IncRetry("transport")
			c.logger.Warn("engine send failed",
				"type", req.Type(),
				"attempt", attempt,
				"error", err)
		case outcomeTimeout:
			c.metrics.IncRetry("timeout")
			c.logger.Warn("no response",
				"type", req.Type(),
				"attempt", attempt,
				"wait", c.cfg.WaitTimeout)
		case outcomeAborted:
			c.metrics.ObserveRequest(abortOutcome(err), time.Since(start))
			return nil, err
		}
		lastErr = err
	}

	c.metrics.ObserveRequest(metrics.OutcomeTimeout, time.Since(start))
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrTimeout, req.Type(), c.cfg.MaxRetries, lastErr)
}

// attempt performs one registered send and wait.
func (c *Controller) attempt(ctx context.Context, rs *run, req tdapi.Object) (*tdapi.Envelope, outcome, error) {
	id := c.ids.Next()
	data, err := tdapi.Marshal(req, id.String())
	if err != nil {
		return nil, outcomeAborted, err
	}

	slot, err := c.pending.Register(id)
	if err != nil {
		if errors.Is(err, pending.ErrClosed) {
			return nil, outcomeAborted, ErrSessionClosed
		}
		return nil, outcomeAborted, err
	}
	c.metrics.AddPending(1)
	defer c.metrics.AddPending(-1)

	if err := rs.client.Send(data); err != nil {
		c.pending.Take(id)
		return nil, outcomeTransportFailure, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	env, err := c.pending.Await(ctx, slot, c.cfg.WaitTimeout)
	switch {
	case err == nil:
		return env, outcomeDone, nil
	case errors.Is(err, pending.ErrWaitTimeout):
		return nil, outcomeTimeout, err
	default:
		return nil, outcomeAborted, err
	}
}

func abortOutcome(err error) string {
	switch {
	case errors.Is(err, ErrSessionClosed):
		return metrics.OutcomeClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeEngineError
	}
}

// result decodes a response, turning engine errors into *tderr.Error.
func (c *Controller) result(ctx context.Context, env *tdapi.Envelope, start time.Time) (tdapi.Object, error) {
	obj, err := c.decodeResponse(ctx, env)
	if err != nil {
		c.metrics.ObserveRequest(metrics.OutcomeEngineError, time.Since(start))
		return nil, err
	}
	c.metrics.ObserveRequest(metrics.OutcomeOK, time.Since(start))
	return obj, nil
}

func (c *Controller) decodeResponse(ctx context.Context, env *tdapi.Envelope) (tdapi.Object, error) {
	obj, err := c.registry.Decode(env)
	if err != nil {
		return nil, err
	}
	if e, ok := obj.(*tdapi.Error); ok {
		resolved := c.resolver.Resolve(ctx, e.Code, e.Message)
		if !resolved.Resolved() {
			c.metrics.IncUnknownError()
		}
		return nil, resolved
	}
	return obj, nil
}

// Post transmits req without waiting for a response. Only transport failures
// are retried.
func (c *Controller) Post(ctx context.Context, req tdapi.Object) error {
	rs := c.run.Load()
	if rs == nil || !rs.running.Load() {
		return ErrNotRunning
	}
	data, err := tdapi.Marshal(req, "")
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rs.running.Load() {
			return ErrNotRunning
		}
		if err := rs.client.Send(data); err != nil {
			c.metrics.IncRetry("transport")
			c.logger.Warn("engine send failed", "type", req.Type(), "attempt", attempt, "error", err)
			lastErr = fmt.Errorf("%w: %w", ErrTransport, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrTimeout, req.Type(), c.cfg.MaxRetries, lastErr)
}

// Execute runs a stateless request synchronously. Without a running session
// a temporary engine client is created for the call.
func (c *Controller) Execute(req tdapi.Object) (tdapi.Object, error) {
	if rs := c.run.Load(); rs != nil && rs.running.Load() {
		return c.executeOn(rs.client, req)
	}

	client, err := c.factory()
	if err != nil {
		return nil, fmt.Errorf("creating engine client: %w", err)
	}
	defer func() {
		if err := client.Destroy(); err != nil {
			c.logger.Debug("destroying execute client", "error", err)
		}
	}()
	return c.executeOn(client, req)
}

func (c *Controller) executeOn(client engine.Client, req tdapi.Object) (tdapi.Object, error) {
	data, err := tdapi.Marshal(req, "")
	if err != nil {
		return nil, err
	}
	resp, err := client.Execute(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response to %s", ErrTransport, req.Type())
	}
	env, err := tdapi.DecodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	return c.decodeResponse(context.Background(), env)
}
