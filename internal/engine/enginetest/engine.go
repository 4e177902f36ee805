// ABOUTME: Scripted in-memory implementation of engine.Client for tests.
// ABOUTME: Records requests, runs per-type handlers and queues emitted events.

package enginetest

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/2389/tdsession/internal/engine"
	"github.com/2389/tdsession/internal/tdapi"
)

// Request is one message the engine received.
type Request struct {
	Type  string
	Extra string
	Raw   json.RawMessage
}

// Decode unmarshals the request body into v.
func (r Request) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// Handler reacts to a sent request.
type Handler func(e *Engine, req Request)

// ExecuteHandler answers a synchronous request.
type ExecuteHandler func(req Request) tdapi.Object

// Engine is a fake engine. One Engine can back several sessions in sequence;
// every Factory call revives it after Destroy.
type Engine struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	executes  map[string]ExecuteHandler
	requests  []Request
	sendFails []error
	destroyed bool
	created   int
	notify    chan struct{}

	events chan []byte
}

// New creates an engine with an event buffer large enough for any test.
func New() *Engine {
	return &Engine{
		handlers: make(map[string]Handler),
		executes: make(map[string]ExecuteHandler),
		notify:   make(chan struct{}),
		events:   make(chan []byte, 4096),
	}
}

// Factory returns an engine.Factory that hands out this engine.
func (e *Engine) Factory() engine.Factory {
	return func() (engine.Client, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.destroyed = false
		e.created++
		return e, nil
	}
}

// Created returns how many times the factory produced a client.
func (e *Engine) Created() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.created
}

// Handle installs h for requests of type typ.
func (e *Engine) Handle(typ string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = h
}

// HandleExecute installs h for synchronous requests of type typ.
func (e *Engine) HandleExecute(typ string, h ExecuteHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executes[typ] = h
}

// ReplyOK installs a handler that answers typ with "ok".
func (e *Engine) ReplyOK(typ string) {
	e.Handle(typ, func(e *Engine, req Request) {
		e.Reply(req, &tdapi.Ok{})
	})
}

// FailNextSends makes the next len(errs) Send calls return those errors.
func (e *Engine) FailNextSends(errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendFails = append(e.sendFails, errs...)
}

// Reply emits obj as the response to req.
func (e *Engine) Reply(req Request, obj tdapi.Object) {
	data, err := tdapi.Marshal(obj, req.Extra)
	if err != nil {
		panic(fmt.Sprintf("enginetest: marshal reply: %v", err))
	}
	e.PushRaw(data)
}

// Push emits obj as an unsolicited event.
func (e *Engine) Push(obj tdapi.Object) {
	data, err := tdapi.Marshal(obj, "")
	if err != nil {
		panic(fmt.Sprintf("enginetest: marshal update: %v", err))
	}
	e.PushRaw(data)
}

// PushState emits an updateAuthorizationState carrying st.
func (e *Engine) PushState(st tdapi.AuthorizationState) {
	e.Push(&tdapi.UpdateAuthorizationState{AuthorizationState: st})
}

// PushRaw emits raw bytes as an event.
func (e *Engine) PushRaw(data []byte) {
	e.events <- data
}

// Requests returns a copy of every request sent so far.
func (e *Engine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.requests...)
}

// RequestTypes returns the type tags of all requests in send order.
func (e *Engine) RequestTypes() []string {
	reqs := e.Requests()
	types := make([]string, len(reqs))
	for i, r := range reqs {
		types[i] = r.Type
	}
	return types
}

// Count returns how many requests of type typ were sent.
func (e *Engine) Count(typ string) int {
	n := 0
	for _, r := range e.Requests() {
		if r.Type == typ {
			n++
		}
	}
	return n
}

// WaitFor blocks until a request of type typ has been sent, or timeout.
func (e *Engine) WaitFor(typ string, timeout time.Duration) (Request, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		e.mu.Lock()
		for _, r := range e.requests {
			if r.Type == typ {
				e.mu.Unlock()
				return r, true
			}
		}
		notify := e.notify
		e.mu.Unlock()

		select {
		case <-notify:
		case <-deadline.C:
			return Request{}, false
		}
	}
}

// Destroyed reports whether the current client was destroyed.
func (e *Engine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// Send implements engine.Client.
func (e *Engine) Send(data []byte) error {
	req, err := parseRequest(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return engine.ErrDestroyed
	}
	if len(e.sendFails) > 0 {
		fail := e.sendFails[0]
		e.sendFails = e.sendFails[1:]
		e.mu.Unlock()
		return fail
	}
	e.requests = append(e.requests, req)
	close(e.notify)
	e.notify = make(chan struct{})
	h := e.handlers[req.Type]
	e.mu.Unlock()

	if h != nil {
		h(e, req)
	}
	return nil
}

// Receive implements engine.Client.
func (e *Engine) Receive(timeout time.Duration) ([]byte, error) {
	if e.Destroyed() {
		return nil, engine.ErrDestroyed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-e.events:
		return data, nil
	case <-timer.C:
		return nil, nil
	}
}

// Execute implements engine.Client.
func (e *Engine) Execute(data []byte) ([]byte, error) {
	req, err := parseRequest(data)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	h := e.executes[req.Type]
	e.mu.Unlock()

	var resp tdapi.Object = &tdapi.Error{Code: 400, Message: "Unsupported request"}
	if h != nil {
		resp = h(req)
	}
	return tdapi.Marshal(resp, req.Extra)
}

// Destroy implements engine.Client.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return engine.ErrDestroyed
	}
	e.destroyed = true
	return nil
}

func parseRequest(data []byte) (Request, error) {
	env, err := tdapi.DecodeEnvelope(data)
	if err != nil {
		return Request{}, fmt.Errorf("enginetest: %w", err)
	}
	return Request{Type: env.Type, Extra: env.Extra, Raw: env.Raw}, nil
}
