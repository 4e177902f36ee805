// ABOUTME: Pending-request table mapping correlation ids to one-shot result slots.
// ABOUTME: Registration precedes send; removal is always done by the waiter.

package pending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2389/tdsession/internal/dedupe"
	"github.com/2389/tdsession/internal/msgid"
	"github.com/2389/tdsession/internal/tdapi"
)

var (
	// ErrDuplicateID is returned when an id is registered twice.
	ErrDuplicateID = errors.New("correlation id already registered")

	// ErrClosed is returned by Register after Close.
	ErrClosed = errors.New("pending table closed")

	// ErrWaitTimeout is returned by Await when no response arrived in time.
	ErrWaitTimeout = errors.New("timed out waiting for response")
)

// Defaults for the abandoned-id memory.
const (
	DefaultLateTTL  = 5 * time.Minute
	DefaultLateSize = 4096
)

// Result is the outcome delivered to a slot.
type Result struct {
	Envelope *tdapi.Envelope
	Err      error
}

// Slot is the waitable handle for one registered id.
type Slot struct {
	id   msgid.ID
	ch   chan Result
	done bool // guarded by Table.mu
}

// ID returns the correlation id the slot was registered under.
func (s *Slot) ID() msgid.ID { return s.id }

// Done returns the channel that receives the single result.
func (s *Slot) Done() <-chan Result { return s.ch }

// Table is the set of in-flight requests.
type Table struct {
	mu        sync.Mutex
	slots     map[msgid.ID]*Slot
	closedErr error
	abandoned *dedupe.Cache[msgid.ID]
}

// New creates a table that remembers abandoned ids for lateTTL, up to lateSize ids.
func New(lateTTL time.Duration, lateSize int) *Table {
	if lateTTL <= 0 {
		lateTTL = DefaultLateTTL
	}
	if lateSize <= 0 {
		lateSize = DefaultLateSize
	}
	return &Table{
		slots:     make(map[msgid.ID]*Slot),
		abandoned: dedupe.New[msgid.ID](lateTTL, lateSize),
	}
}

// Register creates the slot for id. It must be called before the request is sent.
func (t *Table) Register(id msgid.ID) (*Slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closedErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrClosed, t.closedErr)
	}
	if _, exists := t.slots[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	s := &Slot{id: id, ch: make(chan Result, 1)}
	t.slots[id] = s
	return s, nil
}

// Signal delivers env to the waiter for id. It reports whether a waiter took it;
// unknown or already completed ids are ignored.
func (t *Table) Signal(id msgid.ID, env *tdapi.Envelope) bool {
	return t.complete(id, Result{Envelope: env})
}

// Fail delivers err to the waiter for id, with the same rules as Signal.
func (t *Table) Fail(id msgid.ID, err error) bool {
	return t.complete(id, Result{Err: err})
}

func (t *Table) complete(id msgid.ID, r Result) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[id]
	if !ok || s.done {
		return false
	}
	s.done = true
	s.ch <- r
	return true
}

// Take removes the slot for id and returns its result if one was delivered.
// The second return is false when the id is absent or still waiting; in the
// latter case the id is remembered as abandoned.
func (t *Table) Take(id msgid.ID) (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[id]
	if !ok {
		return Result{}, false
	}
	delete(t.slots, id)

	if s.done {
		select {
		case r := <-s.ch:
			return r, true
		default:
			// Already consumed by the waiter.
			return Result{}, false
		}
	}
	t.abandoned.Mark(id)
	return Result{}, false
}

// Await blocks until the slot completes, timeout elapses or ctx is done, and
// always removes the slot before returning. A response that races the timeout
// wins: it is returned rather than left behind.
func (t *Table) Await(ctx context.Context, s *Slot, timeout time.Duration) (*tdapi.Envelope, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var cause error
	select {
	case r := <-s.ch:
		t.remove(s.id)
		return r.Envelope, r.Err
	case <-timer.C:
		cause = ErrWaitTimeout
	case <-ctx.Done():
		cause = ctx.Err()
	}

	if r, ok := t.Take(s.id); ok {
		return r.Envelope, r.Err
	}
	return nil, cause
}

func (t *Table) remove(id msgid.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.slots, id)
}

// IsLate reports whether id belongs to a request whose waiter already gave up.
// Each abandoned id is reported once.
func (t *Table) IsLate(id msgid.ID) bool {
	return t.abandoned.Take(id)
}

// Close fails every waiting slot with err and rejects further registrations.
// Closing twice keeps the first error.
func (t *Table) Close(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closedErr != nil {
		return
	}
	t.closedErr = err
	for _, s := range t.slots {
		if !s.done {
			s.done = true
			s.ch <- Result{Err: err}
		}
	}
}

// Reopen clears the closed state so the table can serve a restarted session.
func (t *Table) Reopen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closedErr = nil
}

// Len returns the number of registered slots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
