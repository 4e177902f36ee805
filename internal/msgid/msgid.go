// ABOUTME: Time-ordered correlation id generator shared by all senders of a session.
// ABOUTME: Packs seconds and a scaled fraction into 64 bits with a per-tick offset.

package msgid

import (
	"strconv"
	"sync"
	"time"
)

// stride separates ids minted within the same clock tick.
const stride = 4

// ID is a correlation id.
type ID uint64

// String returns the decimal form used on the wire.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Parse reads the decimal wire form of an id.
func Parse(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// Generator mints ids. The zero value is not usable; call New.
type Generator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastTick uint64
	offset   uint64
	last     ID
}

// New creates a Generator reading the wall clock.
func New() *Generator {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Generator using the given clock.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns a new id, strictly greater than every id returned before.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	tick := ticks(g.now())
	if tick == g.lastTick {
		g.offset += stride
	} else {
		g.offset = 0
		g.lastTick = tick
	}

	id := ID(tick + g.offset)
	// Clock went backwards or the previous tick's offsets overlap this one.
	if id <= g.last {
		id = g.last + stride
	}
	g.last = id
	return id
}

// ticks converts t to the 32.32 fixed-point seconds representation.
func ticks(t time.Time) uint64 {
	sec := uint64(t.Unix())
	frac := uint64(t.Nanosecond()) << 32 / uint64(time.Second)
	return sec<<32 + frac
}
