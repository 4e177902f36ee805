// ABOUTME: Shared fixtures for session tests.
// ABOUTME: Scripted engine wiring, an update collector and a journal fake.

package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/tdsession/internal/engine/enginetest"
	"github.com/2389/tdsession/internal/tdapi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Workers:     3,
		WaitTimeout: 100 * time.Millisecond,
		MaxRetries:  3,
		PollTimeout: 10 * time.Millisecond,
		QueueSize:   64,
		StopTimeout: 5 * time.Second,
	}
}

// newEngine returns a fake engine that accepts the startup requests.
func newEngine() *enginetest.Engine {
	fake := enginetest.New()
	fake.ReplyOK("setTdlibParameters")
	fake.ReplyOK("checkDatabaseEncryptionKey")
	return fake
}

func startController(t *testing.T, fake *enginetest.Engine, cfg Config, opts Options) *Controller {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	c := New(fake.Factory(), cfg, opts)
	require.NoError(t, c.Start(t.Context()))
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

// loginReady drives a started session straight to Ready.
func loginReady(t *testing.T, c *Controller, fake *enginetest.Engine) {
	t.Helper()
	fake.PushState(&tdapi.AuthorizationStateReady{})
	require.Eventually(t, c.LoggedIn, 5*time.Second, 5*time.Millisecond)
}

func unknownRequest(typ string) tdapi.Object {
	return &tdapi.Unknown{TypeTag: typ, Raw: []byte(`{}`)}
}

type collector struct {
	mu   sync.Mutex
	objs []tdapi.Object
}

func (c *collector) HandleUpdate(_ context.Context, obj tdapi.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objs = append(c.objs, obj)
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.objs))
	for i, o := range c.objs {
		out[i] = o.Type()
	}
	return out
}

func (c *collector) has(typ string) bool {
	for _, t := range c.types() {
		if t == typ {
			return true
		}
	}
	return false
}

type journalEntry struct {
	sessionID, kind, detail string
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []journalEntry
}

func (j *fakeJournal) RecordSessionEvent(_ context.Context, sessionID, kind, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{sessionID, kind, detail})
	return nil
}

func (j *fakeJournal) kinds() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.kind
	}
	return out
}
