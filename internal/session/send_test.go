// ABOUTME: Tests for Send, Post and Execute against the scripted engine.
// ABOUTME: Covers retry bounds, engine errors, late responses and exactly-once delivery.

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tdsession/internal/engine/enginetest"
	"github.com/2389/tdsession/internal/tdapi"
	"github.com/2389/tdsession/internal/tderr"
)

func TestSend_ReturnsResponse(t *testing.T) {
	fake := newEngine()
	fake.Handle("getAuthorizationState", func(e *enginetest.Engine, req enginetest.Request) {
		e.Reply(req, &tdapi.AuthorizationStateWaitPhoneNumber{})
	})
	c := startController(t, fake, testConfig(), Options{})

	obj, err := c.Send(t.Context(), &tdapi.GetAuthorizationState{})
	require.NoError(t, err)
	assert.IsType(t, &tdapi.AuthorizationStateWaitPhoneNumber{}, obj)
}

func TestSend_ResponseDeliveredExactlyOnce(t *testing.T) {
	fake := newEngine()
	fake.ReplyOK("getMe")
	updates := &collector{}
	c := startController(t, fake, testConfig(), Options{})
	c.AddHandler(updates)
	loginReady(t, c, fake)

	for range 10 {
		obj, err := c.Send(t.Context(), unknownRequest("getMe"))
		require.NoError(t, err)
		assert.Equal(t, tdapi.TypeOk, obj.Type())
	}

	fake.Push(&tdapi.Unknown{TypeTag: "updateOption", Raw: []byte(`{"name":"version"}`)})
	require.Eventually(t, func() bool { return updates.has("updateOption") }, 5*time.Second, 5*time.Millisecond)
	assert.False(t, updates.has(tdapi.TypeOk), "responses must not reach the update handlers")
}

func TestSend_TimeoutIsBounded(t *testing.T) {
	fake := newEngine()
	cfg := testConfig()
	cfg.WaitTimeout = 30 * time.Millisecond
	cfg.MaxRetries = 3
	c := startController(t, fake, cfg, Options{})

	start := time.Now()
	_, err := c.Send(t.Context(), unknownRequest("getMe"))
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 2*time.Second)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)

	// Each attempt carries its own correlation id.
	extras := map[string]bool{}
	for _, r := range fake.Requests() {
		if r.Type == "getMe" {
			extras[r.Extra] = true
		}
	}
	assert.Len(t, extras, 3)
}

func TestSend_RetriesTransportFailure(t *testing.T) {
	fake := newEngine()
	fake.ReplyOK("getMe")
	c := startController(t, fake, testConfig(), Options{})
	_, ok := fake.WaitFor("checkDatabaseEncryptionKey", 5*time.Second)
	require.True(t, ok)

	broken := errors.New("broken pipe")
	fake.FailNextSends(broken, broken)

	obj, err := c.Send(t.Context(), unknownRequest("getMe"))
	require.NoError(t, err)
	assert.Equal(t, tdapi.TypeOk, obj.Type())
	assert.Equal(t, 1, fake.Count("getMe"))
}

func TestSend_TransportFailuresExhausted(t *testing.T) {
	fake := newEngine()
	c := startController(t, fake, testConfig(), Options{})
	_, ok := fake.WaitFor("checkDatabaseEncryptionKey", 5*time.Second)
	require.True(t, ok)

	broken := errors.New("broken pipe")
	fake.FailNextSends(broken, broken, broken)

	_, err := c.Send(t.Context(), unknownRequest("getMe"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, 0, fake.Count("getMe"))
}

func TestSend_EngineErrorNotRetried(t *testing.T) {
	fake := newEngine()
	fake.Handle("setAuthenticationPhoneNumber", func(e *enginetest.Engine, req enginetest.Request) {
		e.Reply(req, &tdapi.Error{Code: 400, Message: "PHONE_NUMBER_INVALID"})
	})
	c := startController(t, fake, testConfig(), Options{})

	_, err := c.Send(t.Context(), &tdapi.SetAuthenticationPhoneNumber{PhoneNumber: "0"})
	require.Error(t, err)
	assert.ErrorIs(t, err, tderr.PhoneNumberInvalid)
	assert.NotErrorIs(t, err, ErrTimeout)

	var engineErr *tderr.Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, 400, engineErr.Code)
	assert.Equal(t, 1, fake.Count("setAuthenticationPhoneNumber"))
}

type recordedUnknown struct {
	code    int
	message string
}

type memoryRecorder struct {
	mu   sync.Mutex
	seen []recordedUnknown
}

func (r *memoryRecorder) RecordUnknownError(_ context.Context, code int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedUnknown{code, message})
	return nil
}

func TestSend_UnknownEngineErrorIsRecorded(t *testing.T) {
	fake := newEngine()
	fake.Handle("getMe", func(e *enginetest.Engine, req enginetest.Request) {
		e.Reply(req, &tdapi.Error{Code: 999, Message: "TOTALLY_UNKNOWN"})
	})
	recorder := &memoryRecorder{}
	c := startController(t, fake, testConfig(), Options{
		Resolver: tderr.NewResolver(recorder, testLogger()),
	})

	_, err := c.Send(t.Context(), unknownRequest("getMe"))
	assert.ErrorIs(t, err, tderr.Unknown)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []recordedUnknown{{999, "TOTALLY_UNKNOWN"}}, recorder.seen)
}

func TestSend_LateResponseIsDropped(t *testing.T) {
	fake := newEngine()
	var (
		mu   sync.Mutex
		held []enginetest.Request
	)
	fake.Handle("slowRequest", func(_ *enginetest.Engine, req enginetest.Request) {
		mu.Lock()
		defer mu.Unlock()
		held = append(held, req)
	})

	cfg := testConfig()
	cfg.Workers = 1
	cfg.MaxRetries = 1
	cfg.WaitTimeout = 20 * time.Millisecond
	updates := &collector{}
	c := startController(t, fake, cfg, Options{})
	c.AddHandler(updates)
	loginReady(t, c, fake)

	_, err := c.Send(t.Context(), unknownRequest("slowRequest"))
	require.ErrorIs(t, err, ErrTimeout)

	mu.Lock()
	require.Len(t, held, 1)
	late := held[0]
	mu.Unlock()

	// The answer arrives after the caller gave up, followed by a marker.
	fake.Reply(late, &tdapi.Ok{})
	fake.Push(&tdapi.Unknown{TypeTag: "updateMarker", Raw: []byte(`{}`)})

	require.Eventually(t, func() bool { return updates.has("updateMarker") }, 5*time.Second, 5*time.Millisecond)
	assert.False(t, updates.has(tdapi.TypeOk))
	assert.Equal(t, 0, c.pending.Len())
}

func TestSend_ForeignCorrelationIDIsAnUpdate(t *testing.T) {
	fake := newEngine()
	updates := &collector{}
	c := startController(t, fake, testConfig(), Options{})
	c.AddHandler(updates)
	loginReady(t, c, fake)

	fake.PushRaw([]byte(`{"@type":"updateForeign","@extra":"12345"}`))
	require.Eventually(t, func() bool { return updates.has("updateForeign") }, 5*time.Second, 5*time.Millisecond)
}

func TestSend_ContextCancel(t *testing.T) {
	fake := newEngine()
	cfg := testConfig()
	cfg.WaitTimeout = time.Minute
	c := startController(t, fake, cfg, Options{})

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Send(ctx, unknownRequest("getMe"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, fake.Count("getMe"))
}

func TestPost(t *testing.T) {
	fake := newEngine()
	c := startController(t, fake, testConfig(), Options{})
	_, ok := fake.WaitFor("checkDatabaseEncryptionKey", 5*time.Second)
	require.True(t, ok)

	require.NoError(t, c.Post(t.Context(), &tdapi.Close{}))
	req, ok := fake.WaitFor("close", time.Second)
	require.True(t, ok)
	assert.Empty(t, req.Extra, "posted requests carry no correlation id")

	broken := errors.New("broken pipe")
	fake.FailNextSends(broken, broken, broken)
	err := c.Post(t.Context(), &tdapi.LogOut{})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, broken)
}

func TestExecute(t *testing.T) {
	fake := enginetest.New()
	fake.HandleExecute("setLogVerbosityLevel", func(req enginetest.Request) tdapi.Object {
		var body struct {
			Level int `json:"new_verbosity_level"`
		}
		if err := req.Decode(&body); err != nil || body.Level > 5 {
			return &tdapi.Error{Code: 400, Message: "Wrong new verbosity level specified"}
		}
		return &tdapi.Ok{}
	})
	c := New(fake.Factory(), testConfig(), Options{Logger: testLogger()})

	t.Run("without running session", func(t *testing.T) {
		obj, err := c.Execute(&tdapi.SetLogVerbosityLevel{NewVerbosityLevel: 1})
		require.NoError(t, err)
		assert.Equal(t, tdapi.TypeOk, obj.Type())
		assert.True(t, fake.Destroyed(), "temporary client is released")
	})

	t.Run("engine error", func(t *testing.T) {
		_, err := c.Execute(&tdapi.SetLogVerbosityLevel{NewVerbosityLevel: 99})
		var engineErr *tderr.Error
		require.ErrorAs(t, err, &engineErr)
		assert.Equal(t, 400, engineErr.Code)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := c.Execute(unknownRequest("getMe"))
		assert.Error(t, err)
	})
}
