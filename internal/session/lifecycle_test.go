// ABOUTME: Tests for Start, Stop, Restart and engine-initiated shutdown.
// ABOUTME: Verifies worker exit, fail-fast behaviour and lifecycle journaling.

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/tdsession/internal/engine"
	"github.com/2389/tdsession/internal/engine/enginetest"
	"github.com/2389/tdsession/internal/login"
	"github.com/2389/tdsession/internal/tdapi"
	"github.com/2389/tdsession/internal/tderr"
)

func TestStart_SendsInitialRequests(t *testing.T) {
	fake := newEngine()
	cfg := testConfig()
	cfg.Parameters = tdapi.TdlibParameters{APIID: 94575, APIHash: "hash", DatabaseDirectory: "/tmp/td"}
	cfg.EncryptionKey = "key"
	startController(t, fake, cfg, Options{})

	params, ok := fake.WaitFor("setTdlibParameters", 5*time.Second)
	require.True(t, ok)
	var body struct {
		Parameters struct {
			Type  string `json:"@type"`
			APIID int    `json:"api_id"`
		} `json:"parameters"`
	}
	require.NoError(t, params.Decode(&body))
	assert.Equal(t, "tdlibParameters", body.Parameters.Type)
	assert.Equal(t, 94575, body.Parameters.APIID)

	key, ok := fake.WaitFor("checkDatabaseEncryptionKey", 5*time.Second)
	require.True(t, ok)
	assert.Contains(t, string(key.Raw), `"encryption_key":"key"`)
	assert.NotEmpty(t, key.Extra)
}

func TestStart_AppliesEngineLog(t *testing.T) {
	fake := newEngine()
	var executed []string
	for _, typ := range []string{"setLogVerbosityLevel", "setLogStream"} {
		fake.HandleExecute(typ, func(req enginetest.Request) tdapi.Object {
			executed = append(executed, req.Type)
			return &tdapi.Ok{}
		})
	}

	level := 2
	cfg := testConfig()
	cfg.EngineLog = EngineLog{Verbosity: &level, File: "/tmp/td.log", MaxFileSize: 1 << 20}
	startController(t, fake, cfg, Options{})

	assert.Equal(t, []string{"setLogVerbosityLevel", "setLogStream"}, executed)
}

func TestStart_Twice(t *testing.T) {
	fake := newEngine()
	c := startController(t, fake, testConfig(), Options{})
	assert.ErrorIs(t, c.Start(t.Context()), ErrAlreadyRunning)
}

func TestStart_FactoryError(t *testing.T) {
	boom := errors.New("no engine")
	c := New(func() (engine.Client, error) { return nil, boom }, testConfig(), Options{Logger: testLogger()})

	assert.ErrorIs(t, c.Start(t.Context()), boom)
	assert.False(t, c.Running())
	assert.NoError(t, c.Stop())
}

func TestStart_InitialRequestFailureStopsSession(t *testing.T) {
	t.Run("parameters rejected", func(t *testing.T) {
		fake := newEngine()
		fake.Handle("setTdlibParameters", func(e *enginetest.Engine, req enginetest.Request) {
			e.Reply(req, &tdapi.Error{Code: 400, Message: "API_ID_INVALID"})
		})
		c := startController(t, fake, testConfig(), Options{})

		select {
		case <-c.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("session kept running after its parameters were rejected")
		}
		assert.False(t, c.Running())
		assert.ErrorIs(t, c.Err(), tderr.APIIDInvalid)
		var tdErr *tderr.Error
		require.ErrorAs(t, c.Err(), &tdErr)
		assert.Equal(t, 400, tdErr.Code)
		assert.Zero(t, fake.Count("checkDatabaseEncryptionKey"))
		assert.ErrorIs(t, c.Post(t.Context(), &tdapi.LogOut{}), ErrNotRunning)
	})

	t.Run("encryption key unanswered", func(t *testing.T) {
		fake := newEngine()
		fake.Handle("checkDatabaseEncryptionKey", func(*enginetest.Engine, enginetest.Request) {})
		c := startController(t, fake, testConfig(), Options{})

		select {
		case <-c.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("session kept running without an encryption key answer")
		}
		assert.False(t, c.Running())
		assert.ErrorIs(t, c.Err(), ErrTimeout)
		assert.Equal(t, testConfig().MaxRetries, fake.Count("checkDatabaseEncryptionKey"))
	})
}

func TestStop_AllWorkersExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newEngine()
	cfg := testConfig()
	cfg.Workers = 3
	c := New(fake.Factory(), cfg, Options{Logger: testLogger()})
	require.NoError(t, c.Start(t.Context()))
	_, ok := fake.WaitFor("checkDatabaseEncryptionKey", 5*time.Second)
	require.True(t, ok)

	start := time.Now()
	require.NoError(t, c.Stop())
	assert.Less(t, time.Since(start), cfg.StopTimeout)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Stop returned")
	}
	assert.False(t, c.Running())
	assert.True(t, fake.Destroyed())
	assert.NoError(t, c.Err())
	assert.NoError(t, c.Stop(), "second stop is a no-op")
}

func TestStop_FailsWaitersAndLaterCalls(t *testing.T) {
	fake := newEngine()
	cfg := testConfig()
	cfg.WaitTimeout = time.Minute
	c := startController(t, fake, cfg, Options{})

	errs := make(chan error, 1)
	go func() {
		_, err := c.Send(t.Context(), unknownRequest("getMe"))
		errs <- err
	}()
	_, ok := fake.WaitFor("getMe", 5*time.Second)
	require.True(t, ok)

	require.NoError(t, c.Stop())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight Send still blocked after Stop")
	}

	_, err := c.Send(t.Context(), unknownRequest("getMe"))
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.ErrorIs(t, c.Post(t.Context(), &tdapi.Close{}), ErrNotRunning)
}

func TestEngineClosedStopsSession(t *testing.T) {
	for _, st := range []tdapi.AuthorizationState{
		&tdapi.AuthorizationStateClosed{},
		&tdapi.AuthorizationStateLoggingOut{},
	} {
		t.Run(st.Type(), func(t *testing.T) {
			fake := newEngine()
			c := startController(t, fake, testConfig(), Options{})
			loginReady(t, c, fake)

			fake.PushState(st)

			select {
			case <-c.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("session did not stop")
			}
			assert.Error(t, c.Err())
			assert.False(t, c.LoggedIn())

			_, err := c.Send(t.Context(), unknownRequest("getMe"))
			assert.ErrorIs(t, err, ErrNotRunning)
		})
	}
}

func TestEngineClosingOnlyFlags(t *testing.T) {
	fake := newEngine()
	fake.ReplyOK("getMe")
	c := startController(t, fake, testConfig(), Options{})
	loginReady(t, c, fake)

	fake.PushState(&tdapi.AuthorizationStateClosing{})
	require.Eventually(t, func() bool { return !c.LoggedIn() }, 5*time.Second, 5*time.Millisecond)

	assert.True(t, c.Running())
	_, err := c.Send(t.Context(), unknownRequest("getMe"))
	assert.NoError(t, err)
}

func TestReceiveFailureStopsSession(t *testing.T) {
	fake := newEngine()
	c := startController(t, fake, testConfig(), Options{})

	// Destroying the client underneath the loop makes Receive fail.
	require.NoError(t, fake.Destroy())

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
	assert.ErrorIs(t, c.Err(), ErrTransport)
}

func TestRestart(t *testing.T) {
	fake := newEngine()
	journal := &fakeJournal{}
	c := startController(t, fake, testConfig(), Options{Journal: journal})
	first := c.SessionID()
	loginReady(t, c, fake)

	require.NoError(t, c.Restart(t.Context()))
	assert.True(t, c.Running())
	assert.NotEqual(t, first, c.SessionID())
	assert.Equal(t, 2, fake.Created())
	assert.False(t, c.LoggedIn(), "restart resets the login machine")

	require.NoError(t, c.Stop())
	assert.Equal(t, []string{"start", "auth_state", "stop", "start", "stop"}, journal.kinds())
}

func TestMalformedEventsAreSkipped(t *testing.T) {
	fake := newEngine()
	updates := &collector{}
	c := startController(t, fake, testConfig(), Options{})
	c.AddHandler(updates)
	loginReady(t, c, fake)

	fake.PushRaw([]byte(`not json`))
	fake.PushRaw([]byte(`{"no":"type"}`))
	fake.PushRaw([]byte(`{"@type":"error","code":"not-a-number"}`))
	fake.Push(&tdapi.Unknown{TypeTag: "updateAfter", Raw: []byte(`{}`)})

	require.Eventually(t, func() bool { return updates.has("updateAfter") }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, c.Running())
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	fake := newEngine()
	updates := &collector{}
	c := startController(t, fake, testConfig(), Options{})
	c.AddHandler(UpdateHandlerFunc(func(_ context.Context, obj tdapi.Object) {
		if obj.Type() == "updateBoom" {
			panic("boom")
		}
	}))
	c.AddHandler(updates)
	loginReady(t, c, fake)

	fake.Push(&tdapi.Unknown{TypeTag: "updateBoom", Raw: []byte(`{}`)})
	fake.Push(&tdapi.Unknown{TypeTag: "updateAfter", Raw: []byte(`{}`)})

	require.Eventually(t, func() bool { return updates.has("updateAfter") }, 5*time.Second, 5*time.Millisecond)
}

func TestUpdatesBeforeLoginAreDropped(t *testing.T) {
	fake := newEngine()
	updates := &collector{}
	cfg := testConfig()
	cfg.Workers = 1
	c := startController(t, fake, cfg, Options{})
	c.AddHandler(updates)

	fake.Push(&tdapi.Unknown{TypeTag: "updateEarly", Raw: []byte(`{}`)})
	loginReady(t, c, fake)
	fake.Push(&tdapi.Unknown{TypeTag: "updateLate", Raw: []byte(`{}`)})

	require.Eventually(t, func() bool { return updates.has("updateLate") }, 5*time.Second, 5*time.Millisecond)
	assert.False(t, updates.has("updateEarly"))
}

func TestWaitPhoneNumberWithoutLoginStops(t *testing.T) {
	fake := newEngine()
	c := startController(t, fake, testConfig(), Options{})

	fake.PushState(&tdapi.AuthorizationStateWaitPhoneNumber{})

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
	assert.ErrorIs(t, c.Err(), login.ErrLoginRequired)
}
