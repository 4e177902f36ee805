// ABOUTME: Tests for the gRPC engine bridge over an in-memory listener.
// ABOUTME: Exercises send/receive round trips, execute and stream teardown.

package bridge

import (
	"context"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/2389/tdsession/internal/engine"
	"github.com/2389/tdsession/internal/engine/enginetest"
	"github.com/2389/tdsession/internal/tdapi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startBridge(t *testing.T, fake *enginetest.Engine) *Remote {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	bs := NewServer(fake.Factory(), testLogger())
	bs.pollTimeout = 20 * time.Millisecond
	bs.Register(srv)

	go func() { _ = srv.Serve(lis) }()

	remote, err := Dial(
		"passthrough:///bufnet",
		testLogger(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = remote.Close()
		srv.Stop()
		_ = bs.Close()
	})
	return remote
}

func receiveUntil(t *testing.T, c engine.Client, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := c.Receive(50 * time.Millisecond)
		require.NoError(t, err)
		if data != nil {
			return data
		}
	}
	t.Fatal("no event received")
	return nil
}

func TestBridge_SendReceiveRoundTrip(t *testing.T) {
	fake := enginetest.New()
	fake.ReplyOK("getAuthorizationState")
	remote := startBridge(t, fake)

	client, err := remote.Factory()()
	require.NoError(t, err)
	defer client.Destroy()

	req, err := tdapi.Marshal(&tdapi.GetAuthorizationState{}, "77")
	require.NoError(t, err)
	require.NoError(t, client.Send(req))

	data := receiveUntil(t, client, 5*time.Second)
	env, err := tdapi.DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, tdapi.TypeOk, env.Type)
	assert.Equal(t, "77", env.Extra)

	_, ok := fake.WaitFor("getAuthorizationState", time.Second)
	assert.True(t, ok)
}

func TestBridge_PushedUpdatesReachClient(t *testing.T) {
	fake := enginetest.New()
	remote := startBridge(t, fake)

	client, err := remote.Open()
	require.NoError(t, err)
	defer client.Destroy()

	fake.PushState(&tdapi.AuthorizationStateWaitPhoneNumber{})

	env, err := tdapi.DecodeEnvelope(receiveUntil(t, client, 5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, tdapi.TypeAuthorizationStateWaitPhoneNumber, env.LifecycleState())
}

func TestBridge_Execute(t *testing.T) {
	fake := enginetest.New()
	fake.HandleExecute("setLogVerbosityLevel", func(enginetest.Request) tdapi.Object {
		return &tdapi.Ok{}
	})
	remote := startBridge(t, fake)

	client, err := remote.Open()
	require.NoError(t, err)
	defer client.Destroy()

	req, err := tdapi.Marshal(&tdapi.SetLogVerbosityLevel{NewVerbosityLevel: 1}, "")
	require.NoError(t, err)

	resp, err := client.Execute(req)
	require.NoError(t, err)
	env, err := tdapi.DecodeEnvelope(resp)
	require.NoError(t, err)
	assert.Equal(t, tdapi.TypeOk, env.Type)
}

func TestBridge_DestroyReleasesServerClient(t *testing.T) {
	fake := enginetest.New()
	remote := startBridge(t, fake)

	client, err := remote.Open()
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fake.Created() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, client.Destroy())

	assert.Eventually(t, fake.Destroyed, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, client.Destroy(), engine.ErrDestroyed)

	_, err = client.Receive(10 * time.Millisecond)
	assert.ErrorIs(t, err, engine.ErrDestroyed)
	assert.ErrorIs(t, client.Send([]byte(`{"@type":"close"}`)), engine.ErrDestroyed)
}
