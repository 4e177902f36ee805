// ABOUTME: Tests for CLI helpers
// ABOUTME: Covers update printing, login flag merging and the log handlers

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tdsession/internal/login"
	"github.com/2389/tdsession/internal/tdapi"
)

func TestPrintUpdates(t *testing.T) {
	updates := make(chan tdapi.Object, 3)
	updates <- &tdapi.Unknown{TypeTag: "updateNewMessage", Raw: json.RawMessage(`{"@type":"updateNewMessage","id":1}`)}
	updates <- &tdapi.Unknown{TypeTag: "updateOption", Raw: json.RawMessage(`{"@type":"updateOption"}`)}
	updates <- &tdapi.Unknown{TypeTag: "updateNewMessage", Raw: json.RawMessage(`{"@type":"updateNewMessage","id":2}`)}
	close(updates)

	var out bytes.Buffer
	err := printUpdates(context.Background(), &out, updates, nil, typeFilter([]string{"updateNewMessage"}))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		assert.Equal(t, "updateNewMessage", m["@type"])
		assert.EqualValues(t, i+1, m["id"])
	}
}

func TestPrintUpdates_StopsWhenSessionEnds(t *testing.T) {
	done := make(chan struct{})
	close(done)

	err := printUpdates(context.Background(), &bytes.Buffer{}, make(chan tdapi.Object), done, nil)
	assert.NoError(t, err)
}

func TestLoginCredentials(t *testing.T) {
	reset := func() { runLogin, runToken, runPhone = false, "", "" }
	t.Cleanup(reset)

	t.Run("nothing configured", func(t *testing.T) {
		reset()
		_, ok := loginCredentials(login.Credentials{})
		assert.False(t, ok)
	})

	t.Run("login flag", func(t *testing.T) {
		reset()
		runLogin = true
		_, ok := loginCredentials(login.Credentials{})
		assert.True(t, ok)
	})

	t.Run("profile token", func(t *testing.T) {
		reset()
		creds, ok := loginCredentials(login.Credentials{Token: "1:a"})
		assert.True(t, ok)
		assert.Equal(t, "1:a", creds.Token)
	})

	t.Run("phone flag replaces profile token", func(t *testing.T) {
		reset()
		runPhone = "+15550001"
		creds, ok := loginCredentials(login.Credentials{Token: "1:a"})
		assert.True(t, ok)
		assert.Empty(t, creds.Token)
		assert.Equal(t, "+15550001", creds.Phone)
	})
}

func TestColorHandler(t *testing.T) {
	var out bytes.Buffer
	h := &colorHandler{out: &out, level: slog.LevelInfo, mu: &sync.Mutex{}}
	logger := slog.New(h).With("component", "session").WithGroup("req")

	logger.Debug("hidden")
	logger.Info("sent", "type", "getMe")

	s := out.String()
	assert.NotContains(t, s, "hidden")
	assert.Contains(t, s, "sent")
	assert.Contains(t, s, " component=")
	assert.NotContains(t, s, "req.component=")
	assert.Contains(t, s, "req.type=")
	assert.Contains(t, s, "getMe")
}

func TestTeeHandler(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(teeHandler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	logger.Info("only json", "at", time.Second)
	logger.Warn("both")

	assert.NotContains(t, a.String(), "only json")
	assert.Contains(t, a.String(), "both")
	assert.Contains(t, b.String(), "only json")
	assert.Contains(t, b.String(), "both")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
