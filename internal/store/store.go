// ABOUTME: Data types and interfaces for triage persistence
// ABOUTME: UnknownError and SessionEvent records plus the TriageStore interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownDriver is returned for driver names other than the supported ones.
var ErrUnknownDriver = errors.New("unknown sqlite driver")

// Session event kinds written by the session controller.
const (
	EventStart     = "start"
	EventStop      = "stop"
	EventAuthState = "auth_state"
)

// UnknownError is an engine error that did not resolve to a known kind.
type UnknownError struct {
	Code      int
	Message   string
	Pattern   string // message with digit runs replaced by X
	Count     int
	FirstSeen time.Time
	LastSeen  time.Time
}

// SessionEvent is one journal entry.
type SessionEvent struct {
	ID        string
	SessionID string
	Kind      string
	Detail    string
	Timestamp time.Time
}

// TriageStore is the persistence used by the session and the CLI.
type TriageStore interface {
	RecordUnknownError(ctx context.Context, code int, message string) error
	ListUnknownErrors(ctx context.Context, limit int) ([]UnknownError, error)
	RecordSessionEvent(ctx context.Context, sessionID, kind, detail string) error
	ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]SessionEvent, error)
	Close() error
}

// normalizeLimit applies default (100) and cap (1000) to list limits.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
