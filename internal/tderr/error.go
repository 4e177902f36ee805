// ABOUTME: Resolution of engine (code, message) pairs into typed errors.
// ABOUTME: Unresolved pairs fall back to the Unknown kind and are recorded for triage.

package tderr

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

var (
	digitRun    = regexp.MustCompile(`\d+`)
	digitSuffix = regexp.MustCompile(`_\d+`)
	retryAfter  = regexp.MustCompile(`^Too Many Requests: retry after \d+$`)
)

const retryAfterPattern = "Too Many Requests: retry after X"

// Error is a resolved engine error.
type Error struct {
	Kind    *Kind
	Code    int
	Message string
	// Value is the first digit run of Message, e.g. the wait time of FLOOD_WAIT_35.
	Value string
}

func (e *Error) Error() string {
	if e.Kind == Unknown {
		return fmt.Sprintf("[%d %s]: %d %s", UnknownCode, Unknown.ID, e.Code, e.Message)
	}
	if e.Value != "" {
		return fmt.Sprintf("[%d %s]: %s (%s)", e.Code, e.Kind.ID, e.Kind.Description, e.Value)
	}
	return fmt.Sprintf("[%d %s]: %s", e.Code, e.Kind.ID, e.Kind.Description)
}

// Is matches the error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(*Kind)
	return ok && k == e.Kind
}

// Resolved reports whether the error matched a table entry.
func (e *Error) Resolved() bool {
	return e.Kind != Unknown
}

// Pattern normalizes a message for table lookup. A digit run after an
// underscore becomes X, as in FLOOD_WAIT_X; other digits are kept. The 429
// retry-after text is matched on its own.
func Pattern(message string) string {
	if retryAfter.MatchString(message) {
		return retryAfterPattern
	}
	return digitSuffix.ReplaceAllString(message, "_X")
}

// Lookup returns the kind for a (code, message) pair without side effects.
func Lookup(code int, message string) (*Kind, bool) {
	kinds, ok := table[code]
	if !ok {
		return Unknown, false
	}
	k, ok := kinds[Pattern(message)]
	if !ok {
		return Unknown, false
	}
	return k, true
}

// Recorder keeps unresolved errors for offline triage.
type Recorder interface {
	RecordUnknownError(ctx context.Context, code int, message string) error
}

// Resolver turns engine errors into *Error values.
type Resolver struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewResolver creates a Resolver. recorder may be nil.
func NewResolver(recorder Recorder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		recorder: recorder,
		logger:   logger.With("component", "tderr"),
	}
}

// Resolve builds the typed error for an engine (code, message) pair.
func (r *Resolver) Resolve(ctx context.Context, code int, message string) *Error {
	kind, ok := Lookup(code, message)
	e := &Error{Kind: kind, Code: code, Message: message, Value: digitRun.FindString(message)}
	if ok {
		return e
	}

	r.logger.Warn("unknown engine error", "code", code, "message", message)
	if r.recorder != nil {
		if err := r.recorder.RecordUnknownError(ctx, code, message); err != nil {
			r.logger.Warn("recording unknown engine error failed", "error", err)
		}
	}
	return e
}
