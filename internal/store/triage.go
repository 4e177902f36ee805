// ABOUTME: Unknown engine error records for offline triage
// ABOUTME: Implements tderr.Recorder with an upsert keyed by (code, message)

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/2389/tdsession/internal/tderr"
)

// timeFormat is fixed width so TEXT columns sort chronologically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// RecordUnknownError counts one occurrence of an unresolved engine error.
// It implements tderr.Recorder.
func (s *SQLiteStore) RecordUnknownError(ctx context.Context, code int, message string) error {
	now := formatTime(time.Now())

	query := `
		INSERT INTO unknown_errors (code, message, pattern, count, first_seen, last_seen)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(code, message) DO UPDATE SET
			count = count + 1,
			last_seen = excluded.last_seen
	`
	if _, err := s.db.ExecContext(ctx, query, code, message, tderr.Pattern(message), now, now); err != nil {
		return fmt.Errorf("recording unknown error: %w", err)
	}

	s.logger.Debug("recorded unknown engine error", "code", code, "message", message)
	return nil
}

// ListUnknownErrors returns recorded errors, most frequent first.
func (s *SQLiteStore) ListUnknownErrors(ctx context.Context, limit int) ([]UnknownError, error) {
	query := `
		SELECT code, message, pattern, count, first_seen, last_seen
		FROM unknown_errors
		ORDER BY count DESC, last_seen DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying unknown errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	errs := []UnknownError{}
	for rows.Next() {
		var (
			e               UnknownError
			first, lastSeen string
		)
		if err := rows.Scan(&e.Code, &e.Message, &e.Pattern, &e.Count, &first, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning unknown error: %w", err)
		}
		if e.FirstSeen, err = parseTime(first); err != nil {
			return nil, fmt.Errorf("parsing first_seen: %w", err)
		}
		if e.LastSeen, err = parseTime(lastSeen); err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		errs = append(errs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unknown errors: %w", err)
	}
	return errs, nil
}
