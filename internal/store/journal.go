// ABOUTME: Session lifecycle journal stored in session_events
// ABOUTME: Implements session.Journal; entries are listed oldest first

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordSessionEvent appends a journal entry.
func (s *SQLiteStore) RecordSessionEvent(ctx context.Context, sessionID, kind, detail string) error {
	query := `
		INSERT INTO session_events (id, session_id, kind, detail, ts)
		VALUES (?, ?, ?, ?, ?)
	`
	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx, query, id, sessionID, kind, detail, formatTime(time.Now())); err != nil {
		return fmt.Errorf("inserting session event: %w", err)
	}

	s.logger.Debug("journaled session event",
		"id", id,
		"session_id", sessionID,
		"kind", kind)
	return nil
}

// ListSessionEvents returns the journal of one session, or of all sessions
// when sessionID is empty, oldest first.
func (s *SQLiteStore) ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]SessionEvent, error) {
	var filter *string
	if sessionID != "" {
		filter = &sessionID
	}

	query := `
		SELECT id, session_id, kind, detail, ts
		FROM (
			SELECT id, session_id, kind, detail, ts, rowid AS seq
			FROM session_events
			WHERE (? IS NULL OR session_id = ?)
			ORDER BY ts DESC, seq DESC
			LIMIT ?
		)
		ORDER BY ts ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, filter, filter, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []SessionEvent{}
	for rows.Next() {
		var (
			e  SessionEvent
			ts string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scanning session event: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session events: %w", err)
	}
	return events, nil
}
