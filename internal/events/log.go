package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultRetention is how long events are kept before pruning.
const DefaultRetention = 30 * 24 * time.Hour

// EventLog persists events to SQLite.
type EventLog struct {
	db  *sql.DB
	now func() time.Time
}

// NewEventLog creates a new event log.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db, now: time.Now}
}

// Append persists an event and returns its ID.
func (l *EventLog) Append(ctx context.Context, e Event) (int64, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO events (event_type, entity_type, entity_id, session_id, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventType(), e.EntityType(), e.EntityID(), e.SessionID(), string(payload), e.OccurredAt(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}

	return result.LastInsertId()
}

// RawEvent represents a persisted event with its raw payload.
type RawEvent struct {
	ID         int64
	EventType  string
	EntityType string
	EntityID   int64
	SessionID  string
	Payload    string
	OccurredAt time.Time
	CreatedAt  time.Time
}

const selectEvents = `
	SELECT id, event_type, entity_type, entity_id, session_id, payload, occurred_at, created_at
	FROM events`

// Since returns all events since the given time, oldest first.
func (l *EventLog) Since(ctx context.Context, t time.Time) ([]RawEvent, error) {
	rows, err := l.db.QueryContext(ctx, selectEvents+`
		WHERE occurred_at >= ?
		ORDER BY id ASC`,
		t,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ForSession returns events of eventType belonging to sessionID that
// occurred since t, newest first. An empty eventType matches every type.
func (l *EventLog) ForSession(ctx context.Context, sessionID, eventType string, t time.Time) ([]RawEvent, error) {
	rows, err := l.db.QueryContext(ctx, selectEvents+`
		WHERE session_id = ? AND (? = '' OR event_type = ?) AND occurred_at >= ?
		ORDER BY id DESC`,
		sessionID, eventType, eventType, t,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Recent returns the newest n events, newest first.
func (l *EventLog) Recent(ctx context.Context, n int) ([]RawEvent, error) {
	rows, err := l.db.QueryContext(ctx, selectEvents+`
		ORDER BY id DESC
		LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Prune removes events older than the given duration.
func (l *EventLog) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := l.now().Add(-olderThan)
	result, err := l.db.ExecContext(ctx, `DELETE FROM events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return result.RowsAffected()
}

func scanEvents(rows *sql.Rows) ([]RawEvent, error) {
	var events []RawEvent
	for rows.Next() {
		var e RawEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityType, &e.EntityID, &e.SessionID, &e.Payload, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
