package store

import (
	"context"
	"fmt"
)

// Extraction event types.
const (
	EventPersonCreated   = "person_created"
	EventFactAccepted    = "fact_accepted"
	EventFactSuperseded  = "fact_superseded"
	EventFactQueued      = "fact_queued"
	EventFactRejected    = "fact_rejected"
	EventPendingResolved = "pending_resolved"
)

// LogEvent appends an entry to the extraction audit log.
func (s *SQLiteStore) LogEvent(ctx context.Context, e *ExtractionEvent) error {
	if e == nil || e.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_events (story_id, event_type, person_id, fact_id, pending_id, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.StoryID, e.EventType, e.PersonID, e.FactID, e.PendingID, e.Detail)
	if err != nil {
		return fmt.Errorf("logging event: %w", err)
	}
	return nil
}

// ListEvents returns the audit log for a story in insertion order.
// Empty storyID returns all events.
func (s *SQLiteStore) ListEvents(ctx context.Context, storyID string) ([]*ExtractionEvent, error) {
	query := `
		SELECT id, story_id, event_type, person_id, fact_id, pending_id, detail, created_at
		FROM extraction_events`
	var args []any
	if storyID != "" {
		query += ` WHERE story_id = ?`
		args = append(args, storyID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []*ExtractionEvent
	for rows.Next() {
		var e ExtractionEvent
		var createdAt string
		if err := rows.Scan(&e.ID, &e.StoryID, &e.EventType, &e.PersonID,
			&e.FactID, &e.PendingID, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
