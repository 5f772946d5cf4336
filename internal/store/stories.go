package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// validStoryTransitions maps each state to the states it may move to.
// processed is terminal.
var validStoryTransitions = map[string][]string{
	StoryUnprocessed: {StoryExtracting},
	StoryExtracting:  {StoryParsing, StoryUnprocessed},
	StoryParsing:     {StoryResolving, StoryUnprocessed},
	StoryResolving:   {StoryRouting, StoryUnprocessed},
	StoryRouting:     {StoryProcessed, StoryUnprocessed},
	StoryProcessed:   {},
}

// AddStory persists a journal entry and returns its id.
// New stories always start unprocessed.
func (s *SQLiteStore) AddStory(ctx context.Context, st *Story) (string, error) {
	if st == nil {
		return "", fmt.Errorf("story is nil")
	}
	if strings.TrimSpace(st.Content) == "" {
		return "", fmt.Errorf("story content is required")
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.State = StoryUnprocessed

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stories (id, content, state) VALUES (?, ?, ?)`,
		st.ID, st.Content, st.State)
	if err != nil {
		return "", fmt.Errorf("inserting story: %w", err)
	}
	return st.ID, nil
}

// GetStory returns a story by id, or (nil, nil) when not found.
func (s *SQLiteStore) GetStory(ctx context.Context, id string) (*Story, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, state, summary, processed_at, created_at, updated_at
		FROM stories WHERE id = ?`, id)
	st, err := scanStory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting story %s: %w", id, err)
	}
	return st, nil
}

// SetStoryState advances a story through the processing state machine,
// rejecting transitions the machine does not allow.
func (s *SQLiteStore) SetStoryState(ctx context.Context, id, state string) error {
	st, err := s.GetStory(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("story %s not found", id)
	}
	if !transitionAllowed(st.State, state) {
		return fmt.Errorf("story %s cannot move from %s to %s", id, st.State, state)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE stories SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		state, id)
	if err != nil {
		return fmt.Errorf("setting story state: %w", err)
	}
	return nil
}

// MarkStoryProcessed moves a story to its terminal state and records the
// extraction summary.
func (s *SQLiteStore) MarkStoryProcessed(ctx context.Context, id, summaryJSON string) error {
	st, err := s.GetStory(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("story %s not found", id)
	}
	if st.State == StoryProcessed {
		return fmt.Errorf("story %s is already processed", id)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE stories
		SET state = ?, summary = ?, processed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, StoryProcessed, summaryJSON, id)
	if err != nil {
		return fmt.Errorf("marking story processed: %w", err)
	}
	return nil
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range validStoryTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func scanStory(r rowScanner) (*Story, error) {
	var st Story
	var createdAt, updatedAt string
	var processedAt sql.NullString
	err := r.Scan(&st.ID, &st.Content, &st.State, &st.Summary, &processedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	if processedAt.Valid {
		t := parseTime(processedAt.String)
		st.ProcessedAt = &t
	}
	return &st, nil
}
