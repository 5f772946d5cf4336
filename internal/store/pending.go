package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wrenfold/kith/internal/relation"
)

// AddPending queues a fact-shaped record for human review and returns its id.
func (s *SQLiteStore) AddPending(ctx context.Context, p *PendingExtraction) (string, error) {
	if p == nil {
		return "", fmt.Errorf("pending extraction is nil")
	}
	if strings.TrimSpace(p.PersonName) == "" {
		return "", fmt.Errorf("pending person_name is required")
	}
	if !relation.Valid(p.RelationType) {
		return "", fmt.Errorf("invalid relation type %q", p.RelationType)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = relation.StatusCurrent
	}
	if p.ReviewStatus == "" {
		p.ReviewStatus = ReviewPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_extractions (id, person_id, person_name, relation_type,
			object_label, object_type, intensity, category, confidence, status,
			story_id, reason, review_status, review_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PersonID, p.PersonName, string(p.RelationType), p.ObjectLabel,
		p.ObjectType, string(p.Intensity), p.Category, p.Confidence,
		string(p.Status), p.StoryID, p.Reason, p.ReviewStatus, p.ReviewNote)
	if err != nil {
		return "", fmt.Errorf("inserting pending extraction: %w", err)
	}
	return p.ID, nil
}

// GetPending returns a pending extraction by id, or (nil, nil) when not found.
func (s *SQLiteStore) GetPending(ctx context.Context, id string) (*PendingExtraction, error) {
	row := s.db.QueryRowContext(ctx, pendingSelect+` WHERE id = ?`, id)
	p, err := scanPending(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting pending %s: %w", id, err)
	}
	return p, nil
}

// ListPending returns pending extractions, optionally filtered by review
// status. Empty reviewStatus lists everything.
func (s *SQLiteStore) ListPending(ctx context.Context, reviewStatus string) ([]*PendingExtraction, error) {
	query := pendingSelect
	var args []any
	if reviewStatus != "" {
		query += ` WHERE review_status = ?`
		args = append(args, reviewStatus)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending: %w", err)
	}
	defer rows.Close()

	var out []*PendingExtraction
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ResolvePending records the review outcome for a pending extraction.
// The row remains as review history, it is never deleted.
func (s *SQLiteStore) ResolvePending(ctx context.Context, id, outcome, note string) error {
	switch outcome {
	case ReviewApproved, ReviewRejected, ReviewEdited:
	default:
		return fmt.Errorf("invalid review outcome %q", outcome)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_extractions
		SET review_status = ?, review_note = ?, reviewed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND review_status = 'pending'`, outcome, note, id)
	if err != nil {
		return fmt.Errorf("resolving pending %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("pending extraction %s not found or already resolved", id)
	}
	return nil
}

const pendingSelect = `
	SELECT id, person_id, person_name, relation_type, object_label, object_type,
	       intensity, category, confidence, status, story_id, reason,
	       review_status, review_note, reviewed_at, created_at
	FROM pending_extractions`

func scanPending(r rowScanner) (*PendingExtraction, error) {
	var p PendingExtraction
	var relType, intensity, status string
	var createdAt string
	var reviewedAt sql.NullString
	err := r.Scan(&p.ID, &p.PersonID, &p.PersonName, &relType, &p.ObjectLabel,
		&p.ObjectType, &intensity, &p.Category, &p.Confidence, &status,
		&p.StoryID, &p.Reason, &p.ReviewStatus, &p.ReviewNote, &reviewedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	p.RelationType = relation.Type(relType)
	p.Intensity = relation.Intensity(intensity)
	p.Status = relation.Status(status)
	p.CreatedAt = parseTime(createdAt)
	if reviewedAt.Valid {
		t := parseTime(reviewedAt.String)
		p.ReviewedAt = &t
	}
	return &p, nil
}
