package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wrenfold/kith/internal/relation"
)

// AddFact inserts a new fact and returns its id.
func (s *SQLiteStore) AddFact(ctx context.Context, f *Fact) (string, error) {
	if f == nil {
		return "", fmt.Errorf("fact is nil")
	}
	if f.PersonID == "" {
		return "", fmt.Errorf("fact person_id is required")
	}
	if !relation.Valid(f.RelationType) {
		return "", fmt.Errorf("invalid relation type %q", f.RelationType)
	}
	if strings.TrimSpace(f.ObjectLabel) == "" {
		return "", fmt.Errorf("fact object_label is required")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = relation.StatusCurrent
	}
	if f.Source == "" {
		f.Source = relation.SourceAIExtraction
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (id, person_id, relation_type, object_label, object_type,
			intensity, category, confidence, status, source, story_id, superseded_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.PersonID, string(f.RelationType), f.ObjectLabel, f.ObjectType,
		string(f.Intensity), f.Category, f.Confidence, string(f.Status),
		string(f.Source), f.StoryID, f.SupersededBy)
	if err != nil {
		return "", fmt.Errorf("inserting fact: %w", err)
	}
	return f.ID, nil
}

// GetFact returns a fact by id, or (nil, nil) when not found.
func (s *SQLiteStore) GetFact(ctx context.Context, id string) (*Fact, error) {
	row := s.db.QueryRowContext(ctx, factSelect+` WHERE id = ?`, id)
	f, err := scanFact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting fact %s: %w", id, err)
	}
	return f, nil
}

// CurrentFacts returns a person's live facts: status current, not
// superseded, not soft-deleted.
func (s *SQLiteStore) CurrentFacts(ctx context.Context, personID string) ([]*Fact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect+`
		WHERE person_id = ? AND status = 'current' AND superseded_by = '' AND deleted_at IS NULL
		ORDER BY created_at DESC`, personID)
	if err != nil {
		return nil, fmt.Errorf("listing current facts: %w", err)
	}
	return collectFacts(rows)
}

// ListFacts returns facts matching opts, superseded history included.
func (s *SQLiteStore) ListFacts(ctx context.Context, opts ListOpts) ([]*Fact, error) {
	query := factSelect + ` WHERE deleted_at IS NULL`
	var args []any
	if opts.PersonID != "" {
		query += ` AND person_id = ?`
		args = append(args, opts.PersonID)
	}
	if opts.RelationType != "" {
		query += ` AND relation_type = ?`
		args = append(args, string(opts.RelationType))
	}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	return collectFacts(rows)
}

// SupersedeFact retires oldID in favor of newID. The old fact is kept
// with status past and a pointer to its replacement, never deleted.
func (s *SQLiteStore) SupersedeFact(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return fmt.Errorf("fact cannot supersede itself")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE facts SET status = 'past', superseded_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, newID, oldID)
	if err != nil {
		return fmt.Errorf("superseding fact %s: %w", oldID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("fact %s not found", oldID)
	}
	return nil
}

const factSelect = `
	SELECT id, person_id, relation_type, object_label, object_type, intensity,
	       category, confidence, status, source, story_id, superseded_by,
	       created_at, updated_at, deleted_at
	FROM facts`

func scanFact(r rowScanner) (*Fact, error) {
	var f Fact
	var relType, intensity, status, source string
	var createdAt, updatedAt string
	var deletedAt sql.NullString
	err := r.Scan(&f.ID, &f.PersonID, &relType, &f.ObjectLabel, &f.ObjectType,
		&intensity, &f.Category, &f.Confidence, &status, &source, &f.StoryID,
		&f.SupersededBy, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	f.RelationType = relation.Type(relType)
	f.Intensity = relation.Intensity(intensity)
	f.Status = relation.Status(status)
	f.Source = relation.Source(source)
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	if deletedAt.Valid {
		t := parseTime(deletedAt.String)
		f.DeletedAt = &t
	}
	return &f, nil
}

func collectFacts(rows *sql.Rows) ([]*Fact, error) {
	defer rows.Close()
	var facts []*Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
