package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddPerson inserts a new person and returns its id.
// An id is generated when p.ID is empty.
func (s *SQLiteStore) AddPerson(ctx context.Context, p *Person) (string, error) {
	if p == nil {
		return "", fmt.Errorf("person is nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return "", fmt.Errorf("person name is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = "mentioned"
	}
	if p.Status == "" {
		p.Status = "active"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO people (id, name, nickname, role, status, context, mention_count, merged_into)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Nickname, p.Role, p.Status, p.Context, p.MentionCount, p.MergedInto)
	if err != nil {
		return "", fmt.Errorf("inserting person: %w", err)
	}
	return p.ID, nil
}

// GetPerson returns a person by id, or (nil, nil) when not found.
func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*Person, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, nickname, role, status, context, mention_count, merged_into,
		       created_at, updated_at, deleted_at
		FROM people WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting person %s: %w", id, err)
	}
	return p, nil
}

// ListPeople returns the active roster: people who have not been
// soft-deleted or merged into another record.
func (s *SQLiteStore) ListPeople(ctx context.Context) ([]*Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, nickname, role, status, context, mention_count, merged_into,
		       created_at, updated_at, deleted_at
		FROM people
		WHERE deleted_at IS NULL AND status != 'merged'
		ORDER BY mention_count DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	defer rows.Close()

	var people []*Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// UpdatePerson updates the mutable fields of a person record.
func (s *SQLiteStore) UpdatePerson(ctx context.Context, p *Person) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("person id is required")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE people
		SET name = ?, nickname = ?, role = ?, status = ?, context = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		p.Name, p.Nickname, p.Role, p.Status, p.Context, p.ID)
	if err != nil {
		return fmt.Errorf("updating person %s: %w", p.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("person %s not found", p.ID)
	}
	return nil
}

// IncrementMentions bumps a person's mention counter.
func (s *SQLiteStore) IncrementMentions(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE people SET mention_count = mention_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("incrementing mentions for %s: %w", id, err)
	}
	return nil
}

// ArchivePerson soft-deletes a person. Their facts remain queryable by id
// but the person drops out of the active roster.
func (s *SQLiteStore) ArchivePerson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE people SET status = 'archived', deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("archiving person %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("person %s not found", id)
	}
	return nil
}

// MergePeople folds srcID into dstID: the source record is marked merged,
// its facts are re-pointed at the destination, and mention counts combine.
func (s *SQLiteStore) MergePeople(ctx context.Context, srcID, dstID string) error {
	if srcID == dstID {
		return fmt.Errorf("cannot merge a person into itself")
	}
	src, err := s.GetPerson(ctx, srcID)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("person %s not found", srcID)
	}
	dst, err := s.GetPerson(ctx, dstID)
	if err != nil {
		return err
	}
	if dst == nil {
		return fmt.Errorf("person %s not found", dstID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting merge: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE facts SET person_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE person_id = ?`, dstID, srcID); err != nil {
		return fmt.Errorf("moving facts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE people SET mention_count = mention_count + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, src.MentionCount, dstID); err != nil {
		return fmt.Errorf("combining mention counts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE people SET status = 'merged', merged_into = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, dstID, srcID); err != nil {
		return fmt.Errorf("marking source merged: %w", err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(r rowScanner) (*Person, error) {
	var p Person
	var createdAt, updatedAt string
	var deletedAt sql.NullString
	err := r.Scan(&p.ID, &p.Name, &p.Nickname, &p.Role, &p.Status, &p.Context,
		&p.MentionCount, &p.MergedInto, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	if deletedAt.Valid {
		t := parseTime(deletedAt.String)
		p.DeletedAt = &t
	}
	return &p, nil
}

// parseTime handles the timestamp formats SQLite hands back.
func parseTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
