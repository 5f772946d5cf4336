package store

import (
	"context"
	"fmt"
	"os"
)

// Stats returns observability statistics about the store.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{FactsByType: make(map[string]int)}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM people WHERE deleted_at IS NULL AND status != 'merged'`, &stats.PeopleCount},
		{`SELECT COUNT(*) FROM facts WHERE deleted_at IS NULL`, &stats.FactCount},
		{`SELECT COUNT(*) FROM pending_extractions WHERE review_status = 'pending'`, &stats.PendingCount},
		{`SELECT COUNT(*) FROM stories`, &stats.StoryCount},
		{`SELECT COUNT(*) FROM stories WHERE state = 'processed'`, &stats.ProcessedCount},
		{`SELECT COUNT(*) FROM extraction_events`, &stats.EventCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT relation_type, COUNT(*) FROM facts
		WHERE deleted_at IS NULL AND status = 'current'
		GROUP BY relation_type`)
	if err != nil {
		return nil, fmt.Errorf("counting facts by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var relType string
		var n int
		if err := rows.Scan(&relType, &n); err != nil {
			return nil, fmt.Errorf("scanning fact count: %w", err)
		}
		stats.FactsByType[relType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = fi.Size()
		}
	}

	return stats, nil
}
