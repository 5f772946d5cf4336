package store

import "fmt"

// migrate creates or updates the database schema. Idempotent.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		nickname TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'mentioned',
		status TEXT NOT NULL DEFAULT 'active',
		context TEXT NOT NULL DEFAULT '',
		mention_count INTEGER NOT NULL DEFAULT 0,
		merged_into TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		relation_type TEXT NOT NULL,
		object_label TEXT NOT NULL,
		object_type TEXT NOT NULL DEFAULT '',
		intensity TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'current',
		source TEXT NOT NULL DEFAULT 'ai_extraction',
		story_id TEXT NOT NULL DEFAULT '',
		superseded_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME,
		FOREIGN KEY (person_id) REFERENCES people(id)
	);

	CREATE TABLE IF NOT EXISTS pending_extractions (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL DEFAULT '',
		person_name TEXT NOT NULL,
		relation_type TEXT NOT NULL,
		object_label TEXT NOT NULL,
		object_type TEXT NOT NULL DEFAULT '',
		intensity TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'current',
		story_id TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		review_status TEXT NOT NULL DEFAULT 'pending',
		review_note TEXT NOT NULL DEFAULT '',
		reviewed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'unprocessed',
		summary TEXT NOT NULL DEFAULT '',
		processed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS extraction_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		story_id TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		person_id TEXT NOT NULL DEFAULT '',
		fact_id TEXT NOT NULL DEFAULT '',
		pending_id TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_people_status ON people(status);
	CREATE INDEX IF NOT EXISTS idx_facts_person ON facts(person_id);
	CREATE INDEX IF NOT EXISTS idx_facts_status ON facts(status);
	CREATE INDEX IF NOT EXISTS idx_facts_type ON facts(relation_type);
	CREATE INDEX IF NOT EXISTS idx_pending_review ON pending_extractions(review_status);
	CREATE INDEX IF NOT EXISTS idx_stories_state ON stories(state);
	CREATE INDEX IF NOT EXISTS idx_events_story ON extraction_events(story_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}
