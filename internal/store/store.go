// Package store provides the SQLite storage layer for kith.
//
// All journal data lives in a single SQLite database file:
// - People referenced anywhere in the user's stories
// - Facts (typed relations) about those people, with temporal history
// - Pending extractions awaiting human review
// - Stories with their processing state
// - An append-only extraction event log
//
// Nothing is ever hard-deleted: people and facts are soft-deleted or
// superseded, and queries exclude the dead rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wrenfold/kith/internal/relation"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.kith/kith.db"

// Person represents one human referenced in the user's stories.
type Person struct {
	ID           string
	Name         string
	Nickname     string
	Role         string // "primary", "mentioned", "placeholder"
	Status       string // "active", "archived", "deceased", "merged"
	Context      string // free-text disambiguation, e.g. "Mike's sister"
	MentionCount int
	MergedInto   string // person id this record was merged into, if any
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Fact is a typed statement about a person.
type Fact struct {
	ID           string
	PersonID     string
	RelationType relation.Type
	ObjectLabel  string
	ObjectType   string
	Intensity    relation.Intensity
	Category     string
	Confidence   float64
	Status       relation.Status
	Source       relation.Source
	StoryID      string
	SupersededBy string // fact id that replaced this one
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// PendingExtraction is a fact-shaped record awaiting human review.
type PendingExtraction struct {
	ID           string
	PersonID     string
	PersonName   string
	RelationType relation.Type
	ObjectLabel  string
	ObjectType   string
	Intensity    relation.Intensity
	Category     string
	Confidence   float64
	Status       relation.Status
	StoryID      string
	Reason       string // human-readable why this needs review
	ReviewStatus string // "pending", "approved", "rejected", "edited"
	ReviewNote   string
	ReviewedAt   *time.Time
	CreatedAt    time.Time
}

// Pending review outcomes.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
	ReviewEdited   = "edited"
)

// Story is one free-text journal entry with its processing state.
type Story struct {
	ID          string
	Content     string
	State       string
	Summary     string // JSON extraction summary, set when processed
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Story processing states.
const (
	StoryUnprocessed = "unprocessed"
	StoryExtracting  = "extracting"
	StoryParsing     = "parsing"
	StoryResolving   = "resolving"
	StoryRouting     = "routing"
	StoryProcessed   = "processed"
)

// ExtractionEvent is one entry in the append-only extraction audit log.
type ExtractionEvent struct {
	ID        int64
	StoryID   string
	EventType string // "person_created", "fact_accepted", "fact_superseded", "fact_queued", "fact_rejected", "pending_resolved"
	PersonID  string
	FactID    string
	PendingID string
	Detail    string
	CreatedAt time.Time
}

// ListOpts controls pagination and filtering for list operations.
type ListOpts struct {
	Limit        int
	Offset       int
	PersonID     string
	RelationType relation.Type
	Status       relation.Status
}

// StoreStats holds observability statistics about the store.
type StoreStats struct {
	PeopleCount    int64
	FactCount      int64
	PendingCount   int64
	StoryCount     int64
	ProcessedCount int64
	EventCount     int64
	FactsByType    map[string]int
	DBSizeBytes    int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the persistence collaborator consumed by the pipeline.
type Store interface {
	// People
	AddPerson(ctx context.Context, p *Person) (string, error)
	GetPerson(ctx context.Context, id string) (*Person, error)
	ListPeople(ctx context.Context) ([]*Person, error)
	UpdatePerson(ctx context.Context, p *Person) error
	IncrementMentions(ctx context.Context, id string) error
	ArchivePerson(ctx context.Context, id string) error
	MergePeople(ctx context.Context, srcID, dstID string) error

	// Facts
	AddFact(ctx context.Context, f *Fact) (string, error)
	GetFact(ctx context.Context, id string) (*Fact, error)
	CurrentFacts(ctx context.Context, personID string) ([]*Fact, error)
	ListFacts(ctx context.Context, opts ListOpts) ([]*Fact, error)
	SupersedeFact(ctx context.Context, oldID, newID string) error

	// Pending review queue
	AddPending(ctx context.Context, p *PendingExtraction) (string, error)
	GetPending(ctx context.Context, id string) (*PendingExtraction, error)
	ListPending(ctx context.Context, reviewStatus string) ([]*PendingExtraction, error)
	ResolvePending(ctx context.Context, id, outcome, note string) error

	// Stories
	AddStory(ctx context.Context, s *Story) (string, error)
	GetStory(ctx context.Context, id string) (*Story, error)
	SetStoryState(ctx context.Context, id, state string) error
	MarkStoryProcessed(ctx context.Context, id, summaryJSON string) error

	// Audit trail
	LogEvent(ctx context.Context, e *ExtractionEvent) error
	ListEvents(ctx context.Context, storyID string) ([]*ExtractionEvent, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
