// Package mcp provides a Model Context Protocol server for kith.
//
// It exposes the journal's extraction pipeline, review queue, roster,
// and statistics as MCP tools over stdio, so an agent can feed stories
// in and work the pending queue.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wrenfold/kith/internal/extract"
	"github.com/wrenfold/kith/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store    store.Store
	Pipeline *extract.Pipeline
	// Credentials resolves the API key for extraction calls. Keys stay
	// server-side; clients never pass or see them.
	Credentials func() (extract.Credentials, error)
	Version     string
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines.
// SQLite (even with WAL) supports only one writer at a time, and
// concurrent reads during writes can return stale results. A global
// mutex ensures an extraction's facts are visible before the next tool
// call reads them.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all kith tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Kith",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerExtractTool(s, cfg)
	registerPendingTool(s, cfg.Store)
	registerApproveTool(s, cfg.Store)
	registerRejectTool(s, cfg.Store)
	registerPeopleTool(s, cfg.Store)
	registerFactsTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	registerPendingResource(s, cfg.Store)

	return s
}

// --- Tools ---

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func registerExtractTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("kith_extract",
		mcp.WithDescription("Extract people and relationship facts from a journal story. The story is saved first, then processed; high-confidence facts are stored, uncertain ones go to the review queue."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("story",
			mcp.Required(),
			mcp.Description("The free-text journal entry to process"),
		),
		mcp.WithString("confirmed_present",
			mcp.Description("Comma-separated names the user confirmed are known people, from a previous run's ambiguousNames"),
		),
		mcp.WithString("confirmed_new",
			mcp.Description("Comma-separated names the user confirmed are new people"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		story, err := req.RequireString("story")
		if err != nil || strings.TrimSpace(story) == "" {
			return mcp.NewToolResultError("story is required"), nil
		}

		creds, err := cfg.Credentials()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("credentials: %v", err)), nil
		}

		var conf extract.Confirmations
		if v, err := req.RequireString("confirmed_present"); err == nil {
			conf.Present = splitNames(v)
		}
		if v, err := req.RequireString("confirmed_new"); err == nil {
			conf.New = splitNames(v)
		}

		summary, err := cfg.Pipeline.ExtractStory(ctx, story, creds,
			extract.WithConfirmations(conf))
		if err != nil {
			if errors.Is(err, extract.ErrStoryProcessed) {
				return mcp.NewToolResultError("story is already processed"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", err)), nil
		}

		data, _ := json.MarshalIndent(summary, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerPendingTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("kith_pending",
		mcp.WithDescription("List extractions waiting for human review, each with the reason it was queued."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		pending, err := st.ListPending(ctx, store.ReviewPending)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing pending: %v", err)), nil
		}

		data, _ := json.MarshalIndent(pendingView(pending), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerApproveTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("kith_approve",
		mcp.WithDescription("Approve a pending extraction, promoting it to a stored fact with full confidence."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The pending extraction id"),
		),
		mcp.WithString("note",
			mcp.Description("Optional review note"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		note := ""
		if n, err := req.RequireString("note"); err == nil {
			note = n
		}

		reviewer := extract.NewReviewer(st)
		factID, err := reviewer.Approve(ctx, id, note)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("approve failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(`{"factId": %q}`, factID)), nil
	})
}

func registerRejectTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("kith_reject",
		mcp.WithDescription("Reject a pending extraction. No fact is created; the record stays as review history."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The pending extraction id"),
		),
		mcp.WithString("note",
			mcp.Description("Optional review note"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		note := ""
		if n, err := req.RequireString("note"); err == nil {
			note = n
		}

		reviewer := extract.NewReviewer(st)
		if err := reviewer.Reject(ctx, id, note); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reject failed: %v", err)), nil
		}
		return mcp.NewToolResultText(`{"rejected": true}`), nil
	})
}

func registerPeopleTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("kith_people",
		mcp.WithDescription("List the active roster: everyone mentioned across the user's stories, with mention counts."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		people, err := st.ListPeople(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing people: %v", err)), nil
		}

		data, _ := json.MarshalIndent(peopleView(people), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerFactsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("kith_facts",
		mcp.WithDescription("List a person's current facts. Superseded history is excluded."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("person_id",
			mcp.Required(),
			mcp.Description("The person id"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		personID, err := req.RequireString("person_id")
		if err != nil {
			return mcp.NewToolResultError("person_id is required"), nil
		}

		facts, err := st.CurrentFacts(ctx, personID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing facts: %v", err)), nil
		}

		data, _ := json.MarshalIndent(factsView(facts), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("kith_stats",
		mcp.WithDescription("Journal statistics: people, facts, pending reviews, stories, and fact breakdown by relation type."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("getting stats: %v", err)), nil
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerPendingResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"kith://pending",
		"Pending Reviews",
		mcp.WithResourceDescription("All extractions currently waiting for human review."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		pending, err := st.ListPending(ctx, store.ReviewPending)
		if err != nil {
			return nil, fmt.Errorf("listing pending: %w", err)
		}

		data, _ := json.MarshalIndent(pendingView(pending), "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// --- Views ---

type pendingEntry struct {
	ID           string  `json:"id"`
	PersonName   string  `json:"personName"`
	RelationType string  `json:"relationType"`
	ObjectLabel  string  `json:"objectLabel"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}

func pendingView(pending []*store.PendingExtraction) []pendingEntry {
	out := make([]pendingEntry, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingEntry{
			ID:           p.ID,
			PersonName:   p.PersonName,
			RelationType: string(p.RelationType),
			ObjectLabel:  p.ObjectLabel,
			Confidence:   p.Confidence,
			Reason:       p.Reason,
		})
	}
	return out
}

type personEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Nickname     string `json:"nickname,omitempty"`
	Role         string `json:"role"`
	MentionCount int    `json:"mentionCount"`
}

func peopleView(people []*store.Person) []personEntry {
	out := make([]personEntry, 0, len(people))
	for _, p := range people {
		out = append(out, personEntry{
			ID:           p.ID,
			Name:         p.Name,
			Nickname:     p.Nickname,
			Role:         p.Role,
			MentionCount: p.MentionCount,
		})
	}
	return out
}

type factEntry struct {
	ID           string  `json:"id"`
	RelationType string  `json:"relationType"`
	ObjectLabel  string  `json:"objectLabel"`
	Intensity    string  `json:"intensity,omitempty"`
	Category     string  `json:"category,omitempty"`
	Confidence   float64 `json:"confidence"`
}

func factsView(facts []*store.Fact) []factEntry {
	out := make([]factEntry, 0, len(facts))
	for _, f := range facts {
		out = append(out, factEntry{
			ID:           f.ID,
			RelationType: string(f.RelationType),
			ObjectLabel:  f.ObjectLabel,
			Intensity:    string(f.Intensity),
			Category:     f.Category,
			Confidence:   f.Confidence,
		})
	}
	return out
}
