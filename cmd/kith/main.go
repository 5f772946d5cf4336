package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/wrenfold/kith/internal/config"
	"github.com/wrenfold/kith/internal/extract"
	"github.com/wrenfold/kith/internal/llm"
	"github.com/wrenfold/kith/internal/mcp"
	"github.com/wrenfold/kith/internal/prompt"
	"github.com/wrenfold/kith/internal/relation"
	"github.com/wrenfold/kith/internal/store"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "extract":
		err = runExtract(os.Args[2:])
	case "pending":
		err = runPending(os.Args[2:])
	case "people":
		err = runPeople(os.Args[2:])
	case "facts":
		err = runFacts(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("kith %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if lerr := llm.AsError(err); lerr != nil && lerr.Code != llm.CodeUnknown {
			if hint := lerr.Remediation(); hint != "" {
				fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
			}
		}
		os.Exit(1)
	}
}

// commonFlags holds flags shared by every subcommand.
type commonFlags struct {
	db       string
	backend  string
	strategy string
	rest     []string
}

func parseCommon(args []string) (commonFlags, error) {
	var f commonFlags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--db":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--db requires a value")
			}
			i++
			f.db = args[i]
		case "--backend":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--backend requires a value")
			}
			i++
			f.backend = args[i]
		case "--strategy":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--strategy requires a value")
			}
			i++
			f.strategy = args[i]
		default:
			f.rest = append(f.rest, args[i])
		}
	}
	return f, nil
}

func resolve(f commonFlags) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		CLIDBPath:   f.db,
		CLIBackend:  f.backend,
		CLIStrategy: f.strategy,
	})
}

func openStore(cfg config.ResolvedConfig) (store.Store, error) {
	return store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
}

func buildPipeline(s store.Store, cfg config.ResolvedConfig) *extract.Pipeline {
	opts := []extract.PipelineOption{}
	if m, h, d := cfg.QuotaInts(); m > 0 || h > 0 || d > 0 {
		opts = append(opts, extract.WithRateLimiter(llm.NewRateLimiter(llm.Quota{
			PerMinute: m, PerHour: h, PerDay: d,
		})))
	}
	if cfg.Strategy.Value != "" {
		opts = append(opts, extract.WithStrategy(prompt.Strategy(cfg.Strategy.Value)))
	}
	return extract.NewPipeline(s, opts...)
}

func credentials(cfg config.ResolvedConfig) (extract.Credentials, error) {
	backend := cfg.Backend.Value
	key := cfg.APIKeyForProvider(backend)
	if key.Value == "" {
		return extract.Credentials{}, fmt.Errorf(
			"no API key configured; set GEMINI_API_KEY or OPENROUTER_API_KEY, or add llm.api_key to %s",
			cfg.ConfigPath)
	}
	return extract.Credentials{Backend: backend, APIKey: key.Value}, nil
}

func runExtract(args []string) error {
	f, err := parseCommon(args)
	if err != nil {
		return err
	}

	var conf extract.Confirmations
	rest := f.rest[:0]
	for i := 0; i < len(f.rest); i++ {
		switch f.rest[i] {
		case "--confirm-present":
			if i+1 >= len(f.rest) {
				return fmt.Errorf("--confirm-present requires a name")
			}
			i++
			conf.Present = append(conf.Present, f.rest[i])
		case "--confirm-new":
			if i+1 >= len(f.rest) {
				return fmt.Errorf("--confirm-new requires a name")
			}
			i++
			conf.New = append(conf.New, f.rest[i])
		default:
			rest = append(rest, f.rest[i])
		}
	}

	var story string
	switch {
	case len(rest) > 0 && rest[0] == "--file":
		if len(rest) < 2 {
			return fmt.Errorf("--file requires a path")
		}
		data, err := os.ReadFile(rest[1])
		if err != nil {
			return fmt.Errorf("reading story file: %w", err)
		}
		story = string(data)
	case len(rest) > 0:
		story = strings.Join(rest, " ")
	default:
		return fmt.Errorf("usage: kith extract <story text> | kith extract --file <path>")
	}

	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	creds, err := credentials(cfg)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	pipeline := buildPipeline(s, cfg)
	summary, err := pipeline.ExtractStory(context.Background(), story, creds,
		extract.WithConfirmations(conf))
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func printSummary(summary *extract.Summary) {
	fmt.Printf("Story %s processed in %s (%d tokens)\n",
		summary.StoryID, summary.ProcessingTime.Round(10*time.Millisecond), summary.TokensUsed)
	if len(summary.NewPeople) > 0 {
		fmt.Printf("New people: %s\n", strings.Join(summary.NewPeople, ", "))
	}
	fmt.Printf("Facts: %d accepted, %d pending review, %d rejected",
		summary.AutoAccepted, summary.PendingReview, summary.Rejected)
	if summary.Superseded > 0 {
		fmt.Printf(", %d superseded", summary.Superseded)
	}
	fmt.Println()
	for _, c := range summary.Conflicts {
		fmt.Printf("Conflict (%s, %s): %s\n", c.Type, c.Severity, c.Description)
	}
	if len(summary.AmbiguousNames) > 0 {
		fmt.Printf("Ambiguous names needing confirmation: %s\n",
			strings.Join(summary.AmbiguousNames, ", "))
		fmt.Println("Re-run with --confirm-present <name> or --confirm-new <name> to resolve them.")
	}
	for _, w := range summary.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}

func runPending(args []string) error {
	f, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	reviewer := extract.NewReviewer(s)

	if len(f.rest) == 0 || f.rest[0] == "list" {
		pending, err := s.ListPending(ctx, store.ReviewPending)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("Nothing waiting for review.")
			return nil
		}
		for _, p := range pending {
			fmt.Printf("%s  %s %s %q (confidence %.2f)\n", p.ID, p.PersonName, p.RelationType, p.ObjectLabel, p.Confidence)
			fmt.Printf("    %s\n", p.Reason)
		}
		return nil
	}

	switch f.rest[0] {
	case "approve":
		if len(f.rest) < 2 {
			return fmt.Errorf("usage: kith pending approve <id> [note]")
		}
		factID, err := reviewer.Approve(ctx, f.rest[1], noteFrom(f.rest[2:]))
		if err != nil {
			return err
		}
		fmt.Printf("Approved; stored as fact %s\n", factID)
		return nil
	case "reject":
		if len(f.rest) < 2 {
			return fmt.Errorf("usage: kith pending reject <id> [note]")
		}
		if err := reviewer.Reject(ctx, f.rest[1], noteFrom(f.rest[2:])); err != nil {
			return err
		}
		fmt.Println("Rejected.")
		return nil
	case "edit":
		return runPendingEdit(ctx, reviewer, f.rest[1:])
	default:
		return fmt.Errorf("unknown pending subcommand: %s (expected list, approve, reject, edit)", f.rest[0])
	}
}

func runPendingEdit(ctx context.Context, reviewer *extract.Reviewer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kith pending edit <id> [--type TYPE] [--object LABEL] [--intensity LEVEL] [--category CAT]")
	}
	id := args[0]
	var edit extract.Edit
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--type":
			if i+1 >= len(args) {
				return fmt.Errorf("--type requires a value")
			}
			i++
			edit.RelationType = relation.Type(args[i])
		case "--object":
			if i+1 >= len(args) {
				return fmt.Errorf("--object requires a value")
			}
			i++
			edit.ObjectLabel = args[i]
		case "--intensity":
			if i+1 >= len(args) {
				return fmt.Errorf("--intensity requires a value")
			}
			i++
			edit.Intensity = relation.Intensity(args[i])
		case "--category":
			if i+1 >= len(args) {
				return fmt.Errorf("--category requires a value")
			}
			i++
			edit.Category = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	factID, err := reviewer.EditAndApprove(ctx, id, "edited via cli", edit)
	if err != nil {
		return err
	}
	fmt.Printf("Edited and approved; stored as fact %s\n", factID)
	return nil
}

func noteFrom(rest []string) string {
	return strings.Join(rest, " ")
}

func runPeople(args []string) error {
	f, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	people, err := s.ListPeople(context.Background())
	if err != nil {
		return err
	}
	if len(people) == 0 {
		fmt.Println("No people yet. Feed some stories with `kith extract`.")
		return nil
	}
	for _, p := range people {
		line := fmt.Sprintf("%s  %s", p.ID, p.Name)
		if p.Nickname != "" && !strings.EqualFold(p.Nickname, p.Name) {
			line += fmt.Sprintf(" (%s)", p.Nickname)
		}
		fmt.Printf("%s — %d mentions\n", line, p.MentionCount)
	}
	return nil
}

func runFacts(args []string) error {
	f, err := parseCommon(args)
	if err != nil {
		return err
	}
	if len(f.rest) == 0 {
		return fmt.Errorf("usage: kith facts <person-id> [--all]")
	}
	personID := f.rest[0]
	showAll := len(f.rest) > 1 && f.rest[1] == "--all"

	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	person, err := s.GetPerson(ctx, personID)
	if err != nil {
		return err
	}
	if person == nil {
		return fmt.Errorf("person %s not found", personID)
	}

	var facts []*store.Fact
	if showAll {
		facts, err = s.ListFacts(ctx, store.ListOpts{PersonID: personID})
	} else {
		facts, err = s.CurrentFacts(ctx, personID)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s:\n", person.Name)
	if len(facts) == 0 {
		fmt.Println("  no facts")
		return nil
	}
	for _, fact := range facts {
		line := fmt.Sprintf("  %s %q", fact.RelationType, fact.ObjectLabel)
		if fact.Intensity != "" {
			line += fmt.Sprintf(" [%s]", fact.Intensity)
		}
		if fact.Status != relation.StatusCurrent {
			line += fmt.Sprintf(" (%s)", fact.Status)
		}
		fmt.Printf("%s — confidence %.2f\n", line, fact.Confidence)
	}
	return nil
}

func runStats(args []string) error {
	f, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("People:          %d\n", stats.PeopleCount)
	fmt.Printf("Facts:           %d\n", stats.FactCount)
	fmt.Printf("Pending review:  %d\n", stats.PendingCount)
	fmt.Printf("Stories:         %d (%d processed)\n", stats.StoryCount, stats.ProcessedCount)
	fmt.Printf("Audit events:    %d\n", stats.EventCount)
	if stats.DBSizeBytes > 0 {
		fmt.Printf("Database size:   %.1f KB\n", float64(stats.DBSizeBytes)/1024)
	}
	if len(stats.FactsByType) > 0 {
		fmt.Println("Facts by type:")
		types := make([]string, 0, len(stats.FactsByType))
		for t := range stats.FactsByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("  %-20s %d\n", t, stats.FactsByType[t])
		}
	}
	return nil
}

func runServe(args []string) error {
	f, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	pipeline := buildPipeline(s, cfg)
	srv := mcp.NewServer(mcp.ServerConfig{
		Store:    s,
		Pipeline: pipeline,
		Credentials: func() (extract.Credentials, error) {
			return credentials(cfg)
		},
		Version: version,
	})

	fmt.Fprintln(os.Stderr, "kith MCP server listening on stdio")
	return mcpserver.ServeStdio(srv)
}

func runConfig(args []string) error {
	f, err := parseCommon(args)
	if err != nil {
		return err
	}
	cfg, err := resolve(f)
	if err != nil {
		return err
	}

	// API keys are deliberately excluded from this output; only their
	// sources are shown.
	view := map[string]any{
		"config_path":      cfg.ConfigPath,
		"db_path":          cfg.DBPath,
		"backend":          cfg.Backend,
		"strategy":         cfg.Strategy,
		"quota_per_minute": cfg.QuotaPerMinute,
		"quota_per_hour":   cfg.QuotaPerHour,
		"quota_per_day":    cfg.QuotaPerDay,
	}
	keySources := map[string]string{}
	for provider, key := range cfg.APIKeys {
		keySources[provider] = string(key.Source) + ":" + key.From
	}
	if len(keySources) > 0 {
		view["api_key_sources"] = keySources
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	fmt.Println(`kith — a relationship journal with AI extraction

Usage:
  kith extract <story text>        Process a journal entry
  kith extract --file <path>       Process a journal entry from a file
    --confirm-present <name>       Confirm an ambiguous name is a known person
    --confirm-new <name>           Confirm an ambiguous name is a new person
  kith pending [list]              Show extractions waiting for review
  kith pending approve <id> [note] Approve a pending extraction
  kith pending reject <id> [note]  Reject a pending extraction
  kith pending edit <id> [flags]   Correct and approve a pending extraction
  kith people                      List everyone in the journal
  kith facts <person-id> [--all]   Show a person's facts (--all includes history)
  kith stats                       Journal statistics
  kith serve                       Run the MCP server on stdio
  kith config                      Show resolved configuration and sources
  kith version                     Print version

Common flags:
  --db <path>         Database path (default ~/.kith/kith.db)
  --backend <p/m>     LLM backend, e.g. google/gemini-2.5-flash
  --strategy <name>   Prompt strategy: concise or detailed

Environment:
  KITH_DB, KITH_BACKEND, KITH_STRATEGY
  GEMINI_API_KEY, OPENROUTER_API_KEY
  KITH_QUOTA_PER_MINUTE, KITH_QUOTA_PER_HOUR, KITH_QUOTA_PER_DAY`)
}
