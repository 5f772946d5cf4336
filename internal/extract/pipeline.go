package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wrenfold/kith/internal/llm"
	"github.com/wrenfold/kith/internal/prompt"
	"github.com/wrenfold/kith/internal/relation"
	"github.com/wrenfold/kith/internal/store"
)

// ErrStoryProcessed is returned when extraction is requested for a story
// that already reached its terminal state.
var ErrStoryProcessed = errors.New("story is already processed")

const (
	rosterCacheKey = "roster"
	rosterCacheTTL = 5 * time.Minute

	extractionMaxTokens = 4096
)

// Credentials carries the API key for one extraction call. Keys are held
// only for the duration of the call; they are never logged or persisted.
type Credentials struct {
	Backend string // "provider" or "provider/model"
	APIKey  string
}

// Confirmations carries the user's identity answers from an earlier run
// that surfaced ambiguous names. Confirmed names skip the conservative
// no-auto-link rule on the next pass.
type Confirmations struct {
	// Present names the user confirmed refer to someone already on the
	// roster.
	Present []string
	// New names the user confirmed are new people, never roster matches.
	New []string
}

// RunOption configures a single extraction run.
type RunOption func(*runOpts)

type runOpts struct {
	confirmed Confirmations
}

// WithConfirmations supplies the user's answers to a previous run's
// ambiguous names.
func WithConfirmations(c Confirmations) RunOption {
	return func(o *runOpts) { o.confirmed = c }
}

// Summary reports what one extraction produced.
type Summary struct {
	StoryID        string        `json:"storyId"`
	NewPeople      []string      `json:"newPeople"`
	AutoAccepted   int           `json:"autoAccepted"`
	PendingReview  int           `json:"pendingReview"`
	Rejected       int           `json:"rejected"`
	Superseded     int           `json:"superseded"`
	Conflicts      []Conflict    `json:"-"`
	ConflictCount  int           `json:"conflicts"`
	AmbiguousNames []string      `json:"ambiguousNames"`
	TokensUsed     int           `json:"tokensUsed"`
	ProcessingTime time.Duration `json:"-"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// Pipeline runs the full story extraction flow.
type Pipeline struct {
	store       store.Store
	limiter     *llm.RateLimiter
	providerFor func(llm.Config) (llm.Provider, error)
	cache       *gocache.Cache
	strategy    prompt.Strategy
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRateLimiter sets the process-wide rate limiter applied to model calls.
func WithRateLimiter(l *llm.RateLimiter) PipelineOption {
	return func(p *Pipeline) { p.limiter = l }
}

// WithStrategy sets the prompt strategy.
func WithStrategy(s prompt.Strategy) PipelineOption {
	return func(p *Pipeline) { p.strategy = s }
}

// WithProviderFactory overrides provider construction (testing).
func WithProviderFactory(f func(llm.Config) (llm.Provider, error)) PipelineOption {
	return func(p *Pipeline) { p.providerFor = f }
}

// NewPipeline creates a Pipeline backed by s.
func NewPipeline(s store.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:       s,
		providerFor: llm.NewProvider,
		cache:       gocache.New(rosterCacheTTL, 10*time.Minute),
		strategy:    prompt.StrategyConcise,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExtractStory persists a new story and runs extraction on it. The story
// is saved before any model call so the text survives a failed run.
func (p *Pipeline) ExtractStory(ctx context.Context, content string, creds Credentials, opts ...RunOption) (*Summary, error) {
	st := &store.Story{Content: content}
	storyID, err := p.store.AddStory(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("saving story: %w", err)
	}
	return p.ProcessStory(ctx, storyID, creds, opts...)
}

// ProcessStory runs extraction on a previously saved story.
func (p *Pipeline) ProcessStory(ctx context.Context, storyID string, creds Credentials, opts ...RunOption) (*Summary, error) {
	st, err := p.store.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("story %s not found", storyID)
	}
	if st.State == store.StoryProcessed {
		return nil, fmt.Errorf("story %s: %w", storyID, ErrStoryProcessed)
	}

	var ro runOpts
	for _, opt := range opts {
		opt(&ro)
	}

	started := time.Now()
	summary, err := p.process(ctx, st, creds, ro.confirmed)
	if err != nil {
		// A failed run leaves the story ready for a clean retry.
		if resetErr := p.resetStory(ctx, storyID); resetErr != nil {
			return nil, fmt.Errorf("%w (and resetting story state failed: %v)", err, resetErr)
		}
		return nil, err
	}
	summary.StoryID = storyID
	summary.ProcessingTime = time.Since(started)

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	if err := p.store.MarkStoryProcessed(ctx, storyID, string(summaryJSON)); err != nil {
		return nil, err
	}
	return summary, nil
}

func (p *Pipeline) resetStory(ctx context.Context, storyID string) error {
	st, err := p.store.GetStory(ctx, storyID)
	if err != nil {
		return err
	}
	if st == nil || st.State == store.StoryUnprocessed {
		return nil
	}
	return p.store.SetStoryState(ctx, storyID, store.StoryUnprocessed)
}

func (p *Pipeline) process(ctx context.Context, st *store.Story, creds Credentials, conf Confirmations) (*Summary, error) {
	if err := p.store.SetStoryState(ctx, st.ID, store.StoryExtracting); err != nil {
		return nil, err
	}

	roster, err := p.roster(ctx)
	if err != nil {
		return nil, err
	}
	knownFacts, err := p.knownFacts(ctx, roster)
	if err != nil {
		return nil, err
	}

	promptText, err := prompt.Build(prompt.Input{
		Story:            st.Content,
		Roster:           rosterForPrompt(roster),
		KnownFacts:       knownFacts,
		ConfirmedPresent: conf.Present,
		ConfirmedNew:     conf.New,
		Strategy:         p.strategy,
	})
	if err != nil {
		return nil, err
	}

	raw, tokens, err := p.complete(ctx, promptText, creds)
	if err != nil {
		return nil, err
	}

	if err := p.store.SetStoryState(ctx, st.ID, store.StoryParsing); err != nil {
		return nil, err
	}
	resp, warnings, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	if err := p.store.SetStoryState(ctx, st.ID, store.StoryResolving); err != nil {
		return nil, err
	}
	summary := &Summary{Warnings: warnings, TokensUsed: tokens}
	// Local detection is authoritative; conflicts the model itself
	// noticed are surfaced as context for the reviewer.
	for _, c := range resp.Conflicts {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("model flagged a conflict for %s: %s", c.PersonName, c.Description))
	}
	personIDs, err := p.resolvePeople(ctx, st.ID, resp, roster, conf, summary)
	if err != nil {
		return nil, err
	}

	if err := p.store.SetStoryState(ctx, st.ID, store.StoryRouting); err != nil {
		return nil, err
	}
	if err := p.routeRelations(ctx, st.ID, resp, personIDs, summary); err != nil {
		return nil, err
	}
	summary.ConflictCount = len(summary.Conflicts)

	return summary, nil
}

// complete builds the provider for this call's credentials and runs the
// prompt through the retrying gateway.
func (p *Pipeline) complete(ctx context.Context, promptText string, creds Credentials) (string, int, error) {
	cfg, err := llm.ParseBackendFlag(creds.Backend)
	if err != nil {
		return "", 0, err
	}
	cfg.APIKey = creds.APIKey
	provider, err := p.providerFor(cfg)
	if err != nil {
		return "", 0, err
	}

	var opts []llm.GatewayOption
	if p.limiter != nil {
		opts = append(opts, llm.WithRateLimiter(p.limiter))
	}
	gw := llm.NewGateway(provider, opts...)

	comp, err := gw.Complete(ctx, promptText, llm.CompletionOpts{
		MaxTokens: extractionMaxTokens,
		Format:    "json",
	})
	if err != nil {
		return "", 0, err
	}
	return comp.Text, comp.TokensUsed, nil
}

// roster returns the active roster, cached briefly to keep repeated
// extractions from re-reading the people table.
func (p *Pipeline) roster(ctx context.Context) ([]*store.Person, error) {
	if cached, ok := p.cache.Get(rosterCacheKey); ok {
		return cached.([]*store.Person), nil
	}
	roster, err := p.store.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	p.cache.Set(rosterCacheKey, roster, rosterCacheTTL)
	return roster, nil
}

func (p *Pipeline) invalidateRoster() {
	p.cache.Delete(rosterCacheKey)
}

func (p *Pipeline) knownFacts(ctx context.Context, roster []*store.Person) ([]prompt.KnownFact, error) {
	var out []prompt.KnownFact
	for _, person := range roster {
		facts, err := p.store.CurrentFacts(ctx, person.ID)
		if err != nil {
			return nil, fmt.Errorf("loading facts for %s: %w", person.Name, err)
		}
		for _, f := range facts {
			out = append(out, prompt.KnownFact{
				PersonName:   person.Name,
				RelationType: f.RelationType,
				ObjectLabel:  f.ObjectLabel,
			})
		}
	}
	return out, nil
}

// resolvePeople reconciles mentioned people against the roster and
// returns a name -> person id map for the relations pass. Ambiguous
// names get no id; their relations go to review. Each distinct name is
// resolved once, so a model that repeats a person cannot create
// duplicate roster rows or double-count mentions.
func (p *Pipeline) resolvePeople(ctx context.Context, storyID string, resp *Response, roster []*store.Person, conf Confirmations, summary *Summary) (map[string]string, error) {
	personIDs := make(map[string]string)
	resolved := make(map[string]string) // folded name -> person id ("" when unlinked)

	for _, mention := range resp.People {
		key := strings.ToLower(strings.TrimSpace(mention.Name))
		if id, done := resolved[key]; done {
			if id != "" {
				personIDs[mention.Name] = id
			}
			continue
		}

		res := ResolveName(mention.Name, roster, conf.Present, conf.New)
		resolved[key] = res.PersonID

		switch {
		case res.PersonID != "":
			personIDs[mention.Name] = res.PersonID
			if err := p.store.IncrementMentions(ctx, res.PersonID); err != nil {
				return nil, err
			}

		case res.Ambiguous:
			summary.AmbiguousNames = append(summary.AmbiguousNames, mention.Name)

		case res.IsNew:
			role := mention.PersonType
			if role == "" {
				role = "mentioned"
			}
			newPerson := &store.Person{
				Name:         mention.Name,
				Role:         role,
				MentionCount: 1,
			}
			id, err := p.store.AddPerson(ctx, newPerson)
			if err != nil {
				return nil, fmt.Errorf("creating person %s: %w", mention.Name, err)
			}
			personIDs[mention.Name] = id
			resolved[key] = id
			summary.NewPeople = append(summary.NewPeople, mention.Name)
			p.invalidateRoster()

			detail := ""
			if dup := FlagDuplicate(mention.Name, roster); dup != "" {
				detail = fmt.Sprintf("potential duplicate of %s", dup)
			}
			if err := p.store.LogEvent(ctx, &store.ExtractionEvent{
				StoryID:   storyID,
				EventType: store.EventPersonCreated,
				PersonID:  id,
				Detail:    detail,
			}); err != nil {
				return nil, err
			}
		}
	}

	// Names the model itself flagged as ambiguous also stay unlinked,
	// unless the people pass already settled them.
	for _, m := range resp.AmbiguousMatches {
		key := strings.ToLower(strings.TrimSpace(m.NameInStory))
		if _, done := resolved[key]; done {
			continue
		}
		resolved[key] = ""
		summary.AmbiguousNames = append(summary.AmbiguousNames, m.NameInStory)
	}

	return personIDs, nil
}

// routeRelations detects conflicts and applies the routing decision for
// every extracted relation.
func (p *Pipeline) routeRelations(ctx context.Context, storyID string, resp *Response, personIDs map[string]string, summary *Summary) error {
	for _, m := range resp.Relations {
		personID := personIDs[m.SubjectName]

		var conflicts []Conflict
		if personID != "" {
			existing, err := p.store.CurrentFacts(ctx, personID)
			if err != nil {
				return err
			}
			conflicts = DetectConflicts(m, existing)
			summary.Conflicts = append(summary.Conflicts, conflicts...)
		}

		decision := Route(m, conflicts)

		// Relations for an unresolved subject can never be accepted;
		// there is no person to attach them to.
		if personID == "" && decision.Fate == FateAccept {
			decision = Decision{
				Fate:   FateReview,
				Reason: fmt.Sprintf("subject %q is not linked to a person", m.SubjectName),
			}
		}

		switch decision.Fate {
		case FateAccept:
			if err := p.acceptFact(ctx, storyID, personID, m, decision, summary); err != nil {
				return err
			}
		case FateReview:
			if err := p.queueForReview(ctx, storyID, personID, m, decision.Reason, summary); err != nil {
				return err
			}
		case FateReject:
			summary.Rejected++
			if err := p.store.LogEvent(ctx, &store.ExtractionEvent{
				StoryID:   storyID,
				EventType: store.EventFactRejected,
				PersonID:  personID,
				Detail:    decision.Reason,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) acceptFact(ctx context.Context, storyID, personID string, m RelationMention, decision Decision, summary *Summary) error {
	factID, err := p.store.AddFact(ctx, &store.Fact{
		PersonID:     personID,
		RelationType: m.RelationType,
		ObjectLabel:  m.ObjectLabel,
		ObjectType:   m.ObjectType,
		Intensity:    m.Intensity,
		Category:     m.Category,
		Confidence:   m.Confidence,
		Status:       m.Status,
		Source:       relation.SourceAIExtraction,
		StoryID:      storyID,
	})
	if err != nil {
		return fmt.Errorf("saving fact: %w", err)
	}
	summary.AutoAccepted++

	if err := p.store.LogEvent(ctx, &store.ExtractionEvent{
		StoryID:   storyID,
		EventType: store.EventFactAccepted,
		PersonID:  personID,
		FactID:    factID,
		Detail:    decision.Reason,
	}); err != nil {
		return err
	}

	if decision.SupersedesFactID != "" {
		if err := p.store.SupersedeFact(ctx, decision.SupersedesFactID, factID); err != nil {
			return err
		}
		summary.Superseded++
		if err := p.store.LogEvent(ctx, &store.ExtractionEvent{
			StoryID:   storyID,
			EventType: store.EventFactSuperseded,
			PersonID:  personID,
			FactID:    decision.SupersedesFactID,
			Detail:    fmt.Sprintf("superseded by %s", factID),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) queueForReview(ctx context.Context, storyID, personID string, m RelationMention, reason string, summary *Summary) error {
	pendingID, err := p.store.AddPending(ctx, &store.PendingExtraction{
		PersonID:     personID,
		PersonName:   m.SubjectName,
		RelationType: m.RelationType,
		ObjectLabel:  m.ObjectLabel,
		ObjectType:   m.ObjectType,
		Intensity:    m.Intensity,
		Category:     m.Category,
		Confidence:   m.Confidence,
		Status:       m.Status,
		StoryID:      storyID,
		Reason:       reason,
	})
	if err != nil {
		return fmt.Errorf("queueing for review: %w", err)
	}
	summary.PendingReview++

	return p.store.LogEvent(ctx, &store.ExtractionEvent{
		StoryID:   storyID,
		EventType: store.EventFactQueued,
		PersonID:  personID,
		PendingID: pendingID,
		Detail:    reason,
	})
}

func rosterForPrompt(roster []*store.Person) []prompt.Person {
	out := make([]prompt.Person, 0, len(roster))
	for _, p := range roster {
		out = append(out, prompt.Person{ID: p.ID, Name: p.Name})
	}
	return out
}
