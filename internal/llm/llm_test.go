package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseBackendFlag(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantProv string
		wantMod  string
		wantErr  bool
	}{
		{"empty defaults to google", "", "google", "gemini-2.5-flash", false},
		{"bare google gets default model", "google", "google", "gemini-2.5-flash", false},
		{"bare openrouter gets default model", "openrouter", "openrouter", "openai/gpt-4o-mini", false},
		{"google flash", "google/gemini-2.5-flash", "google", "gemini-2.5-flash", false},
		{"openrouter nested model", "openrouter/openai/gpt-4o-mini", "openrouter", "openai/gpt-4o-mini", false},
		{"unknown provider", "anthropic/claude-4", "", "", true},
		{"bare model is not a provider", "gemini-2.5-flash", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseBackendFlag(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Provider != tt.wantProv {
				t.Errorf("provider: got %q, want %q", cfg.Provider, tt.wantProv)
			}
			if cfg.Model != tt.wantMod {
				t.Errorf("model: got %q, want %q", cfg.Model, tt.wantMod)
			}
		})
	}
}

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(Config{Provider: "google"})
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	ce := AsError(err)
	if ce.Code != CodeInvalidCredentials {
		t.Errorf("code: got %q, want %q", ce.Code, CodeInvalidCredentials)
	}

	_, err = NewProvider(Config{Provider: "unknown", APIKey: "k"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  Code
		transient bool
	}{
		{"unauthorized", 401, "invalid key", CodeInvalidCredentials, false},
		{"forbidden", 403, "forbidden", CodeInvalidCredentials, false},
		{"payment required", 402, "add credits", CodeQuotaExceeded, false},
		{"throttled", 429, "slow down", CodeRateLimited, true},
		{"quota via 429", 429, "you have exceeded your current quota", CodeQuotaExceeded, false},
		{"server error", 500, "boom", CodeServerError, true},
		{"bad gateway", 502, "bad gateway", CodeServerError, true},
		{"safety block", 400, "blocked for safety reasons", CodeContentPolicy, false},
		{"plain 400", 400, "bad request", CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := classifyHTTP("test/model", tt.status, tt.body, 0)
			if e.Code != tt.wantCode {
				t.Errorf("code: got %q, want %q", e.Code, tt.wantCode)
			}
			if e.Retryable() != tt.transient {
				t.Errorf("retryable: got %v, want %v", e.Retryable(), tt.transient)
			}
		})
	}
}

func TestClassifyTransport(t *testing.T) {
	e := classifyTransport("test/model", context.DeadlineExceeded)
	if e.Code != CodeTimeout || !e.Retryable() {
		t.Errorf("deadline: got %q retryable=%v", e.Code, e.Retryable())
	}

	e = classifyTransport("test/model", errors.New("connection refused"))
	if e.Code != CodeNetworkError || !e.Retryable() {
		t.Errorf("network: got %q retryable=%v", e.Code, e.Retryable())
	}
}

// fakeProvider scripts a sequence of results for gateway tests.
type fakeProvider struct {
	calls   int
	results []fakeResult
}

type fakeResult struct {
	text string
	err  error
}

func (f *fakeProvider) Name() string { return "fake/model" }

func (f *fakeProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (*Completion, error) {
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	r := f.results[i]
	if r.err != nil {
		return nil, r.err
	}
	return &Completion{Text: r.text, TokensUsed: 10}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestGatewayRetriesTransient(t *testing.T) {
	p := &fakeProvider{results: []fakeResult{
		{err: &Error{Code: CodeServerError, Transient: true}},
		{err: &Error{Code: CodeRateLimited, Transient: true}},
		{text: "ok"},
	}}
	g := NewGateway(p)
	g.sleep = noSleep

	resp, err := g.Complete(context.Background(), "hi", CompletionOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("text: got %q", resp.Text)
	}
	if p.calls != 3 {
		t.Errorf("calls: got %d, want 3", p.calls)
	}
}

func TestGatewayDoesNotRetryTerminal(t *testing.T) {
	for _, code := range []Code{CodeInvalidCredentials, CodeQuotaExceeded, CodeContentPolicy} {
		p := &fakeProvider{results: []fakeResult{
			{err: &Error{Code: code}},
			{text: "should never be reached"},
		}}
		g := NewGateway(p)
		g.sleep = noSleep

		_, err := g.Complete(context.Background(), "hi", CompletionOpts{})
		if err == nil {
			t.Fatalf("%s: expected error", code)
		}
		if AsError(err).Code != code {
			t.Errorf("%s: got %q", code, AsError(err).Code)
		}
		if p.calls != 1 {
			t.Errorf("%s: calls: got %d, want 1", code, p.calls)
		}
	}
}

func TestGatewayExhaustsAttempts(t *testing.T) {
	p := &fakeProvider{results: []fakeResult{
		{err: &Error{Code: CodeServerError, Transient: true}},
	}}
	g := NewGateway(p, WithMaxAttempts(3))
	g.sleep = noSleep

	_, err := g.Complete(context.Background(), "hi", CompletionOpts{})
	if err == nil {
		t.Fatal("expected error")
	}
	if AsError(err).Code != CodeServerError {
		t.Errorf("code: got %q", AsError(err).Code)
	}
	if p.calls != 3 {
		t.Errorf("calls: got %d, want 3", p.calls)
	}
}

func TestGatewayHonorsRateLimiter(t *testing.T) {
	lim := NewRateLimiter(Quota{PerMinute: 1})
	p := &fakeProvider{results: []fakeResult{{text: "ok"}}}
	g := NewGateway(p, WithRateLimiter(lim))
	g.sleep = noSleep

	if _, err := g.Complete(context.Background(), "first", CompletionOpts{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	_, err := g.Complete(context.Background(), "second", CompletionOpts{})
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	ce := AsError(err)
	if ce.Code != CodeRateLimited {
		t.Errorf("code: got %q", ce.Code)
	}
	if ce.Retryable() {
		t.Error("local rate limit refusal must not be retryable")
	}
	if p.calls != 1 {
		t.Errorf("provider must not be called on refusal: calls=%d", p.calls)
	}
}

func TestRateLimiterWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lim := NewRateLimiter(Quota{PerMinute: 2, PerHour: 3})
	lim.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if err := lim.Reserve(); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}
	if err := lim.Reserve(); err == nil {
		t.Fatal("expected per-minute refusal")
	}

	// Minute window slides past; hour ceiling still has room for one.
	now = now.Add(2 * time.Minute)
	if err := lim.Reserve(); err != nil {
		t.Fatalf("after minute slide: %v", err)
	}
	if err := lim.Reserve(); err == nil {
		t.Fatal("expected per-hour refusal")
	}

	// Hour window slides past.
	now = now.Add(2 * time.Hour)
	if err := lim.Reserve(); err != nil {
		t.Fatalf("after hour slide: %v", err)
	}
}

func TestOpenRouterProviderParsesUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"people":[]}`}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
		})
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: "openrouter", Model: "openai/gpt-4o-mini", APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	resp, err := p.Complete(context.Background(), "prompt", CompletionOpts{Format: "json"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"people":[]}` {
		t.Errorf("text: got %q", resp.Text)
	}
	if resp.TokensUsed != 120 {
		t.Errorf("tokens: got %d, want 120", resp.TokensUsed)
	}
}

func TestOpenRouterProviderClassifies429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: "openrouter", APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	_, err = p.Complete(context.Background(), "prompt", CompletionOpts{})
	ce := AsError(err)
	if ce.Code != CodeRateLimited {
		t.Errorf("code: got %q", ce.Code)
	}
	if ce.RetryAfter != 7*time.Second {
		t.Errorf("retry-after: got %v", ce.RetryAfter)
	}
}

func TestGoogleProviderParsesUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "hello"}}}},
			},
			"usageMetadata": map[string]int{"promptTokenCount": 50, "candidatesTokenCount": 5, "totalTokenCount": 55},
		})
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: "google", APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	resp, err := p.Complete(context.Background(), "prompt", CompletionOpts{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("text: got %q", resp.Text)
	}
	if resp.TokensUsed != 55 {
		t.Errorf("tokens: got %d, want 55", resp.TokensUsed)
	}
}

func TestGoogleProviderSafetyBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"promptFeedback": map[string]string{"blockReason": "SAFETY"},
		})
	}))
	defer srv.Close()

	p, err := NewProvider(Config{Provider: "google", APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	_, err = p.Complete(context.Background(), "prompt", CompletionOpts{})
	if AsError(err).Code != CodeContentPolicy {
		t.Errorf("code: got %q", AsError(err).Code)
	}
}
