// Package llm provides the provider-agnostic model gateway for kith.
//
// A Provider turns one prompt into one completion. The Gateway wraps a
// Provider with the retry policy and the process-wide rate limiter; the
// extraction pipeline only ever talks to the Gateway. Credentials are passed
// in explicitly at construction; nothing in this package reads ambient state,
// and the raw key is never logged or persisted.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text plus token usage.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (*Completion, error)
	// Name returns a human-readable provider name (e.g., "google/gemini-2.5-flash").
	Name() string
}

// Completion is the result of one model call.
type Completion struct {
	Text       string
	TokensUsed int // total prompt+completion tokens, 0 when the provider omits usage
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // Max tokens to generate (0 = provider default)
	Temperature float64 // 0.0-2.0 (0 = deterministic)
	Model       string  // Override model for this request (empty = use provider default)
	Format      string  // "json" for structured output, empty for plain text
	System      string  // System prompt (optional)
}

// Config holds provider configuration. APIKey is required; providers never
// fall back to environment variables; the config layer resolves those before
// this package is reached.
type Config struct {
	Provider string // "google", "openrouter"
	Model    string // e.g., "gemini-2.5-flash", "openai/gpt-4o-mini"
	APIKey   string
	BaseURL  string // Optional URL override
}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, &Error{
			Code:    CodeInvalidCredentials,
			Message: fmt.Sprintf("%s provider requires an API key", cfg.Provider),
		}
	}

	switch strings.ToLower(cfg.Provider) {
	case "google":
		model := cfg.Model
		if model == "" {
			model = "gemini-2.5-flash"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://generativelanguage.googleapis.com/v1beta"
		}
		return &googleProvider{
			apiKey:  cfg.APIKey,
			model:   model,
			baseURL: baseURL,
		}, nil

	case "openrouter":
		model := cfg.Model
		if model == "" {
			model = "openai/gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		return &openrouterProvider{
			apiKey:  cfg.APIKey,
			model:   model,
			baseURL: baseURL,
		}, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: google, openrouter)", cfg.Provider)
	}
}

// ParseBackendFlag parses a --backend flag value into a Config (without key).
// Format: "provider" or "provider/model", e.g. "google",
// "google/gemini-2.5-flash", "openrouter/openai/gpt-4o-mini". A bare
// provider gets its default model.
func ParseBackendFlag(flag string) (Config, error) {
	if flag == "" {
		flag = "google"
	}

	parts := strings.SplitN(flag, "/", 2)
	provider := strings.ToLower(parts[0])
	model := ""
	if len(parts) == 2 {
		model = parts[1]
	}

	switch provider {
	case "google":
		if model == "" {
			model = "gemini-2.5-flash"
		}
	case "openrouter":
		if model == "" {
			model = "openai/gpt-4o-mini"
		}
	default:
		return Config{}, fmt.Errorf("unknown provider %q in --backend flag (supported: google, openrouter)", provider)
	}
	return Config{Provider: provider, Model: model}, nil
}
