package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// openrouterProvider implements Provider using the OpenRouter API
// (OpenAI-compatible chat completions).
type openrouterProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  http.Client
}

type orRequest struct {
	Model          string         `json:"model"`
	Messages       []orMessage    `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat *orResponseFmt `json:"response_format,omitempty"`
}

type orMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type orResponseFmt struct {
	Type string `json:"type"`
}

type orResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *orUsage `json:"usage,omitempty"`
	Error *orError `json:"error,omitempty"`
}

type orUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type orError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (o *openrouterProvider) Name() string {
	return "openrouter/" + o.model
}

func (o *openrouterProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (*Completion, error) {
	model := o.model
	if opts.Model != "" {
		model = opts.Model
	}

	messages := make([]orMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, orMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, orMessage{Role: "user", Content: prompt})

	req := orRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if strings.ToLower(opts.Format) == "json" {
		req.ResponseFormat = &orResponseFmt{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Message: "marshaling request: " + err.Error(), Provider: o.Name()}
	}

	url := o.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Message: "creating request: " + err.Error(), Provider: o.Name()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/wrenfold/kith")
	httpReq.Header.Set("X-Title", "Kith Journal")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(o.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(o.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTP(o.Name(), resp.StatusCode, string(respBody), parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	var parsed orResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &Error{Code: CodeInvalidResponse, Message: "unparsable response body: " + err.Error(), Provider: o.Name()}
	}

	if parsed.Error != nil {
		if strings.Contains(strings.ToLower(parsed.Error.Type), "moderation") {
			return nil, &Error{Code: CodeContentPolicy, Message: parsed.Error.Message, Provider: o.Name()}
		}
		return nil, &Error{Code: CodeUnknown, Message: parsed.Error.Message, Provider: o.Name()}
	}

	if len(parsed.Choices) == 0 {
		return nil, emptyResponseError(o.Name())
	}
	if parsed.Choices[0].FinishReason == "content_filter" {
		return nil, &Error{Code: CodeContentPolicy, Message: "completion stopped by content filter", Provider: o.Name()}
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return nil, emptyResponseError(o.Name())
	}

	out := &Completion{Text: text}
	if parsed.Usage != nil {
		out.TokensUsed = parsed.Usage.TotalTokens
	}
	return out, nil
}

// parseRetryAfter parses a Retry-After header given in seconds.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
