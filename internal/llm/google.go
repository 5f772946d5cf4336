package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// googleProvider implements Provider using the Google AI Studio (Gemini)
// REST API.
type googleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  http.Client
}

type googleRequest struct {
	Contents          []googleContent  `json:"contents"`
	SystemInstruction *googleContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *googleUsage `json:"usageMetadata,omitempty"`
	Error         *googleError `json:"error,omitempty"`
}

type googleUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type googleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (g *googleProvider) Name() string {
	return "google/" + g.model
}

func (g *googleProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (*Completion, error) {
	model := g.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := googleRequest{
		Contents: []googleContent{
			{
				Parts: []googlePart{{Text: prompt}},
				Role:  "user",
			},
		},
	}

	if opts.System != "" {
		req.SystemInstruction = &googleContent{
			Parts: []googlePart{{Text: opts.System}},
		}
	}

	genConfig := &googleGenConfig{
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = opts.MaxTokens
	}
	if strings.ToLower(opts.Format) == "json" {
		genConfig.ResponseMimeType = "application/json"
	}
	req.GenerationConfig = genConfig

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Message: "marshaling request: " + err.Error(), Provider: g.Name()}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Message: "creating request: " + err.Error(), Provider: g.Name()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(g.Name(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(g.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTP(g.Name(), resp.StatusCode, string(respBody), parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	var gResp googleResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return nil, &Error{Code: CodeInvalidResponse, Message: "unparsable response body: " + err.Error(), Provider: g.Name()}
	}

	if gResp.Error != nil {
		return nil, &Error{
			Code:       CodeUnknown,
			Message:    fmt.Sprintf("%s (code %d)", gResp.Error.Message, gResp.Error.Code),
			Provider:   g.Name(),
			StatusCode: gResp.Error.Code,
		}
	}

	if gResp.PromptFeedback != nil && gResp.PromptFeedback.BlockReason != "" {
		return nil, &Error{
			Code:     CodeContentPolicy,
			Message:  "prompt blocked: " + gResp.PromptFeedback.BlockReason,
			Provider: g.Name(),
		}
	}

	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return nil, emptyResponseError(g.Name())
	}
	if gResp.Candidates[0].FinishReason == "SAFETY" {
		return nil, &Error{
			Code:     CodeContentPolicy,
			Message:  "completion stopped on safety grounds",
			Provider: g.Name(),
		}
	}

	text := strings.TrimSpace(gResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, emptyResponseError(g.Name())
	}

	out := &Completion{Text: text}
	if gResp.UsageMetadata != nil {
		out.TokensUsed = gResp.UsageMetadata.TotalTokenCount
	}
	return out, nil
}
