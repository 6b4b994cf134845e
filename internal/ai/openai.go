package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider calls an OpenAI-compatible /chat/completions endpoint
type OpenAIProvider struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewOpenAIProvider creates a provider. An empty apiKey falls back to
// OPENAI_API_KEY; an empty baseURL uses the public OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL string, httpc *http.Client) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	// Accept a base URL that already includes the endpoint path
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/chat/completions")
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &OpenAIProvider{baseURL: baseURL, apiKey: apiKey, httpc: httpc}, nil
}

// Name implements Provider
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Send implements Provider. Non-2xx responses come back as errors that carry
// the status code so isRetriableError can classify them.
func (p *OpenAIProvider) Send(ctx context.Context, model string, req Request) (*Response, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode/100 != 2 {
		msg := resp.Status
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response had no choices")
	}

	return &Response{
		Text:         parsed.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}
