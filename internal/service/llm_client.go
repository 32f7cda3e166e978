package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/companyintel/companyintel-api/internal/config"
)

// Supported LLM providers.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// ModelError reports a failed call to the LLM provider: transport errors,
// non-200 statuses, or unparseable provider responses.
type ModelError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ModelError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm provider %s: %v", e.Provider, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// LLMCallOptions configures an LLM API call.
type LLMCallOptions struct {
	Temperature float64       // Default: 0.2
	MaxTokens   int           // Default: 4096
	Timeout     time.Duration // Default: 120s
	JSONMode    bool          // Request JSON response format (OpenAI-compatible APIs only)
}

// LLMCallResult holds the result of an LLM API call including token usage.
type LLMCallResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	FinishReason string // "stop", "length", etc.
}

// LLMCaller makes a single prompt call to the configured model. Implemented
// by *LLMClient; stubbed in tests.
type LLMCaller interface {
	Call(ctx context.Context, prompt string, opts LLMCallOptions) (*LLMCallResult, error)
	Model() string
}

// LLMClient makes direct HTTP calls to the configured LLM provider.
type LLMClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLLMClient creates a new LLM client from application configuration.
func NewLLMClient(cfg *config.Config, logger *slog.Logger) *LLMClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClient{
		provider: cfg.LLMProvider,
		model:    cfg.LLMModel,
		apiKey:   cfg.LLMAPIKey,
		baseURL:  cfg.LLMBaseURL,
		timeout:  cfg.LLMTimeout,
		logger:   logger.With("component", "llm_client"),
	}
}

// Model returns the configured model identifier.
func (c *LLMClient) Model() string {
	return c.model
}

// Call makes a direct call to the LLM API and returns the response with
// token usage.
func (c *LLMClient) Call(ctx context.Context, prompt string, opts LLMCallOptions) (*LLMCallResult, error) {
	if c.apiKey == "" && c.provider != ProviderOllama {
		return nil, &ModelError{Provider: c.provider, Err: fmt.Errorf("no API key configured")}
	}

	// Apply defaults for zero values
	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	if opts.Timeout == 0 {
		opts.Timeout = c.timeout
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}

	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}

	// Anthropic and Ollama have no response_format; the prompt instructions
	// carry the JSON requirement there.
	if opts.JSONMode && (c.provider == ProviderOpenAI || c.provider == ProviderOpenRouter) {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := c.getAPIURL()

	c.logger.Debug("making LLM API request",
		"provider", c.provider,
		"model", c.model,
		"api_url", apiURL,
		"prompt_length", len(prompt),
		"temperature", opts.Temperature,
		"max_tokens", opts.MaxTokens,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	client := &http.Client{Timeout: opts.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Error("LLM API request failed", "provider", c.provider, "error", err)
		return nil, &ModelError{Provider: c.provider, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ModelError{Provider: c.provider, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("LLM API response received",
		"provider", c.provider,
		"status_code", resp.StatusCode,
		"response_length", len(body),
	)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("LLM API error",
			"provider", c.provider,
			"status_code", resp.StatusCode,
			"response", string(body),
		)
		return nil, &ModelError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", string(body)),
		}
	}

	result, err := c.ParseResponse(body)
	if err != nil {
		return nil, &ModelError{Provider: c.provider, Err: err}
	}

	if result.FinishReason == "length" {
		c.logger.Warn("LLM output truncated",
			"provider", c.provider,
			"model", c.model,
			"output_tokens", result.OutputTokens,
			"max_tokens", opts.MaxTokens,
		)
	}

	return result, nil
}

// getAPIURL returns the chat completion endpoint for the configured provider.
func (c *LLMClient) getAPIURL() string {
	switch c.provider {
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1/messages"
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1/chat/completions"
	case ProviderOllama:
		baseURL := c.baseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return baseURL + "/api/chat"
	default:
		baseURL := c.baseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return baseURL + "/v1/chat/completions"
	}
}

// setAuthHeaders sets the authentication headers for the configured provider.
func (c *LLMClient) setAuthHeaders(req *http.Request) {
	switch c.provider {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	case ProviderOllama:
		// No auth needed
	default:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// ParseResponse extracts the text response and token usage from the
// provider's wire format. Exported for testing.
func (c *LLMClient) ParseResponse(body []byte) (*LLMCallResult, error) {
	switch c.provider {
	case ProviderAnthropic:
		return parseAnthropicFormat(body)
	case ProviderOllama:
		return parseOllamaFormat(body)
	default:
		return parseOpenAIFormat(body)
	}
}

// parseAnthropicFormat parses Anthropic API response format.
func parseAnthropicFormat(body []byte) (*LLMCallResult, error) {
	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"` // "end_turn", "max_tokens", "stop_sequence"
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Anthropic response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from LLM")
	}

	result := &LLMCallResult{
		Content:      resp.Content[0].Text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}

	// Normalize Anthropic's stop_reason to OpenAI-style finish_reason
	switch resp.StopReason {
	case "max_tokens":
		result.FinishReason = "length"
	case "end_turn", "stop_sequence":
		result.FinishReason = "stop"
	default:
		result.FinishReason = resp.StopReason
	}

	return result, nil
}

// parseOllamaFormat parses Ollama API response format.
func parseOllamaFormat(body []byte) (*LLMCallResult, error) {
	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		DoneReason      string `json:"done_reason"` // "stop", "length"
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama response: %w", err)
	}

	return &LLMCallResult{
		Content:      resp.Message.Content,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		FinishReason: resp.DoneReason,
	}, nil
}

// parseOpenAIFormat parses OpenAI-compatible API response format.
// Used for OpenAI, OpenRouter, and other compatible APIs.
func parseOpenAIFormat(body []byte) (*LLMCallResult, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"` // "stop", "length", "content_filter"
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from LLM")
	}

	return &LLMCallResult{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}
