package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/companyintel/companyintel-api/internal/config"
)

func testClient(provider string) *LLMClient {
	return NewLLMClient(&config.Config{
		LLMProvider: provider,
		LLMModel:    "test-model",
		LLMAPIKey:   "test-key",
		LLMTimeout:  5 * time.Second,
	}, nil)
}

func TestLLMClient_ParseResponse_OpenAI(t *testing.T) {
	body := []byte(`{
		"choices": [{"message": {"content": "{\"tagline\": \"X\"}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 100, "completion_tokens": 20}
	}`)

	result, err := testClient(ProviderOpenAI).ParseResponse(body)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if result.Content != `{"tagline": "X"}` {
		t.Errorf("Content = %q", result.Content)
	}
	if result.InputTokens != 100 || result.OutputTokens != 20 {
		t.Errorf("tokens = %d/%d, want 100/20", result.InputTokens, result.OutputTokens)
	}
	if result.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", result.FinishReason)
	}
}

func TestLLMClient_ParseResponse_OpenAIEmpty(t *testing.T) {
	if _, err := testClient(ProviderOpenAI).ParseResponse([]byte(`{"choices": []}`)); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestLLMClient_ParseResponse_Anthropic(t *testing.T) {
	body := []byte(`{
		"content": [{"text": "hello"}],
		"stop_reason": "max_tokens",
		"usage": {"input_tokens": 50, "output_tokens": 10}
	}`)

	result, err := testClient(ProviderAnthropic).ParseResponse(body)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if result.Content != "hello" {
		t.Errorf("Content = %q", result.Content)
	}
	// Anthropic stop reasons normalize to OpenAI-style
	if result.FinishReason != "length" {
		t.Errorf("FinishReason = %q, want length", result.FinishReason)
	}
}

func TestLLMClient_ParseResponse_Ollama(t *testing.T) {
	body := []byte(`{
		"message": {"content": "hi"},
		"done_reason": "stop",
		"prompt_eval_count": 30,
		"eval_count": 5
	}`)

	result, err := testClient(ProviderOllama).ParseResponse(body)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if result.Content != "hi" || result.InputTokens != 30 || result.OutputTokens != 5 {
		t.Errorf("result = %+v", result)
	}
}

func TestLLMClient_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("model = %v", req["model"])
		}
		if _, ok := req["response_format"]; !ok {
			t.Error("request missing response_format in JSON mode")
		}

		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "ok"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2}
		}`))
	}))
	defer srv.Close()

	client := NewLLMClient(&config.Config{
		LLMProvider: ProviderOpenAI,
		LLMModel:    "test-model",
		LLMAPIKey:   "test-key",
		LLMBaseURL:  srv.URL,
		LLMTimeout:  5 * time.Second,
	}, nil)

	result, err := client.Call(context.Background(), "prompt", LLMCallOptions{JSONMode: true})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result.Content != "ok" {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestLLMClient_CallErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewLLMClient(&config.Config{
		LLMProvider: ProviderOpenAI,
		LLMModel:    "test-model",
		LLMAPIKey:   "test-key",
		LLMBaseURL:  srv.URL,
		LLMTimeout:  5 * time.Second,
	}, nil)

	_, err := client.Call(context.Background(), "prompt", LLMCallOptions{})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	modelErr, ok := err.(*ModelError)
	if !ok {
		t.Fatalf("error type = %T, want *ModelError", err)
	}
	if modelErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", modelErr.StatusCode)
	}
}

func TestLLMClient_CallMissingKey(t *testing.T) {
	client := NewLLMClient(&config.Config{
		LLMProvider: ProviderOpenAI,
		LLMModel:    "test-model",
	}, nil)

	if _, err := client.Call(context.Background(), "prompt", LLMCallOptions{}); err == nil {
		t.Fatal("expected error with no API key")
	}
}
