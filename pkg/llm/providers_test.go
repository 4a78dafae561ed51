package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestAnthropicStructuredCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" || r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected request %s key=%q", r.URL.Path, r.Header.Get("X-API-Key"))
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System != "Extract facts." {
			t.Errorf("unexpected system %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content[0].Text != "Acme Bakery, Main St" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.ToolChoice == nil || req.ToolChoice.Type != "tool" || req.ToolChoice.Name != "business_profile_v1" {
			t.Errorf("expected forced tool, got %+v", req.ToolChoice)
		}
		if len(req.Tools) != 1 || req.Tools[0].InputSchema["type"] != "object" {
			t.Errorf("unexpected tools %+v", req.Tools)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"tool_use\",\"id\":\"toolu_1\",\"name\":\"business_profile_v1\",\"input\":{}}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"businessName\\\":\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"\\\"Acme Bakery\\\"}\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	provider := NewAnthropicProvider(Config{APIURL: server.URL, APIKey: "test-key", Model: "claude-test"})
	raw, err := NewStructuredCompleter(provider, nil).CompleteStructured(context.Background(), StructuredRequest{
		SystemInstruction: "Extract facts.",
		Prompt:            "Acme Bakery, Main St",
		Schema:            testSchema,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if string(raw) != `{"businessName":"Acme Bakery"}` {
		t.Fatalf("unexpected payload %s", raw)
	}
}

func TestAnthropicProviderDefaults(t *testing.T) {
	p := NewAnthropicProvider(Config{Model: "test"})
	if p.maxTokens != defaultAnthropicMaxTokens || p.apiURL != "https://api.anthropic.com" {
		t.Fatalf("unexpected defaults maxTokens=%d url=%s", p.maxTokens, p.apiURL)
	}
	if _, err := NewAnthropicProvider(Config{}).Complete(context.Background(), nil, nil); err == nil {
		t.Fatal("expected an error without a model")
	}
}

func TestOpenAIProviderRejectsBadStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-key" || r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(Config{APIURL: server.URL, APIKey: "test-key", Model: "gpt-test"})
	if _, err := provider.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Fatal("expected error for 401")
	}
	if calls.Load() != 1 {
		t.Fatalf("a 401 must not be retried, got %d calls", calls.Load())
	}
}

// Local models often ignore the forced tool and answer in prose.
func TestOllamaStructuredFallsBackToContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3" {
			t.Errorf("unexpected model %q", req.Model)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"```json\\n{\\\"score\\\": \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"72}\\n```\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOllamaProvider(Config{APIURL: server.URL + "/v1", Model: "llama3"})
	raw, err := NewStructuredCompleter(provider, nil).CompleteStructured(context.Background(), StructuredRequest{
		Prompt: "assess",
		Schema: Schema{Name: "seo_assessment", Version: "v1"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	var got struct {
		Score int `json:"score"`
	}
	if err := json.Unmarshal(raw, &got); err != nil || got.Score != 72 {
		t.Fatalf("unexpected payload %s (%v)", raw, err)
	}
}
