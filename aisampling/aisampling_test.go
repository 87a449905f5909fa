package aisampling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mcp "github.com/Clockwork-Innovations/go-mcp-forge"
)

func TestCreateMessageReturnsFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("expected bearer auth, got %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-test" {
			t.Fatalf("expected model gpt-test, got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Fatalf("expected system+user messages, got %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletionResponse{
			Model: "gpt-test",
			Choices: []struct {
				Message      chatMessage `json:"message"`
				FinishReason string      `json:"finish_reason"`
			}{
				{Message: chatMessage{Role: "assistant", Content: "hello back"}, FinishReason: "stop"},
			},
		})
	}))
	defer srv.Close()

	adapter := New(srv.URL, "test-key", "gpt-test", nil)
	result, err := adapter.CreateMessage(t.Context(), mcp.SamplingRequest{
		SystemPrompt: "be terse",
		Messages:     []mcp.SamplingMessage{{Role: "user", Content: "hi"}},
		MaxTokens:    64,
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if result.Content != "hello back" || result.StopReason != "stop" || result.Model != "gpt-test" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCreateMessagePropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(chatCompletionResponse{
			Error: &struct {
				Message string `json:"message"`
			}{Message: "invalid api key"},
		})
	}))
	defer srv.Close()

	adapter := New(srv.URL, "bad-key", "gpt-test", nil)
	_, err := adapter.CreateMessage(t.Context(), mcp.SamplingRequest{
		Messages: []mcp.SamplingMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected an error for an unauthorized response")
	}
}

func TestCreateMessageRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatCompletionResponse{Model: "gpt-test"})
	}))
	defer srv.Close()

	adapter := New(srv.URL, "", "gpt-test", nil)
	_, err := adapter.CreateMessage(t.Context(), mcp.SamplingRequest{
		Messages: []mcp.SamplingMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected an error for an empty choices list")
	}
}
