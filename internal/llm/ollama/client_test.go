package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Pantheon-Lattice/internal/llm"
)

func TestGenerateSuccess(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{
				"role":    "assistant",
				"content": "  a considered reply  ",
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Model: "test-model", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := client.Generate(context.Background(), llm.Request{
		System:      "you are apollo",
		Prompt:      "what is truth",
		Temperature: 0.8,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a considered reply" {
		t.Fatalf("unexpected output: %q", out)
	}

	if captured["model"] != "test-model" {
		t.Fatalf("model field missing in request: %v", captured)
	}
	if captured["stream"] != false {
		t.Fatalf("stream should be disabled")
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected system+user messages, got %v", captured["messages"])
	}
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Generate(context.Background(), llm.Request{Prompt: "hi"}); err == nil {
		t.Fatalf("expected error when http status is not success")
	}
}

func TestGenerateEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "   "},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Generate(context.Background(), llm.Request{Prompt: "hi"}); err == nil {
		t.Fatalf("expected error when content is empty")
	}
}
