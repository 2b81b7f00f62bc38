package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaBackend_Generate_Success(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": ` {"sense_summary": "x"} `},
			"done":    true,
		})
	}))
	defer server.Close()

	b := NewOllamaBackend(Config{BaseURL: server.URL, Model: "qwen2.5:3b"})
	text, err := b.Generate(context.Background(), Request{
		System:      "sys",
		Prompt:      "prompt",
		Temperature: 0.2,
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"sense_summary": "x"}` {
		t.Errorf("unexpected text %q", text)
	}
	if got.Model != "qwen2.5:3b" || got.Stream || got.Format != "json" {
		t.Errorf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "prompt" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
	if got.Options["temperature"] != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", got.Options["temperature"])
	}
	if b.Name() != "ollama:qwen2.5:3b" {
		t.Errorf("unexpected name %q", b.Name())
	}
}

func TestOllamaBackend_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	b := NewOllamaBackend(Config{BaseURL: server.URL})
	_, err := b.Generate(context.Background(), Request{Prompt: "p"})

	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("expected body in error, got %v", err)
	}
}

func TestOllamaBackend_Generate_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"content": "  "}})
	}))
	defer server.Close()

	b := NewOllamaBackend(Config{BaseURL: server.URL})
	if _, err := b.Generate(context.Background(), Request{Prompt: "p"}); !errors.Is(err, ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
}

func TestOllamaBackend_Generate_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	b := NewOllamaBackend(Config{BaseURL: server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Generate(ctx, Request{Prompt: "p"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestOpenRouterBackend_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "qwen/qwen2.5-72b-instruct" {
			t.Errorf("unexpected model %v", req["model"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": `{"status":"ok"}`}}},
		})
	}))
	defer server.Close()

	b, err := NewOpenRouterBackend(Config{APIKey: "test-key", BaseURL: server.URL, Model: "qwen/qwen2.5-72b-instruct"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, err := b.Generate(context.Background(), Request{System: "s", Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"status":"ok"}` {
		t.Errorf("unexpected text %q", text)
	}
}

func TestOpenRouterBackend_Generate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	b, _ := NewOpenRouterBackend(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	if _, err := b.Generate(context.Background(), Request{Prompt: "p"}); !errors.Is(err, ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
}

func TestNewOpenRouterBackend_RequiresKeyAndModel(t *testing.T) {
	if _, err := NewOpenRouterBackend(Config{Model: "m"}); err == nil {
		t.Error("expected error when no API key")
	}
	if _, err := NewOpenRouterBackend(Config{APIKey: "k"}); err == nil {
		t.Error("expected error when no model")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), "deepl", Config{}); err == nil {
		t.Error("expected error for unknown backend")
	}
	b, err := New(context.Background(), "ollama", Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Name() != "ollama:"+DefaultOllamaModel {
		t.Errorf("unexpected name %q", b.Name())
	}
}
