package llm

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by New.
const (
	BackendOllama     = "ollama"
	BackendOpenRouter = "openrouter"
	BackendGemini     = "gemini"
)

// New builds a backend by name.
func New(ctx context.Context, name string, cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case BackendOllama, "":
		return NewOllamaBackend(cfg), nil
	case BackendOpenRouter:
		return NewOpenRouterBackend(cfg)
	case BackendGemini:
		return NewGeminiBackend(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown backend %q (expected %s, %s or %s)", name, BackendOllama, BackendOpenRouter, BackendGemini)
}
