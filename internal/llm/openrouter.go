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

const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterBackend uses the OpenAI-compatible chat completions API.
type OpenRouterBackend struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenRouterBackend(cfg Config) (*OpenRouterBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openrouter model required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterURL
	}
	return &OpenRouterBackend{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (b *OpenRouterBackend) Name() string {
	return "openrouter:" + b.model
}

func (b *OpenRouterBackend) Generate(ctx context.Context, req Request) (string, error) {
	body := map[string]any{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.Prompt},
		},
		"temperature":     req.Temperature,
		"response_format": map[string]string{"type": "json_object"},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://synsetran.local")
	httpReq.Header.Set("X-Title", "Synsetran")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", classify(ctx, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", backendErrorf("openrouter returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", classify(ctx, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return "", backendErrorf("openrouter returned no choices")
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", backendErrorf("openrouter returned an empty response")
	}
	return text, nil
}
