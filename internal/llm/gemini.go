package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiBackend calls the Gemini API through the official genai client.
type GeminiBackend struct {
	cli   *genai.Client
	model string
}

// NewGeminiBackend builds a client. An empty API key lets genai fall back to
// GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiBackend(ctx context.Context, cfg Config) (*GeminiBackend, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiBackend{cli: cli, model: cfg.Model}, nil
}

func (b *GeminiBackend) Name() string { return "gemini:" + b.model }

func (b *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	conf := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		conf.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := b.cli.Models.GenerateContent(ctx, b.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		conf,
	)
	if err != nil {
		return "", classify(ctx, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", backendErrorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", backendErrorf("gemini returned an empty response")
	}
	return text, nil
}
