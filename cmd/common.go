/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valpere/synsetran/internal/config"
	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/langcheck"
	"github.com/valpere/synsetran/internal/llm"
	"github.com/valpere/synsetran/internal/logging"
	"github.com/valpere/synsetran/internal/pipeline"
	"github.com/valpere/synsetran/internal/store"
)

// apiKeyEnv lists provider-specific variables consulted when api_key is unset.
var apiKeyEnv = map[string]string{
	llm.BackendOpenRouter: "OPENROUTER_API_KEY",
	llm.BackendGemini:     "GEMINI_API_KEY",
}

// buildBackend constructs the configured model backend with its rate limit
// and response cache decorators.
func buildBackend(ctx context.Context, c *config.Config) (llm.Backend, error) {
	lc := c.LLM()
	if lc.APIKey == "" {
		if env, ok := apiKeyEnv[c.Backend]; ok {
			lc.APIKey = os.Getenv(env)
		}
	}

	backend, err := llm.New(ctx, c.Backend, lc)
	if err != nil {
		return nil, err
	}

	var mws []llm.Middleware
	if c.RequestsPerSecond > 0 {
		mws = append(mws, llm.WithRateLimit(c.RequestsPerSecond, 1))
	}
	if c.ResponseCacheSize > 0 {
		mws = append(mws, llm.WithResponseCache(c.ResponseCacheSize))
	}
	return llm.Wrap(backend, mws...), nil
}

// buildPipeline wires the controller and pipeline options from configuration.
// glossary may be nil; callers must not pass a typed nil.
func buildPipeline(backend llm.Backend, c *config.Config, glossary pipeline.Glossary) *pipeline.Pipeline {
	ctl := invoke.New(backend, invoke.Options{
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		MaxRetries:  c.MaxRetries,
		Backoff:     c.RetryBackoff,
		Logger:      logging.New("invoke"),
	})

	opts := pipeline.Options{
		SourceLang:             c.SourceLang,
		TargetLang:             c.TargetLang,
		SystemPrompt:           c.SystemPrompt,
		MaxExpansionIterations: c.MaxExpansionIterations,
		Strictness:             pipeline.Strictness(c.FilterStrictness),
		FailOnDegraded:         c.FailOnDegraded,
		ModifierPrefixes:       c.ModifierPrefixes,
		SummaryMaxLiterals:     c.SummaryMaxLiterals,
		Glossary:               glossary,
		Logger:                 logging.New("pipeline"),
	}
	if c.LanguageCheck {
		opts.LanguageChecker = langcheck.New(c.SourceLang, c.TargetLang)
	}
	return pipeline.New(ctl, opts)
}

// openStore opens the SQLite database, creating its directory if needed.
func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
