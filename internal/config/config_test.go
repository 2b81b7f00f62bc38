package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SourceLang != "en" || cfg.TargetLang != "sr" {
		t.Errorf("languages = %s/%s, want en/sr", cfg.SourceLang, cfg.TargetLang)
	}
	if cfg.Backend != "ollama" {
		t.Errorf("Backend = %q, want ollama", cfg.Backend)
	}
	if cfg.Model != "gpt-oss:120b" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Timeout != 10*time.Minute {
		t.Errorf("Timeout = %s, want 10m", cfg.Timeout)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.MaxExpansionIterations != 5 || cfg.MaxRetries != 2 {
		t.Errorf("iterations/retries = %d/%d, want 5/2", cfg.MaxExpansionIterations, cfg.MaxRetries)
	}
	if cfg.FilterStrictness != "standard" {
		t.Errorf("FilterStrictness = %q", cfg.FilterStrictness)
	}
	if len(cfg.ModifierPrefixes) != 2 || cfg.ModifierPrefixes[0] != "naj" {
		t.Errorf("ModifierPrefixes = %v", cfg.ModifierPrefixes)
	}
	if !cfg.LanguageCheck {
		t.Error("LanguageCheck should default to true")
	}
	if cfg.FailOnDegraded {
		t.Error("FailOnDegraded should default to false")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SYNSETRAN_TARGET_LANG", "hr")
	t.Setenv("SYNSETRAN_MAX_RETRIES", "4")
	t.Setenv("SYNSETRAN_TIMEOUT", "90s")
	t.Setenv("SYNSETRAN_DB", "/tmp/x.db")
	t.Setenv("SYNSETRAN_LOG_LEVEL", "debug")
	t.Setenv("SYNSETRAN_MODIFIER_PREFIXES", "naj,pre")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TargetLang != "hr" {
		t.Errorf("TargetLang = %q, want hr", cfg.TargetLang)
	}
	if cfg.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d, want 4", cfg.MaxRetries)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %s, want 90s", cfg.Timeout)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if strings.Join(cfg.ModifierPrefixes, ",") != "naj,pre" {
		t.Errorf("ModifierPrefixes = %v", cfg.ModifierPrefixes)
	}
}

func TestReadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synsetran.yaml")
	content := `
target_lang: bs
backend: openrouter
model: qwen/qwen3-235b
filter_strictness: strict
fail_on_degraded: true
retry_backoff: 2s
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	v := New()
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TargetLang != "bs" || cfg.Backend != "openrouter" || cfg.Model != "qwen/qwen3-235b" {
		t.Errorf("got %s %s %s", cfg.TargetLang, cfg.Backend, cfg.Model)
	}
	if cfg.FilterStrictness != "strict" || !cfg.FailOnDegraded {
		t.Errorf("strictness/failOnDegraded = %s/%v", cfg.FilterStrictness, cfg.FailOnDegraded)
	}
	if cfg.RetryBackoff != 2*time.Second {
		t.Errorf("RetryBackoff = %s", cfg.RetryBackoff)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q", cfg.Log.Format)
	}
	if cfg.SourceLang != "en" {
		t.Errorf("SourceLang default lost: %q", cfg.SourceLang)
	}
}

func TestReadFile_Missing(t *testing.T) {
	if err := ReadFile(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := ReadFile(New(), ""); err != nil {
		t.Errorf("empty path should be a no-op, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{"empty target", map[string]any{"target_lang": ""}, "target_lang is required"},
		{"bad tag", map[string]any{"source_lang": "not a language"}, "source_lang"},
		{"unknown backend", map[string]any{"backend": "systran"}, "backend must be one of"},
		{"openrouter without model", map[string]any{"backend": "openrouter", "model": ""}, "model is required"},
		{"temperature", map[string]any{"temperature": 3.5}, "temperature"},
		{"timeout", map[string]any{"timeout": "0s"}, "timeout must be > 0"},
		{"iterations", map[string]any{"max_expansion_iterations": 0}, "max_expansion_iterations"},
		{"retries", map[string]any{"max_retries": -1}, "max_retries"},
		{"strictness", map[string]any{"filter_strictness": "harsh"}, "filter_strictness"},
		{"summary", map[string]any{"summary_max_literals": 0}, "summary_max_literals"},
		{"cache", map[string]any{"response_cache_size": -5}, "response_cache_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	v := New()
	v.Set("max_retries", -1)
	v.Set("temperature", -1)
	_, err := Load(v)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"max_retries", "temperature"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLLM(t *testing.T) {
	v := New()
	v.Set("api_key", "k")
	v.Set("base_url", "http://localhost:9999")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := cfg.LLM()
	if got.APIKey != "k" || got.BaseURL != "http://localhost:9999" || got.Model != "gpt-oss:120b" || got.Timeout != 10*time.Minute {
		t.Errorf("LLM() = %+v", got)
	}
}

func TestLoad_BackendDefaultModel(t *testing.T) {
	v := New()
	v.Set("backend", "Gemini")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "gemini" || cfg.Model != "gemini-2.5-flash" {
		t.Errorf("backend/model = %s/%s", cfg.Backend, cfg.Model)
	}
}
