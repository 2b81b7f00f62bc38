// Package config loads synsetran settings from defaults, an optional config
// file, SYNSETRAN_* environment variables and command-line flags, in
// increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/valpere/synsetran/internal/llm"
)

const EnvPrefix = "SYNSETRAN"

type Config struct {
	SourceLang string `mapstructure:"source_lang"`
	TargetLang string `mapstructure:"target_lang"`

	Backend     string        `mapstructure:"backend"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`

	MaxExpansionIterations int           `mapstructure:"max_expansion_iterations"`
	MaxRetries             int           `mapstructure:"max_retries"`
	RetryBackoff           time.Duration `mapstructure:"retry_backoff"`
	SystemPrompt           string        `mapstructure:"system_prompt"`
	FilterStrictness       string        `mapstructure:"filter_strictness"`
	FailOnDegraded         bool          `mapstructure:"fail_on_degraded"`
	ModifierPrefixes       []string      `mapstructure:"modifier_prefixes"`
	SummaryMaxLiterals     int           `mapstructure:"summary_max_literals"`

	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	ResponseCacheSize int     `mapstructure:"response_cache_size"`
	LanguageCheck     bool    `mapstructure:"language_check"`

	DBPath string `mapstructure:"db_path"`

	Log LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"source_lang":              "en",
	"target_lang":              "sr",
	"backend":                  llm.BackendOllama,
	"model":                    "",
	"base_url":                 "",
	"api_key":                  "",
	"temperature":              0.2,
	"timeout":                  "10m",
	"max_expansion_iterations": 5,
	"max_retries":              2,
	"retry_backoff":            "0s",
	"system_prompt":            "",
	"filter_strictness":        "standard",
	"fail_on_degraded":         false,
	"modifier_prefixes":        []string{"naj", "glavn"},
	"summary_max_literals":     5,
	"requests_per_second":      0.0,
	"response_cache_size":      0,
	"language_check":           true,
	"db_path":                  "./data/synsetran.db",
	"log.level":                "info",
	"log.format":               "text",
}

// defaultModels apply when no model is configured. OpenRouter has none.
var defaultModels = map[string]string{
	llm.BackendOllama: llm.DefaultOllamaModel,
	llm.BackendGemini: llm.DefaultGeminiModel,
}

// New returns a viper instance with defaults and environment binding in
// place. Flags can be bound to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("db_path", EnvPrefix+"_DB", EnvPrefix+"_DB_PATH")
	return v
}

// ReadFile merges a YAML, JSON or TOML config file into v. An empty path is
// a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.SourceLang = strings.TrimSpace(c.SourceLang)
	c.TargetLang = strings.TrimSpace(c.TargetLang)
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.FilterStrictness = strings.ToLower(strings.TrimSpace(c.FilterStrictness))
	if c.Model == "" {
		c.Model = defaultModels[c.Backend]
	}
	prefixes := make([]string, 0, len(c.ModifierPrefixes))
	for _, p := range c.ModifierPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	c.ModifierPrefixes = prefixes
}

// Validate checks business rules on a decoded configuration.
func (c *Config) Validate() error {
	var errs []error
	if err := validLanguage("source_lang", c.SourceLang); err != nil {
		errs = append(errs, err)
	}
	if err := validLanguage("target_lang", c.TargetLang); err != nil {
		errs = append(errs, err)
	}
	switch c.Backend {
	case llm.BackendOllama, llm.BackendGemini:
	case llm.BackendOpenRouter:
		if c.Model == "" {
			errs = append(errs, errors.New("model is required for openrouter"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend must be one of ollama, openrouter, gemini (got %q)", c.Backend))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be in [0, 2] (got %v)", c.Temperature))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be > 0 (got %s)", c.Timeout))
	}
	if c.MaxExpansionIterations < 1 {
		errs = append(errs, fmt.Errorf("max_expansion_iterations must be >= 1 (got %d)", c.MaxExpansionIterations))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries))
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry_backoff must be >= 0 (got %s)", c.RetryBackoff))
	}
	switch c.FilterStrictness {
	case "lenient", "standard", "strict":
	default:
		errs = append(errs, fmt.Errorf("filter_strictness must be lenient, standard or strict (got %q)", c.FilterStrictness))
	}
	if c.SummaryMaxLiterals < 1 {
		errs = append(errs, fmt.Errorf("summary_max_literals must be >= 1 (got %d)", c.SummaryMaxLiterals))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must be >= 0 (got %v)", c.RequestsPerSecond))
	}
	if c.ResponseCacheSize < 0 {
		errs = append(errs, fmt.Errorf("response_cache_size must be >= 0 (got %d)", c.ResponseCacheSize))
	}
	return errors.Join(errs...)
}

func validLanguage(key, code string) error {
	if code == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("%s: %q is not a BCP-47 language tag", key, code)
	}
	return nil
}

// LLM returns the backend connection settings.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Model:   c.Model,
		BaseURL: c.BaseURL,
		APIKey:  c.APIKey,
		Timeout: c.Timeout,
	}
}
