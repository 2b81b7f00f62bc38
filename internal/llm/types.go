package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrTimeout marks a call that exceeded its deadline.
	ErrTimeout = errors.New("llm: timeout")
	// ErrBackend marks transport failures, bad statuses and empty replies.
	ErrBackend = errors.New("llm: backend error")
)

// Config is the connection configuration shared by the HTTP backends.
type Config struct {
	Model   string        `mapstructure:"model" json:"model"`
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	APIKey  string        `mapstructure:"api_key" json:"-"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Request is one prompt round-trip.
type Request struct {
	System      string  `json:"system"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	// Stage is informational; backends may use it for logging or routing.
	Stage string `json:"stage,omitempty"`
}

// Backend executes prompts and returns the raw model text.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Rememberer is implemented by backends that want to know which responses
// were accepted by the caller.
type Rememberer interface {
	Remember(req Request, response string)
}

// classify maps an error from a backend call onto ErrTimeout or ErrBackend.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrBackend) {
		return err
	}
	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrBackend, err)
}

func backendErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBackend, fmt.Sprintf(format, args...))
}
