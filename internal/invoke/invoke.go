// Package invoke runs one stage round-trip against the language model:
// prompt, decode, validate, and retry until the payload is valid and useful
// or the attempt budget is spent.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valpere/synsetran/internal/decode"
	"github.com/valpere/synsetran/internal/llm"
	"github.com/valpere/synsetran/internal/schema"
)

// Validation is the recorded outcome of one attempt.
type Validation struct {
	Valid      bool        `json:"valid"`
	Useful     bool        `json:"useful"`
	Degraded   bool        `json:"degraded"`
	DecodeTier decode.Tier `json:"decode_tier,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
}

// Accepted reports whether the attempt produced a payload the pipeline can use.
func (v Validation) Accepted() bool { return v.Valid && v.Useful }

// StageRecord is the immutable audit entry of one attempt.
type StageRecord struct {
	Stage        schema.Stage   `json:"stage"`
	Attempt      int            `json:"attempt"`
	Iteration    int            `json:"iteration,omitempty"`
	Prompt       string         `json:"prompt"`
	SystemPrompt string         `json:"system_prompt"`
	RawResponse  string         `json:"raw_response"`
	Payload      map[string]any `json:"payload"`
	Validation   Validation     `json:"validation"`
}

// Call describes one stage invocation.
type Call struct {
	Stage  schema.Stage
	Prompt string
	System string
	// MaxRetries is the number of additional attempts after the first;
	// negative means the controller default.
	MaxRetries int
	// Iteration tags expansion rounds in the audit trail.
	Iteration int
	// Useful overrides the stage baseline usefulness check.
	Useful schema.UsefulFunc
}

// Invocation is the outcome of a call: the payload handed to later stages
// and every attempt that produced it.
type Invocation struct {
	Payload  map[string]any
	Attempts []StageRecord
	Degraded bool
}

// Final returns the last attempt.
func (inv Invocation) Final() StageRecord {
	if len(inv.Attempts) == 0 {
		return StageRecord{}
	}
	return inv.Attempts[len(inv.Attempts)-1]
}

// Options configure a Controller.
type Options struct {
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	Logger      *slog.Logger
}

// Controller owns the retry loop around a backend.
type Controller struct {
	backend llm.Backend
	opts    Options
	log     *slog.Logger
}

func New(backend llm.Backend, opts Options) *Controller {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{backend: backend, opts: opts, log: log.With("component", "invoke")}
}

// Backend returns the wrapped backend.
func (c *Controller) Backend() llm.Backend { return c.backend }

// Invoke sends the prompt, decodes and validates the reply, and retries the
// whole round-trip on any failure. It never returns an error: exhausted
// attempts yield a degraded, schema-conformant payload built from the last
// attempt. Retrying stops early once the parent context is done.
func (c *Controller) Invoke(ctx context.Context, call Call) Invocation {
	retries := call.MaxRetries
	if retries < 0 {
		retries = c.opts.MaxRetries
	}
	useful := call.Useful
	if useful == nil {
		useful = schema.Useful(call.Stage)
	}

	req := llm.Request{
		System:      call.System,
		Prompt:      call.Prompt,
		Temperature: c.opts.Temperature,
		Stage:       string(call.Stage),
	}

	var inv Invocation
	for attempt := 1; attempt <= retries+1; attempt++ {
		if attempt > 1 && !c.pause(ctx) {
			break
		}

		rec := c.attempt(ctx, req, call, attempt, useful)
		inv.Attempts = append(inv.Attempts, rec)

		log := c.log.With("stage", call.Stage, "attempt", attempt, "iteration", call.Iteration)
		if rec.Validation.Accepted() {
			log.Debug("stage attempt accepted", "decode_tier", rec.Validation.DecodeTier)
			if r, ok := c.backend.(llm.Rememberer); ok {
				r.Remember(req, rec.RawResponse)
			}
			inv.Payload = rec.Payload
			return inv
		}
		log.Debug("stage attempt rejected", "decode_tier", rec.Validation.DecodeTier, "errors", rec.Validation.Errors)

		if ctx.Err() != nil {
			break
		}
	}

	last := &inv.Attempts[len(inv.Attempts)-1]
	last.Validation.Degraded = true
	inv.Payload = last.Payload
	inv.Degraded = true
	c.log.Warn("stage degraded",
		"stage", call.Stage,
		"iteration", call.Iteration,
		"attempts", len(inv.Attempts),
		"errors", last.Validation.Errors,
	)
	return inv
}

func (c *Controller) attempt(ctx context.Context, req llm.Request, call Call, attempt int, useful schema.UsefulFunc) StageRecord {
	rec := StageRecord{
		Stage:        call.Stage,
		Attempt:      attempt,
		Iteration:    call.Iteration,
		Prompt:       call.Prompt,
		SystemPrompt: call.System,
	}

	callCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	raw, err := c.backend.Generate(callCtx, req)
	rec.RawResponse = raw
	if err != nil {
		rec.Payload = schema.Defaults(call.Stage)
		rec.Validation.Errors = []string{backendFailure(err)}
		return rec
	}

	decoded, err := decode.Decode(raw)
	if err != nil {
		rec.Payload = schema.Defaults(call.Stage)
		rec.Validation.Errors = []string{err.Error()}
		return rec
	}
	rec.Validation.DecodeTier = decoded.Tier

	res := schema.Validate(call.Stage, decoded.Payload)
	rec.Payload = res.Payload
	rec.Validation.Valid = res.Valid
	rec.Validation.Errors = res.Errors
	if res.Valid {
		rec.Validation.Useful = useful(res.Payload)
		if !rec.Validation.Useful {
			rec.Validation.Errors = append(rec.Validation.Errors, "payload is valid but not useful")
		}
	}
	return rec
}

// pause waits out the backoff between attempts; false means the context
// ended first.
func (c *Controller) pause(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if c.opts.Backoff <= 0 {
		return true
	}
	t := time.NewTimer(c.opts.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func backendFailure(err error) string {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return fmt.Sprintf("timeout: %v", err)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("cancelled: %v", err)
	}
	return fmt.Sprintf("backend: %v", err)
}
