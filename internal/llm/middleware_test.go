package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithResponseCache_OnlyRememberedReplies(t *testing.T) {
	script := NewScript().Push("s", "first", "second", "third")
	b := Wrap(script, WithResponseCache(8))
	req := Request{Prompt: "p", Stage: "s"}

	got, _ := b.Generate(context.Background(), req)
	if got != "first" {
		t.Fatalf("expected first, got %q", got)
	}
	// Not remembered: the next call reaches the backend again.
	got, _ = b.Generate(context.Background(), req)
	if got != "second" {
		t.Fatalf("expected second, got %q", got)
	}

	b.(Rememberer).Remember(req, got)
	got, _ = b.Generate(context.Background(), req)
	if got != "second" {
		t.Errorf("expected cached second, got %q", got)
	}
	if n := script.CallsFor("s"); n != 2 {
		t.Errorf("expected 2 backend calls, got %d", n)
	}

	other := Request{Prompt: "other", Stage: "s"}
	got, _ = b.Generate(context.Background(), other)
	if got != "third" {
		t.Errorf("expected third for a different prompt, got %q", got)
	}
}

func TestWithResponseCache_Disabled(t *testing.T) {
	script := NewScript()
	if b := WithResponseCache(0)(script); b != Backend(script) {
		t.Error("expected size 0 to return the inner backend")
	}
}

func TestWithRateLimit(t *testing.T) {
	script := NewScript().Fallback("{}")
	if b := WithRateLimit(0, 1)(script); b != Backend(script) {
		t.Error("expected rps 0 to return the inner backend")
	}

	b := WithRateLimit(1000, 1)(script)
	for i := 0; i < 3; i++ {
		if _, err := b.Generate(context.Background(), Request{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(script.Calls()) != 3 {
		t.Errorf("expected 3 calls, got %d", len(script.Calls()))
	}
}

func TestWithRateLimit_ContextCancelled(t *testing.T) {
	b := WithRateLimit(0.001, 1)(NewScript().Fallback("{}"))
	if _, err := b.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := b.Generate(ctx, Request{}); err == nil {
		t.Error("expected error while waiting for the limiter")
	}
}

func TestDescribe(t *testing.T) {
	b := Wrap(NewScript(), WithRateLimit(2, 1), WithResponseCache(4))
	if got := Describe(b); got != "ratelimit(2/s)->cache->script" {
		t.Errorf("unexpected description %q", got)
	}
}

func TestScript(t *testing.T) {
	s := NewScript().
		Push("a", "one").
		PushError("a", ErrTimeout).
		Respond(func(req Request, call int) (string, error) {
			if req.Stage == "b" {
				return "from responder", nil
			}
			return "", errors.New("unexpected")
		})

	if got, _ := s.Generate(context.Background(), Request{Stage: "a"}); got != "one" {
		t.Errorf("expected one, got %q", got)
	}
	if _, err := s.Generate(context.Background(), Request{Stage: "a"}); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if got, _ := s.Generate(context.Background(), Request{Stage: "b"}); got != "from responder" {
		t.Errorf("unexpected %q", got)
	}
	if len(s.Calls()) != 3 {
		t.Errorf("expected 3 calls, got %d", len(s.Calls()))
	}

	empty := NewScript()
	if _, err := empty.Generate(context.Background(), Request{Stage: "x"}); !errors.Is(err, ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
}
