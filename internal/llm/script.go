package llm

import (
	"context"
	"fmt"
	"sync"
)

// Responder computes a reply for a request; used by Script.
type Responder func(req Request, call int) (string, error)

// Script is a deterministic Backend for tests and dry runs. Replies are
// taken from per-stage queues first, then from the responder, then from the
// fallback text.
type Script struct {
	mu        sync.Mutex
	queues    map[string][]scripted
	responder Responder
	fallback  string
	calls     []Request
}

type scripted struct {
	text string
	err  error
}

func NewScript() *Script {
	return &Script{queues: make(map[string][]scripted)}
}

func (s *Script) Name() string { return "script" }

// Push queues replies for a stage, consumed in order.
func (s *Script) Push(stage string, replies ...string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range replies {
		s.queues[stage] = append(s.queues[stage], scripted{text: r})
	}
	return s
}

// PushError queues a failing call for a stage.
func (s *Script) PushError(stage string, err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[stage] = append(s.queues[stage], scripted{err: err})
	return s
}

// Respond sets the function used once a stage queue is empty.
func (s *Script) Respond(fn Responder) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = fn
	return s
}

// Fallback sets the reply used when nothing else matches.
func (s *Script) Fallback(text string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = text
	return s
}

func (s *Script) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify(ctx, err)
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)
	call := len(s.calls)
	if q := s.queues[req.Stage]; len(q) > 0 {
		next := q[0]
		s.queues[req.Stage] = q[1:]
		s.mu.Unlock()
		return next.text, next.err
	}
	responder, fallback := s.responder, s.fallback
	s.mu.Unlock()

	if responder != nil {
		return responder(req, call)
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", backendErrorf("script: no reply for stage %q (call %d)", req.Stage, call)
}

// Calls returns a copy of every request received so far.
func (s *Script) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsFor counts the requests received for a stage.
func (s *Script) CallsFor(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Stage == stage {
			n++
		}
	}
	return n
}

func (s *Script) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("script(%d calls)", len(s.calls))
}
