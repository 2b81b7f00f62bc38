package pipeline

import (
	"context"

	"github.com/valpere/synsetran/internal"
)

// Stream yields one Result per synset, translating each only when Next is
// called. It is finite and cannot be restarted.
//
//	s := p.TranslateStream(synsets)
//	for s.Next(ctx) {
//		use(s.Result())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	p       *Pipeline
	synsets []internal.Synset
	pos     int
	cur     *Result
	err     error
	done    bool
}

// TranslateStream returns a lazy stream over synsets. Nothing is translated
// until the first call to Next.
func (p *Pipeline) TranslateStream(synsets []internal.Synset) *Stream {
	return &Stream{p: p, synsets: synsets}
}

// Next translates the next synset and reports whether a result is
// available. It returns false once the input is exhausted or an error
// occurred; a degraded result under FailOnDegraded is still delivered
// before the stream stops.
func (s *Stream) Next(ctx context.Context) bool {
	s.cur = nil
	if s.done || s.pos >= len(s.synsets) {
		s.done = true
		return false
	}

	syn := s.synsets[s.pos]
	s.pos++

	res, err := s.p.TranslateOne(ctx, syn)
	if err != nil {
		s.err = err
		s.done = true
		if res == nil {
			return false
		}
	}
	s.cur = res
	return true
}

// Result returns the result produced by the last successful Next.
func (s *Stream) Result() *Result { return s.cur }

// Err returns the error that stopped the stream, if any.
func (s *Stream) Err() error { return s.err }

// Remaining reports how many synsets have not been pulled yet.
func (s *Stream) Remaining() int {
	if s.done {
		return 0
	}
	return len(s.synsets) - s.pos
}
