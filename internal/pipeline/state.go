package pipeline

import (
	"fmt"

	"github.com/valpere/synsetran/internal"
	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

// State accumulates one synset's progress through the stages. Each payload
// slot is written once by its owning stage and only read afterwards. A State
// belongs to a single TranslateOne call and is never shared.
type State struct {
	synset   internal.Synset
	payloads map[schema.Stage]map[string]any
	records  []invoke.StageRecord
	degraded []schema.Stage
	notes    []note
	result   *Result
}

type note struct {
	stage schema.Stage
	text  string
}

func newState(s internal.Synset) *State {
	return &State{
		synset:   s.Clone(),
		payloads: make(map[schema.Stage]map[string]any, len(schema.Stages)),
	}
}

// Synset returns the input synset.
func (s *State) Synset() internal.Synset { return s.synset }

// Payload returns the payload written by a stage, or nil.
func (s *State) Payload(stage schema.Stage) map[string]any { return s.payloads[stage] }

// Done reports whether a stage has written its payload.
func (s *State) Done(stage schema.Stage) bool {
	_, ok := s.payloads[stage]
	return ok
}

// Degraded lists the stages that fell back to a repaired payload.
func (s *State) Degraded() []schema.Stage {
	return append([]schema.Stage(nil), s.degraded...)
}

func (s *State) Sense() map[string]any      { return s.payloads[schema.StageAnalyseSense] }
func (s *State) Definition() map[string]any { return s.payloads[schema.StageTranslateDefinition] }
func (s *State) Lemmas() map[string]any     { return s.payloads[schema.StageTranslateLemmas] }
func (s *State) Expansion() map[string]any  { return s.payloads[schema.StageExpandSynonyms] }
func (s *State) Filtering() map[string]any  { return s.payloads[schema.StageFilterSynonyms] }
func (s *State) Review() map[string]any     { return s.payloads[schema.StageReviewDefinition] }

func (s *State) set(stage schema.Stage, payload map[string]any) error {
	if _, ok := s.payloads[stage]; ok {
		return fmt.Errorf("pipeline: %s payload already written", stage)
	}
	s.payloads[stage] = payload
	return nil
}

func (s *State) record(inv invoke.Invocation) {
	s.records = append(s.records, inv.Attempts...)
}

func (s *State) markDegraded(stage schema.Stage) {
	if !s.stageDegraded(stage) {
		s.degraded = append(s.degraded, stage)
	}
}

func (s *State) addNote(stage schema.Stage, format string, args ...any) {
	s.notes = append(s.notes, note{stage: stage, text: fmt.Sprintf(format, args...)})
}

func (s *State) stageDegraded(stage schema.Stage) bool {
	for _, d := range s.degraded {
		if d == stage {
			return true
		}
	}
	return false
}
