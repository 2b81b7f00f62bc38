// Package pipeline translates synsets through a fixed sequence of
// model-backed stages over an accumulating State.
//
// The stages run in order: analyse_sense, translate_definition,
// translate_lemmas, expand_synonyms, filter_synonyms, review_definition and
// assemble_result. A stage never aborts the synset; failures surface as
// degraded payloads recorded in the audit trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valpere/synsetran/internal"
	"github.com/valpere/synsetran/internal/dedup"
	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

// ErrDegraded is returned with the result when FailOnDegraded is set and at
// least one stage degraded.
var ErrDegraded = errors.New("pipeline: degraded stages")

// DefaultSystemPrompt is the base instruction sent with every stage.
const DefaultSystemPrompt = "You are an expert lexicographer helping expand WordNet into less " +
	"resourced languages. Produce faithful, idiomatic translations and " +
	"keep subtle sense distinctions intact. Return well-structured JSON."

const (
	DefaultMaxExpansionIterations = 5
	DefaultSummaryMaxLiterals     = 5
)

// Strictness selects the filtering policy.
type Strictness string

const (
	StrictnessLenient  Strictness = "lenient"
	StrictnessStandard Strictness = "standard"
	StrictnessStrict   Strictness = "strict"
)

// Glossary supplies curator-approved term pairs for a language pair.
type Glossary interface {
	GetGlossaryTerms(ctx context.Context, sourceLang, targetLang string) (map[string]string, error)
}

// LanguageChecker verifies the language of generated text.
type LanguageChecker interface {
	Check(text, targetLang string) error
}

// Router picks the stage to run after done. Returning "" ends the run.
// The shipped pipeline uses LinearRouter; custom routers can add
// conditional stages as pure functions over the accumulated state.
type Router func(st *State, done schema.Stage) schema.Stage

// LinearRouter runs every stage once, in order.
func LinearRouter(_ *State, done schema.Stage) schema.Stage {
	for i, s := range schema.Stages {
		if s == done && i+1 < len(schema.Stages) {
			return schema.Stages[i+1]
		}
	}
	return ""
}

// Options configure a Pipeline.
type Options struct {
	SourceLang             string
	TargetLang             string
	SystemPrompt           string
	MaxExpansionIterations int
	// MaxRetries per stage; zero or negative uses the controller default.
	MaxRetries         int
	Strictness         Strictness
	FailOnDegraded     bool
	ModifierPrefixes   []string
	SummaryMaxLiterals int
	Glossary           Glossary
	LanguageChecker    LanguageChecker
	Router             Router
	Logger             *slog.Logger
}

type handler func(ctx context.Context, st *State) error

// Pipeline is safe for sequential reuse across synsets. It holds no
// per-synset state.
type Pipeline struct {
	ctl      *invoke.Controller
	opts     Options
	dedup    *dedup.Deduplicator
	handlers map[schema.Stage]handler
	log      *slog.Logger
}

func New(ctl *invoke.Controller, opts Options) *Pipeline {
	if opts.SourceLang == "" {
		opts.SourceLang = "en"
	}
	if opts.TargetLang == "" {
		opts.TargetLang = "sr"
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = -1
	}
	if opts.MaxExpansionIterations < 1 {
		opts.MaxExpansionIterations = DefaultMaxExpansionIterations
	}
	if opts.Strictness == "" {
		opts.Strictness = StrictnessStandard
	}
	if opts.ModifierPrefixes == nil {
		opts.ModifierPrefixes = dedup.DefaultPrefixes
	}
	if opts.SummaryMaxLiterals < 1 {
		opts.SummaryMaxLiterals = DefaultSummaryMaxLiterals
	}
	if opts.Router == nil {
		opts.Router = LinearRouter
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	p := &Pipeline{
		ctl:   ctl,
		opts:  opts,
		dedup: dedup.New(opts.ModifierPrefixes),
		log:   log.With("component", "pipeline"),
	}
	p.handlers = map[schema.Stage]handler{
		schema.StageAnalyseSense:        p.analyseSense,
		schema.StageTranslateDefinition: p.translateDefinition,
		schema.StageTranslateLemmas:     p.translateLemmas,
		schema.StageExpandSynonyms:      p.expandSynonyms,
		schema.StageFilterSynonyms:      p.filterSynonyms,
		schema.StageReviewDefinition:    p.reviewDefinition,
		schema.StageAssembleResult:      p.assembleResult,
	}
	return p
}

// Options returns the effective options.
func (p *Pipeline) Options() Options { return p.opts }

// TranslateOne runs every stage for one synset. The error is non-nil only
// when ctx ends or when FailOnDegraded is set and a stage degraded; in the
// latter case the result is returned as well.
func (p *Pipeline) TranslateOne(ctx context.Context, syn internal.Synset) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	st := newState(syn)

	stage := schema.Stages[0]
	for steps := 0; stage != ""; steps++ {
		h, ok := p.handlers[stage]
		if !ok {
			return nil, fmt.Errorf("pipeline: no handler for stage %q", stage)
		}
		if st.Done(stage) || steps >= len(p.handlers) {
			return nil, fmt.Errorf("pipeline: router revisited stage %q", stage)
		}
		if err := h(ctx, st); err != nil {
			return nil, fmt.Errorf("pipeline: %s: %w", stage, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: synset %s interrupted after %s: %w", syn.ID, stage, err)
		}
		stage = p.opts.Router(st, stage)
	}

	res := st.result
	if res == nil {
		return nil, fmt.Errorf("pipeline: synset %s finished without assembling a result", syn.ID)
	}

	p.log.Info("synset translated",
		"synset", syn.ID,
		"representative", res.RepresentativeLiteral,
		"synonyms", len(res.Synonyms),
		"degraded", len(res.DegradedStages),
		"calls", len(res.Records),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if p.opts.FailOnDegraded && len(res.DegradedStages) > 0 {
		return res, fmt.Errorf("%w: synset %s: %v", ErrDegraded, syn.ID, res.DegradedStages)
	}
	return res, nil
}

// TranslateBatch translates synsets one after another, in input order. On
// error it returns the results completed so far.
func (p *Pipeline) TranslateBatch(ctx context.Context, synsets []internal.Synset) ([]*Result, error) {
	out := make([]*Result, 0, len(synsets))
	for _, syn := range synsets {
		res, err := p.TranslateOne(ctx, syn)
		if res != nil {
			out = append(out, res)
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// invoke runs one controller call for a stage and records every attempt.
func (p *Pipeline) invoke(ctx context.Context, st *State, call invoke.Call) invoke.Invocation {
	if call.System == "" {
		call.System = p.systemPrompt(call.Stage)
	}
	if call.MaxRetries == 0 {
		call.MaxRetries = p.opts.MaxRetries
	}
	inv := p.ctl.Invoke(ctx, call)
	st.record(inv)
	if inv.Degraded {
		st.markDegraded(call.Stage)
		if call.Iteration > 0 {
			st.addNote(call.Stage, "iteration %d degraded after %d attempts", call.Iteration, len(inv.Attempts))
		} else {
			st.addNote(call.Stage, "stage degraded after %d attempts; schema defaults used", len(inv.Attempts))
		}
	}
	return inv
}
