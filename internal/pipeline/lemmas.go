package pipeline

import (
	"context"

	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

func (p *Pipeline) translateLemmas(ctx context.Context, st *State) error {
	syn := st.Synset()
	hints := p.glossaryHints(ctx, st)

	useful := func(payload map[string]any) bool {
		return len(syn.Lemmas) == 0 || schema.AnyTranslated(payload)
	}
	inv := p.invoke(ctx, st, invoke.Call{
		Stage:  schema.StageTranslateLemmas,
		Prompt: renderLemmaPrompt(syn, st.Sense(), hints, p.sourceName(), p.targetName()),
		Useful: useful,
	})

	payload := alignLemmas(syn.Lemmas, inv.Payload)
	if n := len(schema.NullableStrings(inv.Payload, "initial_translations")); n != len(syn.Lemmas) && !inv.Degraded {
		st.addNote(schema.StageTranslateLemmas, "model returned %d translations for %d lemmas; list aligned by position", n, len(syn.Lemmas))
	}
	return st.set(schema.StageTranslateLemmas, payload)
}

// alignLemmas makes initial_translations exactly one entry per lemma and
// fills the alignment map for every lemma. Positions are authoritative;
// alignment entries returned by the model only fill gaps.
func alignLemmas(lemmas []string, payload map[string]any) map[string]any {
	translations := schema.NullableStrings(payload, "initial_translations")
	modelAlign := schema.NullableStringMap(payload, "alignment")

	aligned := make([]*string, len(lemmas))
	alignment := make(map[string]*string, len(lemmas))
	for i, lemma := range lemmas {
		var t *string
		if i < len(translations) {
			t = translations[i]
		}
		if t == nil {
			t, _ = foldLookup(modelAlign, lemma)
		}
		aligned[i] = t
		alignment[lemma] = t
	}

	return schema.Repair(schema.StageTranslateLemmas, map[string]any{
		"initial_translations": aligned,
		"alignment":            alignment,
	})
}

func (p *Pipeline) glossaryHints(ctx context.Context, st *State) map[string]string {
	if p.opts.Glossary == nil {
		return nil
	}
	terms, err := p.opts.Glossary.GetGlossaryTerms(ctx, p.opts.SourceLang, p.opts.TargetLang)
	if err != nil {
		p.log.Warn("glossary lookup failed", "synset", st.Synset().ID, "error", err)
		return nil
	}

	hints := make(map[string]string)
	for _, lemma := range st.Synset().Lemmas {
		if tgt, ok := foldLookup(terms, lemma); ok {
			hints[lemma] = tgt
		}
	}
	return hints
}
