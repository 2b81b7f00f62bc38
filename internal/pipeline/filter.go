package pipeline

import (
	"context"

	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

const noVerdictReason = "no verdict returned by filter"

func (p *Pipeline) filterSynonyms(ctx context.Context, st *State) error {
	candidates := schema.Strings(st.Expansion(), "expanded_synonyms")
	if len(candidates) == 0 {
		st.addNote(schema.StageFilterSynonyms, "no candidates to filter")
		return st.set(schema.StageFilterSynonyms, schema.Defaults(schema.StageFilterSynonyms))
	}

	inv := p.invoke(ctx, st, invoke.Call{
		Stage:  schema.StageFilterSynonyms,
		Prompt: renderFilterPrompt(candidates, st.Sense(), st.Definition(), p.opts.Strictness, p.targetName()),
		Useful: func(payload map[string]any) bool {
			return len(schema.Strings(payload, "filtered_synonyms")) > 0 || len(schema.Removals(payload, "removed")) > 0
		},
	})

	payload := p.reconcileFilter(st, candidates, inv)
	return st.set(schema.StageFilterSynonyms, payload)
}

// reconcileFilter maps the model verdicts back onto the candidate list.
// Kept words are always candidates (spelled as the candidate), listed in
// candidate order; every other candidate ends up in removed with a reason.
func (p *Pipeline) reconcileFilter(st *State, candidates []string, inv invoke.Invocation) map[string]any {
	set := newCandidateSet()
	for _, c := range candidates {
		set.add(c, 0, "")
	}

	overall := schema.String(inv.Payload, "confidence")
	byWord := schema.StringMap(inv.Payload, "confidence_by_word")

	keep := make(map[string]bool)
	for _, w := range schema.Strings(inv.Payload, "filtered_synonyms") {
		surface, ok := set.lookup(w)
		if !ok {
			st.addNote(schema.StageFilterSynonyms, "filter returned %q, which is not a candidate; ignored", w)
			continue
		}
		keep[surface] = true
	}

	reasons := make(map[string]string)
	for _, r := range schema.Removals(inv.Payload, "removed") {
		surface, ok := set.lookup(r.Word)
		if !ok || keep[surface] {
			continue
		}
		if _, dup := reasons[surface]; !dup {
			reasons[surface] = r.Reason
		}
	}

	if inv.Degraded && len(keep) == 0 {
		st.addNote(schema.StageFilterSynonyms, "filtering degraded; all %d candidates retained at low confidence for manual review", len(candidates))
		confidence := make(map[string]string, len(candidates))
		for _, c := range candidates {
			confidence[c] = schema.ConfidenceLow
		}
		return schema.Repair(schema.StageFilterSynonyms, map[string]any{
			"filtered_synonyms":  candidates,
			"confidence_by_word": confidence,
			"removed":            []schema.Removal{},
			"confidence":         schema.ConfidenceLow,
		})
	}

	kept := []string{}
	confidence := make(map[string]string)
	removed := []schema.Removal{}
	for _, c := range set.list() {
		if keep[c] {
			kept = append(kept, c)
			if conf, ok := foldLookup(byWord, c); ok {
				confidence[c] = conf
			} else {
				confidence[c] = overall
			}
			continue
		}
		reason, ok := reasons[c]
		if !ok {
			reason = noVerdictReason
		}
		removed = append(removed, schema.Removal{Word: c, Reason: reason})
	}

	return schema.Repair(schema.StageFilterSynonyms, map[string]any{
		"filtered_synonyms":  kept,
		"confidence_by_word": confidence,
		"removed":            removed,
		"confidence":         overall,
	})
}
