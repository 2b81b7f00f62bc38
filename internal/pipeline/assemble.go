package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/synsetran/internal/dedup"
	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

// assembleResult is deterministic: it calls no model and reads only the
// accumulated state.
func (p *Pipeline) assembleResult(_ context.Context, st *State) error {
	syn := st.Synset()
	def, exp, filt, rev := st.Definition(), st.Expansion(), st.Filtering(), st.Review()

	deduped := p.dedup.Apply(schema.Strings(filt, "filtered_synonyms"))
	representative := ""
	if len(deduped.Kept) > 0 {
		representative = deduped.Kept[0]
	}

	translated := schema.String(def, "definition_translation")
	definition, original := translated, ""
	status := schema.String(rev, "status")
	if revised := schema.String(rev, "revised_definition"); status == schema.StatusNeedsRevision && revised != "" && revised != translated {
		definition, original = revised, translated
		st.addNote(schema.StageAssembleResult, "adopted the revised definition from review")
	}

	examples := uniqueExamples(schema.Strings(def, "examples"))
	candidates := buildCandidates(exp, filt, deduped)

	res := &Result{
		SynsetID:              syn.ID,
		SourceLang:            p.opts.SourceLang,
		TargetLang:            p.opts.TargetLang,
		Source:                syn,
		RepresentativeLiteral: representative,
		Definition:            definition,
		OriginalDefinition:    original,
		Synonyms:              deduped.Kept,
		Candidates:            candidates,
		Redundant:             deduped.Flagged,
		Examples:              examples,
		ReviewStatus:          status,
		Issues:                schema.Issues(rev, "issues"),
		Confidence:            schema.String(filt, "confidence"),
		Converged:             schema.Bool(exp, "converged"),
		IterationsRun:         schema.Int(exp, "iterations_run"),
		DegradedStages:        st.Degraded(),
		Notes:                 p.mergeNotes(st),
	}
	res.CuratorSummary = p.curatorSummary(res)

	payload := map[string]any{
		"representative_literal": res.RepresentativeLiteral,
		"definition":             res.Definition,
		"synonyms":               res.Synonyms,
		"examples":               res.Examples,
		"notes":                  res.Notes,
		"curator_summary":        res.CuratorSummary,
	}
	check := schema.Validate(schema.StageAssembleResult, payload)
	st.records = append(st.records, invoke.StageRecord{
		Stage:   schema.StageAssembleResult,
		Attempt: 1,
		Payload: check.Payload,
		Validation: invoke.Validation{
			Valid:  check.Valid,
			Useful: true,
			Errors: check.Errors,
		},
	})
	res.Records = append([]invoke.StageRecord(nil), st.records...)

	if err := st.set(schema.StageAssembleResult, check.Payload); err != nil {
		return err
	}
	st.result = res
	return nil
}

func uniqueExamples(in []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(in))
	for _, ex := range in {
		ex = strings.TrimSpace(ex)
		k := dedup.Key(ex)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, ex)
	}
	return out
}

func buildCandidates(exp, filt map[string]any, deduped dedup.Result) []Candidate {
	provenance := schema.IntMap(exp, "synonym_provenance")
	rationale := schema.StringMap(exp, "rationale")
	confidence := schema.StringMap(filt, "confidence_by_word")

	reasons := make(map[string]string)
	for _, r := range schema.Removals(filt, "removed") {
		reasons[r.Word] = r.Reason
	}
	for _, f := range deduped.Flagged {
		reasons[f.Word] = "redundant: " + f.Reason
	}
	kept := make(map[string]bool, len(deduped.Kept))
	for _, w := range deduped.Kept {
		kept[w] = true
	}

	words := schema.Strings(exp, "expanded_synonyms")
	out := make([]Candidate, 0, len(words))
	for _, w := range words {
		c := Candidate{
			Word:       w,
			Provenance: provenance[w],
			Rationale:  rationale[w],
			Kept:       kept[w],
		}
		if c.Kept {
			c.Confidence = confidence[w]
		} else {
			c.Reason = reasons[w]
		}
		out = append(out, c)
	}
	return out
}

// mergeNotes collects notes from every stage payload and from the pipeline
// itself, in stage order, without duplicates.
func (p *Pipeline) mergeNotes(st *State) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(stage schema.Stage, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		line := fmt.Sprintf("%s: %s", stage, text)
		if !seen[line] {
			seen[line] = true
			out = append(out, line)
		}
	}

	add(schema.StageAnalyseSense, schema.String(st.Sense(), "contrastive_note"))
	add(schema.StageTranslateDefinition, schema.String(st.Definition(), "notes"))
	add(schema.StageReviewDefinition, schema.String(st.Review(), "notes"))

	for _, stage := range schema.Stages {
		for _, n := range st.notes {
			if n.stage == stage {
				add(n.stage, n.text)
			}
		}
	}
	return out
}

func (p *Pipeline) curatorSummary(res *Result) string {
	var lines []string
	pos := res.Source.NormalizedPOS()
	lines = append(lines, fmt.Sprintf("Synset: %s (%s)", orNone(res.SynsetID, "-"), orNone(pos, "?")))
	lines = append(lines, fmt.Sprintf("Synset literals (%s): %s", res.SourceLang, orNone(strings.Join(res.Source.Lemmas, ", "), "-")))
	lines = append(lines, fmt.Sprintf("Representative literal (%s): %s", res.TargetLang, orNone(res.RepresentativeLiteral, "-")))
	lines = append(lines, fmt.Sprintf("Definition: %s", orNone(res.Definition, "-")))

	if len(res.Synonyms) > 0 {
		lines = append(lines, fmt.Sprintf("Literals (%d):", len(res.Synonyms)))
		limit := p.opts.SummaryMaxLiterals
		for i, s := range res.Synonyms {
			if i >= limit {
				break
			}
			lines = append(lines, "  • "+s)
		}
		if extra := len(res.Synonyms) - limit; extra > 0 {
			lines = append(lines, fmt.Sprintf("  (+%d more literals)", extra))
		}
	} else {
		lines = append(lines, "Literals: (none retained)")
	}

	if len(res.Redundant) > 0 {
		words := make([]string, len(res.Redundant))
		for i, f := range res.Redundant {
			words[i] = f.Word
		}
		lines = append(lines, "Redundant compounds removed: "+strings.Join(words, ", "))
	}

	if len(res.Examples) > 0 {
		lines = append(lines, fmt.Sprintf("Example sentences: %d (showing first)", len(res.Examples)))
		lines = append(lines, fmt.Sprintf("  “%s”", res.Examples[0]))
	} else {
		lines = append(lines, "Example sentences: none")
	}

	lines = append(lines, "Review: "+orNone(res.ReviewStatus, "-"))
	if len(res.DegradedStages) > 0 {
		names := make([]string, len(res.DegradedStages))
		for i, s := range res.DegradedStages {
			names[i] = string(s)
		}
		lines = append(lines, "Degraded stages: "+strings.Join(names, ", "))
	}
	if len(res.Notes) > 0 {
		lines = append(lines, "Notes:")
		for _, n := range res.Notes {
			lines = append(lines, "  - "+n)
		}
	}
	return strings.Join(lines, "\n")
}
