package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/valpere/synsetran/internal"
	"github.com/valpere/synsetran/internal/schema"
)

// LanguageName returns the English name of a BCP-47 code ("sr" -> "Serbian").
// Unknown codes are returned unchanged.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func (p *Pipeline) systemPrompt(stage schema.Stage) string {
	return p.opts.SystemPrompt + fmt.Sprintf("\nCurrent stage: %s. Return valid JSON as instructed.", stage)
}

func (p *Pipeline) targetName() string { return LanguageName(p.opts.TargetLang) }
func (p *Pipeline) sourceName() string { return LanguageName(p.opts.SourceLang) }

func orNone(s, none string) string {
	if strings.TrimSpace(s) == "" {
		return none
	}
	return s
}

func bulletList(items []string, none string) string {
	if len(items) == 0 {
		return "- " + none
	}
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(it)
	}
	return sb.String()
}

func quotedList(items []string) string {
	q := make([]string, len(items))
	for i, it := range items {
		q[i] = fmt.Sprintf("%q", it)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

func renderSensePrompt(syn internal.Synset, sourceName string) string {
	var sb strings.Builder
	sb.WriteString("Analyse the following WordNet synset to understand the exact sense before translating.\n\n")
	fmt.Fprintf(&sb, "Synset ID: %s\n", orNone(syn.ID, "(none)"))
	fmt.Fprintf(&sb, "Part of speech: %s (%s)\n", syn.POSName(), orNone(syn.NormalizedPOS(), "?"))
	fmt.Fprintf(&sb, "%s lemmas: %s\n", sourceName, orNone(strings.Join(syn.Lemmas, ", "), "(none)"))
	fmt.Fprintf(&sb, "Definition: %s\n", orNone(syn.Definition, "(not provided)"))
	fmt.Fprintf(&sb, "Usage examples:\n%s\n", bulletList(syn.Examples, "(no direct examples)"))
	if len(syn.Domains) > 0 {
		fmt.Fprintf(&sb, "Domains: %s\n", strings.Join(syn.Domains, ", "))
	}
	sb.WriteString(`
Return a JSON object with:
- "sense_summary": concise description (1-2 sentences) capturing the nuance of this sense and how it differs from other senses of the same lemmas.
- "contrastive_note": optional short note naming the sibling sense most easily confused with this one (or null).
- "key_features": list of 2-4 short points highlighting distinguishing aspects.
- "domain_tags": optional list of topical labels (or []).
- "confidence": one of ["high", "medium", "low"].

Keep the analysis in `)
	sb.WriteString(sourceName)
	sb.WriteString(" and focus on the sense, not translation.")
	return sb.String()
}

func renderDefinitionPrompt(syn internal.Synset, sense map[string]any, sourceName, targetName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the %s definition into %s while preserving the analysed sense.\n\n", sourceName, targetName)
	fmt.Fprintf(&sb, "Original definition:\n%q\n\n", syn.Definition)
	fmt.Fprintf(&sb, "Sense summary: %s\n", orNone(schema.String(sense, "sense_summary"), "(no summary provided)"))
	if note := schema.String(sense, "contrastive_note"); note != "" {
		fmt.Fprintf(&sb, "Do not confuse with: %s\n", note)
	}
	fmt.Fprintf(&sb, "Key features:\n%s\n", bulletList(schema.Strings(sense, "key_features"), "(not provided)"))
	if len(syn.Examples) > 0 {
		fmt.Fprintf(&sb, "Source examples:\n%s\n", bulletList(syn.Examples, ""))
	}
	fmt.Fprintf(&sb, `
Produce JSON with:
- "definition_translation": the definition rewritten in %[1]s, in lexicographic style.
- "notes": optional clarifications for lexicographers (string or null).
- "examples": optional list of example sentences in %[1]s (or []).`, targetName)
	return sb.String()
}

func renderLemmaPrompt(syn internal.Synset, sense map[string]any, hints map[string]string, sourceName, targetName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate each %s lemma of this synset into %s, in order.\n\n", sourceName, targetName)
	fmt.Fprintf(&sb, "Part of speech: %s\n", syn.POSName())
	fmt.Fprintf(&sb, "Definition: %s\n", orNone(syn.Definition, "(not provided)"))
	fmt.Fprintf(&sb, "Sense summary: %s\n", orNone(schema.String(sense, "sense_summary"), "(no summary available)"))
	sb.WriteString("Lemmas:\n")
	for i, l := range syn.Lemmas {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, l)
	}
	if len(hints) > 0 {
		sb.WriteString("\nCurator glossary (use these translations when the sense matches):\n")
		keys := make([]string, 0, len(hints))
		for k := range hints {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s -> %s\n", k, hints[k])
		}
	}
	fmt.Fprintf(&sb, `
Return JSON with:
- "initial_translations": list with exactly one entry per lemma, in the same order; each entry is the best %[1]s base form for that lemma in this sense, or null when there is no direct equivalent.
- "alignment": object mapping each %[2]s lemma to its translation (or null).`, targetName, sourceName)
	return sb.String()
}

func renderExpansionPrompt(current []string, sense, definition map[string]any, iteration int, targetName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Expand the set of %s synonyms for this sense (round %d).\n\n", targetName, iteration)
	fmt.Fprintf(&sb, "Sense summary: %s\n", orNone(schema.String(sense, "sense_summary"), "(no summary available)"))
	fmt.Fprintf(&sb, "Translated definition: %s\n", orNone(schema.String(definition, "definition_translation"), "(definition not translated)"))
	fmt.Fprintf(&sb, "Current synonyms: %s\n", quotedList(current))
	fmt.Fprintf(&sb, `
Propose additional %[1]s words or canonical multi-word lemmas that express exactly this sense and are not already listed.
Use base (dictionary) forms only. If nothing is missing, return an empty list.

Return JSON with:
- "expanded_synonyms": list of NEW synonyms only.
- "rationale": object mapping each new synonym to a short justification.`, targetName)
	return sb.String()
}

var filterPolicies = map[Strictness]string{
	StrictnessLenient: `Keep a candidate if any established sense of the word plausibly covers the concept in the definition.
Reject only candidates that clearly mean something else or are not real lemmas.`,
	StrictnessStandard: `Evaluate each candidate against the definition, not merely against the other candidates.
Keep a candidate if at least one commonly established sense of the word clearly satisfies the concept in the definition.
Polysemous words are legitimate members as long as one sense fits (for example a word meaning both an organization and the building that houses it).
Reject a candidate if:
- it only restates a generic hypernym already present in the definition text;
- it adds a modifier, particle or implied object that narrows or shifts the scope of the concept;
- it is a non-canonical multi-word construction (such as a genitive phrase) rather than a canonical base form;
- it corresponds only to a clearly different sense of the word.`,
	StrictnessStrict: `Keep a candidate only if its primary, most common sense matches the concept in the definition exactly.
Reject generic hypernyms, any word whose fitting sense is secondary or figurative, modified or narrowed forms, and every multi-word construction that is not an established lexicalised lemma.`,
}

func renderFilterPrompt(candidates []string, sense, definition map[string]any, strictness Strictness, targetName string) string {
	policy, ok := filterPolicies[strictness]
	if !ok {
		policy = filterPolicies[StrictnessStandard]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Filter the %s synonym candidates for this sense.\n\n", targetName)
	fmt.Fprintf(&sb, "Sense summary: %s\n", orNone(schema.String(sense, "sense_summary"), "(no summary available)"))
	fmt.Fprintf(&sb, "Translated definition: %s\n", orNone(schema.String(definition, "definition_translation"), "(definition not translated)"))
	fmt.Fprintf(&sb, "Candidates: %s\n\n", quotedList(candidates))
	sb.WriteString("Policy:\n")
	sb.WriteString(policy)
	sb.WriteString(`

Return JSON with:
- "filtered_synonyms": list of the kept candidates, spelled exactly as given.
- "confidence_by_word": object mapping each kept candidate to "high", "medium" or "low".
- "removed": list of {"word": ..., "reason": ...} for every rejected candidate, each with a short reason.
- "confidence": overall confidence for this decision, one of ["high", "medium", "low"].`)
	return sb.String()
}

func renderReviewPrompt(definitionText string, synonyms []string, targetName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Review the %s dictionary definition below before it is published.\n\n", targetName)
	fmt.Fprintf(&sb, "Definition: %s\n", orNone(definitionText, "(no translated definition available)"))
	fmt.Fprintf(&sb, "Synonyms of the defined concept: %s\n", quotedList(synonyms))
	fmt.Fprintf(&sb, `
Check for:
- circularity: the definition uses one of the synonyms of the concept it defines;
- grammatical agreement problems (gender, number, case);
- tone inconsistent with lexicographic style.

Return JSON with:
- "status": "ok" or "needs_revision".
- "issues": list of {"category": "circularity"|"grammar"|"style"|"other", "message": ...} (or []).
- "revised_definition": an improved %[1]s definition when status is "needs_revision", otherwise null.
- "notes": optional short summary for the curator (string or null).`, targetName)
	return sb.String()
}
