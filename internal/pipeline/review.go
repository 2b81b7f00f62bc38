package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/valpere/synsetran/internal/dedup"
	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

const (
	issueCircularity = "circularity"
	issueLanguage    = "language"
)

func (p *Pipeline) reviewDefinition(ctx context.Context, st *State) error {
	definition := schema.String(st.Definition(), "definition_translation")
	synonyms := schema.Strings(st.Filtering(), "filtered_synonyms")

	inv := p.invoke(ctx, st, invoke.Call{
		Stage:  schema.StageReviewDefinition,
		Prompt: renderReviewPrompt(definition, synonyms, p.targetName()),
	})

	issues := append([]schema.Issue(nil), schema.Issues(inv.Payload, "issues")...)
	status := schema.String(inv.Payload, "status")

	var found []schema.Issue
	for _, syn := range circularSynonyms(definition, synonyms) {
		found = append(found, schema.Issue{
			Category: issueCircularity,
			Message:  fmt.Sprintf("definition uses its own synonym %q", syn),
		})
	}
	if p.opts.LanguageChecker != nil && definition != "" {
		if err := p.opts.LanguageChecker.Check(definition, p.opts.TargetLang); err != nil {
			found = append(found, schema.Issue{Category: issueLanguage, Message: err.Error()})
		}
	}
	for _, is := range found {
		if !hasIssue(issues, is) {
			issues = append(issues, is)
		}
	}
	if len(found) > 0 && status == schema.StatusOK {
		status = schema.StatusNeedsRevision
		st.addNote(schema.StageReviewDefinition, "status changed to needs_revision by automatic checks")
	}

	payload := schema.Repair(schema.StageReviewDefinition, map[string]any{
		"status":             status,
		"issues":             issues,
		"revised_definition": schema.String(inv.Payload, "revised_definition"),
		"notes":              schema.String(inv.Payload, "notes"),
	})
	return st.set(schema.StageReviewDefinition, payload)
}

func hasIssue(issues []schema.Issue, is schema.Issue) bool {
	for _, x := range issues {
		if x.Category == is.Category && x.Message == is.Message {
			return true
		}
	}
	return false
}

// circularSynonyms returns the synonyms that occur in the definition as whole
// words (or whole word sequences for multi-word entries), in list order.
func circularSynonyms(definition string, synonyms []string) []string {
	tokens := words(definition)
	if len(tokens) == 0 {
		return nil
	}
	var out []string
	for _, syn := range synonyms {
		needle := words(syn)
		if len(needle) > 0 && containsSeq(tokens, needle) {
			out = append(out, syn)
		}
	}
	return out
}

func words(s string) []string {
	f := strings.FieldsFunc(dedup.Key(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	return f
}

func containsSeq(hay, needle []string) bool {
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
