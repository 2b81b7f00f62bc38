// Package schema holds the structural contracts of the pipeline stages and
// the validator that enforces them.
//
// Validation never fails outright. It always yields a payload that satisfies
// the stage contract: fields that pass their type check are kept (normalised
// to concrete Go types), everything else falls back to the contract default.
package schema

import (
	"fmt"
	"strings"
)

// Stage identifies a pipeline stage and selects its contract.
type Stage string

const (
	StageAnalyseSense        Stage = "analyse_sense"
	StageTranslateDefinition Stage = "translate_definition"
	StageTranslateLemmas     Stage = "translate_lemmas"
	StageExpandSynonyms      Stage = "expand_synonyms"
	StageFilterSynonyms      Stage = "filter_synonyms"
	StageReviewDefinition    Stage = "review_definition"
	StageAssembleResult      Stage = "assemble_result"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageAnalyseSense,
	StageTranslateDefinition,
	StageTranslateLemmas,
	StageExpandSynonyms,
	StageFilterSynonyms,
	StageReviewDefinition,
	StageAssembleResult,
}

// Confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Review statuses.
const (
	StatusOK            = "ok"
	StatusNeedsRevision = "needs_revision"
)

var (
	confidenceEnum = []string{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}
	statusEnum     = []string{StatusOK, StatusNeedsRevision}
)

// PlaceholderSummary is the default sense summary of a repaired payload.
const PlaceholderSummary = "(sense analysis unavailable)"

// Issue is one finding of the definition review.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Removal is a rejected candidate with its reason.
type Removal struct {
	Word   string `json:"word"`
	Reason string `json:"reason"`
}

// Kind is the expected shape of a field value.
type Kind int

const (
	KindString             Kind = iota // string
	KindOptionalString                 // string, null stored as ""
	KindStringList                     // []string, blank entries dropped
	KindNullableStringList             // []*string, positions kept
	KindStringMap                      // map[string]string
	KindNullableStringMap              // map[string]*string
	KindIntMap                         // map[string]int
	KindEnumMap                        // map[string]string restricted to Enum
	KindInt                            // int
	KindBool                           // bool
	KindEnum                           // string restricted to Enum
	KindIssueList                      // []Issue
	KindRemovalList                    // []Removal
)

var kindNames = map[Kind]string{
	KindString:             "string",
	KindOptionalString:     "string or null",
	KindStringList:         "list of strings",
	KindNullableStringList: "list of strings or nulls",
	KindStringMap:          "map of strings",
	KindNullableStringMap:  "map of strings or nulls",
	KindIntMap:             "map of integers",
	KindEnumMap:            "map of enum values",
	KindInt:                "integer",
	KindBool:               "boolean",
	KindEnum:               "enum value",
	KindIssueList:          "list of issues",
	KindRemovalList:        "list of {word, reason}",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Field is one entry of a stage contract.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	NonEmpty bool
	Enum     []string
	Default  func() any
}

// Contract is the full structural contract of one stage.
type Contract struct {
	Stage  Stage
	Fields []Field
}

// Result is the outcome of validating one candidate payload.
type Result struct {
	Valid   bool           `json:"valid"`
	Payload map[string]any `json:"-"`
	Errors  []string       `json:"errors,omitempty"`
}

func str(s string) func() any     { return func() any { return s } }
func emptyStrings() any           { return []string{} }
func emptyNullableStrings() any   { return []*string{} }
func emptyStringMap() any         { return map[string]string{} }
func emptyNullableStringMap() any { return map[string]*string{} }
func emptyIntMap() any            { return map[string]int{} }
func emptyIssues() any            { return []Issue{} }
func emptyRemovals() any          { return []Removal{} }
func zeroInt() any                { return 0 }
func falseBool() any              { return false }

var contracts = map[Stage]Contract{
	StageAnalyseSense: {StageAnalyseSense, []Field{
		{Name: "sense_summary", Kind: KindString, Required: true, NonEmpty: true, Default: str(PlaceholderSummary)},
		{Name: "contrastive_note", Kind: KindOptionalString, Default: str("")},
		{Name: "key_features", Kind: KindStringList, Default: emptyStrings},
		{Name: "domain_tags", Kind: KindStringList, Default: emptyStrings},
		{Name: "confidence", Kind: KindEnum, Required: true, Enum: confidenceEnum, Default: str(ConfidenceLow)},
	}},
	StageTranslateDefinition: {StageTranslateDefinition, []Field{
		{Name: "definition_translation", Kind: KindString, Required: true, Default: str("")},
		{Name: "notes", Kind: KindOptionalString, Default: str("")},
		{Name: "examples", Kind: KindStringList, Default: emptyStrings},
	}},
	StageTranslateLemmas: {StageTranslateLemmas, []Field{
		{Name: "initial_translations", Kind: KindNullableStringList, Required: true, Default: emptyNullableStrings},
		{Name: "alignment", Kind: KindNullableStringMap, Default: emptyNullableStringMap},
	}},
	StageExpandSynonyms: {StageExpandSynonyms, []Field{
		{Name: "expanded_synonyms", Kind: KindStringList, Required: true, Default: emptyStrings},
		{Name: "rationale", Kind: KindStringMap, Default: emptyStringMap},
		{Name: "iterations_run", Kind: KindInt, Default: zeroInt},
		{Name: "synonym_provenance", Kind: KindIntMap, Default: emptyIntMap},
		{Name: "converged", Kind: KindBool, Default: falseBool},
	}},
	StageFilterSynonyms: {StageFilterSynonyms, []Field{
		{Name: "filtered_synonyms", Kind: KindStringList, Required: true, Default: emptyStrings},
		{Name: "confidence_by_word", Kind: KindEnumMap, Enum: confidenceEnum, Default: emptyStringMap},
		{Name: "removed", Kind: KindRemovalList, Default: emptyRemovals},
		{Name: "confidence", Kind: KindEnum, Required: true, Enum: confidenceEnum, Default: str(ConfidenceLow)},
	}},
	StageReviewDefinition: {StageReviewDefinition, []Field{
		{Name: "status", Kind: KindEnum, Required: true, Enum: statusEnum, Default: str(StatusNeedsRevision)},
		{Name: "issues", Kind: KindIssueList, Default: emptyIssues},
		{Name: "revised_definition", Kind: KindOptionalString, Default: str("")},
		{Name: "notes", Kind: KindOptionalString, Default: str("")},
	}},
	StageAssembleResult: {StageAssembleResult, []Field{
		{Name: "representative_literal", Kind: KindOptionalString, Default: str("")},
		{Name: "definition", Kind: KindString, Required: true, Default: str("")},
		{Name: "synonyms", Kind: KindStringList, Required: true, Default: emptyStrings},
		{Name: "examples", Kind: KindStringList, Default: emptyStrings},
		{Name: "notes", Kind: KindStringList, Default: emptyStrings},
		{Name: "curator_summary", Kind: KindString, Required: true, Default: str("")},
	}},
}

// For returns the contract of a stage.
func For(stage Stage) (Contract, bool) {
	c, ok := contracts[stage]
	return c, ok
}

// Defaults returns a fresh payload holding every field default of the stage.
func Defaults(stage Stage) map[string]any {
	c, ok := contracts[stage]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(c.Fields))
	for _, f := range c.Fields {
		out[f.Name] = f.Default()
	}
	return out
}

// Validate checks a candidate against the stage contract and returns the
// normalised payload. When the candidate is invalid, the payload is the
// stage defaults overlaid with every field that passed on its own.
func Validate(stage Stage, candidate map[string]any) Result {
	c, ok := contracts[stage]
	if !ok {
		return Result{Payload: map[string]any{}, Errors: []string{fmt.Sprintf("unknown stage %q", stage)}}
	}
	payload, errs := c.apply(candidate)
	return Result{Valid: len(errs) == 0, Payload: payload, Errors: errs}
}

// Repair returns the schema-conformant payload for a candidate, whether or
// not it was valid.
func Repair(stage Stage, candidate map[string]any) map[string]any {
	return Validate(stage, candidate).Payload
}

func (c Contract) apply(candidate map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(c.Fields))
	var errs []string

	for _, f := range c.Fields {
		raw, present := candidate[f.Name]
		if !present || raw == nil {
			if f.Required {
				errs = append(errs, fmt.Sprintf("%s: missing required field", f.Name))
			}
			out[f.Name] = f.Default()
			continue
		}

		v, err := f.coerce(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f.Name, err))
			out[f.Name] = f.Default()
			continue
		}
		out[f.Name] = v
	}

	// Fields outside the contract are dropped silently.
	return out, errs
}

func (f Field) coerce(raw any) (any, error) {
	mismatch := fmt.Errorf("expected %s, got %T", f.Kind, raw)

	switch f.Kind {
	case KindString, KindOptionalString:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch
		}
		s = strings.TrimSpace(s)
		if f.NonEmpty && s == "" {
			return nil, fmt.Errorf("must not be empty")
		}
		return s, nil

	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch
		}
		return f.enumValue(s)

	case KindStringList:
		items, ok := toStrings(raw)
		if !ok {
			return nil, mismatch
		}
		out := make([]string, 0, len(items))
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if f.NonEmpty && len(out) == 0 {
			return nil, fmt.Errorf("must not be empty")
		}
		return out, nil

	case KindNullableStringList:
		out, ok := toNullableStrings(raw)
		if !ok {
			return nil, mismatch
		}
		return out, nil

	case KindStringMap:
		out, ok := toStringMap(raw)
		if !ok {
			return nil, mismatch
		}
		return out, nil

	case KindNullableStringMap:
		out, ok := toNullableStringMap(raw)
		if !ok {
			return nil, mismatch
		}
		return out, nil

	case KindEnumMap:
		m, ok := toStringMap(raw)
		if !ok {
			return nil, mismatch
		}
		out := make(map[string]string, len(m))
		for k, v := range m {
			ev, err := f.enumValue(v)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = ev.(string)
		}
		return out, nil

	case KindIntMap:
		out, ok := toIntMap(raw)
		if !ok {
			return nil, mismatch
		}
		return out, nil

	case KindInt:
		n, ok := toInt(raw)
		if !ok {
			return nil, mismatch
		}
		return n, nil

	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, mismatch
		}
		return b, nil

	case KindIssueList:
		out, ok := toIssues(raw)
		if !ok {
			return nil, mismatch
		}
		return out, nil

	case KindRemovalList:
		out, ok := toRemovals(raw)
		if !ok {
			return nil, mismatch
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported kind %s", f.Kind)
}

func (f Field) enumValue(s string) (any, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, allowed := range f.Enum {
		if norm == allowed {
			return norm, nil
		}
	}
	return nil, fmt.Errorf("%q is not one of %v", s, f.Enum)
}
