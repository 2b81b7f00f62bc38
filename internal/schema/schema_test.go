package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidPayloads(t *testing.T) {
	tests := []struct {
		name      string
		stage     Stage
		candidate map[string]any
		check     func(t *testing.T, p map[string]any)
	}{
		{
			name:  "sense analysis",
			stage: StageAnalyseSense,
			candidate: map[string]any{
				"sense_summary": " An established organization. ",
				"key_features":  []any{"organized", "", "public"},
				"confidence":    "High",
				"extra":         "dropped",
			},
			check: func(t *testing.T, p map[string]any) {
				assert.Equal(t, "An established organization.", String(p, "sense_summary"))
				assert.Equal(t, []string{"organized", "public"}, Strings(p, "key_features"))
				assert.Equal(t, []string{}, Strings(p, "domain_tags"))
				assert.Equal(t, ConfidenceHigh, String(p, "confidence"))
				assert.NotContains(t, p, "extra")
			},
		},
		{
			name:  "lemma translations keep null positions",
			stage: StageTranslateLemmas,
			candidate: map[string]any{
				"initial_translations": []any{"ustanova", nil, ""},
				"alignment":            map[string]any{"institution": "ustanova", "foundation": nil},
			},
			check: func(t *testing.T, p map[string]any) {
				got := NullableStrings(p, "initial_translations")
				require.Len(t, got, 3)
				assert.Equal(t, "ustanova", *got[0])
				assert.Nil(t, got[1])
				assert.Nil(t, got[2])
				align := NullableStringMap(p, "alignment")
				assert.Equal(t, "ustanova", *align["institution"])
				assert.Nil(t, align["foundation"])
			},
		},
		{
			name:  "expansion integers from JSON numbers",
			stage: StageExpandSynonyms,
			candidate: map[string]any{
				"expanded_synonyms":  []any{"ustanova"},
				"iterations_run":     float64(2),
				"synonym_provenance": map[string]any{"ustanova": float64(0)},
				"converged":          true,
			},
			check: func(t *testing.T, p map[string]any) {
				assert.Equal(t, 2, Int(p, "iterations_run"))
				assert.Equal(t, map[string]int{"ustanova": 0}, IntMap(p, "synonym_provenance"))
				assert.True(t, Bool(p, "converged"))
			},
		},
		{
			name:  "filtering with removals",
			stage: StageFilterSynonyms,
			candidate: map[string]any{
				"filtered_synonyms":  []any{"ustanova"},
				"confidence_by_word": map[string]any{"ustanova": "MEDIUM"},
				"removed":            []any{map[string]any{"word": "centar", "reason": "generic hypernym"}},
				"confidence":         "medium",
			},
			check: func(t *testing.T, p map[string]any) {
				assert.Equal(t, map[string]string{"ustanova": ConfidenceMedium}, StringMap(p, "confidence_by_word"))
				assert.Equal(t, []Removal{{Word: "centar", Reason: "generic hypernym"}}, Removals(p, "removed"))
			},
		},
		{
			name:  "issues as objects and strings",
			stage: StageReviewDefinition,
			candidate: map[string]any{
				"status": "needs_revision",
				"issues": []any{
					map[string]any{"category": "Circularity", "message": "uses ustanova"},
					"awkward tone",
				},
				"revised_definition": nil,
			},
			check: func(t *testing.T, p map[string]any) {
				assert.Equal(t, []Issue{
					{Category: "circularity", Message: "uses ustanova"},
					{Category: "other", Message: "awkward tone"},
				}, Issues(p, "issues"))
				assert.Equal(t, "", String(p, "revised_definition"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.stage, tt.candidate)
			require.True(t, res.Valid, "errors: %v", res.Errors)
			tt.check(t, res.Payload)
		})
	}
}

func TestValidate_RepairKeepsIndependentlyValidFields(t *testing.T) {
	res := Validate(StageAnalyseSense, map[string]any{
		"sense_summary": "",
		"key_features":  []any{"a", "b"},
		"domain_tags":   "not a list",
		"confidence":    "certain",
	})

	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 3)
	assert.Equal(t, PlaceholderSummary, String(res.Payload, "sense_summary"))
	assert.Equal(t, []string{"a", "b"}, Strings(res.Payload, "key_features"))
	assert.Equal(t, []string{}, Strings(res.Payload, "domain_tags"))
	assert.Equal(t, ConfidenceLow, String(res.Payload, "confidence"))
}

func TestValidate_RemovalListWithBlankReasonIsRejected(t *testing.T) {
	res := Validate(StageFilterSynonyms, map[string]any{
		"filtered_synonyms": []any{"ustanova"},
		"removed":           []any{map[string]any{"word": "centar"}},
		"confidence":        "high",
	})

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"ustanova"}, Strings(res.Payload, "filtered_synonyms"))
	assert.Empty(t, Removals(res.Payload, "removed"))
}

// Repair of an empty or malformed map must satisfy every required field and
// enum constraint of every stage.
func TestRepair_AlwaysConforms(t *testing.T) {
	inputs := map[string]map[string]any{
		"nil":   nil,
		"empty": {},
		"garbage": {
			"sense_summary":          42,
			"confidence":             []any{"high"},
			"definition_translation": map[string]any{},
			"initial_translations":   "ustanova",
			"expanded_synonyms":      []any{1, 2},
			"iterations_run":         1.5,
			"filtered_synonyms":      true,
			"status":                 "great",
			"issues":                 []any{42},
			"curator_summary":        nil,
		},
	}

	for _, stage := range Stages {
		for name, in := range inputs {
			t.Run(string(stage)+"/"+name, func(t *testing.T) {
				repaired := Repair(stage, in)
				again := Validate(stage, repaired)
				assertConforms(t, stage, repaired)
				assert.Equal(t, repaired, again.Payload)
			})
		}
	}
}

func assertConforms(t *testing.T, stage Stage, p map[string]any) {
	t.Helper()
	c, ok := For(stage)
	require.True(t, ok)
	for _, f := range c.Fields {
		v, present := p[f.Name]
		require.True(t, present, "field %s missing", f.Name)
		require.NotNil(t, v, "field %s nil", f.Name)
		if f.NonEmpty {
			assert.NotEmpty(t, v, "field %s empty", f.Name)
		}
		if f.Kind == KindEnum {
			assert.Contains(t, f.Enum, v, "field %s", f.Name)
		}
	}
}

func TestValidate_UnknownStage(t *testing.T) {
	res := Validate("nope", map[string]any{"a": 1})
	assert.False(t, res.Valid)
	assert.Empty(t, res.Payload)
}

func TestUseful(t *testing.T) {
	assert.False(t, Useful(StageAnalyseSense)(Defaults(StageAnalyseSense)))
	assert.True(t, Useful(StageAnalyseSense)(map[string]any{"sense_summary": "x"}))
	assert.False(t, Useful(StageTranslateDefinition)(Defaults(StageTranslateDefinition)))
	assert.True(t, Useful(StageFilterSynonyms)(Defaults(StageFilterSynonyms)))

	u := "ustanova"
	assert.True(t, AnyTranslated(map[string]any{"initial_translations": []*string{nil, &u}}))
	assert.False(t, AnyTranslated(map[string]any{"initial_translations": []*string{nil}}))
}
