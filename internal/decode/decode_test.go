package decode

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Tiers(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantTier Tier
		wantKey  string
		wantVal  any
	}{
		{
			name:     "whole object",
			raw:      `{"sense_summary": "an organization"}`,
			wantTier: TierWhole,
			wantKey:  "sense_summary",
			wantVal:  "an organization",
		},
		{
			name:     "whole object with surrounding whitespace",
			raw:      "\n  {\"confidence\": \"high\"}  \n",
			wantTier: TierWhole,
			wantKey:  "confidence",
			wantVal:  "high",
		},
		{
			name:     "fenced block inside prose",
			raw:      "Here is my analysis of the synset.\n```json\n{\"definition_translation\": \"ustanova koja\"}\n```\nLet me know if you need more.",
			wantTier: TierFenced,
			wantKey:  "definition_translation",
			wantVal:  "ustanova koja",
		},
		{
			name:     "plain fence without language",
			raw:      "```\n{\"status\": \"ok\"}\n```",
			wantTier: TierFenced,
			wantKey:  "status",
			wantVal:  "ok",
		},
		{
			name:     "reasoning tags",
			raw:      "<think>The sense is institutional.</think>\n{\"confidence\": \"medium\"}",
			wantTier: TierReasoning,
			wantKey:  "confidence",
			wantVal:  "medium",
		},
		{
			name:     "reasoning with braces inside",
			raw:      "<think>maybe {\"confidence\": \"low\"}?</think>{\"confidence\": \"high\"}",
			wantTier: TierReasoning,
			wantKey:  "confidence",
			wantVal:  "high",
		},
		{
			name:     "embedded in prose",
			raw:      `The translation is: {"translation": "embedded", "examples": ["test"]} as you can see.`,
			wantTier: TierBracket,
			wantKey:  "translation",
			wantVal:  "embedded",
		},
		{
			name:     "braces inside strings are not counted",
			raw:      `Result -> {"notes": "use {curly} sparingly", "status": "ok"} done`,
			wantTier: TierBracket,
			wantKey:  "notes",
			wantVal:  "use {curly} sparingly",
		},
		{
			name:     "trailing comma repaired",
			raw:      `{"status": "ok", "issues": [],}`,
			wantTier: TierRepair,
			wantKey:  "status",
			wantVal:  "ok",
		},
		{
			name:     "unquoted keys repaired",
			raw:      `{status: "needs_revision"}`,
			wantTier: TierRepair,
			wantKey:  "status",
			wantVal:  "needs_revision",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, res.Tier)
			assert.Equal(t, tt.wantVal, res.Payload[tt.wantKey])
		})
	}
}

func TestDecode_Failure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t"},
		{"plain prose", "This is just plain text without any JSON structure"},
		{"array only", `["ustanova", "institucija"]`},
		{"refusal ending in a brace", "I cannot produce that output {"},
		{"preface with bare brace", "Here is the JSON: {"},
		{"bare brace on its own line", "Answer:\n{\n"},
		{"only separators inside", "{ , }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.raw)
			require.Error(t, err)
			assert.Nil(t, res.Payload)
			assert.True(t, errors.Is(err, ErrUndecodable))

			var decErr *Error
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.raw, decErr.Raw)
		})
	}
}

func TestDecode_EmptyObjectIsLiteral(t *testing.T) {
	res, err := Decode("{}")
	require.NoError(t, err)
	assert.Equal(t, TierWhole, res.Tier)
	assert.Empty(t, res.Payload)
}

func TestDecode_SpacedEmptyObjectIsLiteral(t *testing.T) {
	res, err := Decode("The answer is { }")
	require.NoError(t, err)
	assert.Empty(t, res.Payload)
}

func TestBalancedObjects(t *testing.T) {
	got := balancedObjects(`a {"x": {"y": 1}} b {"z": "}"} c {unclosed`)
	assert.Equal(t, []string{
		`{"x": {"y": 1}}`,
		`{"y": 1}`,
		`{"z": "}"}`,
	}, got)
}

func TestBalancedObjects_UnmatchedBraces(t *testing.T) {
	text := strings.Repeat("{ ", 20000) + `{"status": "ok"}`
	got := balancedObjects(text)
	require.Len(t, got, 1)
	assert.Equal(t, `{"status": "ok"}`, got[0])

	res, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Payload["status"])
}
