package invoke

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/synsetran/internal/decode"
	"github.com/valpere/synsetran/internal/llm"
	"github.com/valpere/synsetran/internal/logging"
	"github.com/valpere/synsetran/internal/schema"
)

const sense = string(schema.StageAnalyseSense)

func newController(b llm.Backend, retries int) *Controller {
	return New(b, Options{Temperature: 0.2, Timeout: time.Second, MaxRetries: retries, Logger: logging.Discard()})
}

func TestInvoke_FirstAttemptAccepted(t *testing.T) {
	script := llm.NewScript().Push(sense,
		"I looked at the synset carefully.\n```json\n{\"sense_summary\": \"An organization.\", \"confidence\": \"high\"}\n```\nHope this helps.")
	c := newController(script, 2)

	inv := c.Invoke(context.Background(), Call{Stage: schema.StageAnalyseSense, Prompt: "p", System: "s", MaxRetries: -1})

	assert.False(t, inv.Degraded)
	require.Len(t, inv.Attempts, 1)
	assert.Equal(t, decode.TierFenced, inv.Attempts[0].Validation.DecodeTier)
	assert.True(t, inv.Attempts[0].Validation.Valid)
	assert.Equal(t, "An organization.", schema.String(inv.Payload, "sense_summary"))
	assert.Equal(t, 1, script.CallsFor(sense))
}

func TestInvoke_UnparsableThreeTimesDegrades(t *testing.T) {
	script := llm.NewScript().Push(sense,
		"I cannot answer that.",
		"Still thinking about it...",
		"no json here either",
	)
	c := newController(script, 2)

	inv := c.Invoke(context.Background(), Call{Stage: schema.StageAnalyseSense, Prompt: "p", System: "s", MaxRetries: 2})

	assert.True(t, inv.Degraded)
	require.Len(t, inv.Attempts, 3)
	for i, rec := range inv.Attempts {
		assert.Equal(t, i+1, rec.Attempt)
		assert.False(t, rec.Validation.Valid)
		assert.NotEmpty(t, rec.RawResponse)
		assert.Equal(t, "p", rec.Prompt)
		assert.Equal(t, "s", rec.SystemPrompt)
	}
	assert.True(t, inv.Final().Validation.Degraded)
	assert.False(t, inv.Attempts[0].Validation.Degraded)

	res := schema.Validate(schema.StageAnalyseSense, inv.Payload)
	assert.True(t, res.Valid, "degraded payload must conform: %v", res.Errors)
	assert.Equal(t, schema.ConfidenceLow, schema.String(inv.Payload, "confidence"))
}

func TestInvoke_DegradedKeepsPartiallyValidFields(t *testing.T) {
	script := llm.NewScript().Push(sense,
		`{"key_features": ["public"], "confidence": "sure"}`,
	)
	c := newController(script, 0)

	inv := c.Invoke(context.Background(), Call{Stage: schema.StageAnalyseSense, MaxRetries: -1})

	assert.True(t, inv.Degraded)
	require.Len(t, inv.Attempts, 1)
	assert.Equal(t, []string{"public"}, schema.Strings(inv.Payload, "key_features"))
	assert.Equal(t, schema.PlaceholderSummary, schema.String(inv.Payload, "sense_summary"))
}

func TestInvoke_RetriesTimeoutsAndBackendErrors(t *testing.T) {
	script := llm.NewScript().
		PushError(sense, llm.ErrTimeout).
		PushError(sense, llm.ErrBackend).
		Push(sense, `{"sense_summary": "ok", "confidence": "medium"}`)
	c := newController(script, 2)

	inv := c.Invoke(context.Background(), Call{Stage: schema.StageAnalyseSense, MaxRetries: 2})

	assert.False(t, inv.Degraded)
	require.Len(t, inv.Attempts, 3)
	assert.Contains(t, inv.Attempts[0].Validation.Errors[0], "timeout")
	assert.Contains(t, inv.Attempts[1].Validation.Errors[0], "backend")
	assert.Equal(t, "ok", schema.String(inv.Payload, "sense_summary"))
}

func TestInvoke_ValidButNotUsefulRetries(t *testing.T) {
	script := llm.NewScript().Push(string(schema.StageTranslateDefinition),
		`{"definition_translation": ""}`,
		`{"definition_translation": "organizacija"}`,
	)
	c := newController(script, 2)

	inv := c.Invoke(context.Background(), Call{Stage: schema.StageTranslateDefinition, MaxRetries: 2})

	require.Len(t, inv.Attempts, 2)
	assert.True(t, inv.Attempts[0].Validation.Valid)
	assert.False(t, inv.Attempts[0].Validation.Useful)
	assert.Equal(t, "organizacija", schema.String(inv.Payload, "definition_translation"))
}

func TestInvoke_CustomUsefulCheck(t *testing.T) {
	script := llm.NewScript().Fallback(`{"filtered_synonyms": [], "confidence": "low"}`)
	c := newController(script, 1)

	inv := c.Invoke(context.Background(), Call{
		Stage:      schema.StageFilterSynonyms,
		MaxRetries: -1,
		Useful:     func(p map[string]any) bool { return len(schema.Strings(p, "filtered_synonyms")) > 0 },
	})

	assert.True(t, inv.Degraded)
	assert.Len(t, inv.Attempts, 2)
}

func TestInvoke_RemembersAcceptedResponse(t *testing.T) {
	script := llm.NewScript().Push(sense,
		"garbage",
		`{"sense_summary": "ok", "confidence": "high"}`,
	)
	backend := llm.Wrap(script, llm.WithResponseCache(4))
	c := newController(backend, 2)
	call := Call{Stage: schema.StageAnalyseSense, Prompt: "p", MaxRetries: -1}

	first := c.Invoke(context.Background(), call)
	second := c.Invoke(context.Background(), call)

	assert.Len(t, first.Attempts, 2)
	assert.Len(t, second.Attempts, 1)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, 2, script.CallsFor(sense))
}

func TestInvoke_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	script := llm.NewScript().Respond(func(req llm.Request, call int) (string, error) {
		cancel()
		return "nothing useful", nil
	})
	c := newController(script, 5)

	inv := c.Invoke(ctx, Call{Stage: schema.StageAnalyseSense, MaxRetries: -1})

	assert.True(t, inv.Degraded)
	assert.Len(t, inv.Attempts, 1)
}
