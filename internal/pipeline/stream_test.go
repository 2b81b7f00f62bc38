package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/synsetran/internal"
	"github.com/valpere/synsetran/internal/schema"
)

func TestStream_LazyAndFinite(t *testing.T) {
	second := institution
	second.ID = "ENG30-00000002-n"
	script := scriptFor(scenario())
	p := newPipeline(script, Options{})

	s := p.TranslateStream([]internal.Synset{institution, second})
	assert.Empty(t, script.Calls(), "nothing runs before the first pull")
	assert.Equal(t, 2, s.Remaining())

	require.True(t, s.Next(context.Background()))
	assert.Equal(t, institution.ID, s.Result().SynsetID)
	perSynset := len(script.Calls())
	assert.Equal(t, 1, script.CallsFor(string(schema.StageAnalyseSense)))

	require.True(t, s.Next(context.Background()))
	assert.Equal(t, second.ID, s.Result().SynsetID)
	assert.Len(t, script.Calls(), 2*perSynset)

	assert.False(t, s.Next(context.Background()))
	assert.Nil(t, s.Result())
	assert.False(t, s.Next(context.Background()), "a finished stream stays finished")
	assert.NoError(t, s.Err())
	assert.Equal(t, 0, s.Remaining())
}

func TestStream_StopsOnError(t *testing.T) {
	p := newPipeline(scriptFor(scenario()), Options{})
	s := p.TranslateStream([]internal.Synset{institution, institution})

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.Next(ctx))
	cancel()

	assert.False(t, s.Next(ctx))
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.False(t, s.Next(context.Background()))
}
