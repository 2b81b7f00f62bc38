package pipeline

import (
	"context"

	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

func (p *Pipeline) analyseSense(ctx context.Context, st *State) error {
	inv := p.invoke(ctx, st, invoke.Call{
		Stage:  schema.StageAnalyseSense,
		Prompt: renderSensePrompt(st.Synset(), p.sourceName()),
	})
	return st.set(schema.StageAnalyseSense, inv.Payload)
}

func (p *Pipeline) translateDefinition(ctx context.Context, st *State) error {
	inv := p.invoke(ctx, st, invoke.Call{
		Stage:  schema.StageTranslateDefinition,
		Prompt: renderDefinitionPrompt(st.Synset(), st.Sense(), p.sourceName(), p.targetName()),
	})
	return st.set(schema.StageTranslateDefinition, inv.Payload)
}
