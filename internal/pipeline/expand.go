package pipeline

import (
	"context"
	"sort"

	"github.com/valpere/synsetran/internal/dedup"
	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

// candidateSet is an insertion-ordered set of words compared by dedup.Key.
type candidateSet struct {
	words      []string
	index      map[string]int
	provenance map[string]int
	rationale  map[string]string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{
		index:      make(map[string]int),
		provenance: make(map[string]int),
		rationale:  make(map[string]string),
	}
}

// add inserts word unless an equivalent entry exists; it reports whether
// the word was new.
func (c *candidateSet) add(word string, iteration int, why string) bool {
	key := dedup.Key(word)
	if key == "" {
		return false
	}
	if _, ok := c.index[key]; ok {
		return false
	}
	c.index[key] = len(c.words)
	c.words = append(c.words, word)
	c.provenance[word] = iteration
	if why != "" {
		c.rationale[word] = why
	}
	return true
}

func (c *candidateSet) list() []string {
	return append([]string(nil), c.words...)
}

// lookup returns the stored surface form equivalent to word.
func (c *candidateSet) lookup(word string) (string, bool) {
	i, ok := c.index[dedup.Key(word)]
	if !ok {
		return "", false
	}
	return c.words[i], true
}

func (p *Pipeline) expandSynonyms(ctx context.Context, st *State) error {
	set := newCandidateSet()
	for _, t := range schema.NullableStrings(st.Lemmas(), "initial_translations") {
		if t != nil {
			set.add(*t, 0, "")
		}
	}

	converged := false
	iterations := 0
	for i := 1; i <= p.opts.MaxExpansionIterations; i++ {
		if ctx.Err() != nil {
			break
		}
		iterations = i

		inv := p.invoke(ctx, st, invoke.Call{
			Stage:     schema.StageExpandSynonyms,
			Prompt:    renderExpansionPrompt(set.list(), st.Sense(), st.Definition(), i, p.targetName()),
			Iteration: i,
		})
		if inv.Degraded {
			// A failed round says nothing about convergence.
			break
		}

		why := schema.StringMap(inv.Payload, "rationale")
		added := 0
		for _, w := range schema.Strings(inv.Payload, "expanded_synonyms") {
			if set.add(w, i, lookupFold(why, w)) {
				added++
			}
		}
		p.log.Debug("expansion round", "synset", st.Synset().ID, "iteration", i, "added", added, "size", len(set.words))
		if added == 0 {
			converged = true
			break
		}
	}
	if !converged && iterations == p.opts.MaxExpansionIterations && !st.stageDegraded(schema.StageExpandSynonyms) {
		st.addNote(schema.StageExpandSynonyms, "expansion stopped at the %d-iteration limit without converging", iterations)
	}

	payload := schema.Repair(schema.StageExpandSynonyms, map[string]any{
		"expanded_synonyms":  set.list(),
		"rationale":          set.rationale,
		"iterations_run":     iterations,
		"synonym_provenance": set.provenance,
		"converged":          converged,
	})
	return st.set(schema.StageExpandSynonyms, payload)
}

// lookupFold finds a map value by exact key, then by normalised key.
func lookupFold(m map[string]string, key string) string {
	v, _ := foldLookup(m, key)
	return v
}

// foldLookup prefers an exact key. Otherwise the first key in sorted order
// whose normalised form equals the normalised key wins.
func foldLookup[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	k := dedup.Key(key)
	keys := make([]string, 0, len(m))
	for mk := range m {
		keys = append(keys, mk)
	}
	sort.Strings(keys)
	for _, mk := range keys {
		if dedup.Key(mk) == k {
			return m[mk], true
		}
	}
	var zero V
	return zero, false
}
