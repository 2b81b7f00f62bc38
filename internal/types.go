package internal

import "strings"

// Synset is a source-language sense with its lemmas and gloss. It is created
// by the input readers and never modified by the pipeline.
type Synset struct {
	ID         string   `json:"id" yaml:"id"`
	Lemmas     []string `json:"lemmas" yaml:"lemmas"`
	Definition string   `json:"definition" yaml:"definition"`
	Examples   []string `json:"examples,omitempty" yaml:"examples,omitempty"`
	POS        string   `json:"pos" yaml:"pos"`
	Domains    []string `json:"domains,omitempty" yaml:"domains,omitempty"`
}

// Serbian WordNet tags adverbs with "b", Princeton WordNet uses "r".
var posToPrinceton = map[string]string{
	"b": "r",
	"n": "n",
	"v": "v",
	"a": "a",
	"s": "a",
}

var posNames = map[string]string{
	"n": "noun",
	"v": "verb",
	"a": "adjective",
	"r": "adverb",
}

// NormalizedPOS returns the lowercase Princeton-style tag for the synset.
func (s Synset) NormalizedPOS() string {
	p := strings.ToLower(strings.TrimSpace(s.POS))
	if mapped, ok := posToPrinceton[p]; ok {
		return mapped
	}
	return p
}

// POSName returns a readable part-of-speech name, or "unknown".
func (s Synset) POSName() string {
	if name, ok := posNames[s.NormalizedPOS()]; ok {
		return name
	}
	return "unknown"
}

// Clone returns a deep copy so callers cannot mutate pipeline input.
func (s Synset) Clone() Synset {
	out := s
	out.Lemmas = append([]string(nil), s.Lemmas...)
	out.Examples = append([]string(nil), s.Examples...)
	out.Domains = append([]string(nil), s.Domains...)
	return out
}
