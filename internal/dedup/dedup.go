// Package dedup removes redundant multi-word candidates from a synonym list.
package dedup

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultPrefixes are Serbian superlative and "main/chief" modifier stems.
var DefaultPrefixes = []string{"naj", "glavn"}

// Flagged is a candidate removed as redundant. It stays in the audit trail.
type Flagged struct {
	Word   string `json:"word"`
	Reason string `json:"reason"`
}

// Result is the deduplicated list in input order plus the flagged entries.
type Result struct {
	Kept    []string  `json:"kept"`
	Flagged []Flagged `json:"flagged"`
}

// Deduplicator flags compounds that contain a single-word entry of the same
// list, and compounds starting with a modifier prefix.
type Deduplicator struct {
	prefixes []string
}

func New(prefixes []string) *Deduplicator {
	d := &Deduplicator{}
	for _, p := range prefixes {
		if p = Key(p); p != "" {
			d.prefixes = append(d.prefixes, p)
		}
	}
	return d
}

// Key normalises a word for comparison: NFC, case-folded, inner whitespace
// collapsed.
func Key(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// IsCompound reports whether the entry has more than one token.
func IsCompound(s string) bool {
	return len(strings.Fields(s)) > 1
}

// Apply is deterministic and idempotent: Apply(Apply(x).Kept) == Apply(x).
func (d *Deduplicator) Apply(words []string) Result {
	res := Result{Kept: []string{}, Flagged: []Flagged{}}

	singles := make(map[string]string)
	for _, w := range words {
		k := Key(w)
		if k != "" && !IsCompound(k) {
			if _, ok := singles[k]; !ok {
				singles[k] = strings.TrimSpace(w)
			}
		}
	}

	seen := make(map[string]string)
	for _, w := range words {
		word := strings.TrimSpace(w)
		k := Key(word)
		if k == "" {
			continue
		}
		if first, dup := seen[k]; dup {
			res.Flagged = append(res.Flagged, Flagged{Word: word, Reason: fmt.Sprintf("duplicate of %q", first)})
			continue
		}
		seen[k] = word

		if reason, redundant := d.redundant(k, singles); redundant {
			res.Flagged = append(res.Flagged, Flagged{Word: word, Reason: reason})
			continue
		}
		res.Kept = append(res.Kept, word)
	}
	return res
}

func (d *Deduplicator) redundant(key string, singles map[string]string) (string, bool) {
	if !IsCompound(key) {
		return "", false
	}
	tokens := strings.Fields(key)
	for _, tok := range tokens {
		tok = strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if base, ok := singles[tok]; ok {
			return fmt.Sprintf("compound contains existing base word %q", base), true
		}
	}
	for _, p := range d.prefixes {
		if strings.HasPrefix(tokens[0], p) {
			return fmt.Sprintf("multi-word form starts with modifier prefix %q", p), true
		}
	}
	return "", false
}
