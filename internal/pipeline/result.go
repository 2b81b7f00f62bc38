package pipeline

import (
	"github.com/valpere/synsetran/internal"
	"github.com/valpere/synsetran/internal/dedup"
	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/schema"
)

// Candidate is one synonym considered for the synset.
type Candidate struct {
	Word string `json:"word"`
	// Provenance is the expansion iteration that introduced the word;
	// 0 means a seed lemma translation.
	Provenance int    `json:"provenance"`
	Rationale  string `json:"rationale,omitempty"`
	Kept       bool   `json:"kept"`
	Confidence string `json:"confidence,omitempty"`
	Reason     string `json:"removal_reason,omitempty"`
}

// Result is the terminal, read-only output for one synset.
type Result struct {
	SynsetID   string          `json:"synset_id"`
	SourceLang string          `json:"source_lang"`
	TargetLang string          `json:"target_lang"`
	Source     internal.Synset `json:"source"`

	RepresentativeLiteral string `json:"representative_literal"`
	Definition            string `json:"definition"`
	// OriginalDefinition holds the first translation when the reviewed
	// revision was adopted.
	OriginalDefinition string               `json:"original_definition,omitempty"`
	Synonyms           []string             `json:"synonyms"`
	Candidates         []Candidate          `json:"candidates"`
	Redundant          []dedup.Flagged      `json:"redundant,omitempty"`
	Examples           []string             `json:"examples"`
	Notes              []string             `json:"notes"`
	CuratorSummary     string               `json:"curator_summary"`
	ReviewStatus       string               `json:"review_status"`
	Issues             []schema.Issue       `json:"issues,omitempty"`
	Confidence         string               `json:"confidence"`
	Converged          bool                 `json:"converged"`
	IterationsRun      int                  `json:"iterations_run"`
	DegradedStages     []schema.Stage       `json:"degraded_stages,omitempty"`
	Records            []invoke.StageRecord `json:"records,omitempty"`
}

// Degraded reports whether any stage fell back to a repaired payload.
func (r *Result) Degraded() bool { return len(r.DegradedStages) > 0 }

// RecordsFor returns the audit entries of one stage.
func (r *Result) RecordsFor(stage schema.Stage) []invoke.StageRecord {
	var out []invoke.StageRecord
	for _, rec := range r.Records {
		if rec.Stage == stage {
			out = append(out, rec)
		}
	}
	return out
}
