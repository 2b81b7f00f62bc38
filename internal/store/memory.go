package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/synsetran/internal"
	"github.com/valpere/synsetran/internal/pipeline"
)

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID             string
	SynsetKey      string
	SourceLang     string
	TargetLang     string
	Model          string
	Representative string
	UsageCount     int
	Invalidated    bool
	LastUsed       time.Time
}

// memoryKey identifies a synset across runs: its ID when present, otherwise
// its lemmas and definition.
func memoryKey(syn internal.Synset) string {
	if id := normalizeText(syn.ID); id != "" {
		return id
	}
	lemmas := make([]string, len(syn.Lemmas))
	for i, l := range syn.Lemmas {
		lemmas[i] = strings.ToLower(normalizeText(l))
	}
	return "lemmas:" + strings.Join(lemmas, "|") + "#" + normalizeText(syn.Definition)
}

// GetCachedResult returns a previously stored result for the same synset,
// language pair and model. Invalidated entries are misses.
func (s *Store) GetCachedResult(ctx context.Context, syn internal.Synset, sourceLang, targetLang, model string) (*pipeline.Result, bool, error) {
	key := memoryKey(syn)

	var id, data string
	var invalidated bool
	err := s.db.QueryRowContext(ctx,
		`SELECT id, result_json, invalidated FROM translation_memory WHERE synset_key = ? AND source_lang = ? AND target_lang = ? AND model = ?`,
		key, sourceLang, targetLang, model).Scan(&id, &data, &invalidated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if invalidated {
		return nil, false, nil
	}

	res, err := decodeMemory(data)
	if err != nil {
		return nil, false, err
	}
	if err := s.touchMemory(ctx, id); err != nil {
		return res, true, err
	}
	return res, true, nil
}

// SaveToMemory stores a result for reuse by later runs, replacing an
// existing entry for the same key.
func (s *Store) SaveToMemory(ctx context.Context, res *pipeline.Result, model string) error {
	body := *res
	body.Records = nil
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, synset_key, source_lang, target_lang, model, definition, representative, result_json, usage_count, invalidated, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		newID("mem"), memoryKey(res.Source), res.SourceLang, res.TargetLang, model,
		normalizeText(res.Source.Definition), res.RepresentativeLiteral, string(data), now, now)
	return err
}

func (s *Store) touchMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`,
		time.Now(), id)
	return err
}

func decodeMemory(data string) (*pipeline.Result, error) {
	var res pipeline.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &res, nil
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "memory entry", id)
}

// DeleteMemory permanently removes a translation memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, "memory entry", id)
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all translation memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, synset_key, source_lang, target_lang, model, representative, usage_count, invalidated, last_used FROM translation_memory ORDER BY last_used DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SynsetKey, &e.SourceLang, &e.TargetLang, &e.Model, &e.Representative, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// levenshtein returns the edit distance between two strings (rune-aware).
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = min(prev[j], prev[j-1], curr[j-1]) + 1
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// similarity returns a score in [0, 1] (1 = identical).
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// FuzzyGetCachedResult finds a stored result whose source definition is at
// least threshold similar (0-1) to the synset's definition, for the same
// language pair and model. It lets results carry over between WordNet
// releases that renumber synsets. Pass threshold <= 0 to disable.
func (s *Store) FuzzyGetCachedResult(ctx context.Context, syn internal.Synset, sourceLang, targetLang, model string, threshold float64) (*pipeline.Result, bool, error) {
	definition := normalizeText(syn.Definition)
	const maxFuzzyRunes = 1000
	if threshold <= 0 || definition == "" || len([]rune(definition)) > maxFuzzyRunes {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, definition, result_json FROM translation_memory
		 WHERE source_lang = ? AND target_lang = ? AND model = ? AND NOT invalidated ORDER BY id`,
		sourceLang, targetLang, model)
	if err != nil {
		return nil, false, err
	}

	var bestID, bestData string
	bestScore := 0.0
	for rows.Next() {
		var id, def, data string
		if err := rows.Scan(&id, &def, &data); err != nil {
			rows.Close()
			return nil, false, err
		}

		// Length alone can rule a candidate out before the edit distance.
		ls, lr := len([]rune(definition)), len([]rune(def))
		if maxL := max(ls, lr); maxL > 0 && 1.0-float64(max(ls-lr, lr-ls))/float64(maxL) < threshold {
			continue
		}

		if score := similarity(definition, def); score >= threshold && score > bestScore {
			bestScore, bestID, bestData = score, id, data
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, false, err
	}
	rows.Close()

	if bestID == "" {
		return nil, false, nil
	}
	res, err := decodeMemory(bestData)
	if err != nil {
		return nil, false, err
	}
	if err := s.touchMemory(ctx, bestID); err != nil {
		return res, true, err
	}
	return res, true, nil
}
