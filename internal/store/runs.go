package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/synsetran/internal/decode"
	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/pipeline"
	"github.com/valpere/synsetran/internal/schema"
)

const (
	RunRunning     = "running"
	RunCompleted   = "completed"
	RunFailed      = "failed"
	RunInterrupted = "interrupted"
)

// Run is one invocation of the translate command.
type Run struct {
	ID         string
	Backend    string
	Model      string
	SourceLang string
	TargetLang string
	InputFile  string
	Status     string
	Synsets    int
	Degraded   int
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// ResultSummary is a row of the results table without the stored payload.
type ResultSummary struct {
	ID             string
	RunID          string
	SynsetID       string
	Representative string
	ReviewStatus   string
	Synonyms       int
	Degraded       bool
	CreatedAt      time.Time
}

// Stats summarises the audit store and the translation memory.
type Stats struct {
	Runs            int
	Results         int
	DegradedResults int
	StageRecords    int
	DegradedStages  int

	MemoryEntries  int
	ActiveEntries  int
	InvalidEntries int
	MemoryUsage    int
}

// SaveRun records the start of a run and returns its ID.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = newID("run")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, backend, model, source_lang, target_lang, input_file, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Backend, run.Model, run.SourceLang, run.TargetLang, run.InputFile, RunRunning, time.Now())
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// FinishRun stores the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, runID, status string, synsets, degraded int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, synsets = ?, degraded = ?, finished_at = ? WHERE id = ?`,
		status, synsets, degraded, time.Now(), runID)
	if err != nil {
		return err
	}
	return expectRow(res, "run", runID)
}

func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, backend, model, source_lang, target_lang, input_file, status, synsets, degraded, created_at, finished_at FROM runs WHERE id = ?`,
		runID).Scan(&r.ID, &r.Backend, &r.Model, &r.SourceLang, &r.TargetLang, &r.InputFile, &r.Status, &r.Synsets, &r.Degraded, &r.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// ListRuns returns the most recent runs first; limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, backend, model, source_lang, target_lang, input_file, status, synsets, degraded, created_at, finished_at FROM runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Backend, &r.Model, &r.SourceLang, &r.TargetLang, &r.InputFile, &r.Status, &r.Synsets, &r.Degraded, &r.CreatedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveResult stores a result and all of its stage records in one
// transaction and returns the result ID.
func (s *Store) SaveResult(ctx context.Context, runID string, res *pipeline.Result) (string, error) {
	id := newID("res")

	body := *res
	body.Records = nil
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO results (id, run_id, synset_id, representative, review_status, synonyms, degraded, result_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, runID, res.SynsetID, res.RepresentativeLiteral, res.ReviewStatus, len(res.Synonyms), res.Degraded(), string(data), time.Now()); err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stage_records (result_id, seq, stage, attempt, iteration, decode_tier, valid, useful, degraded, prompt, system_prompt, raw_response, payload_json, errors_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, rec := range res.Records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return "", fmt.Errorf("encode %s payload: %w", rec.Stage, err)
		}
		errs, err := json.Marshal(rec.Validation.Errors)
		if err != nil {
			return "", fmt.Errorf("encode %s errors: %w", rec.Stage, err)
		}
		v := rec.Validation
		if _, err := stmt.ExecContext(ctx, id, i, string(rec.Stage), rec.Attempt, rec.Iteration, string(v.DecodeTier),
			v.Valid, v.Useful, v.Degraded, rec.Prompt, rec.SystemPrompt, rec.RawResponse, string(payload), string(errs)); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListResults returns result summaries in insertion order. An empty runID
// lists every run.
func (s *Store) ListResults(ctx context.Context, runID string) ([]ResultSummary, error) {
	query := `SELECT id, run_id, synset_id, representative, review_status, synonyms, degraded, created_at FROM results`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultSummary
	for rows.Next() {
		var r ResultSummary
		if err := rows.Scan(&r.ID, &r.RunID, &r.SynsetID, &r.Representative, &r.ReviewStatus, &r.Synonyms, &r.Degraded, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetResult loads a stored result with its stage records.
func (s *Store) GetResult(ctx context.Context, resultID string) (*pipeline.Result, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM results WHERE id = ?`, resultID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: result %s", ErrNotFound, resultID)
	}
	if err != nil {
		return nil, err
	}

	var res pipeline.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", resultID, err)
	}
	res.Records, err = s.GetStageRecords(ctx, resultID)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetStageRecords returns the audit trail of a result in call order.
func (s *Store) GetStageRecords(ctx context.Context, resultID string) ([]invoke.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, attempt, iteration, decode_tier, valid, useful, degraded, prompt, system_prompt, raw_response, payload_json, errors_json
		 FROM stage_records WHERE result_id = ? ORDER BY seq`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []invoke.StageRecord
	for rows.Next() {
		var rec invoke.StageRecord
		var stage, tier, payload, errs string
		if err := rows.Scan(&stage, &rec.Attempt, &rec.Iteration, &tier, &rec.Validation.Valid, &rec.Validation.Useful,
			&rec.Validation.Degraded, &rec.Prompt, &rec.SystemPrompt, &rec.RawResponse, &payload, &errs); err != nil {
			return nil, err
		}
		rec.Stage = schema.Stage(stage)
		rec.Validation.DecodeTier = decode.Tier(tier)
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", stage, err)
		}
		if err := json.Unmarshal([]byte(errs), &rec.Validation.Errors); err != nil {
			return nil, fmt.Errorf("decode %s errors: %w", stage, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CompletedSynsets returns the synset IDs that already have a result in a
// run, so an interrupted run can be resumed.
func (s *Store) CompletedSynsets(ctx context.Context, runID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT synset_id FROM results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}

// Stats returns summary statistics for runs, results and memory.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM runs),
			(SELECT COUNT(*) FROM results),
			(SELECT COALESCE(SUM(CASE WHEN degraded THEN 1 ELSE 0 END), 0) FROM results),
			(SELECT COUNT(*) FROM stage_records),
			(SELECT COALESCE(SUM(CASE WHEN degraded THEN 1 ELSE 0 END), 0) FROM stage_records)`).Scan(
		&stats.Runs,
		&stats.Results,
		&stats.DegradedResults,
		&stats.StageRecords,
		&stats.DegradedStages,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.MemoryEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.MemoryUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func expectRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return nil
}
