// Package store persists runs, results and their per-attempt audit trail in
// SQLite, together with a translation memory and the curator glossary.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		backend TEXT NOT NULL,
		model TEXT,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		input_file TEXT,
		status TEXT DEFAULT 'running',
		synsets INTEGER DEFAULT 0,
		degraded INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		synset_id TEXT NOT NULL,
		representative TEXT,
		review_status TEXT,
		synonyms INTEGER DEFAULT 0,
		degraded BOOLEAN DEFAULT FALSE,
		result_json TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- stage_records holds every model attempt of a result, in call order
	CREATE TABLE IF NOT EXISTS stage_records (
		result_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		stage TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		iteration INTEGER DEFAULT 0,
		decode_tier TEXT,
		valid BOOLEAN DEFAULT FALSE,
		useful BOOLEAN DEFAULT FALSE,
		degraded BOOLEAN DEFAULT FALSE,
		prompt TEXT,
		system_prompt TEXT,
		raw_response TEXT,
		payload_json TEXT,
		errors_json TEXT,
		PRIMARY KEY (result_id, seq),
		FOREIGN KEY (result_id) REFERENCES results(id)
	);

	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		synset_key TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		model TEXT NOT NULL,
		definition TEXT,
		representative TEXT,
		result_json TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(synset_key, source_lang, target_lang, model)
	);

	-- glossary stores curator-approved terms used as lemma translation hints
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_synset ON results(synset_id);
	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(synset_key, source_lang, target_lang, model);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
