/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valpere/synsetran/internal"
	"github.com/valpere/synsetran/internal/llm"
	"github.com/valpere/synsetran/internal/logging"
	"github.com/valpere/synsetran/internal/pipeline"
	"github.com/valpere/synsetran/internal/store"
	"github.com/valpere/synsetran/internal/synsetio"
)

var (
	inputFile      string
	outputFile     string
	outputFormat   string
	streamMode     bool
	noCache        bool
	withRecords    bool
	resumeRun      string
	fuzzyThreshold float64
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate synsets through the staged LLM pipeline",
	Long: `Translate WordNet synsets read from a JSON, JSONL, YAML or CSV file and
write one result per synset.

Each synset runs through seven stages: analyse_sense, translate_definition,
translate_lemmas, expand_synonyms, filter_synonyms, review_definition and
assemble_result. Stages that cannot get a usable answer from the model
degrade to schema defaults; the run continues and the result is flagged.

Results are also stored in the audit database together with every prompt
and raw response ("synsetran audit"). Results without degraded stages are
kept in translation memory and reused by later runs with the same model.

Examples:
  synsetran translate -i synsets.yaml -o results.jsonl --stream
  synsetran translate -i synsets.csv -o results.json -t hr --backend openrouter --model qwen/qwen3-235b
  synsetran translate -i synsets.yaml -o results.jsonl --resume run_0b6f...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		synsets, err := synsetio.Read(inputFile)
		if err != nil {
			return err
		}
		if len(synsets) == 0 {
			return fmt.Errorf("no synsets in %s", inputFile)
		}

		format := synsetio.Format(outputFormat)
		if format == "" {
			if format, err = synsetio.FormatOf(outputFile); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		backend, err := buildBackend(ctx, cfg)
		if err != nil {
			return err
		}
		log := logging.New("translate")
		log.Info("backend ready", "backend", llm.Describe(backend), "model", backend.Name())

		var db *store.Store
		if cfg.DBPath != "" {
			db, err = openStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
		} else if resumeRun != "" {
			return fmt.Errorf("--resume requires a database (--db)")
		}

		var glossary pipeline.Glossary
		if db != nil {
			glossary = db
		}

		if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		out, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer out.Close()

		writer, err := synsetio.NewResultWriter(out, format, withRecords)
		if err != nil {
			return err
		}

		job := &translateJob{
			p:      buildPipeline(backend, cfg, glossary),
			db:     db,
			writer: writer,
			model:  backend.Name(),
			log:    log,
		}
		if err := job.start(ctx, synsets); err != nil {
			return err
		}

		runErr := job.run(ctx, synsets)
		if err := writer.Close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("failed to finish output file: %w", err)
		}
		job.finish(runErr)
		job.report(cmd.OutOrStdout())
		return runErr
	},
}

// translateJob carries the state of one translate invocation.
type translateJob struct {
	p      *pipeline.Pipeline
	db     *store.Store
	writer *synsetio.ResultWriter
	model  string
	log    *slog.Logger

	runID     string
	completed map[string]bool

	translated int
	fromMemory int
	skipped    int
	degraded   []string
	review     []string
}

func (j *translateJob) start(ctx context.Context, synsets []internal.Synset) error {
	if j.db == nil {
		return nil
	}
	if resumeRun != "" {
		run, err := j.db.GetRun(ctx, resumeRun)
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}
		if run.SourceLang != cfg.SourceLang || run.TargetLang != cfg.TargetLang {
			return fmt.Errorf("run %s translated %s->%s, not %s->%s", run.ID, run.SourceLang, run.TargetLang, cfg.SourceLang, cfg.TargetLang)
		}
		done, err := j.db.CompletedSynsets(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to load completed synsets: %w", err)
		}
		j.runID, j.completed = run.ID, done
		fmt.Fprintf(os.Stderr, "Resuming run %s (%d of %d synsets already done)\n", run.ID, len(done), len(synsets))
		return nil
	}

	id, err := j.db.SaveRun(ctx, store.Run{
		Backend:    cfg.Backend,
		Model:      j.model,
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		InputFile:  inputFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record run: %v\n", err)
		return nil
	}
	j.runID = id
	fmt.Fprintf(os.Stderr, "Run ID: %s (use --resume %s to resume if interrupted)\n", id, id)
	return nil
}

// run translates every pending synset. Memory hits are written in input
// order between pipeline results.
func (j *translateJob) run(ctx context.Context, synsets []internal.Synset) error {
	var pending []internal.Synset
	hits := make(map[int]*pipeline.Result)
	for i, syn := range synsets {
		if j.completed[syn.ID] {
			j.skipped++
			continue
		}
		if res := j.recall(ctx, syn); res != nil {
			hits[i] = res
			continue
		}
		pending = append(pending, syn)
	}

	if streamMode {
		return j.runStream(ctx, synsets, pending, hits)
	}
	return j.runBatch(ctx, synsets, pending, hits)
}

func (j *translateJob) runStream(ctx context.Context, synsets, pending []internal.Synset, hits map[int]*pipeline.Result) error {
	stream := j.p.TranslateStream(pending)
	for i, syn := range synsets {
		if j.completed[syn.ID] {
			continue
		}
		if res, ok := hits[i]; ok {
			if err := j.emit(ctx, res, true); err != nil {
				return err
			}
			continue
		}
		if !stream.Next(ctx) {
			break
		}
		if err := j.emit(ctx, stream.Result(), false); err != nil {
			return err
		}
		if err := stream.Err(); err != nil {
			return err
		}
	}
	return stream.Err()
}

func (j *translateJob) runBatch(ctx context.Context, synsets, pending []internal.Synset, hits map[int]*pipeline.Result) error {
	results, batchErr := j.p.TranslateBatch(ctx, pending)

	next := 0
	for i, syn := range synsets {
		if j.completed[syn.ID] {
			continue
		}
		if res, ok := hits[i]; ok {
			if err := j.emit(ctx, res, true); err != nil {
				return err
			}
			continue
		}
		if next >= len(results) {
			break
		}
		if err := j.emit(ctx, results[next], false); err != nil {
			return err
		}
		next++
	}
	return batchErr
}

// recall looks a synset up in translation memory.
func (j *translateJob) recall(ctx context.Context, syn internal.Synset) *pipeline.Result {
	if j.db == nil || noCache {
		return nil
	}
	src, tgt := cfg.SourceLang, cfg.TargetLang
	res, found, err := j.db.GetCachedResult(ctx, syn, src, tgt, j.model)
	if err == nil && !found && fuzzyThreshold > 0 {
		res, found, err = j.db.FuzzyGetCachedResult(ctx, syn, src, tgt, j.model, fuzzyThreshold)
		if found {
			res.Notes = append(res.Notes, fmt.Sprintf("memory: reused the result of synset %s (similar definition)", res.SynsetID))
		}
	}
	if err != nil {
		j.log.Warn("translation memory lookup failed", "synset", syn.ID, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	res.SynsetID = syn.ID
	res.Source = syn
	return res
}

func (j *translateJob) emit(ctx context.Context, res *pipeline.Result, fromMemory bool) error {
	if err := j.writer.Write(res); err != nil {
		return err
	}

	if fromMemory {
		j.fromMemory++
	} else {
		j.translated++
	}
	if res.Degraded() {
		j.degraded = append(j.degraded, res.SynsetID)
	} else if synsetio.NeedsReview(res) {
		j.review = append(j.review, res.SynsetID)
	}

	if j.db == nil {
		return nil
	}
	// A cancelled run still records what it finished.
	persist := context.WithoutCancel(ctx)
	if j.runID != "" {
		if _, err := j.db.SaveResult(persist, j.runID, res); err != nil {
			j.log.Warn("failed to store result", "synset", res.SynsetID, "error", err)
		}
	}
	if !fromMemory && !noCache && !res.Degraded() {
		if err := j.db.SaveToMemory(persist, res, j.model); err != nil {
			j.log.Warn("failed to store translation memory", "synset", res.SynsetID, "error", err)
		}
	}
	return nil
}

func (j *translateJob) finish(runErr error) {
	if j.db == nil || j.runID == "" {
		return
	}
	status := store.RunCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		status = store.RunInterrupted
	case runErr != nil:
		status = store.RunFailed
	}
	done := j.translated + j.fromMemory + j.skipped
	if err := j.db.FinishRun(context.Background(), j.runID, status, done, len(j.degraded)); err != nil {
		j.log.Warn("failed to finish run", "run", j.runID, "error", err)
	}
}

func (j *translateJob) report(w io.Writer) {
	fmt.Fprintf(w, "Translated %d synsets to %s (%d from translation memory", j.translated+j.fromMemory, outputFile, j.fromMemory)
	if j.skipped > 0 {
		fmt.Fprintf(w, ", %d already done", j.skipped)
	}
	fmt.Fprintln(w, ")")
	if len(j.degraded) > 0 {
		fmt.Fprintf(w, "Degraded synsets (%d): %v\n", len(j.degraded), j.degraded)
	}
	if len(j.review) > 0 {
		fmt.Fprintf(w, "Synsets needing review (%d): %v\n", len(j.review), j.review)
	}
}

func init() {
	rootCmd.AddCommand(translateCmd)

	f := translateCmd.Flags()
	f.StringVarP(&inputFile, "input", "i", "", "Input synset file: .json, .jsonl, .yaml or .csv (required)")
	f.StringVarP(&outputFile, "output", "o", "", "Output results file (required)")
	f.StringVar(&outputFormat, "format", "", "Output format: json, jsonl or csv (default: from the output extension)")
	f.BoolVar(&streamMode, "stream", false, "Translate and write one synset at a time")
	f.BoolVar(&noCache, "no-cache", false, "Disable translation memory lookups and updates")
	f.BoolVar(&withRecords, "records", false, "Include the per-attempt audit trail in the output")
	f.StringVar(&resumeRun, "resume", "", "Resume a run by ID, skipping synsets it already finished")
	f.Float64Var(&fuzzyThreshold, "fuzzy-threshold", 0, "Reuse memory results with a definition at least this similar (0-1, 0 disables)")

	f.String("backend", "ollama", "LLM backend: ollama, openrouter or gemini")
	f.String("model", "", "Model name (default depends on the backend)")
	f.String("base-url", "", "Backend base URL")
	f.String("api-key", "", "Backend API key (or OPENROUTER_API_KEY / GEMINI_API_KEY)")
	f.Float64("temperature", 0.2, "Sampling temperature")
	f.Duration("timeout", 0, "Per-call timeout (e.g. 90s, 10m)")
	f.Int("max-iterations", 5, "Maximum synonym expansion iterations")
	f.Int("max-retries", 2, "Retries per stage after the first attempt")
	f.Duration("retry-backoff", 0, "Pause between attempts of a stage")
	f.String("strictness", "standard", "Synonym filter policy: lenient, standard or strict")
	f.Bool("fail-on-degraded", false, "Stop with an error at the first synset with a degraded stage")
	f.Float64("rps", 0, "Maximum model requests per second (0 = unlimited)")
	f.Int("response-cache", 0, "In-process cache size for accepted model responses (0 = off)")
	f.Bool("language-check", true, "Check the language of translated definitions")

	bindFlag(translateCmd, "backend", "backend")
	bindFlag(translateCmd, "model", "model")
	bindFlag(translateCmd, "base_url", "base-url")
	bindFlag(translateCmd, "api_key", "api-key")
	bindFlag(translateCmd, "temperature", "temperature")
	bindFlag(translateCmd, "timeout", "timeout")
	bindFlag(translateCmd, "max_expansion_iterations", "max-iterations")
	bindFlag(translateCmd, "max_retries", "max-retries")
	bindFlag(translateCmd, "retry_backoff", "retry-backoff")
	bindFlag(translateCmd, "filter_strictness", "strictness")
	bindFlag(translateCmd, "fail_on_degraded", "fail-on-degraded")
	bindFlag(translateCmd, "requests_per_second", "rps")
	bindFlag(translateCmd, "response_cache_size", "response-cache")
	bindFlag(translateCmd, "language_check", "language-check")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
}
