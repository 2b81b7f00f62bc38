package synsetio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valpere/synsetran/internal/pipeline"
	"github.com/valpere/synsetran/internal/schema"
)

var csvHeader = []string{
	"synset_id", "pos", "source_lemmas", "representative_literal", "synonyms",
	"definition", "review_status", "confidence", "converged", "degraded_stages",
}

// ResultWriter writes results one at a time so that stream mode output is
// usable even when a run is interrupted. JSON output is a single array that
// is only well-formed after Close.
type ResultWriter struct {
	out     io.Writer
	format  Format
	records bool
	csv     *csv.Writer
	n       int
	closed  bool
}

// NewResultWriter returns a writer for json, jsonl or csv output. With
// records set the per-attempt audit trail is included in json and jsonl.
func NewResultWriter(w io.Writer, format Format, records bool) (*ResultWriter, error) {
	rw := &ResultWriter{out: w, format: format, records: records}
	switch format {
	case FormatJSON, FormatJSONL:
	case FormatCSV:
		rw.csv = csv.NewWriter(w)
		if err := rw.csv.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("synsetio: write csv header: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w for results: %q", ErrUnknownFormat, format)
	}
	return rw, nil
}

// Count reports how many results were written.
func (w *ResultWriter) Count() int { return w.n }

func (w *ResultWriter) Write(res *pipeline.Result) error {
	if w.closed {
		return fmt.Errorf("synsetio: write after close")
	}
	if !w.records {
		cp := *res
		cp.Records = nil
		res = &cp
	}

	var err error
	switch w.format {
	case FormatJSONL:
		err = w.writeLine(res)
	case FormatJSON:
		err = w.writeElement(res)
	case FormatCSV:
		err = w.writeRow(res)
	}
	if err != nil {
		return fmt.Errorf("synsetio: write result %s: %w", res.SynsetID, err)
	}
	w.n++
	return nil
}

func (w *ResultWriter) writeLine(res *pipeline.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = w.out.Write(append(data, '\n'))
	return err
}

func (w *ResultWriter) writeElement(res *pipeline.Result) error {
	data, err := json.MarshalIndent(res, "  ", "  ")
	if err != nil {
		return err
	}
	prefix := ",\n  "
	if w.n == 0 {
		prefix = "[\n  "
	}
	if _, err := io.WriteString(w.out, prefix); err != nil {
		return err
	}
	_, err = w.out.Write(data)
	return err
}

func (w *ResultWriter) writeRow(res *pipeline.Result) error {
	degraded := make([]string, len(res.DegradedStages))
	for i, s := range res.DegradedStages {
		degraded[i] = string(s)
	}
	row := []string{
		res.SynsetID,
		res.Source.NormalizedPOS(),
		strings.Join(res.Source.Lemmas, ListSeparator),
		res.RepresentativeLiteral,
		strings.Join(res.Synonyms, ListSeparator),
		res.Definition,
		res.ReviewStatus,
		res.Confidence,
		strconv.FormatBool(res.Converged),
		strings.Join(degraded, ListSeparator),
	}
	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close terminates the output. It does not close the underlying writer.
func (w *ResultWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	switch w.format {
	case FormatJSON:
		tail := "\n]\n"
		if w.n == 0 {
			tail = "[]\n"
		}
		_, err := io.WriteString(w.out, tail)
		return err
	case FormatCSV:
		w.csv.Flush()
		return w.csv.Error()
	}
	return nil
}

// NeedsReview reports whether a result should be looked at by a curator
// before it is accepted.
func NeedsReview(res *pipeline.Result) bool {
	return res.Degraded() || res.ReviewStatus != schema.StatusOK || len(res.Synonyms) == 0
}
