// Package synsetio reads source synsets from JSON, JSONL, YAML and CSV files
// and writes pipeline results.
package synsetio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valpere/synsetran/internal"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// ListSeparator splits list cells in CSV input and output.
const ListSeparator = "|"

var ErrUnknownFormat = errors.New("synsetio: unknown format")

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Read loads every synset from path, choosing the decoder by extension.
func Read(path string) ([]internal.Synset, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("synsetio: open input: %w", err)
	}
	defer f.Close()

	synsets, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("synsetio: %s: %w", filepath.Base(path), err)
	}
	return synsets, nil
}

// Decode reads synsets from r in the given format.
func Decode(r io.Reader, format Format) ([]internal.Synset, error) {
	var records []map[string]any
	var err error
	switch format {
	case FormatJSON:
		records, err = decodeJSON(r)
	case FormatJSONL:
		records, err = decodeJSONL(r)
	case FormatYAML:
		records, err = decodeYAML(r)
	case FormatCSV:
		records, err = decodeCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	out := make([]internal.Synset, 0, len(records))
	for i, rec := range records {
		syn, err := fromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		out = append(out, syn)
	}
	return out, nil
}

// decodeJSON accepts an array of synsets, a single synset object, or an
// object with a "synsets" array.
func decodeJSON(r io.Reader) ([]map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return recordsOf(doc)
}

func decodeJSONL(r io.Reader) ([]map[string]any, error) {
	var out []map[string]any
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeYAML(r io.Reader) ([]map[string]any, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return recordsOf(doc)
}

func recordsOf(doc any) ([]map[string]any, error) {
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %d: expected an object, got %T", i+1, item)
			}
			out = append(out, m)
		}
		return out, nil
	case map[string]any:
		if list, ok := v["synsets"]; ok {
			return recordsOf(list)
		}
		return []map[string]any{v}, nil
	}
	return nil, fmt.Errorf("expected a list of synsets, got %T", doc)
}

// decodeCSV reads a header row naming the columns; list cells use
// ListSeparator.
func decodeCSV(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var out []map[string]any
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(map[string]any, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			rec[header[i]] = cell
		}
		out = append(out, rec)
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func fromRecord(rec map[string]any) (internal.Synset, error) {
	syn := internal.Synset{
		ID:         firstString(rec, "id", "english_id", "ili_id", "synset_id"),
		Lemmas:     firstList(rec, true, "lemmas", "literals"),
		Definition: firstString(rec, "definition", "gloss"),
		Examples:   firstList(rec, false, "examples", "example"),
		POS:        firstString(rec, "pos", "part_of_speech"),
		Domains:    firstList(rec, true, "domains", "domain"),
	}
	if len(syn.Lemmas) == 0 && syn.Definition == "" {
		return syn, fmt.Errorf("synset %q has neither lemmas nor a definition", syn.ID)
	}
	return syn, nil
}

func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstList accepts a list value or a ListSeparator-separated string. With
// commas set, a string without ListSeparator is also split on commas.
func firstList(rec map[string]any, commas bool, keys ...string) []string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		var items []string
		switch x := v.(type) {
		case []any:
			for _, it := range x {
				if it == nil {
					continue
				}
				if m, ok := it.(map[string]any); ok {
					it = firstString(m, "literal", "lemma", "word", "text")
				}
				items = append(items, fmt.Sprint(it))
			}
		case []string:
			items = x
		case string:
			items = splitList(x, commas)
		default:
			items = []string{fmt.Sprint(x)}
		}
		if cleaned := cleanList(items); len(cleaned) > 0 {
			return cleaned
		}
	}
	return nil
}

func splitList(s string, commas bool) []string {
	if strings.Contains(s, ListSeparator) {
		return strings.Split(s, ListSeparator)
	}
	if commas && strings.Contains(s, ",") {
		return strings.Split(s, ",")
	}
	return []string{s}
}

func cleanList(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
