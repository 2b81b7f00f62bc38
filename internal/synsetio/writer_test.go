package synsetio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/synsetran/internal/invoke"
	"github.com/valpere/synsetran/internal/pipeline"
	"github.com/valpere/synsetran/internal/schema"
)

func sampleResult(id string) *pipeline.Result {
	return &pipeline.Result{
		SynsetID:              id,
		SourceLang:            "en",
		TargetLang:            "sr",
		Source:                bank,
		RepresentativeLiteral: "banka",
		Definition:            "finansijska ustanova koja prima depozite",
		Synonyms:              []string{"banka", "novčarska ustanova"},
		ReviewStatus:          schema.StatusOK,
		Confidence:            schema.ConfidenceHigh,
		Converged:             true,
		IterationsRun:         2,
		Records:               []invoke.StageRecord{{Stage: schema.StageAnalyseSense, Attempt: 1}},
	}
}

func TestResultWriter_JSONArray(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewResultWriter(&buf, FormatJSON, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleResult("a")))
	require.NoError(t, w.Write(sampleResult("b")))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["synset_id"])
	assert.Equal(t, "b", got[1]["synset_id"])
	assert.NotContains(t, got[0], "records")
	assert.Equal(t, 2, w.Count())

	assert.Error(t, w.Write(sampleResult("c")))
}

func TestResultWriter_EmptyJSONArray(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewResultWriter(&buf, FormatJSON, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "[]\n", buf.String())
}

func TestResultWriter_JSONLWithRecords(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewResultWriter(&buf, FormatJSONL, true)
	require.NoError(t, err)
	res := sampleResult("a")
	require.NoError(t, w.Write(res))
	require.NoError(t, w.Write(sampleResult("b")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var got pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Len(t, got.Records, 1)
	assert.Equal(t, res.Synonyms, got.Synonyms)
}

func TestResultWriter_WithoutRecordsLeavesInputIntact(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewResultWriter(&buf, FormatJSONL, false)
	require.NoError(t, err)
	res := sampleResult("a")
	require.NoError(t, w.Write(res))
	assert.Len(t, res.Records, 1)
	assert.NotContains(t, buf.String(), `"records"`)
}

func TestResultWriter_CSV(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewResultWriter(&buf, FormatCSV, false)
	require.NoError(t, err)
	res := sampleResult("a")
	res.DegradedStages = []schema.Stage{schema.StageFilterSynonyms}
	require.NoError(t, w.Write(res))
	require.NoError(t, w.Close())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "banka|novčarska ustanova", rows[1][4])
	assert.Equal(t, "depository financial institution|bank|banking concern", rows[1][2])
	assert.Equal(t, "true", rows[1][8])
	assert.Equal(t, "filter_synonyms", rows[1][9])
}

func TestResultWriter_UnknownFormat(t *testing.T) {
	_, err := NewResultWriter(&bytes.Buffer{}, FormatYAML, false)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNeedsReview(t *testing.T) {
	ok := sampleResult("a")
	assert.False(t, NeedsReview(ok))

	degraded := sampleResult("b")
	degraded.DegradedStages = []schema.Stage{schema.StageReviewDefinition}
	assert.True(t, NeedsReview(degraded))

	revise := sampleResult("c")
	revise.ReviewStatus = schema.StatusNeedsRevision
	assert.True(t, NeedsReview(revise))

	empty := sampleResult("d")
	empty.Synonyms = nil
	assert.True(t, NeedsReview(empty))
}
