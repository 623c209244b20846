package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

const csvHeader = "Task_Type,Question,Essay,Examiner_Commen,Task_Response,Coherence_Cohesion,Lexical_Resource,Range_Accuracy,Overall"

func row(taskType, question, essay, overall string) string {
	return strings.Join([]string{taskType, question, essay, "comment", "6", "6", "7", "6", overall}, ",")
}

func TestParseRecords_AcceptsOnlyValidTask2Rows(t *testing.T) {
	t.Parallel()
	data := strings.Join([]string{
		csvHeader,
		row("2", "Question one", "Essay   text one .", "6.5"),
		row("1", "Graph description", "Task one essay", "7.0"),
		row("2", "", "No question essay", "6.0"),
		row("2", "No essay question", "", "6.0"),
		row("2", "No score question", "Essay text", ""),
		"2,short", // too few columns
		row("2", "Question two", "Essay text two.", "7.5"),
	}, "\n")

	docs, sum, err := parseRecords(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 7, sum.TotalLines)
	assert.Equal(t, 2, sum.Loaded)
	assert.Equal(t, 5, sum.Skipped)
	require.Len(t, docs, 2)

	// Essay text is cleaned before rendering.
	assert.Contains(t, docs[0].Content, "Essay:\nEssay text one.")
	assert.Contains(t, docs[0].Content, "IELTS Writing Task 2 Essay (Band 6.5)")
	assert.Contains(t, docs[0].Content, "- Overall: 6.5")
	assert.Equal(t, "task2_essay", docs[0].Metadata["type"])
	assert.Equal(t, "6.5", docs[0].Metadata["band"])
	assert.Equal(t, 2, docs[0].SourceLine)
	assert.Equal(t, 8, docs[1].SourceLine)
}

func TestParseRecords_TopicAndWordCount(t *testing.T) {
	t.Parallel()
	data := csvHeader + "\n" + row("2", "Discuss the role of technology in education.", "Computers help students learn.", "7.0")
	docs, _, err := parseRecords(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "the role of technology in education", docs[0].Metadata["topic"])
	assert.Equal(t, 4, docs[0].Metadata["word_count"])
}

func TestParseRecords_EmptyFile(t *testing.T) {
	t.Parallel()
	_, _, err := parseRecords(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoValidRows))
}

type batchAI struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (b *batchAI) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.calls = append(b.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (b *batchAI) ChatCompletion(_ domain.Context, _ string, _ int) (string, error) {
	return "", errors.New("not used")
}

func writeDataset(t *testing.T, rows int) string {
	t.Helper()
	lines := []string{csvHeader}
	for i := 0; i < rows; i++ {
		lines = append(lines, row("2", "Question", "Essay text here.", "6.0"))
	}
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600))
	return path
}

func TestLoadCSV_BatchesAndSnapshots(t *testing.T) {
	t.Parallel()
	var upserts, snapshots int
	var ids []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/points"):
			upserts++
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			for _, p := range body["points"].([]any) {
				ids = append(ids, p.(map[string]any)["id"])
			}
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/snapshots"):
			snapshots++
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	ai := &batchAI{}
	l := &Loader{
		Q:          qdrant.New(srv.URL, ""),
		AI:         ai,
		Collection: "task2_essays",
		BatchSize:  2,
	}
	sum, err := l.LoadCSV(context.Background(), writeDataset(t, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Loaded)
	assert.Equal(t, 3, sum.Batches)
	assert.Equal(t, 3, upserts)
	assert.Equal(t, 3, snapshots, "every batch must be snapshotted")
	assert.Len(t, ai.calls, 3)
	assert.Len(t, ai.calls[0], 2)
	assert.Len(t, ai.calls[2], 1)
	assert.Len(t, ids, 5)
}

func TestLoadCSV_DeterministicIDs(t *testing.T) {
	t.Parallel()
	collect := func() []any {
		var ids []any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/points") {
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				for _, p := range body["points"].([]any) {
					ids = append(ids, p.(map[string]any)["id"])
				}
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		l := &Loader{Q: qdrant.New(srv.URL, ""), AI: &batchAI{}, Collection: "c", BatchSize: 10}
		_, err := l.LoadCSV(context.Background(), writeDataset(t, 3))
		require.NoError(t, err)
		return ids
	}
	assert.Equal(t, collect(), collect(), "re-running ingestion must produce the same point IDs")
}

func TestLoadCSV_NoValidRows(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	data := csvHeader + "\n" + row("1", "Graph task", "Essay", "7.0")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	l := &Loader{Q: qdrant.New("http://localhost:1", ""), AI: &batchAI{}, Collection: "c"}
	_, err := l.LoadCSV(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoValidRows))
}

func TestLoadCSV_MissingFile(t *testing.T) {
	t.Parallel()
	l := &Loader{Q: qdrant.New("http://localhost:1", ""), AI: &batchAI{}, Collection: "c"}
	_, err := l.LoadCSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestLoadCSV_EmbedFailureStopsRun(t *testing.T) {
	t.Parallel()
	l := &Loader{
		Q:          qdrant.New("http://localhost:1", ""),
		AI:         &batchAI{err: domain.ErrUpstream},
		Collection: "c",
		BatchSize:  2,
	}
	_, err := l.LoadCSV(context.Background(), writeDataset(t, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

func TestLoadCSV_SnapshotFailureIsFatal(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/snapshots") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l := &Loader{Q: qdrant.New(srv.URL, ""), AI: &batchAI{}, Collection: "c", BatchSize: 10}
	_, err := l.LoadCSV(context.Background(), writeDataset(t, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot")
}
