package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

type fakeAI struct {
	vectors [][]float32
	err     error
}

func (f *fakeAI) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.5}
	}
	return out, nil
}

func (f *fakeAI) ChatCompletion(_ domain.Context, _ string, _ int) (string, error) {
	return "", errors.New("not used")
}

func qdrantWith(t *testing.T, results []map[string]any) *qdrant.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": results})
	}))
	t.Cleanup(srv.Close)
	return qdrant.New(srv.URL, "")
}

func TestRetrieve_MapsPayload(t *testing.T) {
	t.Parallel()
	q := qdrantWith(t, []map[string]any{
		{"score": 0.91, "payload": map[string]any{
			"text":       "Essay (Band 7.0): technology changes society...",
			"band":       "7.0",
			"question":   "Some people think technology...",
			"topic":      "technology",
			"word_count": 274,
		}},
	})
	r := New(&fakeAI{}, q, "task2_essays")
	got, err := r.Retrieve(context.Background(), "technology essay", 5, 0.7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "7.0", got[0].Band)
	assert.Equal(t, "technology", got[0].Topic)
	assert.Equal(t, 274, got[0].WordCount)
	assert.InDelta(t, 0.91, got[0].Score, 1e-6)
}

func TestRetrieve_SkipsEmptyText(t *testing.T) {
	t.Parallel()
	q := qdrantWith(t, []map[string]any{
		{"score": 0.95, "payload": map[string]any{"band": "6.0"}},
		{"score": 0.90, "payload": map[string]any{"text": "kept", "band": "6.5"}},
	})
	r := New(&fakeAI{}, q, "task2_essays")
	got, err := r.Retrieve(context.Background(), "q", 5, 0.7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Text)
}

func TestRetrieve_EmbedErrorPropagates(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("embed down")
	r := New(&fakeAI{err: wantErr}, qdrant.New("http://localhost:1", ""), "task2_essays")
	_, err := r.Retrieve(context.Background(), "q", 5, 0.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, wantErr))
}

func TestRetrieve_SearchErrorIsUpstream(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	r := New(&fakeAI{}, qdrant.New(srv.URL, ""), "task2_essays")
	_, err := r.Retrieve(context.Background(), "q", 5, 0.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

// recordingHandler captures emitted records so tests can assert on log
// attributes.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) find(msg string) (slog.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Message == msg {
			return r, true
		}
	}
	return slog.Record{}, false
}

// Not parallel: it swaps the default logger.
func TestRetrieve_LogsExcerptMetadata(t *testing.T) {
	h := &recordingHandler{}
	prev := slog.Default()
	slog.SetDefault(slog.New(h))
	t.Cleanup(func() { slog.SetDefault(prev) })

	q := qdrantWith(t, []map[string]any{
		{"score": 0.88, "payload": map[string]any{
			"text":       "Essay (Band 6.5): cities keep growing...",
			"band":       "6.5",
			"question":   "More and more people live in cities. Discuss the advantages and disadvantages of urban life for young families around the world today.",
			"topic":      "urbanization",
			"word_count": 261,
		}},
	})
	r := New(&fakeAI{}, q, "task2_essays")
	_, err := r.Retrieve(context.Background(), "city essay", 5, 0.7)
	require.NoError(t, err)

	rec, ok := h.find("reference excerpt")
	require.True(t, ok, "each retrieved excerpt must be logged")
	attrs := map[string]slog.Value{}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value
		return true
	})
	assert.Equal(t, "6.5", attrs["band"].String())
	assert.Equal(t, "urbanization", attrs["topic"].String())
	assert.EqualValues(t, 261, attrs["word_count"].Int64())
	assert.InDelta(t, 0.88, attrs["similarity"].Float64(), 1e-6)
	question := attrs["question"].String()
	assert.LessOrEqual(t, len(question), 83, "long questions are truncated")
	assert.Contains(t, question, "More and more people live in cities")
}

func TestRetrieve_NoHitsIsEmptyNotError(t *testing.T) {
	t.Parallel()
	q := qdrantWith(t, []map[string]any{})
	r := New(&fakeAI{}, q, "task2_essays")
	got, err := r.Retrieve(context.Background(), "q", 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, got)
}
