// Package retrieval finds reference essay excerpts similar to a query.
package retrieval

import (
	"fmt"

	"log/slog"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

// Retriever embeds the query text and searches the essay collection for
// similar graded excerpts. It implements domain.ExcerptRetriever.
type Retriever struct {
	ai         domain.AIClient
	q          *qdrant.Client
	collection string
}

func New(ai domain.AIClient, q *qdrant.Client, collection string) *Retriever {
	return &Retriever{ai: ai, q: q, collection: collection}
}

// Retrieve returns up to topK excerpts whose similarity to query is at
// least minScore. Points without payload text are skipped.
func (r *Retriever) Retrieve(ctx domain.Context, query string, topK int, minScore float32) ([]domain.ReferenceExcerpt, error) {
	vecs, err := r.ai.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: embed returned no vectors", domain.ErrUpstream)
	}
	hits, err := r.q.Search(ctx, r.collection, vecs[0], topK, minScore)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", domain.ErrUpstream, err)
	}
	out := make([]domain.ReferenceExcerpt, 0, len(hits))
	for _, h := range hits {
		text, _ := h.Payload["text"].(string)
		if text == "" {
			slog.Debug("skipping excerpt with empty text", slog.String("collection", r.collection))
			continue
		}
		ex := domain.ReferenceExcerpt{
			Text:  text,
			Score: h.Score,
		}
		ex.Band, _ = h.Payload["band"].(string)
		ex.Question, _ = h.Payload["question"].(string)
		ex.Topic, _ = h.Payload["topic"].(string)
		if wc, ok := h.Payload["word_count"].(float64); ok {
			ex.WordCount = int(wc)
		}
		slog.Debug("reference excerpt",
			slog.String("band", ex.Band),
			slog.String("topic", ex.Topic),
			slog.String("question", truncate(ex.Question, 80)),
			slog.Int("word_count", ex.WordCount),
			slog.Float64("similarity", float64(ex.Score)))
		out = append(out, ex)
	}
	slog.Debug("retrieved excerpts", slog.Int("requested", topK), slog.Int("returned", len(out)))
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ domain.ExcerptRetriever = (*Retriever)(nil)
