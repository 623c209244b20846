// Package stub provides a fast, deterministic AI client for local runs
// without a Mistral API key.
package stub

import (
	"encoding/json"
	"time"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

// Client is a deterministic AIClient for local development and tests.
type Client struct{}

func New() *Client { return &Client{} }

// Embed returns simple small vectors deterministically.
func (c *Client) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	for i := range texts {
		res[i] = []float32{0.1, 0.2, 0.3}
	}
	return res, nil
}

// ChatCompletion returns a compact JSON string matching the scoring schema.
func (c *Client) ChatCompletion(_ domain.Context, _ string, _ int) (string, error) {
	// Simulate a tiny bit of processing latency to resemble real work
	time.Sleep(50 * time.Millisecond)
	payload := map[string]any{
		"taskResponse":             6.5,
		"coherenceCohesion":        6.0,
		"lexicalResource":          6.5,
		"grammaticalRangeAccuracy": 6.0,
		"overallBand":              6.5,
		"examinerFeedback":         "The essay addresses the task with a clear position and mostly coherent paragraphing.",
		"suggestions": map[string]string{
			"structure":  "Add a short concluding restatement of your position.",
			"vocabulary": "Vary linking phrases beyond 'moreover' and 'however'.",
		},
	}
	b, _ := json.Marshal(payload)
	return string(b), nil
}

var _ domain.AIClient = (*Client)(nil)
