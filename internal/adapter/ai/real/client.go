// Package real implements an AI client backed by the Mistral API.
package real

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"log/slog"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/config"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

// Client implements domain.AIClient against the Mistral OpenAI-compatible API.
// Each call is a single attempt: scoring must not silently re-invoke the
// model, a failed upstream call surfaces to the caller as ErrUpstream.
type Client struct {
	cfg     config.Config
	chatHC  *http.Client
	embedHC *http.Client
}

// New constructs a real AI client with sensible timeouts.
func New(cfg config.Config) *Client {
	return &Client{
		cfg:     cfg,
		chatHC:  &http.Client{Timeout: 60 * time.Second},
		embedHC: &http.Client{Timeout: 30 * time.Second},
	}
}

// readSnippet reads up to n bytes from r for log context.
func readSnippet(r io.Reader, n int) string {
	if r == nil || n <= 0 {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, int64(n)))
	return string(b)
}

// ChatCompletion calls /chat/completions and returns the first choice's
// message content verbatim.
func (c *Client) ChatCompletion(ctx domain.Context, prompt string, maxTokens int) (string, error) {
	if c.cfg.MistralAPIKey == "" {
		slog.Error("Mistral API key missing", slog.String("provider", "mistral"))
		return "", fmt.Errorf("%w: MISTRAL_API_KEY missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model": c.cfg.ChatModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	b, _ := json.Marshal(body)
	r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.MistralBaseURL+"/chat/completions", bytes.NewReader(b))
	r.Header.Set("Authorization", "Bearer "+c.cfg.MistralAPIKey)
	r.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.chatHC.Do(r)
	observability.AIRequestsTotal.WithLabelValues("mistral", "chat").Inc()
	observability.AIRequestDuration.WithLabelValues("mistral", "chat").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("ai provider unreachable", slog.String("provider", "mistral"), slog.String("op", "chat"), slog.Any("error", err))
		return "", fmt.Errorf("%w: chat: %v", domain.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := readSnippet(resp.Body, 512)
		slog.Error("ai provider non-2xx", slog.String("provider", "mistral"), slog.String("op", "chat"), slog.Int("status", resp.StatusCode), slog.String("model", c.cfg.ChatModel), slog.String("body", snippet))
		return "", fmt.Errorf("%w: chat status %d", domain.ErrUpstream, resp.StatusCode)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		slog.Error("ai provider decode error", slog.String("provider", "mistral"), slog.String("op", "chat"), slog.Any("error", err))
		return "", fmt.Errorf("%w: chat decode: %v", domain.ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: chat returned no choices", domain.ErrUpstream)
	}
	slog.Debug("chat completion ok", slog.String("model", c.cfg.ChatModel), slog.Int("content_len", len(out.Choices[0].Message.Content)))
	return out.Choices[0].Message.Content, nil
}

// Embed calls /embeddings and returns one vector per input text, in order.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.cfg.MistralAPIKey == "" || c.cfg.EmbeddingsModel == "" {
		// Do not log secrets; only indicate presence
		slog.Error("Mistral API key or embeddings model missing", slog.String("provider", "mistral"), slog.Bool("has_api_key", c.cfg.MistralAPIKey != ""), slog.String("model", c.cfg.EmbeddingsModel))
		return nil, fmt.Errorf("%w: MISTRAL_API_KEY or EMBEDDINGS_MODEL missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": texts,
	}
	b, _ := json.Marshal(body)
	r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.MistralBaseURL+"/embeddings", bytes.NewReader(b))
	r.Header.Set("Authorization", "Bearer "+c.cfg.MistralAPIKey)
	r.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.embedHC.Do(r)
	observability.AIRequestsTotal.WithLabelValues("mistral", "embed").Inc()
	observability.AIRequestDuration.WithLabelValues("mistral", "embed").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("ai provider unreachable", slog.String("provider", "mistral"), slog.String("op", "embed"), slog.Any("error", err))
		return nil, fmt.Errorf("%w: embed: %v", domain.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := readSnippet(resp.Body, 512)
		slog.Error("ai provider non-2xx", slog.String("provider", "mistral"), slog.String("op", "embed"), slog.Int("status", resp.StatusCode), slog.String("model", c.cfg.EmbeddingsModel), slog.String("body", snippet))
		return nil, fmt.Errorf("%w: embed status %d", domain.ErrUpstream, resp.StatusCode)
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		slog.Error("ai provider decode error", slog.String("provider", "mistral"), slog.String("op", "embed"), slog.Any("error", err))
		return nil, fmt.Errorf("%w: embed decode: %v", domain.ErrUpstream, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: embed returned no data", domain.ErrUpstream)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embed count mismatch: want %d got %d", domain.ErrUpstream, len(texts), len(out.Data))
	}
	res := make([][]float32, len(out.Data))
	for i := range out.Data {
		v := make([]float32, len(out.Data[i].Embedding))
		for j := range out.Data[i].Embedding {
			v[j] = float32(out.Data[i].Embedding[j])
		}
		res[i] = v
	}
	return res, nil
}

// Health checks the provider's model listing endpoint with the configured
// key. Used by the readiness endpoint.
func (c *Client) Health(ctx domain.Context) error {
	if c.cfg.MistralAPIKey == "" {
		return fmt.Errorf("%w: MISTRAL_API_KEY missing", domain.ErrInvalidArgument)
	}
	r, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.MistralBaseURL+"/models", nil)
	r.Header.Set("Authorization", "Bearer "+c.cfg.MistralAPIKey)
	resp, err := c.embedHC.Do(r)
	if err != nil {
		return fmt.Errorf("%w: health: %v", domain.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: health status %d", domain.ErrUpstream, resp.StatusCode)
	}
	return nil
}

var _ domain.AIClient = (*Client)(nil)
