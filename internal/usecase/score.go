// Package usecase contains the essay scoring flow: prompt composition,
// response parsing and orchestration.
package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
	"github.com/fairyhunter13/ielts-essay-evaluator/pkg/textx"
)

// ScoreService orchestrates a single essay evaluation: normalize the essay,
// retrieve graded reference excerpts, compose the prompt, call the model
// once, and parse whatever comes back.
type ScoreService struct {
	Retriever domain.ExcerptRetriever
	AI        domain.AIClient
	Metrics   domain.EvaluationRecorder
	Rubric    Rubric
	TopK      int
	MinScore  float32
	MaxTokens int
}

// NewScoreService wires a ScoreService with its collaborators.
func NewScoreService(r domain.ExcerptRetriever, ai domain.AIClient, m domain.EvaluationRecorder, rubric Rubric, topK int, minScore float32, maxTokens int) *ScoreService {
	return &ScoreService{
		Retriever: r,
		AI:        ai,
		Metrics:   m,
		Rubric:    rubric,
		TopK:      topK,
		MinScore:  minScore,
		MaxTokens: maxTokens,
	}
}

// ScoreEssay evaluates one essay. Retrieval and model errors propagate to
// the caller; malformed model output never does, it degrades to defaults.
func (s *ScoreService) ScoreEssay(ctx domain.Context, req domain.EssayRequest) (domain.Evaluation, error) {
	tracer := otel.Tracer("usecase.score")
	ctx, span := tracer.Start(ctx, "ScoreEssay")
	defer span.End()

	question := strings.TrimSpace(textx.SanitizeText(req.Question))
	essay := textx.CleanEssay(textx.SanitizeText(req.Essay))
	if question == "" || essay == "" {
		return domain.Evaluation{}, fmt.Errorf("%w: question and essay are required", domain.ErrInvalidArgument)
	}
	span.SetAttributes(attribute.Int("essay.words", textx.CountWords(essay)))

	searchQuery := question + "\n" + essay
	excerpts, err := s.retrieve(ctx, tracer, searchQuery)
	if err != nil {
		return domain.Evaluation{}, err
	}
	slog.Debug("similar essays found", slog.Int("count", len(excerpts)))
	observability.ReferenceExcerptsRetrieved.Observe(float64(len(excerpts)))

	prompt := BuildScoringPrompt(PromptContext{
		Question: question,
		Essay:    essay,
		Excerpts: excerpts,
		Rubric:   s.Rubric,
	})
	promptTokens := tokencount.Count(prompt)
	span.SetAttributes(attribute.Int("prompt.tokens", promptTokens))
	slog.Debug("scoring prompt composed",
		slog.Int("prompt_tokens", promptTokens),
		slog.Int("excerpts", len(excerpts)))

	raw, err := s.chat(ctx, tracer, prompt)
	if err != nil {
		return domain.Evaluation{}, err
	}

	ev, outcome := ParseEvaluation(raw)
	if outcome.Degraded {
		slog.Warn("evaluation degraded to defaults", slog.String("reason", outcome.Reason))
	} else if outcome.Reason != "" {
		slog.Info("evaluation recovered", slog.String("reason", outcome.Reason))
	}

	s.track(ev)
	observability.ObserveScoring(outcome.Degraded, map[string]float64{
		domain.CriterionTaskResponse:        ev.TaskResponse,
		domain.CriterionCoherenceCohesion:   ev.CoherenceCohesion,
		domain.CriterionLexicalResource:     ev.LexicalResource,
		domain.CriterionGrammaticalAccuracy: ev.GrammaticalRangeAccuracy,
	})
	return ev, nil
}

func (s *ScoreService) retrieve(ctx domain.Context, tracer trace.Tracer, query string) ([]domain.ReferenceExcerpt, error) {
	ctx, span := tracer.Start(ctx, "RetrieveExcerpts")
	defer span.End()
	excerpts, err := s.Retriever.Retrieve(ctx, query, s.TopK, s.MinScore)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("retrieve excerpts: %w", err)
	}
	span.SetAttributes(attribute.Int("excerpts.count", len(excerpts)))
	if len(excerpts) > 0 {
		span.SetAttributes(
			attribute.Float64("excerpts.top_similarity", float64(excerpts[0].Score)),
			attribute.String("excerpts.top_band", excerpts[0].Band),
			attribute.String("excerpts.top_topic", excerpts[0].Topic),
		)
	}
	return excerpts, nil
}

func (s *ScoreService) chat(ctx domain.Context, tracer trace.Tracer, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "ChatCompletion")
	defer span.End()
	raw, err := s.AI.ChatCompletion(ctx, prompt, s.MaxTokens)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return raw, nil
}

// track records all four criterion scores against the overall band. The band
// key uses one decimal place so 6 and 6.0 land in the same bucket.
func (s *ScoreService) track(ev domain.Evaluation) {
	if s.Metrics == nil {
		return
	}
	band := strconv.FormatFloat(ev.OverallBand, 'f', 1, 64)
	for _, criterion := range domain.Criteria {
		s.Metrics.TrackEvaluation(band, criterion, ev.CriterionScore(criterion))
	}
}
