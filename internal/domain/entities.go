// Package domain holds the core entities and ports of the essay evaluator.
package domain

import (
	"context"
	"errors"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUpstream marks failures of external collaborators (embeddings,
	// chat completion, vector search). Mapped to a generic 500 at the HTTP
	// boundary with no diagnostic body.
	ErrUpstream = errors.New("upstream failure")
	// ErrNoValidRows is returned by ingestion when a full pass over the
	// dataset produced no acceptable rows.
	ErrNoValidRows = errors.New("no valid rows")
)

// Scoring criteria of IELTS Writing Task 2. The names double as JSON keys in
// the model's reply and as metric keys, so they are part of the wire contract.
const (
	CriterionTaskResponse        = "taskResponse"
	CriterionCoherenceCohesion   = "coherenceCohesion"
	CriterionLexicalResource     = "lexicalResource"
	CriterionGrammaticalAccuracy = "grammaticalRangeAccuracy"
)

// Criteria lists the four scoring criteria in rubric order.
var Criteria = []string{
	CriterionTaskResponse,
	CriterionCoherenceCohesion,
	CriterionLexicalResource,
	CriterionGrammaticalAccuracy,
}

// DefaultScore substitutes any numeric field the model omitted or mangled.
const DefaultScore = 5.0

// DefaultFeedback substitutes a missing examinerFeedback field.
const DefaultFeedback = "No feedback provided"

// GenericSuggestion is the fallback suggestions entry; Suggestions is never
// left empty.
const GenericSuggestion = "Please check your essay format and try again."

// EssayRequest is the immutable scoring input.
type EssayRequest struct {
	Question string
	Essay    string
}

// Evaluation is the typed result of scoring one essay. Band fields are in
// [0,9]. Built once per request and not mutated afterwards.
type Evaluation struct {
	TaskResponse             float64           `json:"taskResponse"`
	CoherenceCohesion        float64           `json:"coherenceCohesion"`
	LexicalResource          float64           `json:"lexicalResource"`
	GrammaticalRangeAccuracy float64           `json:"grammaticalRangeAccuracy"`
	OverallBand              float64           `json:"overallBand"`
	ExaminerFeedback         string            `json:"examinerFeedback"`
	Suggestions              map[string]string `json:"suggestions"`
}

// FallbackEvaluation returns the full-default evaluation used when the model
// reply could not be decoded at all.
func FallbackEvaluation(feedback string) Evaluation {
	return Evaluation{
		TaskResponse:             DefaultScore,
		CoherenceCohesion:        DefaultScore,
		LexicalResource:          DefaultScore,
		GrammaticalRangeAccuracy: DefaultScore,
		OverallBand:              DefaultScore,
		ExaminerFeedback:         feedback,
		Suggestions:              map[string]string{"general": GenericSuggestion},
	}
}

// CriterionScore returns the band for a named criterion.
func (e Evaluation) CriterionScore(criterion string) float64 {
	switch criterion {
	case CriterionTaskResponse:
		return e.TaskResponse
	case CriterionCoherenceCohesion:
		return e.CoherenceCohesion
	case CriterionLexicalResource:
		return e.LexicalResource
	case CriterionGrammaticalAccuracy:
		return e.GrammaticalRangeAccuracy
	default:
		return 0
	}
}

// ReferenceExcerpt is a previously scored essay retrieved for prompting.
// Read-only at scoring time.
type ReferenceExcerpt struct {
	Text      string
	Band      string
	Question  string
	Topic     string
	WordCount int
	Score     float32
}

// AIClient (port)

type AIClient interface {
	// Embed returns embedding vectors for texts, one per input.
	Embed(ctx Context, texts []string) ([][]float32, error)
	// ChatCompletion sends a single prompt and returns the raw completion
	// text. Implementations attempt the call exactly once.
	ChatCompletion(ctx Context, prompt string, maxTokens int) (string, error)
}

// ExcerptRetriever (port)

type ExcerptRetriever interface {
	// Retrieve returns up to topK stored excerpts whose similarity to the
	// query is at least minScore.
	Retrieve(ctx Context, query string, topK int, minScore float32) ([]ReferenceExcerpt, error)
}

// EvaluationRecorder (port)

type EvaluationRecorder interface {
	TrackEvaluation(band, criterion string, score float64)
}

// Context aliases context.Context; adapters and usecases pass it through.
type Context = context.Context
