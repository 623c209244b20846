package usecase

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

func TestBuildScoringPrompt_Sections(t *testing.T) {
	t.Parallel()
	p := BuildScoringPrompt(PromptContext{
		Question: "Some people think cars should be banned from city centres.",
		Essay:    "In many cities, traffic congestion is a growing problem.",
		Rubric:   DefaultRubric(),
	})
	assert.True(t, strings.HasPrefix(p, "You are an experienced IELTS examiner."))
	assert.Contains(t, p, "Question: Some people think cars should be banned from city centres.")
	assert.Contains(t, p, "Essay to evaluate:\nIn many cities, traffic congestion is a growing problem.")
	assert.Contains(t, p, "1. Task Response (TR): Address all parts, develop position, support ideas")
	assert.Contains(t, p, "4. Grammatical Range & Accuracy (GRA): Sentence structures, grammar, punctuation")
	assert.Contains(t, p, `"overallBand": [score 1-9]`)
	assert.Contains(t, p, `"grammaticalRangeAccuracy": "[specific suggestions]"`)
}

func TestBuildScoringPrompt_NoExcerptsOmitsSection(t *testing.T) {
	t.Parallel()
	p := BuildScoringPrompt(PromptContext{Question: "q", Essay: "e", Rubric: DefaultRubric()})
	assert.NotContains(t, p, "Example Essays for Reference")
}

func TestBuildScoringPrompt_ExcerptsLabeledWithBand(t *testing.T) {
	t.Parallel()
	p := BuildScoringPrompt(PromptContext{
		Question: "q",
		Essay:    "e",
		Rubric:   DefaultRubric(),
		Excerpts: []domain.ReferenceExcerpt{
			{Text: "first reference essay", Band: "7.0"},
			{Text: "second reference essay"},
			{Text: ""},
		},
	})
	assert.Contains(t, p, "Example Essays for Reference:\n")
	assert.Contains(t, p, " Example (Band 7.0) ---\nfirst reference essay")
	assert.Contains(t, p, " Example ---\nsecond reference essay")
}

func TestBuildScoringPrompt_ExcerptsBeforeSchema(t *testing.T) {
	t.Parallel()
	p := BuildScoringPrompt(PromptContext{
		Question: "q",
		Essay:    "e",
		Rubric:   DefaultRubric(),
		Excerpts: []domain.ReferenceExcerpt{{Text: "ref"}},
	})
	refIdx := strings.Index(p, "Example Essays for Reference")
	schemaIdx := strings.Index(p, "Provide evaluation in this exact JSON format")
	require.GreaterOrEqual(t, refIdx, 0)
	require.Greater(t, schemaIdx, refIdx)
}

func TestLoadRubricFile_Default(t *testing.T) {
	t.Parallel()
	r, err := LoadRubricFile("")
	require.NoError(t, err)
	assert.Len(t, r.Criteria, 4)
}

func TestLoadRubricFile_Override(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	doc := `criteria:
  - name: Task Achievement
    code: TA
    description: Covers the single-chart description task
  - name: Coherence & Cohesion
    code: CC
    description: Logical organization
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	r, err := LoadRubricFile(path)
	require.NoError(t, err)
	require.Len(t, r.Criteria, 2)
	assert.Equal(t, "Task Achievement", r.Criteria[0].Name)
	assert.Equal(t, "TA", r.Criteria[0].Code)

	p := BuildScoringPrompt(PromptContext{Question: "q", Essay: "e", Rubric: r})
	assert.Contains(t, p, "1. Task Achievement (TA): Covers the single-chart description task")
}

func TestLoadRubricFile_EmptyCriteria(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	require.NoError(t, os.WriteFile(path, []byte("criteria: []\n"), 0o600))
	_, err := LoadRubricFile(path)
	require.Error(t, err)
}

func TestLoadRubricFile_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadRubricFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
