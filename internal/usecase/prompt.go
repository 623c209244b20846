package usecase

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

// RubricCriterion is one scored dimension in the examiner rubric.
type RubricCriterion struct {
	Name        string `yaml:"name"`
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
}

// Rubric lists the criteria injected into the scoring prompt.
type Rubric struct {
	Criteria []RubricCriterion `yaml:"criteria"`
}

// DefaultRubric returns the standard Writing Task 2 rubric.
func DefaultRubric() Rubric {
	return Rubric{Criteria: []RubricCriterion{
		{Name: "Task Response", Code: "TR", Description: "Address all parts, develop position, support ideas"},
		{Name: "Coherence & Cohesion", Code: "CC", Description: "Logical organization, paragraphing, linking devices"},
		{Name: "Lexical Resource", Code: "LR", Description: "Vocabulary range, accuracy, collocations"},
		{Name: "Grammatical Range & Accuracy", Code: "GRA", Description: "Sentence structures, grammar, punctuation"},
	}}
}

// LoadRubricFile reads a YAML rubric override. An empty path returns the
// default rubric.
func LoadRubricFile(path string) (Rubric, error) {
	if path == "" {
		return DefaultRubric(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Rubric{}, fmt.Errorf("read rubric: %w", err)
	}
	var r Rubric
	if err := yaml.Unmarshal(b, &r); err != nil {
		return Rubric{}, fmt.Errorf("parse rubric: %w", err)
	}
	if len(r.Criteria) == 0 {
		return Rubric{}, fmt.Errorf("rubric %s defines no criteria", path)
	}
	return r, nil
}

// PromptContext carries everything the scoring prompt needs.
type PromptContext struct {
	Question string
	Essay    string
	Excerpts []domain.ReferenceExcerpt
	Rubric   Rubric
}

// BuildScoringPrompt renders the examiner prompt: question, essay, rubric,
// optional reference excerpts and the required JSON response schema.
func BuildScoringPrompt(pc PromptContext) string {
	var b strings.Builder
	b.WriteString("You are an experienced IELTS examiner. Evaluate this essay based on IELTS Writing Task 2 criteria.\n\n")
	b.WriteString("Question: ")
	b.WriteString(pc.Question)
	b.WriteString("\n\n")
	b.WriteString("Essay to evaluate:\n")
	b.WriteString(pc.Essay)
	b.WriteString("\n\n")

	b.WriteString("Scoring Criteria:\n")
	for i, c := range pc.Rubric.Criteria {
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, c.Name, c.Code, c.Description)
	}
	b.WriteString("\n")

	if len(pc.Excerpts) > 0 {
		b.WriteString("Example Essays for Reference:\n")
		for _, ex := range pc.Excerpts {
			if ex.Text == "" {
				continue
			}
			if ex.Band != "" {
				fmt.Fprintf(&b, " Example (Band %s) ---\n", ex.Band)
			} else {
				b.WriteString(" Example ---\n")
			}
			b.WriteString(ex.Text)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("Provide evaluation in this exact JSON format:\n")
	b.WriteString("{\n")
	b.WriteString("  \"taskResponse\": [score 1-9],\n")
	b.WriteString("  \"coherenceCohesion\": [score 1-9],\n")
	b.WriteString("  \"lexicalResource\": [score 1-9],\n")
	b.WriteString("  \"grammaticalRangeAccuracy\": [score 1-9],\n")
	b.WriteString("  \"overallBand\": [score 1-9],\n")
	b.WriteString("  \"examinerFeedback\": \"[detailed feedback]\",\n")
	b.WriteString("  \"suggestions\": {\n")
	b.WriteString("    \"taskResponse\": \"[specific suggestions]\",\n")
	b.WriteString("    \"coherenceCohesion\": \"[specific suggestions]\",\n")
	b.WriteString("    \"lexicalResource\": \"[specific suggestions]\",\n")
	b.WriteString("    \"grammaticalRangeAccuracy\": \"[specific suggestions]\"\n")
	b.WriteString("  }\n")
	b.WriteString("}\n")

	return b.String()
}
