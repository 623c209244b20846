package usecase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/kaptinlin/jsonrepair"

	"github.com/fairyhunter13/ielts-essay-evaluator/internal/domain"
)

// ParseOutcome reports how an evaluation was recovered from model output.
type ParseOutcome struct {
	// Degraded is true when no usable JSON could be recovered and the
	// evaluation is the all-defaults fallback.
	Degraded bool
	// Reason explains a repair or fallback; empty for a clean parse.
	Reason string
}

// ParseEvaluation turns raw model output into an Evaluation. Model output is
// frequently imperfect: wrapped in prose or markdown fences, truncated, or
// carrying scores as strings. Every malformation degrades to a default value
// instead of failing the request.
func ParseEvaluation(raw string) (domain.Evaluation, ParseOutcome) {
	jsonText := extractJSON(raw)
	if jsonText == "" {
		return fallback("no JSON object in response")
	}

	m, repaired, err := decodeObject(jsonText)
	if err != nil {
		return fallback(fmt.Sprintf("unparseable response: %v", err))
	}

	ev := domain.Evaluation{
		TaskResponse:             scoreOrDefault(m, "taskResponse"),
		CoherenceCohesion:        scoreOrDefault(m, "coherenceCohesion"),
		LexicalResource:          scoreOrDefault(m, "lexicalResource"),
		GrammaticalRangeAccuracy: scoreOrDefault(m, "grammaticalRangeAccuracy"),
		OverallBand:              scoreOrDefault(m, "overallBand"),
		ExaminerFeedback:         feedbackOrDefault(m),
		Suggestions:              castSuggestions(m["suggestions"]),
	}

	out := ParseOutcome{}
	if repaired {
		out.Reason = "repaired malformed JSON"
	}
	return ev, out
}

func fallback(reason string) (domain.Evaluation, ParseOutcome) {
	slog.Warn("evaluation parse failed, using defaults", slog.String("reason", reason))
	return domain.FallbackEvaluation("Could not evaluate properly. " + reason), ParseOutcome{Degraded: true, Reason: reason}
}

// extractJSON strips markdown fences and surrounding prose, returning the
// first balanced JSON object in raw, or the text from the first '{' when no
// closing brace balances it (truncated output is handed to the repairer).
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	s = s[start:]
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '{':
			depth++
		case r == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}

// decodeObject unmarshals jsonText into a map, retrying through jsonrepair
// when the first attempt fails. Returns whether a repair was needed.
func decodeObject(jsonText string) (map[string]any, bool, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(jsonText), &m); err == nil {
		return m, false, nil
	}
	fixed, err := jsonrepair.JSONRepair(jsonText)
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(fixed), &m); err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// scoreOrDefault mirrors lenient numeric extraction: numbers pass through,
// numeric strings are parsed, anything else becomes the default score.
func scoreOrDefault(m map[string]any, key string) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return domain.DefaultScore
	}
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return domain.DefaultScore
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return domain.DefaultScore
		}
		return f
	default:
		return domain.DefaultScore
	}
}

func feedbackOrDefault(m map[string]any) string {
	if v, ok := m["examinerFeedback"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return domain.DefaultFeedback
}

// castSuggestions stringifies the suggestions object, dropping nil values.
// Anything unusable collapses to the generic suggestion.
func castSuggestions(raw any) map[string]string {
	out := map[string]string{}
	if m, ok := raw.(map[string]any); ok {
		for k, v := range m {
			if v == nil {
				continue
			}
			out[k] = fmt.Sprint(v)
		}
	}
	if len(out) == 0 {
		out["general"] = domain.GenericSuggestion
	}
	return out
}
