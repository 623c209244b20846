// Package textx provides small text utilities used across the project.
package textx

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctSpaceRe = regexp.MustCompile(`\s([.,;:!?])`)
)

// fillerPhrases are removed from questions before topic extraction.
var fillerPhrases = []string{
	"discuss", "to what extent", "advantages", "disadvantages",
	"opinion", "view", "agree", "disagree",
}

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// CleanEssay collapses whitespace runs to a single space, removes the space
// preceding sentence punctuation, and trims the result. Idempotent.
func CleanEssay(essay string) string {
	if essay == "" {
		return ""
	}
	cleaned := whitespaceRe.ReplaceAllString(essay, " ")
	cleaned = punctSpaceRe.ReplaceAllString(cleaned, "$1")
	return strings.TrimSpace(cleaned)
}

// CountWords returns the number of whitespace-separated tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ExtractMainTopic derives a rough topic from an essay question by stripping
// common task phrasing and keeping the text before the first period or comma.
// Returns "general" when nothing usable remains.
func ExtractMainTopic(question string) string {
	if question == "" {
		return "general"
	}
	lowered := strings.ToLower(question)
	for _, phrase := range fillerPhrases {
		lowered = strings.ReplaceAll(lowered, phrase, "")
	}
	if idx := strings.IndexAny(lowered, ".,"); idx >= 0 {
		lowered = lowered[:idx]
	}
	topic := strings.TrimSpace(lowered)
	if topic == "" {
		return "general"
	}
	return topic
}
