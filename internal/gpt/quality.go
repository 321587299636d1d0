package gpt

import (
	"regexp"
	"strings"
)

// Phrases that mark a reply as refusal boilerplate rather than a
// rewrite. Matching is case-insensitive against the whole text.
var lowQualityPhrases = []string{
	"как языковая модель",
	"как ии",
	"я не могу",
	"к сожалению, я",
	"as a language model",
	"as an ai",
	"i cannot",
	"i'm sorry",
	"вот переписанный",
	"вот ваш",
}

var placeholderRe = regexp.MustCompile(`\{\{?\s*(title|description|заголовок|описание)\s*\}?\}`)

// IsLowQuality reports whether a model reply should be discarded in
// favor of the original feed text.
func IsLowQuality(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return true
	}
	for _, phrase := range lowQualityPhrases {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return placeholderRe.MatchString(t)
}
