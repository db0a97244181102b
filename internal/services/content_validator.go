package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type ContentReason string

const (
	ContentOK           ContentReason = ""
	ContentTooShort     ContentReason = "too_short"
	ContentCommaDensity ContentReason = "comma_density"
	ContentNumericOnly  ContentReason = "numeric_only"
)

const (
	minTranscriptionRunes = 5
	maxCommaDensity       = 0.3
)

type ContentVerdict struct {
	Valid  bool
	Reason ContentReason
}

// ValidateContent flags transcriptions whose shape says nobody spoke:
// speech models emit short fragments, comma runs or stray digits on silence.
func ValidateContent(text string) ContentVerdict {
	stripped := strings.TrimSpace(text)
	length := utf8.RuneCountInString(stripped)

	if length < minTranscriptionRunes {
		return ContentVerdict{Reason: ContentTooShort}
	}

	commas := strings.Count(stripped, ",")
	if float64(commas)/float64(length) > maxCommaDensity {
		return ContentVerdict{Reason: ContentCommaDensity}
	}

	numericOnly := strings.IndexFunc(stripped, func(r rune) bool {
		return !(unicode.IsDigit(r) || r == '.' || r == ',' || unicode.IsSpace(r))
	}) == -1
	if numericOnly {
		return ContentVerdict{Reason: ContentNumericOnly}
	}

	return ContentVerdict{Valid: true}
}
