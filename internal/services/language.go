package services

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

const unknownLanguage = "unknown"

// LanguageNormalizer turns whatever the speech backend reports ("french",
// "fr", "") into a lowercase ISO 639-1 tag, detecting from the text when the
// backend gave nothing usable.
type LanguageNormalizer struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

func NewLanguageNormalizer() *LanguageNormalizer {
	return &LanguageNormalizer{}
}

// Warmup builds the detector ahead of the first request.
func (n *LanguageNormalizer) Warmup() {
	n.load()
}

func (n *LanguageNormalizer) load() lingua.LanguageDetector {
	n.once.Do(func() {
		n.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})
	return n.detector
}

// Normalize returns the tag and where it came from ("backend", "detected", "none").
func (n *LanguageNormalizer) Normalize(reported, text string) (string, string) {
	if tag, ok := lookupLanguage(reported); ok {
		return tag, "backend"
	}

	if strings.TrimSpace(text) == "" {
		return unknownLanguage, "none"
	}

	language, ok := n.load().DetectLanguageOf(text)
	if !ok {
		return unknownLanguage, "none"
	}
	return strings.ToLower(language.IsoCode639_1().String()), "detected"
}

func lookupLanguage(reported string) (string, bool) {
	reported = strings.TrimSpace(reported)
	if reported == "" {
		return "", false
	}
	// BCP-47 style tags such as "fr-FR" keep only the primary subtag.
	primary := strings.ToLower(strings.SplitN(strings.ReplaceAll(reported, "_", "-"), "-", 2)[0])

	for _, language := range lingua.AllLanguages() {
		iso := strings.ToLower(language.IsoCode639_1().String())
		if primary == iso || strings.EqualFold(reported, language.String()) {
			return iso, true
		}
	}
	return "", false
}
