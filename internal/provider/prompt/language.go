package prompt

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LanguageDetector names the dominant language of the search context so the
// model knows when it is reading non-English sources.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

// NewLanguageDetector builds a detector restricted to the languages search
// results usually come back in.
func NewLanguageDetector() *LanguageDetector {
	d := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.French, lingua.German, lingua.Spanish,
			lingua.Portuguese, lingua.Italian, lingua.Dutch).
		Build()
	return &LanguageDetector{detector: d}
}

// Detect returns the language name, or "" when the text is blank or ambiguous.
func (d *LanguageDetector) Detect(text string) string {
	if d == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return lang.String()
}
