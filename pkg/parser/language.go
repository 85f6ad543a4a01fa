package parser

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// minLanguageWords is the shortest text lingua is asked to classify.
const minLanguageWords = 5

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English,
				lingua.German,
				lingua.French,
				lingua.Spanish,
				lingua.Italian,
				lingua.Portuguese,
				lingua.Dutch,
			).
			Build()
	})
	return detector
}

// detectLanguage returns an ISO 639-1 code and confidence. Short texts fall
// back to the document's lang attribute with zero confidence.
func detectLanguage(text, htmlLang string) (string, float64) {
	if len(strings.Fields(text)) >= minLanguageWords {
		d := languageDetector()
		if lang, ok := d.DetectLanguageOf(text); ok {
			code := strings.ToLower(lang.IsoCode639_1().String())
			return code, round(d.ComputeLanguageConfidence(text, lang), 4)
		}
	}

	if htmlLang != "" {
		code, _, _ := strings.Cut(strings.ToLower(htmlLang), "-")
		return code, 0
	}
	return "", 0
}
