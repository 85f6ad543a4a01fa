package scoring

import (
	"regexp"
	"strings"
)

// MaxSentenceWords is the length above which a sentence counts as long.
const MaxSentenceWords = 25

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

	// A form of "to be" followed by a past participle. Irregular
	// participles are listed explicitly.
	passiveVoice = regexp.MustCompile(`(?i)\b(?:am|is|are|was|were|be|been|being)\s+(?:\w+ed|known|written|done|made|given|taken|seen|shown|built|found|sold|held|kept|told|paid|chosen|driven|broken)\b`)
)

func sentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func averageWords(sents []string) float64 {
	if len(sents) == 0 {
		return 0
	}
	total := 0
	for _, s := range sents {
		total += len(strings.Fields(s))
	}
	return float64(total) / float64(len(sents))
}

// firstWords returns the first n words of text.
func firstWords(text string, n int) string {
	words := strings.Fields(text)
	return strings.Join(words[:min(n, len(words))], " ")
}

// combine clamps every subscore and returns their weighted sum. Weights
// are expected to sum to 1.
func combine(subs, weights map[string]float64) float64 {
	score := 0.0
	for k, v := range subs {
		v = clamp(v)
		subs[k] = round2(v)
		score += weights[k] * v
	}
	return round2(clamp(score))
}
