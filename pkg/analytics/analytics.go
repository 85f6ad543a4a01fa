// Package analytics computes keyword statistics over extracted page text.
package analytics

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are ignored by frequency analysis. Web UI noise ("click",
// "menu", "homepage") is included since it never makes a useful keyword.
var stopwords = func() map[string]struct{} {
	words := strings.Fields(`
		a about above across after afterwards again against all almost alone along
		already also although always am among amongst an and another any anyhow
		anyone anything anyway anywhere are aren't around as at
		back be became because become becomes becoming been before beforehand
		behind being below beside besides between beyond both but by
		can can't cannot could couldn't
		did didn't do does doesn't doing don't done down during
		each either else elsewhere enough especially etc even ever every everyone
		everything everywhere
		few for former formerly from further
		had hadn't has hasn't have haven't having he he'd he'll he's hence her here
		here's hers herself him himself his how however
		i i'd i'll i'm i've if in indeed into is isn't it it's its itself
		just keep
		last latter least less let let's like likely
		made make many may maybe me meanwhile might mine more moreover most mostly
		much must mustn't my myself
		neither never nevertheless next no nobody none nor not nothing now nowhere
		of off often on once one only onto or other others otherwise our ours
		ourselves out over own
		per perhaps please put
		rather re same see seem seemed seems several she she'd she'll she's should
		shouldn't since so some somehow someone something sometime sometimes
		somewhere still such
		take than that that's the their theirs them themselves then there
		therefore there's these they they'd they'll they're they've this those
		through throughout thus to together too toward towards
		under until up upon us use
		very via
		was wasn't we we'd we'll we're we've well were weren't what whatever what's
		when where whereas wherever whether which while who whoever who's whose why
		will with within without won't would wouldn't
		yet you you'd you'll you're you've your yours yourself yourselves
		click clicked clicking button link menu redirect redirected page pages
		website site home homepage search loading loaded load
	`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopword checks if a word is a common stopword that should be filtered out.
func IsStopword(word string) bool {
	_, ok := stopwords[strings.ToLower(word)]
	return ok
}

// Tokenize lower-cases text and splits it into words, trimming surrounding
// punctuation. Inner apostrophes and hyphens are kept.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// WordFrequency counts non-stopword tokens in text.
func WordFrequency(text string) map[string]int {
	freq := make(map[string]int)
	for _, w := range Tokenize(text) {
		if _, skip := stopwords[w]; skip || !isValidKeyword(w) {
			continue
		}
		freq[w]++
	}
	return freq
}

// Merge sums frequency maps, e.g. across the pages of one crawl.
func Merge(counts ...map[string]int) map[string]int {
	out := make(map[string]int)
	for _, c := range counts {
		for w, n := range c {
			out[w] += n
		}
	}
	return out
}

// KeywordCount is one ranked keyword.
type KeywordCount struct {
	Word  string `json:"word" yaml:"word"`
	Count int    `json:"count" yaml:"count"`
}

// TopKeywords returns the n most frequent words, ties broken alphabetically.
func TopKeywords(freq map[string]int, n int) []KeywordCount {
	counts := make([]KeywordCount, 0, len(freq))
	for w, c := range freq {
		counts = append(counts, KeywordCount{w, c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})
	return counts[:max(0, min(n, len(counts)))]
}

// Occurrences counts non-overlapping matches of a (possibly multi-word)
// phrase in text, on token boundaries.
func Occurrences(text, phrase string) int {
	words := Tokenize(text)
	needle := Tokenize(phrase)
	if len(needle) == 0 || len(words) < len(needle) {
		return 0
	}
	n := 0
	for i := 0; i+len(needle) <= len(words); {
		if equalTokens(words[i:i+len(needle)], needle) {
			n++
			i += len(needle)
			continue
		}
		i++
	}
	return n
}

// Density is the share of the words in text taken up by phrase, as a
// percentage.
func Density(text, phrase string) float64 {
	total := len(Tokenize(text))
	if total == 0 {
		return 0
	}
	return float64(Occurrences(text, phrase)*len(Tokenize(phrase))) / float64(total) * 100
}

// Contains reports whether phrase appears in text on token boundaries.
func Contains(text, phrase string) bool {
	return Occurrences(text, phrase) > 0
}

func equalTokens(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isValidKeyword drops obviously broken tokens: unmatched quotes or
// delimiters and a trailing ':' or '='.
func isValidKeyword(word string) bool {
	if strings.HasSuffix(word, ":") || strings.HasSuffix(word, "=") {
		return false
	}
	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}, {"{", "}"}} {
		if strings.Contains(word, pair[0]) != strings.Contains(word, pair[1]) {
			return false
		}
	}
	return strings.Count(word, `"`)%2 == 0
}
