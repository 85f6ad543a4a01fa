package scoring

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/analytics"
)

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

var priorityRank = map[string]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}

var (
	callToAction = regexp.MustCompile(`(?i)\b(?:buy|order|sign up|subscribe|register|download|get started|book|try|contact us|request a (?:demo|quote))\b`)
	urgency      = regexp.MustCompile(`(?i)\b(?:now|today|limited|only|hurry|instant(?:ly)?|ends|last chance|before|free)\b`)
)

// passiveShare above which passive voice is flagged.
const passiveShare = 0.1

// Annotate maps signals to suggestions with fixed rules. The same input
// always yields the same recommendations in the same order.
func Annotate(s models.Signals, t Target) []models.Recommendation {
	recs := []models.Recommendation{}
	add := func(code string, cat models.Category, priority, format string, args ...any) {
		recs = append(recs, models.Recommendation{
			Code:       code,
			Category:   cat,
			Priority:   priority,
			Suggestion: fmt.Sprintf(format, args...),
		})
	}

	for _, kw := range t.Keywords {
		if !analytics.Contains(s.Title, kw) {
			add("keyword_missing_title", models.CategoryKeyword, PriorityHigh,
				"Add the keyword %q to the page title, ideally near the start.", kw)
		}
		if len(s.H1) > 0 && !analytics.Contains(strings.Join(s.H1, " | "), kw) {
			add("keyword_missing_h1", models.CategoryKeyword, PriorityHigh,
				"Work the keyword %q into the main heading.", kw)
		}
	}

	if len(s.H1) == 0 {
		add("missing_h1", models.CategoryContent, PriorityHigh, "Add a single h1 that states what the page is about.")
	} else if len(s.H1) > 1 {
		add("multiple_h1", models.CategoryContent, PriorityLow, "Use one h1 and demote the other %d to h2.", len(s.H1)-1)
	}

	switch n := len([]rune(s.MetaDescription)); {
	case n == 0:
		add("missing_meta_description", models.CategoryTechnical, PriorityHigh,
			"Write a meta description of %d-%d characters summarizing the page.", descriptionMin, descriptionMax)
	case n > descriptionMax:
		add("meta_description_length", models.CategoryTechnical, PriorityLow,
			"Shorten the meta description to %d characters so it is not truncated.", descriptionMax)
	case n < descriptionMin:
		add("meta_description_length", models.CategoryTechnical, PriorityLow,
			"Expand the meta description to at least %d characters.", descriptionMin)
	}

	if minWords := t.minWords(); s.WordCount < minWords {
		add("thin_content", models.CategoryContent, PriorityHigh,
			"Expand the content: %d words is below the %d-word minimum.", s.WordCount, minWords)
	}

	sents := sentences(s.Text)
	if len(sents) > 0 {
		passive, long := 0, 0
		for _, sent := range sents {
			if passiveVoice.MatchString(sent) {
				passive++
			}
			if len(strings.Fields(sent)) > MaxSentenceWords {
				long++
			}
		}
		if float64(passive)/float64(len(sents)) > passiveShare {
			add("passive_voice", models.CategoryContent, PriorityMedium,
				"Rewrite %d of %d sentences in active voice.", passive, len(sents))
		}
		if long > 0 && float64(long)/float64(len(sents)) > 0.25 {
			add("long_sentences", models.CategoryContent, PriorityMedium,
				"Split %d sentences longer than %d words.", long, MaxSentenceWords)
		}
		if callToAction.MatchString(s.Text) && !urgency.MatchString(s.Text) {
			add("cta_no_urgency", models.CategoryContent, PriorityMedium,
				"Give the call to action a reason to act now, such as a deadline or limited offer.")
		}
	}

	missingAlt := 0
	for _, img := range s.Images {
		if strings.TrimSpace(img.Alt) == "" {
			missingAlt++
		}
	}
	if missingAlt > 0 {
		add("missing_alt", models.CategoryImages, PriorityMedium,
			"Add descriptive alt text to %d images.", missingAlt)
	}

	if len(s.InternalLinks) == 0 {
		add("no_internal_links", models.CategoryLinks, PriorityMedium,
			"Link to related pages on the same site.")
	}
	if s.Canonical == "" {
		add("missing_canonical", models.CategoryTechnical, PriorityLow,
			"Declare a canonical URL to consolidate duplicate variants.")
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return priorityRank[recs[i].Priority] < priorityRank[recs[j].Priority]
	})
	return recs
}
