package scoring

import (
	"fmt"
	"path"
	"strings"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/analytics"
)

// Length bounds for title and meta description, in characters.
const (
	titleMin       = 30
	titleMax       = 60
	descriptionMin = 70
	descriptionMax = 160
)

func issue(code, format string, args ...any) models.Issue {
	return models.Issue{Code: code, Message: fmt.Sprintf(format, args...)}
}

var contentWeights = map[string]float64{"length": 0.4, "readability": 0.25, "structure": 0.2, "text_ratio": 0.15}

func analyzeContent(s models.Signals, t Target) models.CategoryResult {
	var issues []models.Issue
	subs := map[string]float64{}

	minWords := t.minWords()
	subs["length"] = float64(s.WordCount) / float64(minWords) * 100
	if s.WordCount < minWords {
		issues = append(issues, issue("thin_content", "%d words, want at least %d", s.WordCount, minWords))
	}

	avg := averageWords(sentences(s.Text))
	subs["readability"] = 100
	if avg > 20 {
		subs["readability"] = 100 - (avg-20)*5
	}
	if avg > MaxSentenceWords {
		issues = append(issues, issue("long_sentences", "sentences average %.1f words", avg))
	}

	structure := 0.0
	switch len(s.H1) {
	case 0:
		issues = append(issues, issue("missing_h1", "page has no h1"))
	case 1:
		structure += 50
	default:
		structure += 25
		issues = append(issues, issue("multiple_h1", "page has %d h1 elements", len(s.H1)))
	}
	if len(s.H2) > 0 {
		structure += 30
	}
	if len(s.H3) > 0 || len(s.H2) > 1 {
		structure += 20
	}
	subs["structure"] = structure

	subs["text_ratio"] = s.TextToHTMLRatio / 0.25 * 100
	if s.TextToHTMLRatio < 0.1 {
		issues = append(issues, issue("low_text_ratio", "text is %.1f%% of the markup", s.TextToHTMLRatio*100))
	}

	return models.CategoryResult{Score: combine(subs, contentWeights), Subscores: subs, Issues: issues}
}

var technicalWeights = map[string]float64{
	"title":           0.20,
	"description":     0.20,
	"canonical":       0.10,
	"viewport":        0.15,
	"language":        0.05,
	"structured_data": 0.10,
	"indexable":       0.15,
	"open_graph":      0.05,
}

func analyzeTechnical(s models.Signals, _ Target) models.CategoryResult {
	var issues []models.Issue
	subs := map[string]float64{}

	subs["title"], issues = lengthCheck(s.Title, "title", titleMin, titleMax, issues)
	subs["description"], issues = lengthCheck(s.MetaDescription, "meta_description", descriptionMin, descriptionMax, issues)

	present := func(key string, ok bool, code, msg string) {
		if ok {
			subs[key] = 100
			return
		}
		subs[key] = 0
		issues = append(issues, issue(code, "%s", msg))
	}
	present("canonical", s.Canonical != "", "missing_canonical", "no canonical link")
	present("viewport", s.Viewport != "", "missing_viewport", "no viewport meta tag")
	present("language", s.HTMLLang != "", "missing_lang", "html element has no lang attribute")
	present("structured_data", len(s.StructuredData) > 0, "no_structured_data", "no JSON-LD or microdata")
	present("indexable", !strings.Contains(strings.ToLower(s.MetaRobots), "noindex"), "noindex", "robots meta blocks indexing")
	present("open_graph", len(s.OpenGraph) > 0, "missing_open_graph", "no Open Graph tags")

	return models.CategoryResult{Score: combine(subs, technicalWeights), Subscores: subs, Issues: issues}
}

func lengthCheck(text, name string, lo, hi int, issues []models.Issue) (float64, []models.Issue) {
	n := len([]rune(text))
	switch {
	case n == 0:
		return 0, append(issues, issue("missing_"+name, "no %s", strings.ReplaceAll(name, "_", " ")))
	case n < lo || n > hi:
		return 60, append(issues, issue(name+"_length", "%s is %d characters, want %d-%d", strings.ReplaceAll(name, "_", " "), n, lo, hi))
	default:
		return 100, issues
	}
}

var keywordWeights = map[string]float64{"title": 0.25, "h1": 0.2, "description": 0.15, "intro": 0.1, "density": 0.2, "coverage": 0.1}

// Density bounds for the primary keyword, as a percentage of words.
const (
	densityMin = 0.5
	densityMax = 3.0
)

// targetKeywords falls back to the most frequent word on the page when no
// keywords are configured.
func targetKeywords(s models.Signals, t Target) []string {
	if len(t.Keywords) > 0 {
		return t.Keywords
	}
	if top := analytics.TopKeywords(analytics.WordFrequency(s.Text), 1); len(top) > 0 {
		return []string{top[0].Word}
	}
	return nil
}

func analyzeKeyword(s models.Signals, t Target) models.CategoryResult {
	keywords := targetKeywords(s, t)
	if len(keywords) == 0 {
		return models.CategoryResult{Issues: []models.Issue{issue("no_keywords", "no target keyword and no text to derive one")}}
	}
	primary := keywords[0]

	var issues []models.Issue
	subs := map[string]float64{}
	check := func(key, text, code, where string) {
		if analytics.Contains(text, primary) {
			subs[key] = 100
			return
		}
		subs[key] = 0
		issues = append(issues, issue(code, "%q does not appear in the %s", primary, where))
	}
	check("title", s.Title, "keyword_missing_title", "title")
	check("h1", strings.Join(s.H1, " | "), "keyword_missing_h1", "h1")
	check("description", s.MetaDescription, "keyword_missing_description", "meta description")
	check("intro", firstWords(s.Text, 100), "keyword_missing_intro", "first 100 words")

	d := analytics.Density(s.Text, primary)
	switch {
	case d < densityMin:
		subs["density"] = d / densityMin * 100
		issues = append(issues, issue("keyword_low_density", "%q density %.2f%%, want %.1f-%.1f%%", primary, d, densityMin, densityMax))
	case d > densityMax:
		subs["density"] = 100 - (d-densityMax)*25
		issues = append(issues, issue("keyword_stuffing", "%q density %.2f%%, want %.1f-%.1f%%", primary, d, densityMin, densityMax))
	default:
		subs["density"] = 100
	}

	found := 0
	for _, kw := range keywords {
		if analytics.Contains(s.Text, kw) {
			found++
		}
	}
	subs["coverage"] = float64(found) / float64(len(keywords)) * 100
	if found < len(keywords) {
		issues = append(issues, issue("keyword_coverage", "%d of %d keywords appear in the text", found, len(keywords)))
	}

	return models.CategoryResult{Score: combine(subs, keywordWeights), Subscores: subs, Issues: issues}
}

var linkWeights = map[string]float64{"internal": 0.35, "external": 0.15, "anchor_text": 0.3, "followed": 0.2}

// genericAnchors carry no information about the link target.
var genericAnchors = map[string]bool{
	"click here": true, "here": true, "read more": true, "more": true,
	"learn more": true, "this": true, "link": true, "continue": true,
}

// wantInternalLinks is the internal link count that earns a full subscore.
const wantInternalLinks = 5

func analyzeLinks(s models.Signals, _ Target) models.CategoryResult {
	var issues []models.Issue
	subs := map[string]float64{}

	internal := len(s.InternalLinks)
	subs["internal"] = float64(internal) / wantInternalLinks * 100
	if internal == 0 {
		issues = append(issues, issue("no_internal_links", "page links to no other page on the site"))
	}

	subs["external"] = 100
	if len(s.ExternalLinks) == 0 {
		subs["external"] = 50
		issues = append(issues, issue("no_external_links", "page cites no external sources"))
	}

	all := append(append([]models.Link(nil), s.InternalLinks...), s.ExternalLinks...)
	if len(all) > 0 {
		descriptive := 0
		for _, l := range all {
			text := strings.ToLower(strings.TrimSpace(l.Text))
			if text != "" && !genericAnchors[text] {
				descriptive++
			}
		}
		share := float64(descriptive) / float64(len(all))
		subs["anchor_text"] = share * 100
		if share < 0.8 {
			issues = append(issues, issue("generic_anchor_text", "%d of %d links have empty or generic anchor text", len(all)-descriptive, len(all)))
		}
	} else {
		subs["anchor_text"] = 0
	}

	subs["followed"] = 0
	if internal > 0 {
		nofollow := 0
		for _, l := range s.InternalLinks {
			if l.NoFollow {
				nofollow++
			}
		}
		subs["followed"] = float64(internal-nofollow) / float64(internal) * 100
		if nofollow > 0 {
			issues = append(issues, issue("nofollow_internal", "%d internal links are nofollow", nofollow))
		}
	}

	return models.CategoryResult{Score: combine(subs, linkWeights), Subscores: subs, Issues: issues}
}

var imageWeights = map[string]float64{"alt_coverage": 0.6, "alt_quality": 0.3, "presence": 0.1}

// imageExts mark alt text that is just a file name.
var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true}

func analyzeImages(s models.Signals, _ Target) models.CategoryResult {
	n := len(s.Images)
	if n == 0 {
		return models.CategoryResult{
			Score:     50,
			Subscores: map[string]float64{"presence": 0},
			Issues:    []models.Issue{issue("no_images", "page has no images")},
		}
	}

	var issues []models.Issue
	withAlt, goodAlt := 0, 0
	for _, img := range s.Images {
		alt := strings.TrimSpace(img.Alt)
		if alt == "" {
			continue
		}
		withAlt++
		if l := len([]rune(alt)); l >= 5 && l <= 125 && !imageExts[strings.ToLower(path.Ext(alt))] {
			goodAlt++
		}
	}
	if missing := n - withAlt; missing > 0 {
		issues = append(issues, issue("missing_alt", "%d of %d images have no alt text", missing, n))
	}
	altQuality := 0.0
	if withAlt > 0 {
		altQuality = float64(goodAlt) / float64(withAlt) * 100
		if goodAlt < withAlt {
			issues = append(issues, issue("poor_alt_text", "%d alt texts are too short, too long or a file name", withAlt-goodAlt))
		}
	}

	subs := map[string]float64{
		"alt_coverage": float64(withAlt) / float64(n) * 100,
		"alt_quality":  altQuality,
		"presence":     100,
	}
	return models.CategoryResult{Score: combine(subs, imageWeights), Subscores: subs, Issues: issues}
}
