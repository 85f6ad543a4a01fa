// Package parser extracts SEO signals from an HTML document.
package parser

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/dtnitsch/seo-pipeline/models"
)

// WordsPerMinute is the reading speed used for ReadingTimeMin.
const WordsPerMinute = 200

// Extract parses html fetched from pageURL into Signals. It is pure: the same
// input always yields the same output. Malformed markup produces whatever
// could be recovered plus entries in Warnings; Extract never fails.
func Extract(html, pageURL string) models.Signals {
	var sig models.Signals

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		sig.Warnings = append(sig.Warnings, fmt.Sprintf("failed to parse html: %v", err))
		return sig
	}

	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		sig.Warnings = append(sig.Warnings, fmt.Sprintf("invalid page url %q", pageURL))
		base = nil
	}

	sig.Title = normalizeText(doc.Find("title").First().Text())
	sig.HTMLLang = strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))
	extractMeta(doc, &sig)
	sig.Canonical = canonical(doc, base)

	sig.H1 = headings(doc, "h1")
	sig.H2 = headings(doc, "h2")
	sig.H3 = headings(doc, "h3")

	sig.StructuredData = append(jsonLD(doc, &sig), microdata(doc)...)

	sig.InternalLinks, sig.ExternalLinks = links(doc, base, &sig)
	sig.Images = images(doc, base)
	sig.Assets = assets(doc, base)

	article := readable(html, base)
	if article != nil {
		sig.Author = normalizeText(article.Byline)
		sig.Excerpt = normalizeText(article.Excerpt)
		sig.SiteName = normalizeText(article.SiteName)
	}

	sig.Text = mainText(doc, article)
	words := strings.Fields(sig.Text)
	sig.WordCount = len(words)
	sig.ReadingTimeMin = round(float64(sig.WordCount)/WordsPerMinute, 1)
	if len(html) > 0 {
		sig.TextToHTMLRatio = round(float64(len(sig.Text))/float64(len(html)), 4)
	}

	sig.Language, sig.LanguageConfidence = detectLanguage(sig.Text, sig.HTMLLang)
	return sig
}

func extractMeta(doc *goquery.Document, sig *models.Signals) {
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		key := strings.ToLower(strings.TrimSpace(s.AttrOr("name", "")))
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(s.AttrOr("property", "")))
		}

		switch {
		case key == "description":
			if sig.MetaDescription == "" {
				sig.MetaDescription = normalizeText(content)
			}
		case key == "keywords":
			for _, kw := range strings.Split(content, ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					sig.MetaKeywords = append(sig.MetaKeywords, kw)
				}
			}
		case key == "robots":
			sig.MetaRobots = strings.ToLower(content)
		case key == "viewport":
			sig.Viewport = content
		case key == "generator":
			sig.Generator = content
		case strings.HasPrefix(key, "og:"):
			if sig.OpenGraph == nil {
				sig.OpenGraph = map[string]string{}
			}
			if _, ok := sig.OpenGraph[key[3:]]; !ok {
				sig.OpenGraph[key[3:]] = content
			}
		case strings.HasPrefix(key, "twitter:"):
			if sig.Twitter == nil {
				sig.Twitter = map[string]string{}
			}
			if _, ok := sig.Twitter[key[8:]]; !ok {
				sig.Twitter[key[8:]] = content
			}
		}
	})
}

func headings(doc *goquery.Document, tag string) []string {
	var out []string
	doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		if text := normalizeText(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

func readable(html string, base *url.URL) *readability.Article {
	if base == nil {
		return nil
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), base)
	if err != nil {
		return nil
	}
	return &article
}

// mainText prefers the readability content and falls back to the whole body.
func mainText(doc *goquery.Document, article *readability.Article) string {
	if article != nil && article.Content != "" {
		if content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			if text := normalizeText(content.Text()); text != "" {
				return text
			}
		}
	}

	body := doc.Find("body").Clone()
	body.Find("script,style,noscript,template").Remove()
	return normalizeText(body.Text())
}

// normalizeText collapses all whitespace runs to single spaces.
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
