package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/frontier"
)

func canonical(doc *goquery.Document, base *url.URL) string {
	href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	if !ok {
		return ""
	}
	if u, err := frontier.Normalize(href, base); err == nil {
		return u
	}
	return strings.TrimSpace(href)
}

// links returns deduplicated anchors split by site. Anchors that cannot be
// normalized (mailto:, javascript:, bare fragments) are dropped.
func links(doc *goquery.Document, base *url.URL, sig *models.Signals) (internal, external []models.Link) {
	if base == nil {
		return nil, nil
	}
	page := base.String()
	seen := map[string]struct{}{}
	bad := 0

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := frontier.Normalize(href, base)
		if err != nil {
			if !isNonWebScheme(href) {
				bad++
			}
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}

		link := models.Link{
			URL:      u,
			Text:     normalizeText(s.Text()),
			NoFollow: hasToken(s.AttrOr("rel", ""), "nofollow"),
		}
		if frontier.SameSite(u, page) {
			internal = append(internal, link)
		} else {
			external = append(external, link)
		}
	})

	if bad > 0 {
		sig.Warnings = append(sig.Warnings, fmt.Sprintf("skipped %d unparsable links", bad))
	}
	return internal, external
}

func images(doc *goquery.Document, base *url.URL) []models.Image {
	var out []models.Image
	seen := map[string]struct{}{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" {
			return
		}
		src = resolve(src, base)
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		out = append(out, models.Image{
			Src:   src,
			Alt:   strings.TrimSpace(s.AttrOr("alt", "")),
			Title: strings.TrimSpace(s.AttrOr("title", "")),
		})
	})
	return out
}

// assets lists script and stylesheet URLs, which carry most CMS evidence.
func assets(doc *goquery.Document, base *url.URL) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		u := resolve(raw, base)
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		if hasToken(s.AttrOr("rel", ""), "stylesheet") {
			add(s.AttrOr("href", ""))
		}
	})
	return out
}

func resolve(raw string, base *url.URL) string {
	ref, err := url.Parse(raw)
	if err != nil || base == nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

func hasToken(list, token string) bool {
	for _, t := range strings.Fields(strings.ToLower(list)) {
		if t == token {
			return true
		}
	}
	return false
}

func isNonWebScheme(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range []string{"mailto:", "tel:", "javascript:", "sms:", "data:"} {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
