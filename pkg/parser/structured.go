package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dtnitsch/seo-pipeline/models"
)

// jsonLD parses every ld+json script. Invalid blocks are skipped with a warning.
func jsonLD(doc *goquery.Document, sig *models.Signals) []models.StructuredDataBlock {
	var out []models.StructuredDataBlock
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			sig.Warnings = append(sig.Warnings, fmt.Sprintf("invalid json-ld block %d: %v", i, err))
			return
		}
		for _, obj := range ldObjects(v) {
			out = append(out, models.StructuredDataBlock{
				Format: "json-ld",
				Types:  ldTypes(obj["@type"]),
				Fields: ldFields(obj),
			})
		}
	})
	return out
}

// ldObjects flattens top-level arrays and @graph containers.
func ldObjects(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if graph, ok := t["@graph"].([]any); ok {
			return ldObjects(graph)
		}
		return []map[string]any{t}
	case []any:
		var out []map[string]any
		for _, item := range t {
			out = append(out, ldObjects(item)...)
		}
		return out
	}
	return nil
}

func ldTypes(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func ldFields(obj map[string]any) []string {
	var out []string
	for k := range obj {
		if strings.HasPrefix(k, "@") {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// microdata returns one block per outermost itemscope element.
func microdata(doc *goquery.Document) []models.StructuredDataBlock {
	var out []models.StructuredDataBlock
	doc.Find("[itemscope]").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("[itemscope]").Length() > 0 {
			return
		}
		var types []string
		for _, t := range strings.Fields(s.AttrOr("itemtype", "")) {
			t = strings.TrimRight(t, "/")
			if idx := strings.LastIndex(t, "/"); idx >= 0 {
				t = t[idx+1:]
			}
			types = append(types, t)
		}

		seen := map[string]struct{}{}
		var fields []string
		s.Find("[itemprop]").Each(func(_ int, p *goquery.Selection) {
			for _, name := range strings.Fields(p.AttrOr("itemprop", "")) {
				if _, dup := seen[name]; !dup {
					seen[name] = struct{}{}
					fields = append(fields, name)
				}
			}
		})
		sort.Strings(fields)

		out = append(out, models.StructuredDataBlock{
			Format: "microdata",
			Types:  types,
			Fields: fields,
		})
	})
	return out
}
