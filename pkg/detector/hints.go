package detector

import (
	"sort"

	"github.com/dtnitsch/seo-pipeline/models"
)

// commerceSkips apply to every shop platform.
var commerceSkips = []string{
	`(?i)[?&](sort_by|sort|order|filter|price|color|size)=`,
	`(?i)/(wishlist|compare|customer|account)(/|$)`,
	`(?i)/(cart|checkout)(/|$|\?)`,
}

var platformHints = map[models.Platform]models.CrawlHints{
	models.PlatformWordPress: {
		SkipPatterns: []string{
			`/wp-json/`,
			`/xmlrpc\.php`,
			`/wp-login\.php`,
			`[?&](p|page_id|attachment_id)=\d+`,
			`/(trackback|embed)/?$`,
			`/author/[^/]+/page/\d+`,
		},
		FollowPatterns: []string{`/\d{4}/\d{2}/`, `/category/`, `/blog/`},
	},
	models.PlatformShopify: {
		SkipPatterns:   append([]string{`/collections/[^/]+/[^/]+\+`, `/products/[^/]+\.(js|json|oembed)$`, `[?&]variant=`}, commerceSkips...),
		FollowPatterns: []string{`/products/`, `/collections/`},
	},
	models.PlatformMagento: {
		SkipPatterns:   append([]string{`/catalogsearch/`, `/review/product/`, `[?&](dir|mode|limit)=`}, commerceSkips...),
		FollowPatterns: []string{`\.html$`},
	},
	models.PlatformDrupal: {
		SkipPatterns:   []string{`/node/\d+/(edit|delete|revisions)`, `/user/`, `/filter/tips`, `[?&]destination=`},
		FollowPatterns: []string{`/node/\d+$`},
	},
	models.PlatformJoomla: {
		SkipPatterns:   []string{`[?&](tmpl=component|format=feed|print=1)`, `/component/users/`},
		FollowPatterns: []string{`/index\.php/`},
	},
	models.PlatformGhost: {
		SkipPatterns:   []string{`/ghost/`, `/amp/?$`, `/rss/?$`},
		FollowPatterns: []string{`/tag/`},
	},
	models.PlatformWix: {
		SkipPatterns: []string{`/_api/`, `/_partials/`, `[?&]lightbox=`},
	},
	models.PlatformSquarespace: {
		SkipPatterns:   []string{`[?&]format=json`, `/s/`, `/config/`},
		FollowPatterns: []string{`/blog/`},
	},
	models.PlatformWebflow: {
		SkipPatterns: []string{`/search\?`},
	},
	models.PlatformHubSpot: {
		SkipPatterns:   []string{`/_hcms/`, `/hs-fs/`, `[?&](hsLang|hs_preview)=`},
		FollowPatterns: []string{`/blog/`},
	},
}

// Optimizations returns the extra skip and follow patterns for platform.
// Unknown platforms get no hints.
func Optimizations(platform models.Platform) models.CrawlHints {
	h, ok := platformHints[platform]
	if !ok {
		return models.CrawlHints{}
	}
	return models.CrawlHints{
		SkipPatterns:   append([]string(nil), h.SkipPatterns...),
		FollowPatterns: append([]string(nil), h.FollowPatterns...),
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
