// Package detector classifies the CMS a site runs on from cheap page
// evidence and maps platforms to crawl hints.
package detector

import (
	"fmt"
	"math"
	"strings"

	"github.com/dtnitsch/seo-pipeline/models"
)

// MinConfidence is the score below which a site is reported as unknown.
const MinConfidence = 0.3

// Evidence is everything the detector looks at for one page.
type Evidence struct {
	Generator   string
	Assets      []string
	CookieNames []string
	Headers     map[string]string // lower-case keys
	HTML        string
}

// EvidenceFrom collects evidence from a fetch and its extracted signals.
func EvidenceFrom(res *models.FetchResult, sig models.Signals) Evidence {
	ev := Evidence{
		Generator: sig.Generator,
		Assets:    sig.Assets,
	}
	if res != nil {
		ev.CookieNames = res.CookieNames
		ev.Headers = res.Headers
		ev.HTML = res.HTML
	}
	return ev
}

// signature lists the markers of one platform with their weights.
type signature struct {
	platform  models.Platform
	generator []string
	assets    []string
	cookies   []string // prefixes
	headers   map[string]string
	html      []string
}

// Weights per evidence source. Generator meta is the most reliable.
const (
	weightGenerator = 0.6
	weightAsset     = 0.25
	weightCookie    = 0.2
	weightHeader    = 0.3
	weightHTML      = 0.15
)

// signatures are checked in order; earlier entries win ties.
var signatures = []signature{
	{
		platform:  models.PlatformWordPress,
		generator: []string{"wordpress"},
		assets:    []string{"/wp-content/", "/wp-includes/"},
		cookies:   []string{"wordpress_", "wp-settings-"},
		headers:   map[string]string{"link": "wp-json", "x-pingback": "xmlrpc.php"},
		html:      []string{"wp-json", "wp-embed"},
	},
	{
		platform:  models.PlatformShopify,
		generator: []string{"shopify"},
		assets:    []string{"cdn.shopify.com", "/cdn/shop/"},
		cookies:   []string{"_shopify_", "cart_sig"},
		headers:   map[string]string{"x-shopid": "", "x-shopify-stage": ""},
		html:      []string{"Shopify.theme", "shopify-section"},
	},
	{
		platform:  models.PlatformDrupal,
		generator: []string{"drupal"},
		assets:    []string{"/sites/default/files/", "/core/misc/drupal.js", "/misc/drupal.js"},
		cookies:   []string{"SESS", "Drupal.visitor"},
		headers:   map[string]string{"x-drupal-cache": "", "x-generator": "drupal"},
		html:      []string{"drupal-settings-json", "Drupal.settings"},
	},
	{
		platform:  models.PlatformJoomla,
		generator: []string{"joomla"},
		assets:    []string{"/media/jui/", "/media/system/js/", "/components/com_"},
		cookies:   []string{"joomla_"},
		html:      []string{"option=com_"},
	},
	{
		platform:  models.PlatformMagento,
		generator: []string{"magento"},
		assets:    []string{"/static/version", "/skin/frontend/", "mage/"},
		cookies:   []string{"mage-", "form_key"},
		headers:   map[string]string{"x-magento-cache-debug": "", "x-magento-tags": ""},
		html:      []string{"Magento_", "data-mage-init"},
	},
	{
		platform:  models.PlatformWix,
		generator: []string{"wix.com"},
		assets:    []string{"static.parastorage.com", "static.wixstatic.com"},
		cookies:   []string{"svSession", "XSRF-TOKEN"},
		headers:   map[string]string{"x-wix-request-id": ""},
		html:      []string{"wix-warmup-data"},
	},
	{
		platform:  models.PlatformSquarespace,
		generator: []string{"squarespace"},
		assets:    []string{"static1.squarespace.com", "assets.squarespace.com"},
		cookies:   []string{"crumb", "ss_cvr"},
		headers:   map[string]string{"server": "squarespace"},
		html:      []string{"Static.SQUARESPACE_CONTEXT"},
	},
	{
		platform:  models.PlatformGhost,
		generator: []string{"ghost"},
		assets:    []string{"/ghost/", "/assets/built/"},
		cookies:   []string{"ghost-"},
		headers:   map[string]string{"x-ghost-cache-status": ""},
		html:      []string{"ghost-portal"},
	},
	{
		platform:  models.PlatformWebflow,
		generator: []string{"webflow"},
		assets:    []string{"assets.website-files.com", "uploads-ssl.webflow.com", "webflow.js"},
		html:      []string{"data-wf-page", "data-wf-site"},
	},
	{
		platform:  models.PlatformHubSpot,
		generator: []string{"hubspot"},
		assets:    []string{"js.hs-scripts.com", "js.hsforms.net", "/hs-fs/", "hubspot.net"},
		cookies:   []string{"hubspotutk", "__hs"},
		headers:   map[string]string{"x-hs-hub-id": ""},
		html:      []string{"hs-cta-wrapper"},
	},
}

// Detect scores every known platform and returns the best match. Results
// are deterministic for the same evidence.
func Detect(ev Evidence) models.CMSFingerprint {
	best := models.CMSFingerprint{Platform: models.PlatformUnknown}
	bestScore := 0.0

	for _, sig := range signatures {
		score, evidence := sig.match(ev)
		if score > bestScore {
			bestScore = score
			best = models.CMSFingerprint{
				Platform: sig.platform,
				Evidence: evidence,
			}
		}
	}

	if bestScore < MinConfidence {
		return models.CMSFingerprint{Platform: models.PlatformUnknown}
	}
	best.Confidence = math.Round(math.Min(bestScore, 1)*100) / 100
	best.Hints = Optimizations(best.Platform)
	return best
}

func (s signature) match(ev Evidence) (float64, []string) {
	var (
		score    float64
		evidence []string
	)

	gen := strings.ToLower(ev.Generator)
	for _, g := range s.generator {
		if strings.Contains(gen, g) {
			score += weightGenerator
			evidence = append(evidence, fmt.Sprintf("generator:%s", ev.Generator))
			break
		}
	}

	for _, marker := range s.assets {
		if asset, ok := firstContaining(ev.Assets, marker); ok {
			score += weightAsset
			evidence = append(evidence, "asset:"+asset)
			break
		}
	}

	for _, prefix := range s.cookies {
		if name, ok := firstPrefixed(ev.CookieNames, prefix); ok {
			score += weightCookie
			evidence = append(evidence, "cookie:"+name)
			break
		}
	}

	for _, key := range sortedKeys(s.headers) {
		v, ok := ev.Headers[key]
		if !ok {
			continue
		}
		want := s.headers[key]
		if want == "" || strings.Contains(strings.ToLower(v), want) {
			score += weightHeader
			evidence = append(evidence, "header:"+key)
			break
		}
	}

	for _, marker := range s.html {
		if strings.Contains(ev.HTML, marker) {
			score += weightHTML
			evidence = append(evidence, "html:"+marker)
			break
		}
	}

	return score, evidence
}

func firstContaining(values []string, marker string) (string, bool) {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), strings.ToLower(marker)) {
			return v, true
		}
	}
	return "", false
}

func firstPrefixed(values []string, prefix string) (string, bool) {
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			return v, true
		}
	}
	return "", false
}
