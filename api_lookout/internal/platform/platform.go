package platform

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"frameworks/api_lookout/internal/fetch"
	"frameworks/api_lookout/internal/page"
)

const PlatformCustom = "custom"

type Info struct {
	Platform     string   `json:"platform"`
	Confidence   int      `json:"confidence"`
	Technologies []string `json:"technologies"`
}

// signal is one fingerprint. Exactly one of the matchers is set.
type signal struct {
	generator *regexp.Regexp // <meta name="generator">
	markup    *regexp.Regexp // raw HTML, covers asset paths and inline globals
	header    string         // header name
	headerVal *regexp.Regexp // value of header
	cookie    *regexp.Regexp // Set-Cookie names
	weight    int
}

// signature groups the signals of one technology. Only cms signatures
// (site builders and site frameworks) compete for Info.Platform; the rest
// only add technologies.
type signature struct {
	name    string
	cms     bool
	signals []signal
}

func re(p string) *regexp.Regexp { return regexp.MustCompile(`(?i)` + p) }

var signatures = []signature{
	{name: "WordPress", cms: true, signals: []signal{
		{generator: re(`^wordpress`), weight: 60},
		{markup: re(`/wp-content/|/wp-includes/`), weight: 50},
		{header: "Link", headerVal: re(`api\.w\.org`), weight: 40},
		{markup: re(`wp-json`), weight: 20},
	}},
	{name: "Shopify", cms: true, signals: []signal{
		{markup: re(`cdn\.shopify\.com`), weight: 60},
		{header: "X-ShopId", headerVal: re(`.`), weight: 60},
		{markup: re(`Shopify\.theme`), weight: 40},
		{cookie: re(`^_shopify_`), weight: 30},
	}},
	{name: "Wix", cms: true, signals: []signal{
		{generator: re(`wix\.com`), weight: 60},
		{markup: re(`static\.wixstatic\.com|static\.parastorage\.com`), weight: 50},
		{header: "X-Wix-Request-Id", headerVal: re(`.`), weight: 50},
	}},
	{name: "Squarespace", cms: true, signals: []signal{
		{generator: re(`squarespace`), weight: 60},
		{markup: re(`static1\.squarespace\.com|Static\.SQUARESPACE_CONTEXT`), weight: 50},
	}},
	{name: "Webflow", cms: true, signals: []signal{
		{generator: re(`webflow`), weight: 60},
		{markup: re(`data-wf-site|assets\.website-files\.com`), weight: 50},
	}},
	{name: "Joomla", cms: true, signals: []signal{
		{generator: re(`joomla`), weight: 60},
		{markup: re(`/media/jui/|/components/com_`), weight: 40},
	}},
	{name: "Drupal", cms: true, signals: []signal{
		{generator: re(`drupal`), weight: 60},
		{header: "X-Drupal-Cache", headerVal: re(`.`), weight: 50},
		{header: "X-Generator", headerVal: re(`drupal`), weight: 50},
		{markup: re(`/sites/default/files/|drupal-settings-json`), weight: 40},
	}},
	{name: "Magento", cms: true, signals: []signal{
		{markup: re(`Mage\.Cookies|/static/version\d+/frontend/|mage/cookies`), weight: 50},
		{cookie: re(`^(frontend|mage-cache-storage)`), weight: 30},
	}},
	{name: "Ghost", cms: true, signals: []signal{
		{generator: re(`^ghost`), weight: 60},
		{markup: re(`ghost-(?:portal|sdk)|/ghost/api/`), weight: 40},
	}},
	{name: "HubSpot CMS", cms: true, signals: []signal{
		{generator: re(`hubspot`), weight: 60},
		{markup: re(`hs-sites\.com|hubspot-cms`), weight: 40},
	}},
	{name: "Next.js", cms: true, signals: []signal{
		{markup: re(`/_next/static/|id="__NEXT_DATA__"`), weight: 50},
		{header: "X-Powered-By", headerVal: re(`next\.js`), weight: 50},
	}},
	{name: "Gatsby", cms: true, signals: []signal{
		{generator: re(`^gatsby`), weight: 60},
		{markup: re(`id="___gatsby"`), weight: 50},
	}},
	{name: "WooCommerce", signals: []signal{
		{markup: re(`/wp-content/plugins/woocommerce/|woocommerce-no-js`), weight: 40},
	}},
	{name: "Elementor", signals: []signal{
		{markup: re(`/wp-content/plugins/elementor/|elementor-kit-`), weight: 40},
	}},
	{name: "Yoast SEO", signals: []signal{
		{markup: re(`yoast-schema-graph|Yoast SEO plugin`), weight: 30},
	}},
	{name: "Google Analytics", signals: []signal{
		{markup: re(`googletagmanager\.com/gtag/js|google-analytics\.com/analytics\.js`), weight: 30},
	}},
	{name: "Google Tag Manager", signals: []signal{
		{markup: re(`googletagmanager\.com/gtm\.js`), weight: 30},
	}},
	{name: "Cloudflare", signals: []signal{
		{header: "Server", headerVal: re(`cloudflare`), weight: 30},
		{header: "CF-Ray", headerVal: re(`.`), weight: 30},
	}},
	{name: "jQuery", signals: []signal{
		{markup: re(`jquery(?:\.min)?\.js`), weight: 20},
	}},
	{name: "React", signals: []signal{
		{markup: re(`data-reactroot|react-dom(?:\.production)?(?:\.min)?\.js`), weight: 30},
	}},
	{name: "PHP", signals: []signal{
		{header: "X-Powered-By", headerVal: re(`php`), weight: 30},
	}},
}

func (s signal) matches(generator, markup string, header http.Header, cookies []string) bool {
	switch {
	case s.generator != nil:
		return generator != "" && s.generator.MatchString(generator)
	case s.markup != nil:
		return s.markup.MatchString(markup)
	case s.cookie != nil:
		for _, c := range cookies {
			if s.cookie.MatchString(c) {
				return true
			}
		}
		return false
	case s.headerVal != nil:
		for _, v := range header.Values(s.header) {
			if s.headerVal.MatchString(v) {
				return true
			}
		}
	}
	return false
}

// Fingerprint matches the signature table against a fetched page. It does
// no I/O.
func Fingerprint(d *page.Document, header http.Header) Info {
	if header == nil {
		header = http.Header{}
	}
	generator := d.Meta("generator")
	cookies := cookieNames(header)

	info := Info{Platform: PlatformCustom, Technologies: []string{}}
	best := 0
	for _, sig := range signatures {
		score := 0
		for _, s := range sig.signals {
			if s.matches(generator, d.Raw, header, cookies) {
				score += s.weight
			}
		}
		if score == 0 {
			continue
		}
		info.Technologies = append(info.Technologies, sig.name)
		if sig.cms && score > best {
			best = score
			info.Platform = sig.name
		}
	}
	if best > 100 {
		best = 100
	}
	info.Confidence = best
	sort.Strings(info.Technologies)
	return info
}

func cookieNames(header http.Header) []string {
	var names []string
	for _, line := range header.Values("Set-Cookie") {
		name, _, _ := strings.Cut(line, "=")
		names = append(names, strings.TrimSpace(name))
	}
	return names
}

type Detector struct {
	fetcher *fetch.Fetcher
}

func NewDetector(fetcher *fetch.Fetcher) *Detector {
	return &Detector{fetcher: fetcher}
}

// Detect fetches the static homepage and fingerprints it.
func (d *Detector) Detect(ctx context.Context, target string) (Info, error) {
	p, err := d.fetcher.Get(ctx, target)
	if err != nil {
		return Info{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	doc, err := page.Parse(p.Body, p.Header.Get("Content-Type"), p.FinalURL)
	if err != nil {
		return Info{}, err
	}
	return Fingerprint(doc, p.Header), nil
}
