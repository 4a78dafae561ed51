package seo

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"frameworks/api_lookout/internal/page"

	"github.com/PuerkitoBio/goquery"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityPass     Severity = "pass"
)

// Check ids.
const (
	CheckTitle          = "title"
	CheckDescription    = "meta_description"
	CheckH1             = "h1"
	CheckOpenGraph      = "open_graph"
	CheckCanonical      = "canonical"
	CheckImageAlt       = "image_alt"
	CheckHTTPS          = "https"
	CheckViewport       = "viewport"
	CheckLang           = "html_lang"
	CheckStructuredData = "structured_data"
)

// Length thresholds in characters.
const (
	TitleMinLength       = 30
	TitleMaxLength       = 60
	DescriptionMinLength = 70
	DescriptionMaxLength = 160
)

const (
	criticalPenalty = 15
	warningPenalty  = 5
)

type Finding struct {
	CheckID        string   `json:"checkId"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation,omitempty"`
	ObservedValue  string   `json:"observedValue,omitempty"`
}

type Summary struct {
	Critical int `json:"critical"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
	Passed   int `json:"passed"`
	Total    int `json:"total"`
}

// checkFunc inspects one aspect of a page.
type checkFunc func(d *page.Document, pageURL *url.URL) Finding

var checks = []checkFunc{
	checkTitle,
	checkDescription,
	checkH1,
	checkOpenGraph,
	checkCanonical,
	checkImageAlt,
	checkHTTPS,
	checkViewport,
	checkLang,
	checkStructuredData,
}

// RunChecks runs every deterministic check against d. pageURL is the final
// URL the page was served from and decides the HTTPS check.
func RunChecks(d *page.Document, pageURL *url.URL) []Finding {
	if pageURL == nil {
		pageURL = d.URL
	}
	findings := make([]Finding, 0, len(checks))
	for _, check := range checks {
		findings = append(findings, check(d, pageURL))
	}
	return findings
}

// Score is max(0, 100 - 15*critical - 5*warning).
func Score(findings []Finding) int {
	s := Summarize(findings)
	score := 100 - criticalPenalty*s.Critical - warningPenalty*s.Warnings
	if score < 0 {
		return 0
	}
	return score
}

func Summarize(findings []Finding) Summary {
	s := Summary{Total: len(findings)}
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Info++
		case SeverityPass:
			s.Passed++
		}
	}
	return s
}

func checkTitle(d *page.Document, _ *url.URL) Finding {
	title := d.HTMLTitle()
	n := utf8.RuneCountInString(title)
	switch {
	case n == 0:
		return Finding{CheckID: CheckTitle, Severity: SeverityCritical,
			Message:        "Page has no <title>",
			Recommendation: "Add a unique, descriptive title of 30-60 characters that includes your main keyword"}
	case n < TitleMinLength:
		return Finding{CheckID: CheckTitle, Severity: SeverityWarning, ObservedValue: title,
			Message:        fmt.Sprintf("Title is short (%d characters)", n),
			Recommendation: "Expand the title to 30-60 characters"}
	case n > TitleMaxLength:
		return Finding{CheckID: CheckTitle, Severity: SeverityWarning, ObservedValue: title,
			Message:        fmt.Sprintf("Title is long (%d characters) and may be truncated in search results", n),
			Recommendation: "Shorten the title to at most 60 characters"}
	}
	return Finding{CheckID: CheckTitle, Severity: SeverityPass, ObservedValue: title,
		Message: fmt.Sprintf("Title length is good (%d characters)", n)}
}

func checkDescription(d *page.Document, _ *url.URL) Finding {
	desc := d.Meta("description")
	n := utf8.RuneCountInString(desc)
	switch {
	case n == 0:
		return Finding{CheckID: CheckDescription, Severity: SeverityCritical,
			Message:        "Page has no meta description",
			Recommendation: "Add a meta description of 70-160 characters summarizing the page"}
	case n < DescriptionMinLength:
		return Finding{CheckID: CheckDescription, Severity: SeverityWarning, ObservedValue: desc,
			Message:        fmt.Sprintf("Meta description is short (%d characters)", n),
			Recommendation: "Expand the description to 70-160 characters"}
	case n > DescriptionMaxLength:
		return Finding{CheckID: CheckDescription, Severity: SeverityWarning, ObservedValue: desc,
			Message:        fmt.Sprintf("Meta description is long (%d characters)", n),
			Recommendation: "Shorten the description to at most 160 characters"}
	}
	return Finding{CheckID: CheckDescription, Severity: SeverityPass, ObservedValue: desc,
		Message: fmt.Sprintf("Meta description length is good (%d characters)", n)}
}

func checkH1(d *page.Document, _ *url.URL) Finding {
	h1s := d.Doc.Find("h1")
	switch h1s.Length() {
	case 0:
		return Finding{CheckID: CheckH1, Severity: SeverityCritical,
			Message:        "Page has no <h1> heading",
			Recommendation: "Add exactly one <h1> describing the page's main topic"}
	case 1:
		return Finding{CheckID: CheckH1, Severity: SeverityPass, ObservedValue: strings.TrimSpace(h1s.Text()),
			Message: "Page has exactly one <h1>"}
	}
	return Finding{CheckID: CheckH1, Severity: SeverityWarning, ObservedValue: fmt.Sprint(h1s.Length()),
		Message:        fmt.Sprintf("Page has %d <h1> headings", h1s.Length()),
		Recommendation: "Keep a single <h1> and demote the others to <h2>"}
}

var openGraphProperties = []string{"og:title", "og:description", "og:image"}

func checkOpenGraph(d *page.Document, _ *url.URL) Finding {
	var missing []string
	for _, p := range openGraphProperties {
		if d.Meta(p) == "" {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return Finding{CheckID: CheckOpenGraph, Severity: SeverityPass, Message: "Open Graph tags are complete"}
	}
	return Finding{CheckID: CheckOpenGraph, Severity: SeverityInfo, ObservedValue: strings.Join(missing, ", "),
		Message:        "Open Graph tags are incomplete",
		Recommendation: "Add og:title, og:description and og:image so shared links render a preview"}
}

func checkCanonical(d *page.Document, _ *url.URL) Finding {
	href := strings.TrimSpace(d.Doc.Find(`link[rel="canonical"]`).First().AttrOr("href", ""))
	if href == "" {
		return Finding{CheckID: CheckCanonical, Severity: SeverityInfo,
			Message:        "No canonical link",
			Recommendation: `Add <link rel="canonical"> pointing at the preferred URL of the page`}
	}
	return Finding{CheckID: CheckCanonical, Severity: SeverityPass, ObservedValue: d.Resolve(href),
		Message: "Canonical link present"}
}

func checkImageAlt(d *page.Document, _ *url.URL) Finding {
	imgs := d.Doc.Find("img")
	total := imgs.Length()
	if total == 0 {
		return Finding{CheckID: CheckImageAlt, Severity: SeverityPass, Message: "No images to check"}
	}
	missing := 0
	imgs.Each(func(_ int, s *goquery.Selection) {
		if alt, ok := s.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			missing++
		}
	})
	observed := fmt.Sprintf("%d/%d images without alt text", missing, total)
	switch {
	case missing == 0:
		return Finding{CheckID: CheckImageAlt, Severity: SeverityPass, Message: "All images have alt text"}
	case missing*2 > total:
		return Finding{CheckID: CheckImageAlt, Severity: SeverityWarning, ObservedValue: observed,
			Message:        "Most images have no alt text",
			Recommendation: "Describe each meaningful image with an alt attribute"}
	}
	return Finding{CheckID: CheckImageAlt, Severity: SeverityInfo, ObservedValue: observed,
		Message:        "Some images have no alt text",
		Recommendation: "Describe each meaningful image with an alt attribute"}
}

func checkHTTPS(_ *page.Document, pageURL *url.URL) Finding {
	if strings.EqualFold(pageURL.Scheme, "https") {
		return Finding{CheckID: CheckHTTPS, Severity: SeverityPass, Message: "Site is served over HTTPS"}
	}
	return Finding{CheckID: CheckHTTPS, Severity: SeverityWarning, ObservedValue: pageURL.Scheme,
		Message:        "Site is not served over HTTPS",
		Recommendation: "Install a TLS certificate and redirect all HTTP traffic to HTTPS"}
}

func checkViewport(d *page.Document, _ *url.URL) Finding {
	if v := d.Meta("viewport"); v != "" {
		return Finding{CheckID: CheckViewport, Severity: SeverityPass, ObservedValue: v, Message: "Mobile viewport tag present"}
	}
	return Finding{CheckID: CheckViewport, Severity: SeverityWarning,
		Message:        "No mobile viewport meta tag",
		Recommendation: `Add <meta name="viewport" content="width=device-width, initial-scale=1">`}
}

func checkLang(d *page.Document, _ *url.URL) Finding {
	if lang := strings.TrimSpace(d.Doc.Find("html").AttrOr("lang", "")); lang != "" {
		return Finding{CheckID: CheckLang, Severity: SeverityPass, ObservedValue: lang, Message: "HTML lang attribute set"}
	}
	return Finding{CheckID: CheckLang, Severity: SeverityWarning,
		Message:        "HTML lang attribute missing",
		Recommendation: "Declare the page language, e.g. <html lang=\"en\">"}
}

func checkStructuredData(d *page.Document, _ *url.URL) Finding {
	var kinds []string
	if d.Doc.Find(`script[type="application/ld+json"]`).Length() > 0 {
		kinds = append(kinds, "json-ld")
	}
	if d.Doc.Find("[itemscope]").Length() > 0 {
		kinds = append(kinds, "microdata")
	}
	if d.Doc.Find("[typeof][vocab], [property^='schema:']").Length() > 0 {
		kinds = append(kinds, "rdfa")
	}
	if len(kinds) == 0 {
		return Finding{CheckID: CheckStructuredData, Severity: SeverityInfo,
			Message:        "No structured data found",
			Recommendation: "Add schema.org LocalBusiness or Organization JSON-LD"}
	}
	return Finding{CheckID: CheckStructuredData, Severity: SeverityPass, ObservedValue: strings.Join(kinds, ", "),
		Message: "Structured data present"}
}
