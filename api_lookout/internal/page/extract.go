package page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxEmails   = 5
	maxPhones   = 5
	maxKeywords = 20
)

// Contact holds contact hints found on a page.
type Contact struct {
	Emails      []string          `json:"emails"`
	Phones      []string          `json:"phones"`
	SocialLinks map[string]string `json:"socialLinks"`
}

// Snapshot is the deterministic extraction of one page.
type Snapshot struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	OGImage       string   `json:"ogImage,omitempty"`
	SiteName      string   `json:"siteName,omitempty"`
	Language      string   `json:"language"`
	Contact       Contact  `json:"contact"`
	Keywords      []string `json:"keywords"`
	Headings      []string `json:"headings,omitempty"`
	RawHTMLLength int      `json:"rawHtmlLength"`
}

// Extract builds a Snapshot. It performs no I/O.
func Extract(d *Document) Snapshot {
	text := d.Text()
	snap := Snapshot{
		URL:           d.URL.String(),
		Title:         firstNonEmpty(d.Meta("og:title"), d.HTMLTitle()),
		Description:   firstNonEmpty(d.Meta("og:description"), d.Meta("description")),
		OGImage:       d.Resolve(d.Meta("og:image")),
		SiteName:      d.Meta("og:site_name"),
		Language:      DetectLanguage(d.Doc.Find("html").AttrOr("lang", ""), text),
		Keywords:      metaKeywords(d.Meta("keywords")),
		Headings:      headings(d.Doc),
		RawHTMLLength: len(d.Raw),
	}
	snap.Contact = Contact{
		Emails:      capped(FindEmails(text), maxEmails),
		Phones:      capped(FindPhones(text), maxPhones),
		SocialLinks: SocialLinks(d),
	}
	return snap
}

// HTMLTitle is the text of the first <title> element.
func (d *Document) HTMLTitle() string {
	return collapse(d.Doc.Find("title").First().Text())
}

func metaKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, k := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '،' }) {
		k = collapse(k)
		key := strings.ToLower(k)
		if k == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func headings(doc *goquery.Document) []string {
	var out []string
	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" && len(out) < 10 {
			out = append(out, t)
		}
	})
	return out
}

// AuxLinks finds same-site links to the about and contact pages.
func AuxLinks(d *Document) (about, contact string) {
	d.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := d.Resolve(s.AttrOr("href", ""))
		if href == "" || !d.sameSite(href) {
			return
		}
		label := strings.ToLower(collapse(s.Text()))
		lowerHref := strings.ToLower(href)
		if about == "" && (matchesAny(lowerHref, aboutHints) || matchesAny(label, aboutHints)) {
			about = href
		}
		if contact == "" && (matchesAny(lowerHref, contactHints) || matchesAny(label, contactHints)) {
			contact = href
		}
	})
	return about, contact
}

var (
	aboutHints   = []string{"about", "who-we-are", "our-story", "אודות", "من نحن", "о нас", "uber-uns", "qui-sommes", "chi-siamo", "sobre"}
	contactHints = []string{"contact", "צור קשר", "צור-קשר", "اتصل", "контакт", "kontakt", "contacto", "contatti"}
)

func (d *Document) sameSite(href string) bool {
	u, err := d.URL.Parse(href)
	if err != nil {
		return false
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") == strings.TrimPrefix(strings.ToLower(d.URL.Hostname()), "www.")
}

func matchesAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = collapse(v); v != "" {
			return v
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func capped(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
