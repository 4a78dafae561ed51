package page

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// EmailPattern matches an address inside free text.
	EmailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,24}`)
	// PhonePattern matches phone-like digit runs; candidates are then checked
	// for a plausible digit count.
	PhonePattern = regexp.MustCompile(`(?:\+|\(|\b)\(?\d[\d\s().\-]{6,18}\d\b`)
	// emailAssetSuffixes rule out retina asset names like logo@2x.png.
	emailAssetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".css", ".js"}
)

const (
	minPhoneDigits = 9
	maxPhoneDigits = 15
)

// FindEmails returns distinct addresses in order of appearance.
func FindEmails(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range EmailPattern.FindAllString(text, -1) {
		m = strings.Trim(m, ".-_")
		lower := strings.ToLower(m)
		if seen[lower] || isAssetName(lower) {
			continue
		}
		seen[lower] = true
		out = append(out, m)
	}
	return out
}

func isAssetName(lower string) bool {
	for _, suffix := range emailAssetSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// FindPhones returns distinct phone numbers as written in the text.
func FindPhones(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range PhonePattern.FindAllString(text, -1) {
		m = balanceParens(strings.TrimSpace(m))
		digits := DigitsOnly(m)
		if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits || seen[digits] || looksLikeDate(m) {
			continue
		}
		seen[digits] = true
		out = append(out, m)
	}
	return out
}

// balanceParens drops a dangling opening parenthesis, as in "(555 123 4567".
func balanceParens(m string) string {
	if strings.HasPrefix(m, "(") && strings.Count(m, "(") > strings.Count(m, ")") {
		return strings.TrimSpace(m[1:])
	}
	return m
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var datePattern = regexp.MustCompile(`^\d{1,4}[./\-]\d{1,2}[./\-]\d{1,4}$`)

func looksLikeDate(s string) bool {
	return datePattern.MatchString(strings.TrimSpace(s))
}

// ContactLinks returns addresses from mailto: links and numbers from tel:
// links, in document order.
func ContactLinks(d *Document) (emails, phones []string) {
	seenEmail := make(map[string]bool)
	seenPhone := make(map[string]bool)
	d.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr := href[len("mailto:"):]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if unescaped, err := url.PathUnescape(addr); err == nil {
				addr = unescaped
			}
			addr = strings.TrimSpace(addr)
			if addr != "" && EmailPattern.MatchString(addr) && !seenEmail[strings.ToLower(addr)] {
				seenEmail[strings.ToLower(addr)] = true
				emails = append(emails, addr)
			}
		case strings.HasPrefix(lower, "tel:"):
			num := href[len("tel:"):]
			if unescaped, err := url.PathUnescape(num); err == nil {
				num = unescaped
			}
			num = strings.TrimSpace(num)
			if d := DigitsOnly(num); len(d) >= 7 && !seenPhone[d] {
				seenPhone[d] = true
				phones = append(phones, num)
			}
		}
	})
	return emails, phones
}

// socialPatterns map a platform to the host pattern of its profile URLs.
var socialPatterns = []struct {
	platform string
	pattern  *regexp.Regexp
}{
	{"facebook", regexp.MustCompile(`(?i)^https?://(?:[a-z]+\.)?(?:facebook|fb)\.com/`)},
	{"instagram", regexp.MustCompile(`(?i)^https?://(?:www\.)?instagram\.com/`)},
	{"twitter", regexp.MustCompile(`(?i)^https?://(?:www\.|mobile\.)?(?:twitter|x)\.com/`)},
	{"linkedin", regexp.MustCompile(`(?i)^https?://(?:[a-z]{2,3}\.)?linkedin\.com/(?:company|in|school)/`)},
	{"youtube", regexp.MustCompile(`(?i)^https?://(?:www\.|m\.)?(?:youtube\.com/|youtu\.be/)`)},
	{"tiktok", regexp.MustCompile(`(?i)^https?://(?:www\.)?tiktok\.com/@`)},
	{"pinterest", regexp.MustCompile(`(?i)^https?://(?:[a-z]{2}\.|www\.)?pinterest\.[a-z.]+/`)},
	{"whatsapp", regexp.MustCompile(`(?i)^https?://(?:wa\.me/|(?:api|chat)\.whatsapp\.com/)`)},
	{"telegram", regexp.MustCompile(`(?i)^https?://(?:t\.me|telegram\.me)/`)},
}

// shareLinkPattern matches share buttons that point at a platform but not at
// the business's own profile.
var shareLinkPattern = regexp.MustCompile(`(?i)sharer|/share|intent/tweet|/plugins/|shareArticle|/dialog/`)

// SocialLinks maps each platform to the first profile link found.
func SocialLinks(d *Document) map[string]string {
	out := make(map[string]string)
	d.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := d.Resolve(s.AttrOr("href", ""))
		if href == "" || shareLinkPattern.MatchString(href) {
			return
		}
		for _, sp := range socialPatterns {
			if _, done := out[sp.platform]; done {
				continue
			}
			if sp.pattern.MatchString(href) && hasProfilePath(href) {
				out[sp.platform] = href
			}
		}
	})
	return out
}

// hasProfilePath rejects bare platform homepages.
func hasProfilePath(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return path.Clean("/"+u.Path) != "/"
}
