package page

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document is a parsed HTML page. The goquery tree is shared read-only
// between the extractor, the SEO auditor and platform detection.
type Document struct {
	URL  *url.URL
	Raw  string
	Doc  *goquery.Document
	root *html.Node
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// Parse decodes body to UTF-8 using the declared or sniffed charset and
// builds the DOM.
func Parse(body []byte, contentType, pageURL string) (*Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	data := body
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	if decoded, err := enc.NewDecoder().Bytes(body); err == nil {
		data = decoded
	} else if !utf8.Valid(body) {
		return nil, fmt.Errorf("decode %s: %w", pageURL, err)
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		URL:  u,
		Raw:  string(data),
		Doc:  goquery.NewDocumentFromNode(root),
		root: root,
	}, nil
}

// ParseString is Parse for markup that is already UTF-8.
func ParseString(markup, pageURL string) (*Document, error) {
	return Parse([]byte(markup), "text/html; charset=utf-8", pageURL)
}

// Meta returns the content of the first <meta> whose name or property
// equals key (case-insensitive).
func (d *Document) Meta(key string) string {
	key = strings.ToLower(key)
	var out string
	d.Doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", s.AttrOr("property", ""))))
		if name != key {
			return true
		}
		out = strings.TrimSpace(s.AttrOr("content", ""))
		return out == ""
	})
	return out
}

// Resolve makes href absolute against the page URL.
func (d *Document) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return d.URL.ResolveReference(ref).String()
}

// Text returns the visible text of the page: tags stripped, entities decoded,
// script/style/template contents and comments dropped, whitespace collapsed.
func (d *Document) Text() string {
	return visibleText(d.root)
}

func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			return
		case html.ElementNode:
			switch strings.ToLower(n.Data) {
			case "script", "style", "noscript", "template", "svg", "iframe", "head":
				return
			case "br", "p", "div", "li", "td", "th", "tr", "section", "article", "header", "footer",
				"h1", "h2", "h3", "h4", "h5", "h6", "address", "ul", "ol", "table", "nav", "main":
				b.WriteByte(' ')
			}
		case html.TextNode:
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(b.String(), " "))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
