package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"frameworks/api_lookout/internal/fetch"
	"frameworks/pkg/logging"

	"github.com/temoto/robotstxt"
)

const (
	// MaxChildSitemaps bounds how many children of an index are read.
	MaxChildSitemaps = 5
	DefaultURLCap    = 100
	maxGzipBytes     = 20 << 20
)

// Discovery sources.
const (
	SourceRobots    = "robots"
	SourceWellKnown = "well-known"
)

// ErrNotFound means neither robots.txt nor the conventional paths led to a sitemap.
var ErrNotFound = errors.New("no sitemap found")

// wellKnownPaths are probed in order when robots.txt names no sitemap.
var wellKnownPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
	"/sitemap/sitemap.xml",
	"/sitemaps.xml",
	"/sitemap.txt",
}

var (
	// looseLocPattern is the fallback for sitemaps that do not parse as XML.
	looseLocPattern = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)
	// sitemapLikePattern matches loc values that point at another sitemap.
	sitemapLikePattern = regexp.MustCompile(`(?i)sitemap[^/]*\.xml(?:\.gz)?(?:$|\?)|\.xml\.gz(?:$|\?)`)
	indexTagPattern    = regexp.MustCompile(`(?i)<sitemapindex[\s>]`)
)

// Entry is one URL from a sitemap.
type Entry struct {
	URL             string     `json:"url"`
	LastModified    *time.Time `json:"lastModified,omitempty"`
	ChangeFrequency string     `json:"changeFrequency,omitempty"`
	Priority        *float64   `json:"priority,omitempty"`
}

// Result is the flattened, capped sitemap of a site.
type Result struct {
	SitemapURLs []string   `json:"sitemapUrls"`
	Source      string     `json:"source"`
	IsIndex     bool       `json:"isIndex"`
	Entries     []Entry    `json:"entries"`
	Categories  Categories `json:"categories"`
	Truncated   bool       `json:"truncated"`
}

// URLs returns the entry URLs in sitemap order.
func (r *Result) URLs() []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.URL)
	}
	return out
}

// Getter is the subset of fetch.Fetcher the sitemap reader needs.
type Getter interface {
	Get(ctx context.Context, target string) (*fetch.Page, error)
	Head(ctx context.Context, target string) (int, string, error)
}

// Reader discovers and parses sitemaps for one site at a time.
type Reader struct {
	fetcher   Getter
	urlCap    int
	userAgent string
	logger    logging.Logger
}

func NewReader(fetcher Getter, urlCap int, userAgent string, logger logging.Logger) *Reader {
	if urlCap <= 0 {
		urlCap = DefaultURLCap
	}
	return &Reader{fetcher: fetcher, urlCap: urlCap, userAgent: userAgent, logger: logger}
}

// Robots is the parsed robots policy of a site. A nil *Robots allows everything.
type Robots struct {
	data      *robotstxt.RobotsData
	userAgent string
}

// Allowed reports whether path may be fetched by our user agent.
func (r *Robots) Allowed(path string) bool {
	if r == nil || r.data == nil {
		return true
	}
	return r.data.TestAgent(path, r.userAgent)
}

// Sitemaps lists the Sitemap: directives.
func (r *Robots) Sitemaps() []string {
	if r == nil || r.data == nil {
		return nil
	}
	return r.data.Sitemaps
}

// FetchRobots loads /robots.txt. Missing or broken files yield nil.
func (r *Reader) FetchRobots(ctx context.Context, siteURL string) *Robots {
	base, err := siteRoot(siteURL)
	if err != nil {
		return nil
	}
	page, err := r.fetcher.Get(ctx, base+"/robots.txt")
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(page.StatusCode, page.Body)
	if err != nil {
		if r.logger != nil {
			r.logger.WithError(err).WithField("site", base).Debug("Unparseable robots.txt")
		}
		return nil
	}
	return &Robots{data: data, userAgent: r.userAgent}
}

// Discover returns sitemap locations from robots.txt, falling back to the
// first conventional path that answers with an XML or text body.
func (r *Reader) Discover(ctx context.Context, siteURL string, robots *Robots) ([]string, string, error) {
	base, err := siteRoot(siteURL)
	if err != nil {
		return nil, "", err
	}

	var fromRobots []string
	seen := make(map[string]bool)
	for _, loc := range robots.Sitemaps() {
		loc = strings.TrimSpace(loc)
		if loc == "" || seen[loc] {
			continue
		}
		if _, err := fetch.ValidateURL(loc); err != nil {
			continue
		}
		seen[loc] = true
		fromRobots = append(fromRobots, loc)
	}
	if len(fromRobots) > 0 {
		return fromRobots, SourceRobots, nil
	}

	for _, p := range wellKnownPaths {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		candidate := base + p
		status, contentType, err := r.fetcher.Head(ctx, candidate)
		if err != nil || status < http.StatusOK || status >= http.StatusMultipleChoices {
			continue
		}
		if xmlOrText(contentType) {
			return []string{candidate}, SourceWellKnown, nil
		}
	}
	return nil, "", ErrNotFound
}

func xmlOrText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "xml") || strings.HasPrefix(ct, "text/plain") || strings.Contains(ct, "gzip")
}

// Read discovers and parses the site's sitemaps into a capped Result.
func (r *Reader) Read(ctx context.Context, siteURL string, robots *Robots) (*Result, error) {
	locations, source, err := r.Discover(ctx, siteURL, robots)
	if err != nil {
		return nil, err
	}
	res, err := r.Parse(ctx, locations)
	if err != nil {
		return nil, err
	}
	res.Source = source
	return res, nil
}

// Parse reads the given sitemaps in order. Index files contribute at most
// MaxChildSitemaps children, each read as a leaf: an index found one level
// down is never expanded.
func (r *Reader) Parse(ctx context.Context, locations []string) (*Result, error) {
	res := &Result{SitemapURLs: locations}
	seen := make(map[string]bool)
	var lastErr error

	for _, loc := range locations {
		if len(res.Entries) >= r.urlCap {
			res.Truncated = true
			break
		}
		data, err := r.load(ctx, loc)
		if err != nil {
			lastErr = err
			continue
		}
		if !isIndex(data) {
			r.appendEntries(res, parseLeaf(data), seen)
			continue
		}

		res.IsIndex = true
		children := parseIndex(data)
		for i, child := range children {
			if i >= MaxChildSitemaps || len(res.Entries) >= r.urlCap {
				break
			}
			childData, err := r.load(ctx, child)
			if err != nil {
				lastErr = err
				continue
			}
			if isIndex(childData) {
				if r.logger != nil {
					r.logger.WithField("sitemap", child).Debug("Skipping nested sitemap index")
				}
				continue
			}
			r.appendEntries(res, parseLeaf(childData), seen)
		}
	}

	if len(res.Entries) == 0 && lastErr != nil {
		return nil, lastErr
	}
	res.Categories = Partition(res.URLs())
	return res, nil
}

func (r *Reader) appendEntries(res *Result, entries []Entry, seen map[string]bool) {
	for _, e := range entries {
		if len(res.Entries) >= r.urlCap {
			res.Truncated = true
			return
		}
		if seen[e.URL] {
			continue
		}
		seen[e.URL] = true
		res.Entries = append(res.Entries, e)
	}
}

func (r *Reader) load(ctx context.Context, loc string) ([]byte, error) {
	page, err := r.fetcher.Get(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", loc, err)
	}
	data := page.Body
	if len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gunzip sitemap %s: %w", loc, err)
		}
		defer zr.Close()
		data, err = io.ReadAll(io.LimitReader(zr, maxGzipBytes))
		if err != nil {
			return nil, fmt.Errorf("gunzip sitemap %s: %w", loc, err)
		}
	}
	return data, nil
}

type sitemapIndexXML struct {
	Sitemaps []struct {
		Location string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSetXML struct {
	URLs []struct {
		Location   string `xml:"loc"`
		LastMod    string `xml:"lastmod"`
		ChangeFreq string `xml:"changefreq"`
		Priority   string `xml:"priority"`
	} `xml:"url"`
}

func isIndex(data []byte) bool {
	return indexTagPattern.Match(data)
}

func parseIndex(data []byte) []string {
	var index sitemapIndexXML
	var out []string
	if err := xml.Unmarshal(data, &index); err == nil {
		for _, sm := range index.Sitemaps {
			if loc := cleanLoc(sm.Location); loc != "" {
				out = append(out, loc)
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, m := range looseLocPattern.FindAllSubmatch(data, -1) {
		if loc := cleanLoc(string(m[1])); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// parseLeaf extracts <url> blocks, falling back to bare <loc> tags and then
// to one-URL-per-line text sitemaps.
func parseLeaf(data []byte) []Entry {
	var set urlSetXML
	var out []Entry
	if err := xml.Unmarshal(data, &set); err == nil {
		for _, u := range set.URLs {
			loc := cleanLoc(u.Location)
			if loc == "" {
				continue
			}
			out = append(out, Entry{
				URL:             loc,
				LastModified:    parseLastMod(u.LastMod),
				ChangeFrequency: strings.ToLower(strings.TrimSpace(u.ChangeFreq)),
				Priority:        parsePriority(u.Priority),
			})
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, m := range looseLocPattern.FindAllSubmatch(data, -1) {
		loc := cleanLoc(string(m[1]))
		if loc == "" || sitemapLikePattern.MatchString(loc) {
			continue
		}
		out = append(out, Entry{URL: loc})
	}
	if len(out) > 0 || bytes.Contains(data, []byte("<")) {
		return out
	}

	for _, line := range strings.Split(string(data), "\n") {
		loc := cleanLoc(line)
		if loc == "" || sitemapLikePattern.MatchString(loc) {
			continue
		}
		out = append(out, Entry{URL: loc})
	}
	return out
}

func cleanLoc(raw string) string {
	loc := strings.TrimSpace(html.UnescapeString(strings.TrimSpace(raw)))
	loc = strings.TrimPrefix(loc, "<![CDATA[")
	loc = strings.TrimSuffix(loc, "]]>")
	loc = strings.TrimSpace(loc)
	if _, err := fetch.ValidateURL(loc); err != nil {
		return ""
	}
	return loc
}

var lastModLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseLastMod(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range lastModLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parsePriority(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || p < 0 || p > 1 {
		return nil
	}
	return &p
}

func siteRoot(siteURL string) (string, error) {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid site url %q", siteURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
