package sitemap

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

type Category string

const (
	CategoryPosts      Category = "posts"
	CategoryProducts   Category = "products"
	CategoryCategories Category = "categories"
	CategoryTags       Category = "tags"
	CategoryPages      Category = "pages"
	CategoryOther      Category = "other"
)

// Categories partitions sitemap URLs. Every URL lands in exactly one bucket.
type Categories struct {
	Pages      []string `json:"pages"`
	Posts      []string `json:"posts"`
	Products   []string `json:"products"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
	Other      []string `json:"other"`
}

func (c *Categories) add(cat Category, u string) {
	switch cat {
	case CategoryPosts:
		c.Posts = append(c.Posts, u)
	case CategoryProducts:
		c.Products = append(c.Products, u)
	case CategoryCategories:
		c.Categories = append(c.Categories, u)
	case CategoryTags:
		c.Tags = append(c.Tags, u)
	case CategoryPages:
		c.Pages = append(c.Pages, u)
	default:
		c.Other = append(c.Other, u)
	}
}

var (
	postSegments = map[string]bool{
		"blog": true, "blogs": true, "post": true, "posts": true, "article": true, "articles": true,
		"news": true, "story": true, "stories": true, "insights": true, "journal": true,
		"magazine": true, "%d7%91%d7%9c%d7%95%d7%92": true, // "blog" in Hebrew, percent-encoded
	}
	productSegments = map[string]bool{
		"product": true, "products": true, "shop": true, "store": true, "item": true,
		"items": true, "p": true, "sku": true,
	}
	categorySegments = map[string]bool{
		"category": true, "categories": true, "product-category": true, "collection": true,
		"collections": true, "cat": true, "department": true, "departments": true,
	}
	tagSegments = map[string]bool{
		"tag": true, "tags": true, "product-tag": true, "topic": true, "topics": true, "label": true,
	}
	pageSegments = map[string]bool{
		"about": true, "about-us": true, "contact": true, "contact-us": true, "services": true,
		"service": true, "team": true, "faq": true, "pricing": true, "privacy": true,
		"privacy-policy": true, "terms": true, "careers": true, "portfolio": true, "home": true,
	}
	// datedPathPattern matches /2024/05/ style permalinks used by blogs.
	datedPathPattern = regexp.MustCompile(`/(?:19|20)\d{2}/(?:0?[1-9]|1[0-2])/`)
	// assetExtensions are never pages.
	assetExtensions = map[string]bool{
		".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		".svg": true, ".mp4": true, ".zip": true, ".xml": true, ".rss": true, ".txt": true,
	}
)

// Categorize assigns a URL to one category from its path alone. Checks run
// in priority order: posts, products, categories, tags, pages, other.
func Categorize(rawURL string) Category {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.EscapedPath()
	}
	p = strings.ToLower(p)
	segments := splitSegments(p)

	if hasSegment(segments, postSegments) || datedPathPattern.MatchString(p) {
		return CategoryPosts
	}
	if hasSegment(segments, productSegments) {
		return CategoryProducts
	}
	if hasSegment(segments, categorySegments) {
		return CategoryCategories
	}
	if hasSegment(segments, tagSegments) {
		return CategoryTags
	}
	if assetExtensions[path.Ext(p)] {
		return CategoryOther
	}
	if len(segments) == 0 || hasSegment(segments, pageSegments) || len(segments) == 1 {
		return CategoryPages
	}
	return CategoryOther
}

// Partition categorizes every URL. Empty buckets are empty slices, never nil.
func Partition(urls []string) Categories {
	out := Categories{
		Pages:      []string{},
		Posts:      []string{},
		Products:   []string{},
		Categories: []string{},
		Tags:       []string{},
		Other:      []string{},
	}
	for _, u := range urls {
		out.add(Categorize(u), u)
	}
	return out
}

func splitSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasSegment(segments []string, set map[string]bool) bool {
	for _, s := range segments {
		if set[s] {
			return true
		}
	}
	return false
}
