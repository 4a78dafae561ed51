package intel

import (
	"strings"

	"frameworks/api_lookout/internal/resolver"
)

// excludedRoots are registrable domains that are never a competitor.
var excludedRoots = map[string]bool{
	// search engines
	"google.com": true, "bing.com": true, "yahoo.com": true, "duckduckgo.com": true,
	"baidu.com": true, "yandex.ru": true, "yandex.com": true, "ask.com": true,
	// social platforms
	"facebook.com": true, "fb.com": true, "instagram.com": true, "twitter.com": true,
	"x.com": true, "linkedin.com": true, "youtube.com": true, "youtu.be": true,
	"tiktok.com": true, "pinterest.com": true, "reddit.com": true, "whatsapp.com": true,
	"wa.me": true, "t.me": true, "threads.net": true,
	// encyclopedias, directories and marketplaces
	"wikipedia.org": true, "yelp.com": true, "tripadvisor.com": true, "amazon.com": true,
	"ebay.com": true, "aliexpress.com": true, "trustpilot.com": true,
}

// searchEnginePrefixes catch regional search engines such as google.co.il.
var searchEnginePrefixes = []string{"google.", "bing.", "yahoo.", "yandex."}

type exclusions struct {
	own string
}

func newExclusions(ownDomain string) *exclusions {
	return &exclusions{own: resolver.RootDomain(ownDomain)}
}

// excluded reports whether a root domain must never be emitted.
func (e *exclusions) excluded(root string) bool {
	root = strings.ToLower(root)
	if root == "" || excludedRoots[root] || (e.own != "" && root == e.own) {
		return true
	}
	for _, p := range searchEnginePrefixes {
		if strings.HasPrefix(root, p) {
			return true
		}
	}
	return isGovernment(root)
}

// isGovernment matches gov, gov.xx, gob.xx, gouv.xx and the like.
func isGovernment(root string) bool {
	labels := strings.Split(root, ".")
	for _, l := range labels[1:] {
		switch l {
		case "gov", "gob", "gouv", "govt", "mil":
			return true
		}
	}
	return labels[0] == "gov"
}
