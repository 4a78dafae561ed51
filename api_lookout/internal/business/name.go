package business

import (
	"regexp"
	"strings"
)

// titleSeparatorPattern splits "Acme | Home" style titles.
var titleSeparatorPattern = regexp.MustCompile(`\s*(?:\||–|—|·|•|»|«|::|:|\s-\s)\s*`)

// genericTitleTokens never name a business.
var genericTitleTokens = map[string]bool{
	"home": true, "homepage": true, "home page": true, "main": true, "main page": true,
	"welcome": true, "about": true, "about us": true, "contact": true, "contact us": true,
	"official site": true, "official website": true, "index": true, "blog": true, "shop": true,
	"דף הבית": true, "עמוד הבית": true, "ראשי": true, "אודות": true, "צור קשר": true,
	"الرئيسية": true, "главная": true, "accueil": true, "startseite": true, "inicio": true,
}

// GuessName derives a business name without the model: og:site_name when
// present, else the first non-generic title segment, else the host.
func GuessName(siteName, title, host string) string {
	if s := strings.TrimSpace(siteName); s != "" && !genericTitleTokens[strings.ToLower(s)] {
		return s
	}
	for _, part := range titleSeparatorPattern.Split(title, -1) {
		part = strings.TrimSpace(part)
		if part == "" || genericTitleTokens[strings.ToLower(part)] {
			continue
		}
		return part
	}
	return hostLabel(host)
}

// hostLabel turns "www.acme-plumbing.co.uk" into "Acme Plumbing".
func hostLabel(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	label, _, _ := strings.Cut(host, ".")
	words := strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
