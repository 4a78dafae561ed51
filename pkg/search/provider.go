package search

import (
	"context"
	"net/http"
	"strings"

	"frameworks/pkg/clients"
	"frameworks/pkg/countries"

	"golang.org/x/text/language"
)

// Provider defines the interface for web search providers.
type Provider interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error)
}

// Result represents a single search result.
type Result struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// SearchOptions controls search behavior across providers.
type SearchOptions struct {
	Limit       int
	SearchDepth string
	// Locale is a BCP 47 tag such as "he-IL". Providers map it to their own
	// country/language parameters and ignore it when it does not parse.
	Locale string
}

type localeParts struct {
	lang    string // ISO 639-1, e.g. "he"
	country string // ISO 3166-1 alpha-2 upper case, e.g. "IL"
}

func parseLocale(raw string) (localeParts, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", "-"))
	if raw == "" {
		return localeParts{}, false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return localeParts{}, false
	}
	var parts localeParts
	if base, conf := tag.Base(); conf != language.No {
		parts.lang = base.String()
	}
	// UN M.49 areas like 419 are not countries to a search engine.
	if region, conf := tag.Region(); (conf == language.Exact || conf == language.High) && countries.IsValid(region.String()) {
		parts.country = region.String()
	}
	return parts, parts.lang != "" || parts.country != ""
}

// countryName returns the lower-case English country name for an ISO code.
func countryName(code string) string {
	return strings.ToLower(countries.Name(code))
}

// retrying is shared by every provider. Search APIs answer bursts with 429.
var retrying = clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig())

// send issues the request built by newReq, retrying transient failures.
// newReq runs once per attempt so request bodies are fresh.
func send(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	return clients.ExecuteHTTP(ctx, retrying, func() (*http.Response, error) {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		return client.Do(req)
	})
}
