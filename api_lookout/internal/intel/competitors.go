package intel

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"frameworks/api_lookout/internal/business"
	"frameworks/api_lookout/internal/metrics"
	"frameworks/api_lookout/internal/page"
	"frameworks/api_lookout/internal/resolver"
	"frameworks/pkg/llm"
	"frameworks/pkg/logging"
	"frameworks/pkg/search"

	"golang.org/x/time/rate"
)

// Candidate sources in order of trust.
const (
	SourceSearchResult  = "search-result"
	SourceGroundingURL  = "grounding-chunk"
	SourceTextExtracted = "text-extracted"
)

const (
	MaxKeywordsPerRun    = 3
	DefaultMaxCompetitor = 10
	searchResultLimit    = 10
)

var ErrNoCompetitorSources = errors.New("no competitor source answered")

type CompetitorCandidate struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Domain   string `json:"domain"`
	Keyword  string `json:"keyword"`
	Source   string `json:"source"`
	Verified bool   `json:"verified"`
}

type CompetitorRequest struct {
	Keywords      []string
	ExcludeDomain string
	TargetLocale  string
}

type CompetitorConfig struct {
	Search         search.Provider
	Completer      llm.StructuredCompleter
	AITimeout      time.Duration
	SearchTimeout  time.Duration
	SearchRPS      float64
	MaxCompetitors int
	Logger         logging.Logger
}

type CompetitorFinder struct {
	search    search.Provider
	completer llm.StructuredCompleter
	limiter   *rate.Limiter
	aiTimeout time.Duration
	searchTTL time.Duration
	max       int
	logger    logging.Logger
}

func NewCompetitorFinder(cfg CompetitorConfig) *CompetitorFinder {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 20 * time.Second
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 15 * time.Second
	}
	if cfg.MaxCompetitors <= 0 {
		cfg.MaxCompetitors = DefaultMaxCompetitor
	}
	limit := rate.Inf
	if cfg.SearchRPS > 0 {
		limit = rate.Limit(cfg.SearchRPS)
	}
	return &CompetitorFinder{
		search:    cfg.Search,
		completer: cfg.Completer,
		limiter:   rate.NewLimiter(limit, 1),
		aiTimeout: cfg.AITimeout,
		searchTTL: cfg.SearchTimeout,
		max:       cfg.MaxCompetitors,
		logger:    cfg.Logger,
	}
}

// competitorSet dedupes by root domain across every keyword of a run.
type competitorSet struct {
	exclude *exclusions
	seen    map[string]bool
	out     []CompetitorCandidate
	max     int
}

func (s *competitorSet) full() bool { return len(s.out) >= s.max }

func (s *competitorSet) add(c CompetitorCandidate) bool {
	normalized, ok := resolver.Normalize(c.URL)
	if !ok || s.full() {
		return false
	}
	domain := resolver.RootDomain(normalized)
	if domain == "" || s.seen[domain] || s.exclude.excluded(domain) {
		return false
	}
	s.seen[domain] = true
	c.URL = normalized
	c.Domain = domain
	if strings.TrimSpace(c.Name) == "" {
		c.Name = business.GuessName("", "", domain)
	}
	s.out = append(s.out, c)
	metrics.Competitors.WithLabelValues(c.Source).Inc()
	return true
}

// Find runs one search-grounded lookup per keyword, at most
// MaxKeywordsPerRun of them. Partial failures are logged; an error is
// returned only when no lookup produced an answer.
func (f *CompetitorFinder) Find(ctx context.Context, req CompetitorRequest) ([]CompetitorCandidate, error) {
	set := &competitorSet{
		exclude: newExclusions(req.ExcludeDomain),
		seen:    make(map[string]bool),
		max:     f.max,
	}
	keywords := dedupeStrings(req.Keywords)
	if len(keywords) > MaxKeywordsPerRun {
		keywords = keywords[:MaxKeywordsPerRun]
	}
	if len(keywords) == 0 {
		return []CompetitorCandidate{}, nil
	}

	var errs []error
	answered := 0
	for _, kw := range keywords {
		if set.full() {
			break
		}
		if err := ctx.Err(); err != nil {
			return set.out, err
		}
		ok, err := f.lookup(ctx, kw, req.TargetLocale, set)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kw, err))
			if f.logger != nil {
				f.logger.WithError(err).WithFields(logging.Fields{"step": "competitors", "keyword": kw}).Warn("Competitor lookup degraded")
			}
		}
		if ok {
			answered++
		}
	}
	if set.out == nil {
		set.out = []CompetitorCandidate{}
	}
	if answered == 0 {
		return set.out, errors.Join(append([]error{ErrNoCompetitorSources}, errs...)...)
	}
	return set.out, nil
}

// lookup adds candidates for one keyword from the three layers. ok reports
// whether any source answered.
func (f *CompetitorFinder) lookup(ctx context.Context, keyword, locale string, set *competitorSet) (ok bool, err error) {
	var results []search.Result
	var searchErr error
	if f.search != nil {
		results, searchErr = f.searchKeyword(ctx, keyword, locale)
		if searchErr == nil {
			ok = true
		}
	}

	for _, r := range results {
		set.add(CompetitorCandidate{Name: cleanTitle(r.Title), URL: r.URL, Keyword: keyword, Source: SourceSearchResult, Verified: true})
	}

	if f.completer == nil {
		return ok, searchErr
	}
	answer, aiErr := f.ground(ctx, keyword, locale, results)
	if aiErr != nil {
		return ok, errors.Join(searchErr, aiErr)
	}
	ok = true

	// A model-named competitor counts as grounded only when it points at a
	// domain from the search results it was shown.
	consulted := make(map[string]bool, len(results))
	for _, r := range results {
		if d := rootDomainOf(r.URL); d != "" {
			consulted[d] = true
		}
	}
	grounded := 0
	var unverified []CompetitorCandidate
	for _, c := range answer.Competitors {
		if consulted[rootDomainOf(c.URL)] {
			grounded++
			set.add(CompetitorCandidate{Name: c.Name, URL: c.URL, Keyword: keyword, Source: SourceGroundingURL, Verified: true})
			continue
		}
		unverified = append(unverified, CompetitorCandidate{Name: c.Name, URL: c.URL, Keyword: keyword, Source: SourceTextExtracted, Verified: false})
	}
	for _, i := range answer.Citations {
		if i >= 1 && i <= len(results) {
			grounded++
			r := results[i-1]
			set.add(CompetitorCandidate{Name: cleanTitle(r.Title), URL: r.URL, Keyword: keyword, Source: SourceGroundingURL, Verified: true})
		}
	}
	for _, c := range unverified {
		set.add(c)
	}

	if len(results) == 0 && grounded == 0 {
		for _, u := range ExtractURLs(answer.Summary) {
			set.add(CompetitorCandidate{URL: u, Keyword: keyword, Source: SourceTextExtracted, Verified: false})
		}
	}
	return ok, searchErr
}

func rootDomainOf(raw string) string {
	normalized, ok := resolver.Normalize(raw)
	if !ok {
		return ""
	}
	return resolver.RootDomain(normalized)
}

func (f *CompetitorFinder) searchKeyword(ctx context.Context, keyword, locale string) ([]search.Result, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.searchTTL)
	defer cancel()
	return f.search.Search(ctx, keyword, search.SearchOptions{Limit: searchResultLimit, Locale: locale})
}

var groundingSchema = llm.Schema{
	Name:    "competitor_grounding",
	Version: "v1",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"summary": map[string]interface{}{"type": "string"},
			"competitors": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name": map[string]interface{}{"type": "string"},
						"url":  map[string]interface{}{"type": "string"},
					},
					"required": []string{"url"},
				},
			},
			"citations": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "integer", "minimum": 1},
			},
		},
		"required": []string{"summary"},
	},
}

type groundedCompetitor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type groundingAnswer struct {
	Summary     string               `json:"summary"`
	Competitors []groundedCompetitor `json:"competitors"`
	Citations   []int                `json:"citations"`
}

const groundingInstruction = `You identify competing businesses for a keyword in a target market.
Use the numbered search results when given. List businesses with their own websites, not directories, marketplaces or social profiles.
"citations" holds the numbers of the search results that are competitor websites.`

func (f *CompetitorFinder) ground(ctx context.Context, keyword, locale string, results []search.Result) (groundingAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, f.aiTimeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "Keyword: %s\n", keyword)
	if locale != "" {
		fmt.Fprintf(&b, "Market: %s\n", locale)
	}
	if len(results) > 0 {
		b.WriteString("\nSearch results:\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] %s - %s\n%s\n", i+1, r.Title, r.URL, truncateRunes(r.Content, 300))
		}
	}

	temp := 0.2
	payload, err := f.completer.CompleteStructured(ctx, llm.StructuredRequest{
		SystemInstruction: groundingInstruction,
		Prompt:            b.String(),
		Schema:            groundingSchema,
		Temperature:       &temp,
	})
	metrics.AICall(groundingSchema.ID(), err)
	if err != nil {
		return groundingAnswer{}, err
	}
	return llm.DecodeStructured[groundingAnswer](payload)
}

var (
	// textURLPattern matches explicit links in free text.
	textURLPattern = regexp.MustCompile(`(?i)https?://[^\s<>"'()\[\]]+`)
	// textDomainPattern matches bare domain-looking tokens.
	textDomainPattern = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,24}\b`)
)

// ExtractURLs pulls URLs and bare domains out of free text, URLs first.
// Tokens that are not on a public suffix are dropped.
func ExtractURLs(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(raw string) {
		raw = strings.TrimRight(raw, ".,;:!?")
		normalized, ok := resolver.Normalize(raw)
		if !ok || seen[normalized] {
			return
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	for _, m := range textURLPattern.FindAllString(text, -1) {
		add(m)
	}
	stripped := page.EmailPattern.ReplaceAllString(textURLPattern.ReplaceAllString(text, " "), " ")
	for _, m := range textDomainPattern.FindAllString(stripped, -1) {
		add(m)
	}
	return out
}

func cleanTitle(title string) string {
	return business.GuessName("", title, "")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
