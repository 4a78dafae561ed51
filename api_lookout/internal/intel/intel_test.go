package intel

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"frameworks/api_lookout/internal/business"
	"frameworks/pkg/llm"
	"frameworks/pkg/search"
)

type stubSearch struct {
	mu      sync.Mutex
	results map[string][]search.Result
	err     error
	queries []string
}

func (s *stubSearch) Search(_ context.Context, query string, opts search.SearchOptions) ([]search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query+"|"+opts.Locale)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

type stubCompleter struct {
	mu      sync.Mutex
	answers []string
	err     error
	calls   int
	last    llm.StructuredRequest
}

func (s *stubCompleter) CompleteStructured(_ context.Context, req llm.StructuredRequest) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.answers) == 0 {
		return json.RawMessage(`{"summary":""}`), nil
	}
	a := s.answers[0]
	if len(s.answers) > 1 {
		s.answers = s.answers[1:]
	}
	return json.RawMessage(a), nil
}

func TestKeywordsDedupedAcrossSources(t *testing.T) {
	stub := &stubCompleter{answers: []string{`{
		"primary":[{"keyword":"Emergency Plumber","priority":"high"},{"keyword":"drain cleaning"},{"keyword":"PLUMBING"}],
		"longTail":[{"keyword":"24 hour emergency plumber springfield","priority":"medium"},{"keyword":"drain  Cleaning"}]}`}}
	gen := NewKeywordGenerator(stub, 0, nil)

	got, err := gen.Generate(context.Background(), KeywordInput{
		Profile:          business.Profile{BusinessName: "Acme", DetectedLanguage: "en"},
		ExistingKeywords: []string{"plumbing", "emergency plumber", "Plumbing"},
		Custom:           []string{"boiler repair", "PLUMBING"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	seen := map[string]bool{}
	for _, k := range got {
		key := strings.ToLower(k.Keyword)
		if seen[key] {
			t.Fatalf("duplicate keyword %q in %+v", k.Keyword, got)
		}
		seen[key] = true
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 keywords, got %+v", got)
	}
	if got[0].Type != TypeFromWebsite || !got[0].Verified || got[0].Priority != PriorityHigh {
		t.Fatalf("website keywords must come first and be verified: %+v", got[0])
	}
	if got[1].Keyword != "emergency plumber" || got[1].Type != TypeFromWebsite {
		t.Fatalf("website keyword should win over the AI duplicate: %+v", got[1])
	}
	if got[2].Type != TypeCustom || got[3].Type != TypePrimary || got[3].Priority != PriorityMedium {
		t.Fatalf("unexpected ordering %+v", got)
	}
	if got[4].Type != TypeLongTail || got[4].Priority != PriorityMedium {
		t.Fatalf("unexpected long-tail %+v", got[4])
	}
	if !strings.Contains(stub.last.Prompt, "Already used: plumbing") {
		t.Fatalf("prompt should list existing keywords: %q", stub.last.Prompt)
	}
}

func TestKeywordsFallBackToProfile(t *testing.T) {
	gen := NewKeywordGenerator(&stubCompleter{err: llm.ErrUnavailable}, 0, nil)
	got, err := gen.Generate(context.Background(), KeywordInput{
		Profile:          business.Profile{Category: "Plumbing", ServicesOrProducts: []string{"Leak repair", "plumbing"}},
		ExistingKeywords: []string{"leak repair"},
	})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected unavailability to be reported, got %v", err)
	}
	if len(got) != 2 || got[1].Keyword != "plumbing" || got[1].Source != SourceProfile {
		t.Fatalf("unexpected fallback keywords %+v", got)
	}
}

func TestCompetitorsDedupeAndExclude(t *testing.T) {
	s := &stubSearch{results: map[string][]search.Result{
		"plumber springfield": {
			{Title: "Rival Plumbing | Home", URL: "https://www.rivalplumbing.com/services"},
			{Title: "Yelp list", URL: "https://www.yelp.com/search?q=plumber"},
			{Title: "Our own site", URL: "https://acme-plumbing.com/"},
			{Title: "City permits", URL: "https://permits.springfield.gov/"},
			{Title: "Rival blog", URL: "https://blog.rivalplumbing.com/post"},
			{Title: "Facebook", URL: "https://facebook.com/rival"},
		},
		"drain cleaning": {
			{Title: "Drain Pros", URL: "https://drainpros.co.uk/"},
			{Title: "Rival again", URL: "https://rivalplumbing.com/drains"},
			{Title: "Google", URL: "https://www.google.co.uk/maps"},
		},
	}}
	f := NewCompetitorFinder(CompetitorConfig{Search: s})

	got, err := f.Find(context.Background(), CompetitorRequest{
		Keywords:      []string{"plumber springfield", "drain cleaning", "Plumber Springfield"},
		ExcludeDomain: "https://www.acme-plumbing.com",
		TargetLocale:  "en-US",
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	domains := map[string]bool{}
	for _, c := range got {
		if domains[c.Domain] {
			t.Fatalf("duplicate domain %s", c.Domain)
		}
		domains[c.Domain] = true
		if c.Domain == "acme-plumbing.com" {
			t.Fatalf("own domain emitted")
		}
		if c.Source != SourceSearchResult || !c.Verified {
			t.Fatalf("unexpected source %+v", c)
		}
	}
	if len(got) != 2 || !domains["rivalplumbing.com"] || !domains["drainpros.co.uk"] {
		t.Fatalf("unexpected competitors %+v", got)
	}
	if got[0].Name != "Rival Plumbing" {
		t.Fatalf("expected cleaned title as name, got %q", got[0].Name)
	}
	if len(s.queries) != 2 || s.queries[0] != "plumber springfield|en-US" {
		t.Fatalf("unexpected queries %v", s.queries)
	}
}

func TestCompetitorsCapKeywordsAndResults(t *testing.T) {
	s := &stubSearch{results: map[string][]search.Result{}}
	for _, kw := range []string{"a", "b", "c", "d"} {
		for _, d := range []string{"one", "two", "three"} {
			s.results[kw] = append(s.results[kw], search.Result{URL: "https://" + kw + d + ".com/"})
		}
	}
	f := NewCompetitorFinder(CompetitorConfig{Search: s, MaxCompetitors: 7})
	got, err := f.Find(context.Background(), CompetitorRequest{Keywords: []string{"a", "b", "c", "d"}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("expected cap of 7, got %d", len(got))
	}
	for _, q := range s.queries {
		if strings.HasPrefix(q, "d|") {
			t.Fatalf("fourth keyword must not be searched")
		}
	}
}

func TestCompetitorsGroundingLayer(t *testing.T) {
	s := &stubSearch{results: map[string][]search.Result{
		"bakery": {
			{Title: "Wikipedia: Bakery", URL: "https://en.wikipedia.org/wiki/Bakery"},
			{Title: "Sweet Crumbs", URL: "https://sweetcrumbs.com/"},
		},
	}}
	stub := &stubCompleter{answers: []string{`{"summary":"Try sweetcrumbs.com and loafhouse.com",
		"competitors":[{"name":"Loaf House","url":"loafhouse.com"}],"citations":[2,9]}`}}
	f := NewCompetitorFinder(CompetitorConfig{Search: s, Completer: stub})

	got, err := f.Find(context.Background(), CompetitorRequest{Keywords: []string{"bakery"}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two competitors, got %+v", got)
	}
	if got[0].Domain != "sweetcrumbs.com" || got[0].Source != SourceSearchResult {
		t.Fatalf("unexpected first candidate %+v", got[0])
	}
	if got[1].Domain != "loafhouse.com" || got[1].Name != "Loaf House" {
		t.Fatalf("unexpected model candidate %+v", got[1])
	}
	if got[1].Source != SourceTextExtracted || got[1].Verified {
		t.Fatalf("a competitor outside the search results must stay unverified: %+v", got[1])
	}
	if !strings.Contains(stub.last.Prompt, "[2] Sweet Crumbs") {
		t.Fatalf("search results should be numbered in the prompt: %q", stub.last.Prompt)
	}
}

func TestCompetitorsModelNamesWithoutSearchAreUnverified(t *testing.T) {
	stub := &stubCompleter{answers: []string{`{"summary":"","competitors":[{"url":"https://totally-invented-plumber.com"}]}`}}
	f := NewCompetitorFinder(CompetitorConfig{Completer: stub})

	got, err := f.Find(context.Background(), CompetitorRequest{Keywords: []string{"plumber"}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Domain != "totally-invented-plumber.com" {
		t.Fatalf("unexpected competitors %+v", got)
	}
	if got[0].Source != SourceTextExtracted || got[0].Verified {
		t.Fatalf("ungrounded competitor must not be verified: %+v", got[0])
	}
}

func TestCompetitorsGroundedByCitationOrMatchingDomain(t *testing.T) {
	s := &stubSearch{results: map[string][]search.Result{
		"bakery": {{Title: "Sweet Crumbs", URL: "https://sweetcrumbs.com/"}},
	}}
	stub := &stubCompleter{answers: []string{`{"summary":"","competitors":[{"name":"Sweet Crumbs","url":"https://www.sweetcrumbs.com/about"}],"citations":[1]}`}}
	f := NewCompetitorFinder(CompetitorConfig{Search: s, Completer: stub})

	got, err := f.Find(context.Background(), CompetitorRequest{Keywords: []string{"bakery"}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Source != SourceSearchResult || !got[0].Verified {
		t.Fatalf("expected the single search result, got %+v", got)
	}
}

func TestCompetitorsDuplicateResultsSkipTextFallback(t *testing.T) {
	s := &stubSearch{results: map[string][]search.Result{
		"bakery":       {{Title: "Sweet Crumbs", URL: "https://sweetcrumbs.com/"}},
		"bread bakery": {{Title: "Sweet Crumbs again", URL: "https://sweetcrumbs.com/bread"}},
	}}
	stub := &stubCompleter{answers: []string{
		`{"summary":"nothing to add"}`,
		`{"summary":"Also consider https://crumbsandco.com for bread."}`,
	}}
	f := NewCompetitorFinder(CompetitorConfig{Search: s, Completer: stub})

	got, err := f.Find(context.Background(), CompetitorRequest{Keywords: []string{"bakery", "bread bakery"}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Domain != "sweetcrumbs.com" {
		t.Fatalf("text fallback must not run when search answered: %+v", got)
	}
}

func TestCompetitorsTextFallbackIsUnverified(t *testing.T) {
	stub := &stubCompleter{answers: []string{`{"summary":"Leading shops include https://bikehub.com/shop, pedalworks.co.il and mail info@spam.com. See google.com too."}`}}
	f := NewCompetitorFinder(CompetitorConfig{Completer: stub})

	got, err := f.Find(context.Background(), CompetitorRequest{Keywords: []string{"bike shop"}, TargetLocale: "he-IL"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two text candidates, got %+v", got)
	}
	for _, c := range got {
		if c.Verified || c.Source != SourceTextExtracted {
			t.Fatalf("text candidates must be unverified: %+v", c)
		}
		if c.Domain == "spam.com" || c.Domain == "google.com" {
			t.Fatalf("unexpected domain %s", c.Domain)
		}
	}
}

func TestCompetitorsAllSourcesFail(t *testing.T) {
	f := NewCompetitorFinder(CompetitorConfig{
		Search:    &stubSearch{err: errors.New("search down")},
		Completer: &stubCompleter{err: llm.ErrUnavailable},
	})
	got, err := f.Find(context.Background(), CompetitorRequest{Keywords: []string{"x"}})
	if !errors.Is(err, ErrNoCompetitorSources) || !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestExtractURLs(t *testing.T) {
	got := ExtractURLs("Visit https://Example.com/a, or www.shop.co.uk. Node.js and v1.2 are not domains; write me@mail.com")
	want := []string{"https://example.com/a", "https://shop.co.uk"}
	if len(got) != len(want) {
		t.Fatalf("ExtractURLs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ExtractURLs = %v, want %v", got, want)
		}
	}
}

func TestExclusions(t *testing.T) {
	e := newExclusions("https://www.mysite.co.il/about")
	tests := map[string]bool{
		"mysite.co.il":    true,
		"google.co.il":    true,
		"facebook.com":    true,
		"health.gov.il":   true,
		"whitehouse.gov":  true,
		"rival.co.il":     false,
		"governance.com":  false,
		"gouvernement.fr": false,
	}
	for root, want := range tests {
		if got := e.excluded(root); got != want {
			t.Errorf("excluded(%q) = %v, want %v", root, got, want)
		}
	}
}
