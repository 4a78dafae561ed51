package style

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"frameworks/api_lookout/internal/fetch"
	"frameworks/pkg/llm"
)

type stubCompleter struct {
	payload string
	err     error
	prompt  string
}

func (s *stubCompleter) CompleteStructured(_ context.Context, req llm.StructuredRequest) (json.RawMessage, error) {
	s.prompt = req.Prompt
	if req.Schema.ID() != "writing_style_v1" {
		return nil, errors.New("unexpected schema " + req.Schema.ID())
	}
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.payload), nil
}

func testFetcher() *fetch.Fetcher {
	return fetch.NewFetcher(fetch.NewClient(fetch.ClientConfig{AllowPrivate: true, Timeout: 5 * time.Second}))
}

const article = `We bake every loaf by hand before sunrise. Our flour comes from a mill two miles away. ` +
	`You can taste the difference in every slice. We open at seven and close when the bread runs out. ` +
	`Our team has been baking in this neighborhood for twenty years, and we still love it. ` +
	`Come in, say hello, and try the rye. You will not regret it. We promise.`

func TestMeasure(t *testing.T) {
	m := Measure("The cat sat. The dog ran! Did you see it?")
	if m.Words != 10 || m.Sentences != 3 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if m.Exclamations != 1 || m.Questions != 1 || !m.LatinScript {
		t.Fatalf("unexpected punctuation metrics %+v", m)
	}
	if m.ReadingEase < 90 {
		t.Fatalf("short monosyllabic text should read easily, got %.2f", m.ReadingEase)
	}
	if ReadabilityLabel(m) != "easy" {
		t.Fatalf("expected easy, got %s", ReadabilityLabel(m))
	}
}

func TestMeasureNonLatin(t *testing.T) {
	m := Measure("אנחנו אופים לחם כל בוקר. בואו לטעום.")
	if m.LatinScript || m.ReadingEase != 0 || m.Sentences != 2 {
		t.Fatalf("unexpected metrics for Hebrew text %+v", m)
	}
	if ReadabilityLabel(m) != "easy" {
		t.Fatalf("short Hebrew sentences should be easy")
	}
}

func TestCountSyllables(t *testing.T) {
	tests := map[string]int{"cat": 1, "bread": 1, "table": 2, "make": 1, "neighborhood": 3, "rhythm": 1}
	for w, want := range tests {
		if got := countSyllables(w); got != want {
			t.Errorf("countSyllables(%q) = %d, want %d", w, got, want)
		}
	}
}

func TestHeuristicConfidenceIsBounded(t *testing.T) {
	long := strings.Repeat(article+" ", 5)
	s := Heuristic(Measure(long))
	if s.Confidence > HeuristicMaxConfidence || s.Source != SourceHeuristic {
		t.Fatalf("unexpected heuristic style %+v", s)
	}
	if s.Voice != "first-person plural" && s.Voice != "second-person" {
		t.Fatalf("expected a personal voice, got %q", s.Voice)
	}
	if s.Tone != "conversational" {
		t.Fatalf("expected conversational tone, got %q", s.Tone)
	}
}

func TestAnalyzeTextWithAI(t *testing.T) {
	stub := &stubCompleter{payload: `{"tone":"warm","voice":"first-person plural","readability":"easy","characteristics":["a","b","c","d","e","f","g"],"confidence":140}`}
	s, err := NewAnalyzer(testFetcher(), stub, 0, nil).Analyze(context.Background(), article)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if s.Source != SourceAI || s.Tone != "warm" || s.Confidence != 100 || len(s.Characteristics) != maxCharacteristics {
		t.Fatalf("unexpected style %+v", s)
	}
	if !strings.Contains(stub.prompt, "We bake every loaf") {
		t.Fatalf("prompt should carry the sample")
	}
}

func TestAnalyzeFallsBackWhenAIFails(t *testing.T) {
	for _, stub := range []*stubCompleter{{err: llm.ErrUnavailable}, {payload: `{"tone":"","voice":"x","confidence":90}`}} {
		s, err := NewAnalyzer(testFetcher(), stub, 0, nil).Analyze(context.Background(), article)
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}
		if s.Source != SourceHeuristic || s.Confidence > HeuristicMaxConfidence {
			t.Fatalf("expected heuristic fallback, got %+v", s)
		}
	}
}

func TestAnalyzeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>About</title><script>var x = "do not read me";</script></head>
<body><nav>Home Shop Contact</nav><article><h1>About the bakery</h1><p>` + article + `</p><p>` + article + `</p></article>
<footer>Copyright</footer></body></html>`))
	}))
	defer srv.Close()

	s, err := NewAnalyzer(testFetcher(), nil, 0, nil).Analyze(context.Background(), srv.URL+"/about")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if s.SampleURL != srv.URL+"/about" || s.Metrics.Words < minReadableWords {
		t.Fatalf("unexpected result %+v", s)
	}
	if s.Source != SourceHeuristic {
		t.Fatalf("no completer means heuristic source, got %s", s.Source)
	}
}

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	if _, err := NewAnalyzer(testFetcher(), nil, 0, nil).Analyze(context.Background(), "   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}
