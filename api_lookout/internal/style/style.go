package style

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"frameworks/api_lookout/internal/fetch"
	"frameworks/api_lookout/internal/metrics"
	"frameworks/api_lookout/internal/page"
	"frameworks/pkg/llm"
	"frameworks/pkg/logging"

	readability "codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const (
	SourceAI        = "ai"
	SourceHeuristic = "heuristic"

	// HeuristicMaxConfidence bounds confidence when the model did not answer.
	HeuristicMaxConfidence = 40

	sampleChars        = 6000
	minReadableWords   = 50
	maxCharacteristics = 6
)

var ErrEmptyInput = errors.New("no text to analyze")

type WritingStyle struct {
	Tone            string      `json:"tone"`
	Voice           string      `json:"voice"`
	Readability     string      `json:"readability"`
	Characteristics []string    `json:"characteristics"`
	Confidence      int         `json:"confidence"`
	Source          string      `json:"source"`
	Metrics         TextMetrics `json:"metrics"`
	SampleURL       string      `json:"sampleUrl,omitempty"`
}

type Analyzer struct {
	fetcher   *fetch.Fetcher
	completer llm.StructuredCompleter
	aiTimeout time.Duration
	logger    logging.Logger
}

func NewAnalyzer(fetcher *fetch.Fetcher, completer llm.StructuredCompleter, aiTimeout time.Duration, logger logging.Logger) *Analyzer {
	if aiTimeout <= 0 {
		aiTimeout = 20 * time.Second
	}
	return &Analyzer{fetcher: fetcher, completer: completer, aiTimeout: aiTimeout, logger: logger}
}

// Analyze classifies the writing style of a page (when input is an http(s)
// URL) or of the raw text itself.
func (a *Analyzer) Analyze(ctx context.Context, input string) (WritingStyle, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return WritingStyle{}, ErrEmptyInput
	}

	var plain, markdown, sampleURL string
	if u, ok := asURL(input); ok {
		p, err := a.fetcher.Get(ctx, u.String())
		if err != nil {
			return WritingStyle{}, fmt.Errorf("fetch %s: %w", u, err)
		}
		plain, markdown = mainContent(p.Body, p.Header.Get("Content-Type"), p.FinalURL)
		sampleURL = p.FinalURL
	} else {
		plain, markdown = input, input
	}
	if strings.TrimSpace(plain) == "" {
		return WritingStyle{}, ErrEmptyInput
	}

	m := Measure(plain)
	style := WritingStyle{SampleURL: sampleURL, Metrics: m, Readability: ReadabilityLabel(m)}

	if a.completer != nil {
		answer, err := a.classify(ctx, page.Truncate(markdown, sampleChars), m)
		if err == nil {
			style.Tone = answer.Tone
			style.Voice = answer.Voice
			if answer.Readability != "" {
				style.Readability = answer.Readability
			}
			style.Characteristics = capList(answer.Characteristics, maxCharacteristics)
			style.Confidence = clamp(answer.Confidence, 0, 100)
			style.Source = SourceAI
			return style, nil
		}
		if a.logger != nil {
			a.logger.WithError(err).WithField("step", "writing_style").Warn("AI style classification failed, using heuristics")
		}
	}

	h := Heuristic(m)
	h.SampleURL = sampleURL
	return h, nil
}

func asURL(input string) (*url.URL, bool) {
	if strings.ContainsAny(input, " \n\t") {
		return nil, false
	}
	lower := strings.ToLower(input)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return nil, false
	}
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

// mainContent extracts the article body with readability and renders it to
// markdown for the model and plain text for the metrics. It falls back to the
// page's visible text when readability finds too little.
func mainContent(body []byte, contentType, pageURL string) (plain, markdown string) {
	doc, err := page.Parse(body, contentType, pageURL)
	if err != nil {
		return "", ""
	}
	article, err := readability.FromReader(strings.NewReader(doc.Raw), doc.URL)
	if err == nil && article.Node != nil {
		var buf bytes.Buffer
		if article.RenderText(&buf) == nil {
			text := strings.Join(strings.Fields(buf.String()), " ")
			if len(strings.Fields(text)) >= minReadableWords {
				md, mdErr := htmltomarkdown.ConvertNode(article.Node)
				if mdErr != nil {
					return text, text
				}
				return text, string(md)
			}
		}
	}
	text := doc.Text()
	return text, text
}

var styleSchema = llm.Schema{
	Name:    "writing_style",
	Version: "v1",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tone":        map[string]interface{}{"type": "string"},
			"voice":       map[string]interface{}{"type": "string"},
			"readability": map[string]interface{}{"type": "string", "enum": []string{"easy", "standard", "difficult"}},
			"characteristics": map[string]interface{}{
				"type":     "array",
				"items":    map[string]interface{}{"type": "string"},
				"maxItems": maxCharacteristics,
			},
			"confidence": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
		},
		"required": []string{"tone", "voice", "confidence"},
	},
}

type styleAnswer struct {
	Tone            string   `json:"tone"`
	Voice           string   `json:"voice"`
	Readability     string   `json:"readability"`
	Characteristics []string `json:"characteristics"`
	Confidence      int      `json:"confidence"`
}

const styleInstruction = `You are an editor describing the writing style of a business's website copy so new content can match it.
Describe tone (e.g. friendly, formal, playful) and voice (e.g. first-person plural, second-person, impersonal) in a few words each.
Answer in English regardless of the language of the sample.`

func (a *Analyzer) classify(ctx context.Context, sample string, m TextMetrics) (styleAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()

	prompt := fmt.Sprintf("Metrics: %d words, %.1f words per sentence, reading ease %.0f.\n\nSample:\n%s",
		m.Words, m.AvgSentenceLength, m.ReadingEase, sample)
	temp := 0.2
	payload, err := a.completer.CompleteStructured(ctx, llm.StructuredRequest{
		SystemInstruction: styleInstruction,
		Prompt:            prompt,
		Schema:            styleSchema,
		Temperature:       &temp,
	})
	metrics.AICall(styleSchema.ID(), err)
	if err != nil {
		return styleAnswer{}, err
	}
	answer, err := llm.DecodeStructured[styleAnswer](payload)
	if err != nil {
		return styleAnswer{}, err
	}
	if strings.TrimSpace(answer.Tone) == "" || strings.TrimSpace(answer.Voice) == "" {
		return styleAnswer{}, fmt.Errorf("%w: missing tone or voice", llm.ErrInvalidResponse)
	}
	return answer, nil
}

// Heuristic derives a style from metrics alone. Its confidence never exceeds
// HeuristicMaxConfidence.
func Heuristic(m TextMetrics) WritingStyle {
	s := WritingStyle{
		Readability:     ReadabilityLabel(m),
		Metrics:         m,
		Source:          SourceHeuristic,
		Characteristics: []string{},
	}
	if m.Words == 0 {
		s.Tone, s.Voice = "unknown", "unknown"
		return s
	}

	exclaimRate := float64(m.Exclamations) / float64(m.Sentences)
	switch {
	case exclaimRate >= 0.2:
		s.Tone = "enthusiastic"
		s.Characteristics = append(s.Characteristics, "frequent exclamations")
	case m.AvgSentenceLength > 22 || (m.LatinScript && m.ReadingEase < 40):
		s.Tone = "formal"
		s.Characteristics = append(s.Characteristics, "long sentences")
	case m.AvgSentenceLength <= 12:
		s.Tone = "conversational"
		s.Characteristics = append(s.Characteristics, "short sentences")
	default:
		s.Tone = "professional"
	}

	switch {
	case m.SecondPersonRatio >= 0.02 && m.SecondPersonRatio >= m.FirstPluralRatio:
		s.Voice = "second-person"
		s.Characteristics = append(s.Characteristics, "addresses the reader directly")
	case m.FirstPluralRatio >= 0.02:
		s.Voice = "first-person plural"
	default:
		s.Voice = "impersonal"
	}
	if m.Questions > 0 && float64(m.Questions)/float64(m.Sentences) >= 0.15 {
		s.Characteristics = append(s.Characteristics, "uses questions")
	}

	s.Confidence = 20
	if m.Words >= 150 {
		s.Confidence = HeuristicMaxConfidence
	} else if m.Words >= 50 {
		s.Confidence = 30
	}
	return s
}

func capList(items []string, n int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
