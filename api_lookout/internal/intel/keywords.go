package intel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"frameworks/api_lookout/internal/business"
	"frameworks/api_lookout/internal/metrics"
	"frameworks/api_lookout/internal/page"
	"frameworks/pkg/llm"
	"frameworks/pkg/logging"
)

type KeywordType string

const (
	TypeFromWebsite KeywordType = "from-website"
	TypePrimary     KeywordType = "primary"
	TypeLongTail    KeywordType = "long-tail"
	TypeCustom      KeywordType = "custom"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

const (
	SourceWebsite = "website"
	SourceUser    = "user"
	SourceAI      = "ai"
	SourceProfile = "profile"

	maxPrimary  = 10
	maxLongTail = 15
)

type KeywordCandidate struct {
	Keyword  string      `json:"keyword"`
	Type     KeywordType `json:"type"`
	Priority Priority    `json:"priority"`
	Source   string      `json:"source"`
	Verified bool        `json:"verified"`
}

// KeywordInput is what keyword generation starts from. ExistingKeywords are
// keywords crawled from the site itself; Custom are keywords a user typed.
type KeywordInput struct {
	Profile          business.Profile
	ExistingKeywords []string
	Custom           []string
	Competitors      []string
}

type KeywordGenerator struct {
	completer llm.StructuredCompleter
	aiTimeout time.Duration
	logger    logging.Logger
}

func NewKeywordGenerator(completer llm.StructuredCompleter, aiTimeout time.Duration, logger logging.Logger) *KeywordGenerator {
	if aiTimeout <= 0 {
		aiTimeout = 20 * time.Second
	}
	return &KeywordGenerator{completer: completer, aiTimeout: aiTimeout, logger: logger}
}

// keywordSet keeps the first occurrence of each keyword, compared
// case-insensitively with whitespace collapsed.
type keywordSet struct {
	seen map[string]bool
	out  []KeywordCandidate
}

func (s *keywordSet) add(c KeywordCandidate) {
	c.Keyword = strings.Join(strings.Fields(c.Keyword), " ")
	key := strings.ToLower(c.Keyword)
	if key == "" || s.seen[key] {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	s.seen[key] = true
	s.out = append(s.out, c)
}

// Generate merges website keywords, custom keywords, then AI primary and
// long-tail proposals. When the model is unavailable the profile's services
// and category stand in for the primary keywords and the error is returned
// alongside the list.
func (g *KeywordGenerator) Generate(ctx context.Context, in KeywordInput) ([]KeywordCandidate, error) {
	var set keywordSet
	for _, k := range in.ExistingKeywords {
		set.add(KeywordCandidate{Keyword: k, Type: TypeFromWebsite, Priority: PriorityHigh, Source: SourceWebsite, Verified: true})
	}
	for _, k := range in.Custom {
		set.add(KeywordCandidate{Keyword: k, Type: TypeCustom, Priority: PriorityHigh, Source: SourceUser})
	}

	var aiErr error
	if g.completer == nil {
		aiErr = llm.ErrUnavailable
	} else if answer, err := g.propose(ctx, in); err != nil {
		aiErr = err
	} else {
		for _, k := range capKeywords(answer.Primary, maxPrimary) {
			set.add(KeywordCandidate{Keyword: k.Keyword, Type: TypePrimary, Priority: normalizePriority(k.Priority, PriorityMedium), Source: SourceAI})
		}
		for _, k := range capKeywords(answer.LongTail, maxLongTail) {
			set.add(KeywordCandidate{Keyword: k.Keyword, Type: TypeLongTail, Priority: normalizePriority(k.Priority, PriorityLow), Source: SourceAI})
		}
	}

	if aiErr != nil {
		if g.logger != nil {
			g.logger.WithError(aiErr).WithField("step", "keywords").Warn("AI keyword proposal failed, using profile keywords")
		}
		for _, s := range in.Profile.ServicesOrProducts {
			set.add(KeywordCandidate{Keyword: s, Type: TypePrimary, Priority: PriorityMedium, Source: SourceProfile})
		}
		if in.Profile.Category != "" {
			set.add(KeywordCandidate{Keyword: in.Profile.Category, Type: TypePrimary, Priority: PriorityMedium, Source: SourceProfile})
		}
		return set.out, fmt.Errorf("keyword proposal: %w", aiErr)
	}
	return set.out, nil
}

var keywordSchema = llm.Schema{
	Name:    "keyword_suggestions",
	Version: "v1",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"primary":  keywordList(maxPrimary),
			"longTail": keywordList(maxLongTail),
		},
		"required": []string{"primary", "longTail"},
	},
}

func keywordList(max int) map[string]interface{} {
	return map[string]interface{}{
		"type":     "array",
		"maxItems": max,
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"keyword":  map[string]interface{}{"type": "string"},
				"priority": map[string]interface{}{"type": "string", "enum": []string{"high", "medium", "low"}},
			},
			"required": []string{"keyword"},
		},
	}
}

type proposedKeyword struct {
	Keyword  string `json:"keyword"`
	Priority string `json:"priority"`
}

type keywordAnswer struct {
	Primary  []proposedKeyword `json:"primary"`
	LongTail []proposedKeyword `json:"longTail"`
}

const keywordInstruction = `You are an SEO strategist for small local businesses.
Propose search keywords real customers would type. Primary keywords are 1-3 words; long-tail keywords are 4 or more words.
Write every keyword in %s. Do not repeat keywords the business already uses.`

func (g *KeywordGenerator) propose(ctx context.Context, in KeywordInput) (keywordAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, g.aiTimeout)
	defer cancel()

	p := in.Profile
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\nCategory: %s\nDescription: %s\n", p.BusinessName, p.Category, p.Description)
	if len(p.ServicesOrProducts) > 0 {
		fmt.Fprintf(&b, "Services/products: %s\n", strings.Join(p.ServicesOrProducts, ", "))
	}
	if p.TargetAudience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", p.TargetAudience)
	}
	if p.Address != "" {
		fmt.Fprintf(&b, "Location: %s\n", p.Address)
	}
	if len(in.ExistingKeywords) > 0 {
		fmt.Fprintf(&b, "Already used: %s\n", strings.Join(in.ExistingKeywords, ", "))
	}
	if len(in.Competitors) > 0 {
		fmt.Fprintf(&b, "Competitors: %s\n", strings.Join(in.Competitors, ", "))
	}

	lang := p.DetectedLanguage
	if lang == "" {
		lang = "en"
	}
	temp := 0.4
	payload, err := g.completer.CompleteStructured(ctx, llm.StructuredRequest{
		SystemInstruction: fmt.Sprintf(keywordInstruction, page.LanguageName(lang)),
		Prompt:            b.String(),
		Schema:            keywordSchema,
		Temperature:       &temp,
	})
	metrics.AICall(keywordSchema.ID(), err)
	if err != nil {
		return keywordAnswer{}, err
	}
	return llm.DecodeStructured[keywordAnswer](payload)
}

func capKeywords(in []proposedKeyword, n int) []proposedKeyword {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func normalizePriority(raw string, fallback Priority) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium:
		return PriorityMedium
	case PriorityLow:
		return PriorityLow
	}
	return fallback
}
