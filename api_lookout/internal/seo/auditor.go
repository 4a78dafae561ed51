package seo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"frameworks/api_lookout/internal/metrics"
	"frameworks/api_lookout/internal/page"
	"frameworks/pkg/llm"
	"frameworks/pkg/logging"
)

const (
	htmlSampleChars = 8000
	maxPriorities   = 5
	maxListItems    = 5
)

type Report struct {
	Score        int           `json:"score"`
	Findings     []Finding     `json:"findings"`
	Summary      Summary       `json:"summary"`
	AIAssessment *AIAssessment `json:"aiAssessment"`
}

type AIAssessment struct {
	OverallAssessment string   `json:"overallAssessment"`
	TopPriorities     []string `json:"topPriorities"`
	Opportunities     []string `json:"opportunities"`
	TechnicalIssues   []string `json:"technicalIssues"`
	Strengths         []string `json:"strengths"`
	QuickWins         []string `json:"quickWins"`
}

// Auditor runs the deterministic checks and layers an optional AI review on
// top.
type Auditor struct {
	completer llm.StructuredCompleter
	aiTimeout time.Duration
	logger    logging.Logger
}

func NewAuditor(completer llm.StructuredCompleter, aiTimeout time.Duration, logger logging.Logger) *Auditor {
	if aiTimeout <= 0 {
		aiTimeout = 20 * time.Second
	}
	return &Auditor{completer: completer, aiTimeout: aiTimeout, logger: logger}
}

// Audit never fails: a failed AI review leaves AIAssessment nil.
func (a *Auditor) Audit(ctx context.Context, d *page.Document, finalURL *url.URL) Report {
	findings := RunChecks(d, finalURL)
	report := Report{
		Score:    Score(findings),
		Findings: findings,
		Summary:  Summarize(findings),
	}
	if a.completer == nil {
		return report
	}
	assessment, err := a.assess(ctx, d, report)
	if err != nil {
		if a.logger != nil {
			a.logger.WithError(err).WithField("step", "seo").Warn("AI SEO assessment failed")
		}
		return report
	}
	report.AIAssessment = assessment
	return report
}

var assessmentSchema = llm.Schema{
	Name:    "seo_assessment",
	Version: "v1",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"overallAssessment": map[string]interface{}{"type": "string"},
			"topPriorities":     stringList(maxPriorities),
			"opportunities":     stringList(maxListItems),
			"technicalIssues":   stringList(maxListItems),
			"strengths":         stringList(maxListItems),
			"quickWins":         stringList(maxListItems),
		},
		"required": []string{"overallAssessment", "topPriorities"},
	},
}

func stringList(max int) map[string]interface{} {
	return map[string]interface{}{
		"type":     "array",
		"items":    map[string]interface{}{"type": "string"},
		"maxItems": max,
	}
}

const assessmentInstruction = `You are an SEO consultant reviewing a small business homepage.
You receive the result of an automated audit and a sample of the page HTML.
Be concrete and brief. Do not repeat the audit messages verbatim.`

func (a *Auditor) assess(ctx context.Context, d *page.Document, report Report) (*AIAssessment, error) {
	ctx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()

	var issues strings.Builder
	for _, f := range report.Findings {
		if f.Severity == SeverityPass {
			continue
		}
		fmt.Fprintf(&issues, "- [%s] %s: %s\n", f.Severity, f.CheckID, f.Message)
	}
	prompt := fmt.Sprintf("URL: %s\nScore: %d/100\nIssues:\n%s\nHTML sample:\n%s",
		d.URL, report.Score, issues.String(), page.Truncate(d.Raw, htmlSampleChars))

	temp := 0.3
	payload, err := a.completer.CompleteStructured(ctx, llm.StructuredRequest{
		SystemInstruction: assessmentInstruction,
		Prompt:            prompt,
		Schema:            assessmentSchema,
		Temperature:       &temp,
	})
	metrics.AICall(assessmentSchema.ID(), err)
	if err != nil {
		return nil, err
	}
	out, err := llm.DecodeStructured[AIAssessment](payload)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.OverallAssessment) == "" {
		return nil, fmt.Errorf("%w: empty overall assessment", llm.ErrInvalidResponse)
	}
	out.TopPriorities = capList(out.TopPriorities, maxPriorities)
	out.Opportunities = capList(out.Opportunities, maxListItems)
	out.TechnicalIssues = capList(out.TechnicalIssues, maxListItems)
	out.Strengths = capList(out.Strengths, maxListItems)
	out.QuickWins = capList(out.QuickWins, maxListItems)
	return &out, nil
}

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
