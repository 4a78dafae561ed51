package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"frameworks/api_lookout/internal/metrics"
	"frameworks/pkg/llm"
	"frameworks/pkg/logging"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrUnrecognizable means the input has nothing resembling a domain.
	ErrUnrecognizable = errors.New("not a recognizable address")
	// ErrUnfixable means the input looks like an attempted URL that could not be repaired.
	ErrUnfixable = errors.New("looks like a URL but could not be fixed")
)

// ConfirmationThreshold is the confidence below which a changed URL needs the
// user's confirmation before it is used.
const ConfirmationThreshold = 80

const localRepairConfidence = 60

// Resolution methods.
const (
	MethodDeterministic = "deterministic"
	MethodAI            = "ai"
	MethodLocalRepair   = "local-repair"
)

var (
	// hostPattern matches a full hostname; repeated labels cover multi-label
	// TLDs such as co.uk.
	hostPattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z][a-z0-9-]{0,61}[a-z0-9]$`)
	// bareURLPattern matches a scheme-less host with optional port and path.
	bareURLPattern = regexp.MustCompile(`^(?i)(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z][a-z0-9-]{0,61}[a-z0-9](?::\d{1,5})?(?:[/?#].*)?$`)
	// domainSubstringPattern finds anything domain-shaped inside free text.
	domainSubstringPattern = regexp.MustCompile(`(?i)[a-z0-9-]{2,}\.[a-z]{2,}`)
	// brokenSchemePattern matches mangled protocol prefixes: "htp://", "http//", "https:/", "://".
	brokenSchemePattern = regexp.MustCompile(`^(?i)(?:h?t{1,2}p?s?)?:?/{1,3}`)
	// wwwPattern matches www-like prefixes including typos ("ww.", "wwww.", "www,").
	wwwPattern = regexp.MustCompile(`^(?i)w{2,4}[.,]`)
	// decorationCutset is trimmed from both ends of the input.
	decorationCutset = " \t\r\n\"'`<>()[]{}"
	// trailingPunctuation is trimmed from the end after decoration.
	trailingPunctuation = ".,;:!?"
)

// ResolvedURL is the outcome of resolving free-text input.
type ResolvedURL struct {
	Original          string   `json:"original"`
	Normalized        string   `json:"normalized"`
	IsValid           bool     `json:"isValid"`
	WasFixed          bool     `json:"wasFixed"`
	Confidence        int      `json:"confidence"`
	NeedsConfirmation bool     `json:"needsConfirmation"`
	Method            string   `json:"method"`
	Issues            []string `json:"issues,omitempty"`
	SuggestedAction   string   `json:"suggestedAction,omitempty"`
	Explanation       string   `json:"explanation,omitempty"`
}

// Resolver turns user input into an absolute URL.
type Resolver struct {
	completer llm.StructuredCompleter
	aiTimeout time.Duration
	logger    logging.Logger
}

// New builds a Resolver. completer may be nil, in which case AI repair is
// skipped and the local repair runs straight away.
func New(completer llm.StructuredCompleter, aiTimeout time.Duration, logger logging.Logger) *Resolver {
	if aiTimeout <= 0 {
		aiTimeout = 20 * time.Second
	}
	return &Resolver{completer: completer, aiTimeout: aiTimeout, logger: logger}
}

// Resolve runs the deterministic pass, then AI repair, then local repair.
func (r *Resolver) Resolve(ctx context.Context, raw string) (ResolvedURL, error) {
	if normalized, ok := Normalize(raw); ok {
		return finalize(raw, normalized, 100, MethodDeterministic), nil
	}

	cleaned := stripDecoration(raw)
	if cleaned == "" || !domainSubstringPattern.MatchString(cleaned) {
		return ResolvedURL{Original: raw}, ErrUnrecognizable
	}

	if r.completer != nil {
		res, err := r.repairWithAI(ctx, raw)
		switch {
		case err == nil:
			return res, nil
		case errors.Is(err, ErrUnfixable):
			return res, err
		default:
			if r.logger != nil {
				r.logger.WithError(err).Warn("AI url repair unavailable, using local repair")
			}
		}
	}

	if normalized, ok := localRepair(cleaned); ok {
		res := finalize(raw, normalized, localRepairConfidence, MethodLocalRepair)
		res.Issues = []string{"input was repaired without AI assistance"}
		return res, nil
	}
	return ResolvedURL{Original: raw}, ErrUnfixable
}

// Normalize is the deterministic pass. It accepts absolute http(s) URLs and
// bare domains, lower-cases the host, drops a leading www. and adds https://.
func Normalize(raw string) (string, bool) {
	s := stripDecoration(raw)
	if s == "" || strings.ContainsAny(s, " \t") {
		return "", false
	}

	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(s, "://") || !bareURLPattern.MatchString(s) {
			return "", false
		}
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if !validHost(host) {
		return "", false
	}

	out := url.URL{
		Scheme:   strings.ToLower(u.Scheme),
		Host:     host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
	}
	if port := u.Port(); port != "" {
		out.Host = host + ":" + port
	}
	if out.Path == "/" {
		out.Path, out.RawPath = "", ""
	}
	return out.String(), true
}

func validHost(host string) bool {
	if !hostPattern.MatchString(host) {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(host)
	// Unknown TLDs fall through to the "*" rule and come back non-ICANN with
	// no dot; privately managed suffixes (github.io) carry a dot.
	if !icann && !strings.Contains(suffix, ".") {
		return false
	}
	return host != suffix
}

func stripDecoration(raw string) string {
	s := strings.Trim(raw, decorationCutset)
	s = strings.TrimRight(s, trailingPunctuation)
	return strings.Trim(s, decorationCutset)
}

// localRepair strips mangled protocol and www prefixes plus stray inner
// whitespace, then re-runs the deterministic pass.
func localRepair(cleaned string) (string, bool) {
	s := strings.Join(strings.Fields(cleaned), "")
	s = brokenSchemePattern.ReplaceAllString(s, "")
	s = wwwPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, "..", ".")
	return Normalize(s)
}

func finalize(raw, normalized string, confidence int, method string) ResolvedURL {
	res := ResolvedURL{
		Original:   raw,
		Normalized: normalized,
		IsValid:    true,
		WasFixed:   normalized != raw,
		Confidence: confidence,
		Method:     method,
	}
	res.NeedsConfirmation = confidence < ConfirmationThreshold && res.WasFixed
	return res
}

var repairSchema = llm.Schema{
	Name:    "url_repair",
	Version: "v1",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"isValidUrl":      map[string]interface{}{"type": "boolean"},
			"fixedUrl":        map[string]interface{}{"type": "string"},
			"confidence":      map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
			"issues":          map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"suggestedAction": map[string]interface{}{"type": "string", "enum": []string{"use_fixed", "ask_user", "reject"}},
			"explanation":     map[string]interface{}{"type": "string"},
		},
		"required": []string{"isValidUrl", "fixedUrl", "confidence"},
	},
}

type repairAnswer struct {
	IsValidURL      bool     `json:"isValidUrl"`
	FixedURL        string   `json:"fixedUrl"`
	Confidence      int      `json:"confidence"`
	Issues          []string `json:"issues"`
	SuggestedAction string   `json:"suggestedAction"`
	Explanation     string   `json:"explanation"`
}

const repairInstruction = `You repair website addresses typed by small business owners.
Given the raw input, decide whether it is an attempt at a website URL and, if so, return the corrected absolute URL.
Never invent a different business or domain. If you cannot tell what site is meant, set isValidUrl to false.`

func (r *Resolver) repairWithAI(ctx context.Context, raw string) (ResolvedURL, error) {
	ctx, cancel := context.WithTimeout(ctx, r.aiTimeout)
	defer cancel()

	temp := 0.0
	payload, err := r.completer.CompleteStructured(ctx, llm.StructuredRequest{
		SystemInstruction: repairInstruction,
		Prompt:            fmt.Sprintf("Raw input: %q", raw),
		Schema:            repairSchema,
		Temperature:       &temp,
	})
	metrics.AICall(repairSchema.ID(), err)
	if err != nil {
		return ResolvedURL{}, err
	}
	answer, err := llm.DecodeStructured[repairAnswer](payload)
	if err != nil {
		return ResolvedURL{}, err
	}

	if !answer.IsValidURL || answer.SuggestedAction == "reject" {
		return ResolvedURL{Original: raw, Issues: answer.Issues, Explanation: answer.Explanation}, ErrUnfixable
	}
	normalized, ok := Normalize(answer.FixedURL)
	if !ok {
		return ResolvedURL{Original: raw, Issues: answer.Issues, Explanation: answer.Explanation}, ErrUnfixable
	}

	res := finalize(raw, normalized, clampConfidence(answer.Confidence), MethodAI)
	res.Issues = answer.Issues
	res.SuggestedAction = answer.SuggestedAction
	res.Explanation = answer.Explanation
	if answer.SuggestedAction == "ask_user" && res.WasFixed {
		res.NeedsConfirmation = true
	}
	return res, nil
}

func clampConfidence(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}

// RootDomain returns the registrable domain (eTLD+1) of a URL or host, or
// the lower-cased host when it has none.
func RootDomain(rawURLOrHost string) string {
	host := rawURLOrHost
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil {
			host = u.Hostname()
		}
	} else if i := strings.IndexAny(host, "/:?#"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return ""
	}
	if root, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return root
	}
	return host
}
