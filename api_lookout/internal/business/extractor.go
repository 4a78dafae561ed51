package business

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frameworks/api_lookout/internal/metrics"
	"frameworks/api_lookout/internal/page"
	"frameworks/pkg/llm"
	"frameworks/pkg/logging"
)

// Per-page caps on the text sent to the model.
const (
	HomeTextCap    = 5000
	AboutTextCap   = 3000
	ContactTextCap = 2000

	maxServices = 5
)

// Contact field sources.
const (
	SourceAI         = "ai"
	SourceLink       = "link"
	SourceText       = "text"
	SourceContactAI  = "ai_contact_retry"
	SourceTitleGuess = "title"
)

var ErrExtraction = errors.New("business extraction failed")

type Verified struct {
	Phone bool `json:"phone"`
	Email bool `json:"email"`
}

type Profile struct {
	BusinessName       string   `json:"businessName"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	DetectedLanguage   string   `json:"detectedLanguage"`
	Address            string   `json:"address,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	Email              string   `json:"email,omitempty"`
	ServicesOrProducts []string `json:"servicesOrProducts"`
	TargetAudience     string   `json:"targetAudience,omitempty"`
	Verified           Verified `json:"verified"`
	PhoneSource        string   `json:"phoneSource,omitempty"`
	EmailSource        string   `json:"emailSource,omitempty"`
	NameSource         string   `json:"nameSource,omitempty"`
	// Rejected names the fields whose extracted value failed verification.
	Rejected           []string `json:"rejected,omitempty"`
}

// Pages are the documents a profile is built from. About and Contact are
// optional.
type Pages struct {
	Home    *page.Document
	About   *page.Document
	Contact *page.Document
}

func (p Pages) all() []*page.Document {
	var out []*page.Document
	for _, d := range []*page.Document{p.Contact, p.Home, p.About} {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Source is the merged text the model sees plus the corpus facts are
// verified against.
type Source struct {
	Text     string
	Language string
	corpus   string
}

// MergeText concatenates the capped visible text of each page and detects the
// dominant script.
func MergeText(p Pages) Source {
	var text, raw strings.Builder
	add := func(label string, d *page.Document, limit int) {
		if d == nil {
			return
		}
		if t := page.Truncate(d.Text(), limit); t != "" {
			fmt.Fprintf(&text, "=== %s (%s) ===\n%s\n\n", label, d.URL, t)
		}
		raw.WriteString(d.Raw)
		raw.WriteByte('\n')
	}
	add("HOME", p.Home, HomeTextCap)
	add("ABOUT", p.About, AboutTextCap)
	add("CONTACT", p.Contact, ContactTextCap)

	merged := strings.TrimSpace(text.String())
	return Source{
		Text:     merged,
		Language: page.DetectScriptLanguage(merged),
		corpus:   strings.ToLower(merged + "\n" + raw.String()),
	}
}

// Contains is the verification gate: a case-insensitive literal match
// against the page text and markup.
func (s Source) Contains(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && strings.Contains(s.corpus, strings.ToLower(value))
}

type Extractor struct {
	completer llm.StructuredCompleter
	aiTimeout time.Duration
	logger    logging.Logger
}

func NewExtractor(completer llm.StructuredCompleter, aiTimeout time.Duration, logger logging.Logger) *Extractor {
	if aiTimeout <= 0 {
		aiTimeout = 20 * time.Second
	}
	return &Extractor{completer: completer, aiTimeout: aiTimeout, logger: logger}
}

// Extract always returns a usable profile. A non-nil error wraps
// ErrExtraction and reports that the AI extraction failed and the profile was
// assembled from fallbacks.
func (e *Extractor) Extract(ctx context.Context, pages Pages) (Profile, error) {
	if pages.Home == nil {
		return Profile{}, fmt.Errorf("%w: no homepage", ErrExtraction)
	}
	src := MergeText(pages)
	snap := page.Extract(pages.Home)

	var profile Profile
	var aiErr error
	if e.completer == nil {
		aiErr = llm.ErrUnavailable
	} else if answer, err := e.extractWithAI(ctx, src); err != nil {
		aiErr = err
	} else {
		profile = answer.toProfile()
		profile.NameSource = SourceAI
		e.verify(&profile, src, SourceAI)
	}

	if profile.BusinessName == "" {
		profile.BusinessName = GuessName(snap.SiteName, pages.Home.HTMLTitle(), pages.Home.URL.Hostname())
		profile.NameSource = SourceTitleGuess
	}
	if profile.Description == "" {
		profile.Description = snap.Description
	}
	if profile.DetectedLanguage == "" {
		profile.DetectedLanguage = snap.Language
		if snap.Language == "" {
			profile.DetectedLanguage = src.Language
		}
	}

	e.fillFromPatterns(&profile, pages, src)

	if (profile.Phone == "" || profile.Email == "") && pages.Contact != nil && e.completer != nil && !errors.Is(aiErr, llm.ErrUnavailable) {
		if err := e.retryContact(ctx, &profile, pages.Contact, src); err != nil && e.logger != nil {
			e.logger.WithError(err).WithField("step", "business").Warn("Contact-only extraction failed")
		}
	}

	profile.Verified = Verified{
		Phone: profile.Phone != "" && src.Contains(profile.Phone),
		Email: profile.Email != "" && src.Contains(profile.Email),
	}
	if profile.ServicesOrProducts == nil {
		profile.ServicesOrProducts = []string{}
	}

	if aiErr != nil {
		return profile, fmt.Errorf("%w: %w", ErrExtraction, aiErr)
	}
	return profile, nil
}

// verify nulls contact fields that do not literally appear in the source.
func (e *Extractor) verify(p *Profile, src Source, source string) {
	if p.Phone != "" {
		if src.Contains(p.Phone) {
			p.PhoneSource = source
		} else {
			e.reject(p, "phone", source)
			p.Phone = ""
		}
	}
	if p.Email != "" {
		if src.Contains(p.Email) {
			p.EmailSource = source
		} else {
			e.reject(p, "email", source)
			p.Email = ""
		}
	}
}

func (e *Extractor) reject(p *Profile, field, source string) {
	p.Rejected = append(p.Rejected, field)
	metrics.VerificationRejections.WithLabelValues(field).Inc()
	if e.logger != nil {
		e.logger.WithFields(logging.Fields{
			"step":   "business",
			"field":  field,
			"source": source,
		}).Info("Discarded extracted value not present in source text")
	}
}

// fillFromPatterns fills missing contact fields from mailto:/tel: links, then
// from pattern matches over the page text.
func (e *Extractor) fillFromPatterns(p *Profile, pages Pages, src Source) {
	var linkEmails, linkPhones, textEmails, textPhones []string
	for _, d := range pages.all() {
		emails, phones := page.ContactLinks(d)
		linkEmails = append(linkEmails, emails...)
		linkPhones = append(linkPhones, phones...)
		text := d.Text()
		textEmails = append(textEmails, page.FindEmails(text)...)
		textPhones = append(textPhones, page.FindPhones(text)...)
	}

	if p.Email == "" {
		if v := PreferredEmail(linkEmails); v != "" && src.Contains(v) {
			p.Email, p.EmailSource = v, SourceLink
		} else if v := PreferredEmail(textEmails); v != "" && src.Contains(v) {
			p.Email, p.EmailSource = v, SourceText
		}
	}
	if p.Phone == "" {
		if v := firstVerified(linkPhones, src); v != "" {
			p.Phone, p.PhoneSource = v, SourceLink
		} else if v := firstVerified(textPhones, src); v != "" {
			p.Phone, p.PhoneSource = v, SourceText
		}
	}
}

func firstVerified(values []string, src Source) string {
	for _, v := range values {
		if src.Contains(v) {
			return v
		}
	}
	return ""
}

var preferredMailboxes = []string{"info@", "contact@", "office@"}

// PreferredEmail picks a generic business mailbox when one is present,
// otherwise the first address.
func PreferredEmail(emails []string) string {
	for _, prefix := range preferredMailboxes {
		for _, e := range emails {
			if strings.HasPrefix(strings.ToLower(e), prefix) {
				return e
			}
		}
	}
	if len(emails) > 0 {
		return emails[0]
	}
	return ""
}
