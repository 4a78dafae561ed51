package business

import (
	"context"
	"fmt"
	"strings"

	"frameworks/api_lookout/internal/metrics"
	"frameworks/api_lookout/internal/page"
	"frameworks/pkg/llm"
)

var profileSchema = llm.Schema{
	Name:    "business_profile",
	Version: "v1",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"businessName":     str(),
			"description":      str(),
			"category":         str(),
			"detectedLanguage": str(),
			"address":          nullableStr(),
			"phone":            nullableStr(),
			"email":            nullableStr(),
			"servicesOrProducts": map[string]interface{}{
				"type":     "array",
				"items":    str(),
				"maxItems": maxServices,
			},
			"targetAudience": nullableStr(),
		},
		"required": []string{"businessName", "description", "category", "detectedLanguage"},
	},
}

var contactSchema = llm.Schema{
	Name:    "business_contact",
	Version: "v1",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"phone":   nullableStr(),
			"email":   nullableStr(),
			"address": nullableStr(),
		},
	},
}

func str() map[string]interface{} { return map[string]interface{}{"type": "string"} }

func nullableStr() map[string]interface{} {
	return map[string]interface{}{"type": []string{"string", "null"}}
}

type profileAnswer struct {
	BusinessName       string   `json:"businessName"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	DetectedLanguage   string   `json:"detectedLanguage"`
	Address            *string  `json:"address"`
	Phone              *string  `json:"phone"`
	Email              *string  `json:"email"`
	ServicesOrProducts []string `json:"servicesOrProducts"`
	TargetAudience     *string  `json:"targetAudience"`
}

func (a profileAnswer) toProfile() Profile {
	services := make([]string, 0, maxServices)
	for _, s := range a.ServicesOrProducts {
		if s = strings.TrimSpace(s); s != "" && len(services) < maxServices {
			services = append(services, s)
		}
	}
	return Profile{
		BusinessName:       strings.TrimSpace(a.BusinessName),
		Description:        strings.TrimSpace(a.Description),
		Category:           strings.TrimSpace(a.Category),
		DetectedLanguage:   strings.TrimSpace(a.DetectedLanguage),
		Address:            deref(a.Address),
		Phone:              deref(a.Phone),
		Email:              deref(a.Email),
		ServicesOrProducts: services,
		TargetAudience:     deref(a.TargetAudience),
	}
}

type contactAnswer struct {
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") || strings.EqualFold(v, "n/a") {
		return ""
	}
	return v
}

const profileInstruction = `You extract a business profile from the text of a company website.
Only report phone numbers and email addresses exactly as they are written in the text; if none is written, return null.
Never guess contact details. Respond in %s.`

const contactInstruction = `You extract contact details from the text of a contact page.
Copy phone numbers and email addresses exactly as written. Return null for anything not present.`

func (e *Extractor) extractWithAI(ctx context.Context, src Source) (profileAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	if src.Text == "" {
		return profileAnswer{}, fmt.Errorf("%w: no page text", llm.ErrInvalidResponse)
	}
	temp := 0.1
	payload, err := e.completer.CompleteStructured(ctx, llm.StructuredRequest{
		SystemInstruction: fmt.Sprintf(profileInstruction, page.LanguageName(src.Language)),
		Prompt:            "Website text:\n\n" + src.Text,
		Schema:            profileSchema,
		Temperature:       &temp,
	})
	metrics.AICall(profileSchema.ID(), err)
	if err != nil {
		return profileAnswer{}, err
	}
	answer, err := llm.DecodeStructured[profileAnswer](payload)
	if err != nil {
		return profileAnswer{}, err
	}
	if strings.TrimSpace(answer.BusinessName) == "" && strings.TrimSpace(answer.Description) == "" {
		return profileAnswer{}, fmt.Errorf("%w: empty profile", llm.ErrInvalidResponse)
	}
	return answer, nil
}

// retryContact asks for contact details from the contact page alone and runs
// the answer through the same verification gate.
func (e *Extractor) retryContact(ctx context.Context, p *Profile, contact *page.Document, src Source) error {
	text := page.Truncate(contact.Text(), ContactTextCap)
	if text == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()

	temp := 0.0
	payload, err := e.completer.CompleteStructured(ctx, llm.StructuredRequest{
		SystemInstruction: contactInstruction,
		Prompt:            "Contact page text:\n\n" + text,
		Schema:            contactSchema,
		Temperature:       &temp,
	})
	metrics.AICall(contactSchema.ID(), err)
	if err != nil {
		return err
	}
	answer, err := llm.DecodeStructured[contactAnswer](payload)
	if err != nil {
		return err
	}

	found := Profile{Phone: deref(answer.Phone), Email: deref(answer.Email)}
	e.verify(&found, src, SourceContactAI)
	if p.Phone == "" && found.Phone != "" {
		p.Phone, p.PhoneSource = found.Phone, found.PhoneSource
	}
	if p.Email == "" && found.Email != "" {
		p.Email, p.EmailSource = found.Email, found.EmailSource
	}
	if p.Address == "" {
		p.Address = deref(answer.Address)
	}
	p.Rejected = append(p.Rejected, found.Rejected...)
	return nil
}
