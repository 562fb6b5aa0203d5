package leads

import (
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/esc-funnel/internal/tenant"
)

// TriState is an unanswered/yes/no qualification answer. The wire values
// match the funnel buttons ("sim" / "nao").
type TriState string

const (
	Unanswered TriState = ""
	Yes        TriState = "sim"
	No         TriState = "nao"
)

// ParseTriState maps a button value to a TriState.
func ParseTriState(v string) (TriState, bool) {
	switch TriState(strings.ToLower(strings.TrimSpace(v))) {
	case Yes:
		return Yes, true
	case No, "não":
		return No, true
	case Unanswered:
		return Unanswered, true
	}
	return Unanswered, false
}

// AttributionKeys are the campaign parameters captured at session start.
var AttributionKeys = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

// DirectReferrer marks sessions opened without a referrer.
const DirectReferrer = "direct"

// Draft is the in-progress lead accumulated across funnel steps.
type Draft struct {
	Name         string `json:"nome"`
	Phone        string `json:"whatsapp_digits"`
	PhoneDisplay string `json:"whatsapp"`
	Region       string `json:"estado"`
	City         string `json:"cidade"`

	HasBusiness   TriState `json:"tem_cnpj"`
	HasStorefront TriState `json:"tem_fachada"`
	CreditAmount  int      `json:"valor_credito"`

	Attribution map[string]string `json:"attribution,omitempty"`
	Referrer    string            `json:"referrer"`
	UserAgent   string            `json:"user_agent,omitempty"`
	CapturedAt  time.Time         `json:"timestamp"`

	Completed bool `json:"completed"`
}

// NewDraft starts an empty draft with attribution captured from the landing URL.
func NewDraft(query url.Values, referrer, userAgent string, now time.Time) Draft {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		referrer = DirectReferrer
	}
	return Draft{
		Attribution: CaptureAttribution(query),
		Referrer:    referrer,
		UserAgent:   userAgent,
		CapturedAt:  now.UTC(),
	}
}

// CaptureAttribution keeps the non-empty campaign parameters from query.
func CaptureAttribution(query url.Values) map[string]string {
	out := map[string]string{}
	for _, key := range AttributionKeys {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			out[key] = v
		}
	}
	return out
}

// AttributionValue returns the captured value for key or "".
func (d Draft) AttributionValue(key string) string {
	if d.Attribution == nil {
		return ""
	}
	return d.Attribution[key]
}

// SessionRecord is the persisted form of a funnel session.
type SessionRecord struct {
	ID        string        `json:"id"`
	Step      int           `json:"step"`
	Rejected  bool          `json:"rejected"`
	Tenant    tenant.Config `json:"tenant"`
	Draft     Draft         `json:"draft"`
	UpdatedAt time.Time     `json:"updated_at"`
}
