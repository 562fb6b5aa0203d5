package funnel

import (
	"net/url"
	"strings"

	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/tenant"
)

// View is the client-facing snapshot of a session.
type View struct {
	SessionID    string         `json:"session_id"`
	Variant      string         `json:"variant"`
	Step         int            `json:"step"`
	TotalSteps   int            `json:"total_steps"`
	Progress     int            `json:"progress"`
	Title        string         `json:"title"`
	Kind         StepKind       `json:"kind"`
	Options      []Option       `json:"options,omitempty"`
	CreditTiers  []int          `json:"credit_tiers,omitempty"`
	Contact      *ContactLayout `json:"contact,omitempty"`
	Rejected     bool           `json:"rejected"`
	Completed    bool           `json:"completed"`
	Tenant       TenantView     `json:"tenant"`
	Draft        DraftView      `json:"draft"`
	Confirmation *Confirmation  `json:"confirmation,omitempty"`
}

// ContactLayout tells the page which contact inputs to render.
type ContactLayout struct {
	ConfirmPhone bool     `json:"confirm_phone"`
	Location     Location `json:"location"`
}

// TenantView is the display-safe part of the tenant config. Destination
// credentials are never included.
type TenantView struct {
	Slug         string          `json:"slug,omitempty"`
	DisplayName  string          `json:"display_name"`
	Branding     tenant.Branding `json:"branding"`
	PixelID      string          `json:"pixel_id,omitempty"`
	TagManagerID string          `json:"gtm_id,omitempty"`
}

// DraftView echoes what the lead has entered so far.
type DraftView struct {
	Name          string `json:"nome,omitempty"`
	PhoneDisplay  string `json:"whatsapp,omitempty"`
	Region        string `json:"estado,omitempty"`
	City          string `json:"cidade,omitempty"`
	HasBusiness   string `json:"tem_cnpj,omitempty"`
	HasStorefront string `json:"tem_fachada,omitempty"`
	CreditAmount  int    `json:"valor_credito,omitempty"`
}

// Confirmation is shown on the final step.
type Confirmation struct {
	CreditDisplay string `json:"valor"`
	WhatsAppURL   string `json:"whatsapp_url,omitempty"`
}

// WhatsApp configures the confirmation page's chat link.
type WhatsApp struct {
	Number  string
	Message string
}

// DefaultWhatsAppMessage opens the confirmation chat.
const DefaultWhatsAppMessage = "Olá! Acabei de solicitar uma simulação de crédito no site."

// Link builds the wa.me URL for a completed draft, or "" without a number.
func (w WhatsApp) Link(d leads.Draft) string {
	number := strings.TrimSpace(w.Number)
	if number == "" {
		return ""
	}
	msg := w.Message
	if msg == "" {
		msg = DefaultWhatsAppMessage
	}
	text := msg + "\n\nNome: " + d.Name +
		"\nValor: " + leads.FormatBRL(d.CreditAmount) +
		"\nCidade: " + d.City + " - " + d.Region
	return "https://wa.me/" + number + "?text=" + url.QueryEscape(text)
}

func newView(m *Machine, wa WhatsApp) *View {
	st := m.State()
	v := m.Variant()
	step := m.CurrentStep()
	view := &View{
		SessionID:  st.SessionID,
		Variant:    v.Name,
		Step:       st.Step,
		TotalSteps: v.Len(),
		Progress:   st.Step * 100 / v.Len(),
		Title:      step.Title,
		Kind:       step.Kind,
		Rejected:   st.Rejected,
		Completed:  st.Draft.Completed,
		Tenant: TenantView{
			Slug:         st.Tenant.Slug,
			DisplayName:  st.Tenant.DisplayName,
			Branding:     st.Tenant.Branding,
			PixelID:      st.Tenant.AnalyticsPixelID,
			TagManagerID: st.Tenant.TagManagerID,
		},
		Draft: DraftView{
			Name:          st.Draft.Name,
			PhoneDisplay:  st.Draft.PhoneDisplay,
			Region:        st.Draft.Region,
			City:          st.Draft.City,
			HasBusiness:   string(st.Draft.HasBusiness),
			HasStorefront: string(st.Draft.HasStorefront),
			CreditAmount:  st.Draft.CreditAmount,
		},
	}
	if st.Rejected {
		view.Kind = KindRejected
		view.Title = RejectedTitle
		return view
	}
	switch step.Kind {
	case KindChoice:
		view.Options = step.Options
	case KindCredit:
		view.CreditTiers = v.CreditTiers
	case KindContact:
		view.Contact = &ContactLayout{ConfirmPhone: v.ConfirmPhone, Location: v.Location}
	case KindConfirmation:
		view.Confirmation = &Confirmation{
			CreditDisplay: leads.FormatBRL(st.Draft.CreditAmount),
			WhatsAppURL:   wa.Link(st.Draft),
		}
	}
	return view
}
