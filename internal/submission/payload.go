package submission

import (
	"strconv"

	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/tenant"
)

// DefaultClient is the cliente value sent for the default tenant.
const DefaultClient = "default"

// Payload is the flat JSON body the relay accepts.
type Payload struct {
	Name          string `json:"nome"`
	Phone         string `json:"whatsapp"`
	Region        string `json:"estado"`
	City          string `json:"cidade"`
	HasBusiness   string `json:"tem_cnpj"`
	HasStorefront string `json:"tem_fachada"`
	CreditAmount  string `json:"valor_credito"`
	UTMSource     string `json:"utm_source"`
	UTMMedium     string `json:"utm_medium"`
	UTMCampaign   string `json:"utm_campaign"`
	Referrer      string `json:"referrer"`
	Client        string `json:"cliente"`
	ListID        string `json:"clickup_list_id,omitempty"`
	Token         string `json:"clickup_token,omitempty"`
}

// BuildPayload flattens a draft for the relay. Which destination fields are
// included depends on mode.
func BuildPayload(draft leads.Draft, cfg tenant.Config, mode tenant.DestinationMode) Payload {
	client := cfg.Slug
	if client == "" {
		client = DefaultClient
	}
	phone := draft.PhoneDisplay
	if phone == "" {
		phone = draft.Phone
	}
	referrer := draft.Referrer
	if referrer == "" {
		referrer = leads.DirectReferrer
	}
	p := Payload{
		Name:          draft.Name,
		Phone:         phone,
		Region:        draft.Region,
		City:          draft.City,
		HasBusiness:   string(draft.HasBusiness),
		HasStorefront: string(draft.HasStorefront),
		CreditAmount:  strconv.Itoa(draft.CreditAmount),
		UTMSource:     draft.AttributionValue("utm_source"),
		UTMMedium:     draft.AttributionValue("utm_medium"),
		UTMCampaign:   draft.AttributionValue("utm_campaign"),
		Referrer:      referrer,
		Client:        client,
	}
	switch mode {
	case tenant.ModeAllowlist:
		p.ListID = cfg.Destination.ListID
	case tenant.ModePassthrough:
		p.ListID = cfg.Destination.ListID
		p.Token = cfg.Destination.Credential
	}
	return p
}
