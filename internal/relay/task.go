package relay

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/wolfman30/esc-funnel/internal/clickup"
	"github.com/wolfman30/esc-funnel/internal/leads"
)

// Credit tier bounds, inclusive.
const (
	lowCreditMax    = 2000
	mediumCreditMax = 5000
)

var saoPaulo = loadLocation("America/Sao_Paulo", -3)

func loadLocation(name string, offsetHours int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offsetHours*60*60)
	}
	return loc
}

// BuildTask renders the ClickUp task for a lead.
func BuildTask(req Request, now time.Time) clickup.TaskRequest {
	valor := leads.FormatBRL(int(req.CreditAmount))
	return clickup.TaskRequest{
		Name:        "Lead: " + strings.TrimSpace(req.Name) + " - " + valor,
		Description: describe(req, valor, now),
		Tags:        Tags(req),
		Priority:    clickup.PriorityNormal,
		NotifyAll:   true,
	}
}

// Tags classifies a lead for list filtering.
func Tags(req Request) []string {
	var tags []string
	if isYes(req.HasBusiness) {
		tags = append(tags, "tem-cnpj")
	}
	if isYes(req.HasStorefront) {
		tags = append(tags, "tem-fachada")
	}
	if src := tagSlug(req.UTMSource); src != "" {
		tags = append(tags, "utm-"+src)
	}
	return append(tags, creditTag(int(req.CreditAmount)))
}

func creditTag(amount int) string {
	switch {
	case amount <= lowCreditMax:
		return "valor-baixo"
	case amount <= mediumCreditMax:
		return "valor-medio"
	default:
		return "valor-alto"
	}
}

func describe(req Request, valor string, now time.Time) string {
	var b strings.Builder
	b.WriteString("## Dados do Lead\n\n")
	b.WriteString("**Nome:** " + strings.TrimSpace(req.Name) + "\n")
	b.WriteString("**WhatsApp:** " + strings.TrimSpace(req.Phone) + "\n")
	b.WriteString("**Localização:** " + orDash(req.City) + " - " + orDash(req.Region) + "\n\n")
	b.WriteString("---\n\n## Solicitação\n\n")
	b.WriteString("**Valor do Crédito:** " + valor + "\n")
	b.WriteString("**Tem CNPJ:** " + yesNo(req.HasBusiness) + "\n")
	b.WriteString("**Tem Fachada:** " + yesNo(req.HasStorefront) + "\n\n")
	b.WriteString("---\n\n## Rastreamento\n\n")
	b.WriteString("**Cliente/Rota:** " + req.client() + "\n")
	b.WriteString("**Origem:** " + origin(req) + "\n")
	b.WriteString("**Mídia:** " + orDash(req.UTMMedium) + "\n")
	b.WriteString("**Campanha:** " + orDash(req.UTMCampaign) + "\n")
	b.WriteString("**Data/Hora:** " + now.In(saoPaulo).Format("02/01/2006 15:04:05"))
	return b.String()
}

func origin(req Request) string {
	for _, v := range []string{req.UTMSource, req.Referrer} {
		if v = strings.TrimSpace(v); v != "" && v != leads.DirectReferrer {
			return v
		}
	}
	return "Acesso direto"
}

func isYes(v string) bool {
	t, _ := leads.ParseTriState(v)
	return t == leads.Yes
}

func yesNo(v string) string {
	if isYes(v) {
		return "Sim"
	}
	return "Não"
}

func orDash(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return "-"
}

// tagSlug lowercases v and keeps letters, digits and dashes.
func tagSlug(v string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(v)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '.':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
