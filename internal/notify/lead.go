package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// Lead is what the relay knows about a task it just created.
type Lead struct {
	Client        string
	Name          string
	Phone         string
	Region        string
	City          string
	CreditAmount  int
	HasBusiness   bool
	HasStorefront bool
	Source        string
	TaskID        string
	TaskURL       string
	ReceivedAt    time.Time
}

// TenantLookup returns the tenant registered under slug.
type TenantLookup func(slug string) (tenant.Config, bool)

// LeadNotifier e-mails the tenant that owns a lead. Tenants without a notify
// address fall back to the operator address, and leads with neither are
// skipped.
type LeadNotifier struct {
	email    EmailSender
	tenants  TenantLookup
	fallback string
	logger   *logging.Logger
}

func NewLeadNotifier(email EmailSender, tenants TenantLookup, fallback string, logger *logging.Logger) *LeadNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadNotifier{
		email:    email,
		tenants:  tenants,
		fallback: strings.TrimSpace(fallback),
		logger:   logger,
	}
}

// NotifyLead sends the new-lead e-mail.
func (n *LeadNotifier) NotifyLead(ctx context.Context, lead Lead) error {
	if n.email == nil {
		return nil
	}
	to, name := n.recipient(lead.Client)
	if to == "" {
		n.logger.Debug("no lead notification recipient", "cliente", lead.Client)
		return nil
	}
	msg := EmailMessage{
		To:      to,
		ToName:  name,
		Subject: fmt.Sprintf("Novo lead: %s - %s", lead.Name, leads.FormatBRL(lead.CreditAmount)),
		Body:    textBody(lead),
		HTML:    htmlBody(lead),
	}
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: lead %s: %w", lead.TaskID, err)
	}
	return nil
}

func (n *LeadNotifier) recipient(slug string) (email, name string) {
	if n.tenants != nil && slug != "" {
		if cfg, ok := n.tenants(slug); ok && strings.TrimSpace(cfg.NotifyEmail) != "" {
			return strings.TrimSpace(cfg.NotifyEmail), cfg.DisplayName
		}
	}
	return n.fallback, ""
}

func leadLines(lead Lead) [][2]string {
	location := strings.Trim(lead.City+" - "+lead.Region, " -")
	if location == "" {
		location = "-"
	}
	lines := [][2]string{
		{"Nome", lead.Name},
		{"WhatsApp", lead.Phone},
		{"Localização", location},
		{"Valor do Crédito", leads.FormatBRL(lead.CreditAmount)},
		{"Tem CNPJ", simNao(lead.HasBusiness)},
		{"Tem Fachada", simNao(lead.HasStorefront)},
		{"Origem", lead.Source},
		{"Cliente/Rota", lead.Client},
	}
	if !lead.ReceivedAt.IsZero() {
		lines = append(lines, [2]string{"Recebido em", lead.ReceivedAt.UTC().Format(time.RFC3339)})
	}
	return lines
}

func textBody(lead Lead) string {
	var b strings.Builder
	b.WriteString("Um novo lead chegou pelo funil.\n\n")
	for _, l := range leadLines(lead) {
		b.WriteString(l[0] + ": " + l[1] + "\n")
	}
	if lead.TaskURL != "" {
		b.WriteString("\nTask: " + lead.TaskURL + "\n")
	}
	return b.String()
}

func htmlBody(lead Lead) string {
	var b strings.Builder
	b.WriteString("<p>Um novo lead chegou pelo funil.</p><ul>")
	for _, l := range leadLines(lead) {
		b.WriteString("<li><strong>" + html.EscapeString(l[0]) + ":</strong> " + html.EscapeString(l[1]) + "</li>")
	}
	b.WriteString("</ul>")
	if lead.TaskURL != "" {
		u := html.EscapeString(lead.TaskURL)
		b.WriteString(`<p><a href="` + u + `">Abrir task no ClickUp</a></p>`)
	}
	return b.String()
}

func simNao(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}
