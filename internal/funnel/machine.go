// Package funnel runs the lead qualification funnel: a numbered sequence of
// steps with an absorbing rejection state, gated by contact validation and
// ending in a submission to the lead sink.
package funnel

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/wolfman30/esc-funnel/internal/analytics"
	"github.com/wolfman30/esc-funnel/internal/geo"
	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/internal/validation"
)

// State is everything a session carries between requests.
type State struct {
	SessionID string
	Step      int
	Rejected  bool
	Tenant    tenant.Config
	Draft     leads.Draft
}

// Contact is the contact-step form.
type Contact struct {
	Name         string `json:"nome"`
	Phone        string `json:"whatsapp"`
	PhoneConfirm string `json:"whatsapp_confirm"`
	Region       string `json:"estado"`
	City         string `json:"cidade"`
}

// Submitter forwards a finished draft to the lead sink.
type Submitter interface {
	Submit(ctx context.Context, draft leads.Draft, cfg tenant.Config) error
}

type transitionObserver interface {
	ObserveTransition(variant, from, to string)
}

// Machine drives one session's state. It is not safe for concurrent use.
type Machine struct {
	variant   Variant
	state     State
	submitter Submitter
	notifier  analytics.Notifier
	metrics   transitionObserver
}

// NewMachine wraps state. A zero Step starts at step 1.
func NewMachine(variant Variant, state State, submitter Submitter, notifier analytics.Notifier) *Machine {
	if notifier == nil {
		notifier = analytics.NopNotifier{}
	}
	if state.Step == 0 {
		state.Step = 1
	}
	return &Machine{variant: variant, state: state, submitter: submitter, notifier: notifier}
}

// WithMetrics records step transitions.
func (m *Machine) WithMetrics(obs transitionObserver) *Machine {
	m.metrics = obs
	return m
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state
}

// Variant returns the layout the machine runs.
func (m *Machine) Variant() Variant {
	return m.variant
}

// Closed reports whether the session reached an absorbing state.
func (m *Machine) Closed() bool {
	return m.state.Rejected || m.state.Step == m.variant.ConfirmationStep()
}

// CurrentStep returns the definition of the current step.
func (m *Machine) CurrentStep() Step {
	s, _ := m.variant.Step(m.state.Step)
	return s
}

// Furthest is the highest step the lead may navigate to: every step before it
// has been answered. Confirmation is never reachable by navigation.
func (m *Machine) Furthest() int {
	d := m.state.Draft
	for i, s := range m.variant.Steps {
		n := i + 1
		switch s.Kind {
		case KindChoice:
			opt, ok := s.option(string(answerOf(d, s.Answer)))
			if !ok || opt.Reject {
				return n
			}
		case KindCredit:
			if !m.variant.TierAllowed(d.CreditAmount) {
				return n
			}
		default:
			return n
		}
	}
	return m.variant.Len()
}

// Start emits the session-start events.
func (m *Machine) Start(ctx context.Context) {
	m.emit(ctx, analytics.EventFunnelStart, map[string]string{"page": strconv.Itoa(m.state.Step)})
}

// GoTo moves to step. Out-of-range targets, the confirmation step and steps
// past Furthest are ignored.
func (m *Machine) GoTo(ctx context.Context, step int) error {
	if m.Closed() {
		return ErrSessionClosed
	}
	if step < 1 || step >= m.variant.ConfirmationStep() || step > m.Furthest() {
		return nil
	}
	m.moveTo(ctx, step)
	return nil
}

// SelectOption answers the current choice step.
func (m *Machine) SelectOption(ctx context.Context, value string) error {
	if m.Closed() {
		return ErrSessionClosed
	}
	step := m.CurrentStep()
	if step.Kind != KindChoice {
		return ErrWrongStep
	}
	opt, ok := step.option(strings.TrimSpace(value))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, value)
	}
	setAnswer(&m.state.Draft, step.Answer, leads.TriState(opt.Value))

	if opt.Reject {
		from := m.state.Step
		m.state.Rejected = true
		m.observe(from, "rejected")
		m.emit(ctx, analytics.EventLeadRejected, map[string]string{"reason": rejectReason(step.Answer)})
		return nil
	}
	m.emit(ctx, analytics.EventOptionSelected, map[string]string{
		"page":  strconv.Itoa(m.state.Step),
		"value": opt.Value,
	})
	m.moveTo(ctx, opt.Next)
	return nil
}

// SelectCredit picks a credit tier on the credit step and advances.
func (m *Machine) SelectCredit(ctx context.Context, amount int) error {
	if m.Closed() {
		return ErrSessionClosed
	}
	if m.CurrentStep().Kind != KindCredit {
		return ErrWrongStep
	}
	if !m.variant.TierAllowed(amount) {
		return fmt.Errorf("%w: credit amount %d", ErrUnknownOption, amount)
	}
	m.state.Draft.CreditAmount = amount
	m.emit(ctx, analytics.EventValueSelected, map[string]string{"value": strconv.Itoa(amount)})
	m.moveTo(ctx, m.state.Step+1)
	return nil
}

// Validate checks contact against the variant's required fields under the
// session tenant's restrictions.
func (m *Machine) Validate(contact Contact) validation.Report {
	values := map[validation.FieldID]string{
		validation.FieldName:         contact.Name,
		validation.FieldPhone:        contact.Phone,
		validation.FieldPhoneConfirm: contact.PhoneConfirm,
		validation.FieldRegion:       contact.Region,
		validation.FieldCity:         contact.City,
		validation.FieldCityText:     contact.City,
	}
	return validation.ValidateAll(m.variant.ContactFields(), values, m.Related(contact.Phone, strings.TrimSpace(contact.Region)))
}

// Related builds the cross-field context for the session tenant.
func (m *Machine) Related(primaryPhone, region string) validation.Related {
	return RelatedFor(m.state.Tenant, primaryPhone, region)
}

// RelatedFor builds validation context for cfg. Unrestricted tenants accept
// any known UF.
func RelatedFor(cfg tenant.Config, primaryPhone, region string) validation.Related {
	related := validation.Related{PrimaryPhone: primaryPhone}
	if cfg.Unrestricted() {
		for _, r := range geo.Regions() {
			related.AllowedRegions = append(related.AllowedRegions, r.Code)
		}
	} else {
		related.AllowedRegions = slices.Clone(cfg.AllowedRegions)
	}
	if cities, lookup := cfg.CitiesFor(region); !lookup {
		related.AllowedCities = cities
	}
	return related
}

// Submit validates contact and hands the draft to the submitter. On
// validation failure it returns *ValidationError and nothing changes. On sink
// failure the session stays on the contact step.
func (m *Machine) Submit(ctx context.Context, contact Contact) error {
	if m.Closed() {
		return ErrSessionClosed
	}
	if m.CurrentStep().Kind != KindContact {
		return ErrWrongStep
	}
	report := m.Validate(contact)
	if !report.Valid() {
		return &ValidationError{Field: report.FirstFailed, Message: report.Message(), Results: report.Results}
	}

	draft := &m.state.Draft
	draft.Name = strings.TrimSpace(contact.Name)
	draft.Phone = validation.Digits(contact.Phone)
	draft.PhoneDisplay = validation.MaskPhone(contact.Phone)
	if m.variant.Location != LocationNone {
		draft.Region = strings.TrimSpace(contact.Region)
		draft.City = strings.TrimSpace(contact.City)
	}

	if m.submitter == nil {
		m.emit(ctx, analytics.EventSubmissionError, nil)
		return fmt.Errorf("%w: no submitter configured", ErrSubmissionFailed)
	}
	if err := m.submitter.Submit(ctx, *draft, m.state.Tenant); err != nil {
		m.emit(ctx, analytics.EventSubmissionError, nil)
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	draft.Completed = true
	m.moveTo(ctx, m.variant.ConfirmationStep())
	m.emit(ctx, analytics.EventLeadConverted, map[string]string{
		"valor_credito": strconv.Itoa(draft.CreditAmount),
		"estado":        draft.Region,
		"cidade":        draft.City,
	})
	return nil
}

func (m *Machine) moveTo(ctx context.Context, step int) {
	from := m.state.Step
	m.state.Step = step
	m.observe(from, strconv.Itoa(step))
	m.emit(ctx, analytics.EventPageView, map[string]string{"page": strconv.Itoa(step)})
}

func (m *Machine) observe(from int, to string) {
	if m.metrics != nil {
		m.metrics.ObserveTransition(m.variant.Name, strconv.Itoa(from), to)
	}
}

func (m *Machine) emit(ctx context.Context, name string, params map[string]string) {
	m.notifier.Notify(ctx, analytics.Event{
		Name:      name,
		SessionID: m.state.SessionID,
		Tenant:    m.state.Tenant.Slug,
		Params:    params,
	})
}

func answerOf(d leads.Draft, a Answer) leads.TriState {
	switch a {
	case AnswerBusiness:
		return d.HasBusiness
	case AnswerStorefront:
		return d.HasStorefront
	}
	return leads.Unanswered
}

func setAnswer(d *leads.Draft, a Answer, v leads.TriState) {
	switch a {
	case AnswerBusiness:
		d.HasBusiness = v
	case AnswerStorefront:
		d.HasStorefront = v
	}
}

func rejectReason(a Answer) string {
	if a == AnswerBusiness {
		return "no_cnpj"
	}
	return "not_qualified"
}
