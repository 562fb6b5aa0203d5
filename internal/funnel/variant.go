package funnel

import (
	"fmt"
	"slices"

	"github.com/wolfman30/esc-funnel/internal/leads"
	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/internal/validation"
)

// StepKind is what a step asks of the lead.
type StepKind string

const (
	KindChoice       StepKind = "choice"
	KindCredit       StepKind = "credit"
	KindContact      StepKind = "contact"
	KindConfirmation StepKind = "confirmation"
	// KindRejected is reported for disqualified sessions; it is not a step.
	KindRejected     StepKind = "rejected"
)

// RejectedTitle is shown when the lead is disqualified.
const RejectedTitle = "Não qualificado"

// Answer names the draft field a choice step fills.
type Answer string

const (
	AnswerBusiness   Answer = "tem_cnpj"
	AnswerStorefront Answer = "tem_fachada"
)

// Option is one button on a choice step. Next is ignored when Reject is set.
type Option struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	Next   int    `json:"next,omitempty"`
	Reject bool   `json:"reject,omitempty"`
}

// Step is one page of the funnel. Steps are numbered from 1.
type Step struct {
	Title   string   `json:"title"`
	Kind    StepKind `json:"kind"`
	Answer  Answer   `json:"answer,omitempty"`
	Options []Option `json:"options,omitempty"`
}

// Location controls which location inputs the contact step shows.
type Location string

const (
	LocationSelect Location = "select"
	LocationText   Location = "text"
	LocationNone   Location = "none"
)

// Variant is a funnel layout: its steps and which contact inputs it requires.
type Variant struct {
	Name         string
	Steps        []Step
	CreditTiers  []int
	ConfirmPhone bool
	Location     Location
}

// Variant names.
const (
	VariantCanonical   = "canonical"
	VariantSimple      = "simple"
	VariantContactOnly = "contact-only"
)

// DefaultCreditTiers are the selectable credit amounts, in whole reais.
var DefaultCreditTiers = []int{1000, 2000, 3000, 5000, 10000, 20000}

var qualificationSteps = []Step{
	{
		Title:  "Sobre seu negócio",
		Kind:   KindChoice,
		Answer: AnswerBusiness,
		Options: []Option{
			{Value: string(leads.Yes), Label: "Sim, tenho CNPJ", Next: 2},
			{Value: string(leads.No), Label: "Não tenho CNPJ", Reject: true},
		},
	},
	{
		Title:  "Qualificação",
		Kind:   KindChoice,
		Answer: AnswerStorefront,
		Options: []Option{
			{Value: string(leads.Yes), Label: "Sim, tenho fachada", Next: 3},
			{Value: string(leads.No), Label: "Não tenho fachada", Next: 3},
		},
	},
	{Title: "Valor do crédito", Kind: KindCredit},
	{Title: "Seus dados", Kind: KindContact},
	{Title: "Confirmação", Kind: KindConfirmation},
}

var variants = map[string]Variant{
	VariantCanonical: {
		Name:         VariantCanonical,
		Steps:        qualificationSteps,
		CreditTiers:  DefaultCreditTiers,
		ConfirmPhone: true,
		Location:     LocationSelect,
	},
	VariantSimple: {
		Name:        VariantSimple,
		Steps:       qualificationSteps,
		CreditTiers: DefaultCreditTiers,
		Location:    LocationText,
	},
	VariantContactOnly: {
		Name: VariantContactOnly,
		Steps: []Step{
			{Title: "Seus dados", Kind: KindContact},
			{Title: "Confirmação", Kind: KindConfirmation},
		},
		Location: LocationNone,
	},
}

// VariantByName returns a registered variant. An empty name is canonical.
func VariantByName(name string) (Variant, bool) {
	if name == "" {
		name = VariantCanonical
	}
	v, ok := variants[name]
	return v, ok
}

// CheckVariants reports the first tenant that names an unregistered variant.
func CheckVariants(cfgs ...tenant.Config) error {
	for _, cfg := range cfgs {
		if _, ok := VariantByName(cfg.Variant); !ok {
			return fmt.Errorf("%w: %q for tenant %q", ErrUnknownVariant, cfg.Variant, cfg.Slug)
		}
	}
	return nil
}

// Len is the number of numbered steps.
func (v Variant) Len() int {
	return len(v.Steps)
}

// Step returns step n (1-based).
func (v Variant) Step(n int) (Step, bool) {
	if n < 1 || n > len(v.Steps) {
		return Step{}, false
	}
	return v.Steps[n-1], true
}

// ConfirmationStep is the final, absorbing step number.
func (v Variant) ConfirmationStep() int {
	return len(v.Steps)
}

// TierAllowed reports whether amount is a selectable tier.
func (v Variant) TierAllowed(amount int) bool {
	return slices.Contains(v.CreditTiers, amount)
}

// ContactFields lists the inputs validated on the contact step, in display
// order.
func (v Variant) ContactFields() []validation.FieldID {
	fields := []validation.FieldID{validation.FieldName, validation.FieldPhone}
	if v.ConfirmPhone {
		fields = append(fields, validation.FieldPhoneConfirm)
	}
	switch v.Location {
	case LocationSelect:
		fields = append(fields, validation.FieldRegion, validation.FieldCity)
	case LocationText:
		fields = append(fields, validation.FieldRegion, validation.FieldCityText)
	}
	return fields
}

func (s Step) option(value string) (Option, bool) {
	for _, o := range s.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}
