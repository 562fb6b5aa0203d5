// Package validation holds the pure per-field rules applied to lead contact data.
package validation

import (
	"strings"
	"unicode"
)

// FieldID is the closed set of validated lead fields.
type FieldID string

const (
	FieldName         FieldID = "nome"
	FieldPhone        FieldID = "whatsapp"
	FieldPhoneConfirm FieldID = "whatsappConfirm"
	FieldRegion       FieldID = "estado"
	FieldCity         FieldID = "cidade"
	// FieldCityText is the free-text city input used by the simple variant.
	FieldCityText FieldID = "cidadeTexto"
)

// Result is the outcome of validating one field value.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

func ok() Result { return Result{Valid: true} }

func fail(msg string) Result { return Result{Message: msg} }

// Related carries cross-field context for rules that need it.
type Related struct {
	// PrimaryPhone is the first phone entry, used by FieldPhoneConfirm.
	PrimaryPhone string
	// AllowedRegions restricts FieldRegion; nil means unrestricted.
	AllowedRegions []string
	// AllowedCities restricts FieldCity; nil means any non-empty city.
	AllowedCities []string
}

// Validator validates one field.
type Validator func(value string, related Related) Result

var validators = map[FieldID]Validator{
	FieldName:         validateName,
	FieldPhone:        validatePhone,
	FieldPhoneConfirm: validatePhoneConfirm,
	FieldRegion:       validateRegion,
	FieldCity:         validateCity,
	FieldCityText:     validateCityText,
}

// Known reports whether field has a validator.
func Known(field FieldID) bool {
	_, ok := validators[field]
	return ok
}

// Validate applies the rule for field to value. Values are trimmed first.
// Unknown fields are reported invalid.
func Validate(field FieldID, value string, related Related) Result {
	v, found := validators[field]
	if !found {
		return fail("Campo desconhecido")
	}
	return v(strings.TrimSpace(value), related)
}

// Report is the outcome of validating a whole field set.
type Report struct {
	Results     map[FieldID]Result
	FirstFailed FieldID
}

// Valid reports whether every field passed.
func (r Report) Valid() bool {
	return r.FirstFailed == ""
}

// Message returns the first failing field's message.
func (r Report) Message() string {
	if r.FirstFailed == "" {
		return ""
	}
	return r.Results[r.FirstFailed].Message
}

// ValidateAll validates fields in order. Every field is evaluated so callers can
// reflect all results; FirstFailed names the earliest failure.
func ValidateAll(fields []FieldID, values map[FieldID]string, related Related) Report {
	report := Report{Results: make(map[FieldID]Result, len(fields))}
	for _, field := range fields {
		res := Validate(field, values[field], related)
		report.Results[field] = res
		if !res.Valid && report.FirstFailed == "" {
			report.FirstFailed = field
		}
	}
	return report
}

func validateName(value string, _ Related) Result {
	switch {
	case value == "":
		return fail("Por favor, informe seu nome")
	case len([]rune(value)) < 3:
		return fail("Nome muito curto")
	case !onlyLetters(value):
		return fail("Nome deve conter apenas letras")
	case len(strings.Split(value, " ")) < 2:
		return fail("Por favor, informe nome e sobrenome")
	}
	return ok()
}

// onlyLetters accepts ASCII letters, the Latin-1 range À..ÿ and whitespace.
func onlyLetters(value string) bool {
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= 0x00C0 && r <= 0x00FF:
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return true
}

func validateRegion(value string, related Related) Result {
	if value == "" {
		return fail("Por favor, selecione o estado")
	}
	if related.AllowedRegions != nil && !contains(related.AllowedRegions, value) {
		return fail("Estado não atendido")
	}
	return ok()
}

func validateCity(value string, related Related) Result {
	if value == "" {
		return fail("Por favor, selecione a cidade")
	}
	if related.AllowedCities != nil && !contains(related.AllowedCities, value) {
		return fail("Cidade não atendida")
	}
	return ok()
}

func validateCityText(value string, _ Related) Result {
	if value == "" {
		return fail("Por favor, informe sua cidade")
	}
	if len([]rune(value)) < 3 {
		return fail("Nome da cidade muito curto")
	}
	return ok()
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
