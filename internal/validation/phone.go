package validation

import (
	"fmt"
	"strings"
)

const (
	// PhoneDigits is DDD (2) + subscriber number (9).
	PhoneDigits = 11

	ascendingRun  = "0123456789"
	descendingRun = "9876543210"
)

// areaCodes lists every assigned Brazilian DDD.
var areaCodes = map[string]struct{}{}

func init() {
	for _, code := range []string{
		"11", "12", "13", "14", "15", "16", "17", "18", "19",
		"21", "22", "24", "27", "28",
		"31", "32", "33", "34", "35", "37", "38",
		"41", "42", "43", "44", "45", "46", "47", "48", "49",
		"51", "53", "54", "55",
		"61", "62", "63", "64", "65", "66", "67", "68", "69",
		"71", "73", "74", "75", "77", "79",
		"81", "82", "83", "84", "85", "86", "87", "88", "89",
		"91", "92", "93", "94", "95", "96", "97", "98", "99",
	} {
		areaCodes[code] = struct{}{}
	}
}

// ValidAreaCode reports whether ddd is an assigned area code.
func ValidAreaCode(ddd string) bool {
	_, ok := areaCodes[ddd]
	return ok
}

// Digits strips every non-digit character.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPhone formats up to 11 digits as "(XX) XXXXX-XXXX", progressively for
// partial input, and "(XX) XXXX-XXXX" for ten-digit landlines.
func MaskPhone(raw string) string {
	d := Digits(raw)
	if len(d) > PhoneDigits {
		d = d[:PhoneDigits]
	}
	switch {
	case len(d) == 0:
		return ""
	case len(d) <= 2:
		return "(" + d
	case len(d) <= 6:
		return fmt.Sprintf("(%s) %s", d[:2], d[2:])
	case len(d) <= 10:
		return fmt.Sprintf("(%s) %s-%s", d[:2], d[2:6], d[6:])
	default:
		return fmt.Sprintf("(%s) %s-%s", d[:2], d[2:7], d[7:])
	}
}

func validatePhone(value string, _ Related) Result {
	if value == "" {
		return fail("Por favor, informe seu WhatsApp")
	}
	digits := Digits(value)
	switch {
	case len(digits) < PhoneDigits:
		return fail("Número incompleto - deve ter DDD + 9 dígitos")
	case len(digits) > PhoneDigits:
		return fail("Número com dígitos a mais")
	}

	ddd, subscriber := digits[:2], digits[2:]
	switch {
	case !ValidAreaCode(ddd):
		return fail(fmt.Sprintf("DDD (%s) inválido - verifique o código de área", ddd))
	case repeatedDigit(subscriber):
		return fail("Número inválido - dígitos não podem ser todos iguais")
	case strings.Contains(ascendingRun, subscriber) || strings.Contains(descendingRun, subscriber):
		return fail("Número inválido - não pode ser sequência")
	}
	return ok()
}

func validatePhoneConfirm(value string, related Related) Result {
	if value == "" {
		return fail("Por favor, confirme seu WhatsApp")
	}
	digits := Digits(value)
	switch {
	case len(digits) < PhoneDigits:
		return fail("Número incompleto")
	case len(digits) > PhoneDigits:
		return fail("Número com dígitos a mais")
	}
	primary := Digits(related.PrimaryPhone)
	if len(primary) >= PhoneDigits && digits != primary {
		return fail("Os números não coincidem")
	}
	return ok()
}

func repeatedDigit(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
