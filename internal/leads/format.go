package leads

import (
	"strconv"
	"strings"
)

// FormatBRL renders whole reais in pt-BR currency form, e.g. 5000 ->
// "R$5.000,00".
func FormatBRL(amount int) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.Itoa(amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "R$" + b.String() + ",00"
}
