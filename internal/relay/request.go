package relay

import (
	"strconv"
	"strings"
)

// Request is the flat lead body posted by the funnel.
type Request struct {
	Name          string `json:"nome"`
	Phone         string `json:"whatsapp"`
	Region        string `json:"estado"`
	City          string `json:"cidade"`
	HasBusiness   string `json:"tem_cnpj"`
	HasStorefront string `json:"tem_fachada"`
	CreditAmount  Amount `json:"valor_credito"`
	UTMSource     string `json:"utm_source"`
	UTMMedium     string `json:"utm_medium"`
	UTMCampaign   string `json:"utm_campaign"`
	Referrer      string `json:"referrer"`
	Client        string `json:"cliente"`
	ListID        string `json:"clickup_list_id"`
	Token         string `json:"clickup_token"`
}

// Amount is a whole-real credit value. It accepts a JSON number or a numeric
// string; anything after the leading integer is ignored and unparseable input
// reads as zero.
type Amount int

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	*a = Amount(leadingInt(raw))
	return nil
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	sign := 1
	if s != "" && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return sign * n
}

func (r Request) client() string {
	if c := strings.TrimSpace(r.Client); c != "" {
		return c
	}
	return "default"
}
