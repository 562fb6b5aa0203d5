// Package geo provides the Brazilian region (UF) catalogue and city lists
// for the funnel's location step.
package geo

import "github.com/wolfman30/esc-funnel/internal/tenant"

// Region is a Brazilian federative unit.
type Region struct {
	Code string `json:"sigla"`
	Name string `json:"nome"`
}

// Label is the select-option text, e.g. "São Paulo (SP)".
func (r Region) Label() string {
	return r.Name + " (" + r.Code + ")"
}

var regions = []Region{
	{"AC", "Acre"},
	{"AL", "Alagoas"},
	{"AP", "Amapá"},
	{"AM", "Amazonas"},
	{"BA", "Bahia"},
	{"CE", "Ceará"},
	{"DF", "Distrito Federal"},
	{"ES", "Espírito Santo"},
	{"GO", "Goiás"},
	{"MA", "Maranhão"},
	{"MT", "Mato Grosso"},
	{"MS", "Mato Grosso do Sul"},
	{"MG", "Minas Gerais"},
	{"PA", "Pará"},
	{"PB", "Paraíba"},
	{"PR", "Paraná"},
	{"PE", "Pernambuco"},
	{"PI", "Piauí"},
	{"RJ", "Rio de Janeiro"},
	{"RN", "Rio Grande do Norte"},
	{"RS", "Rio Grande do Sul"},
	{"RO", "Rondônia"},
	{"RR", "Roraima"},
	{"SC", "Santa Catarina"},
	{"SP", "São Paulo"},
	{"SE", "Sergipe"},
	{"TO", "Tocantins"},
}

var regionIndex = func() map[string]Region {
	idx := make(map[string]Region, len(regions))
	for _, r := range regions {
		idx[r.Code] = r
	}
	return idx
}()

// Regions returns every region in display order.
func Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// IsRegion reports whether code is a known UF.
func IsRegion(code string) bool {
	_, ok := regionIndex[code]
	return ok
}

// Lookup returns the region for code.
func Lookup(code string) (Region, bool) {
	r, ok := regionIndex[code]
	return r, ok
}

// RegionsFor returns the regions a tenant serves, in display order.
func RegionsFor(cfg tenant.Config) []Region {
	if cfg.Unrestricted() {
		return Regions()
	}
	out := make([]Region, 0, len(cfg.AllowedRegions))
	for _, r := range regions {
		if cfg.RegionAllowed(r.Code) {
			out = append(out, r)
		}
	}
	return out
}
