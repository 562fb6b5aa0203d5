package tenant

// DefaultListID is the ClickUp list that receives leads without a tenant route.
const DefaultListID = "901323227565"

// DefaultConfig is the fallback used when the route names no known tenant.
func DefaultConfig() Config {
	return Config{
		DisplayName: "ESC Crédito",
		Destination: Destination{ListID: DefaultListID},
		Variant:     "canonical",
	}
}

// Builtin returns the tenants shipped with the service.
func Builtin() []Config {
	return []Config{
		{
			Slug:           "multicidades",
			DisplayName:    "Multi Cidades SP",
			Destination:    Destination{ListID: "901324566139"},
			AllowedRegions: []string{"SP"},
			AllowedCitiesByRegion: map[string][]string{
				"SP": {
					"Americana",
					"Indaiatuba",
					"Nova Odessa",
					"Salto",
					"Santa Bárbara d'Oeste",
					"Sumaré",
				},
			},
		},
		{
			Slug:           "serra",
			DisplayName:    "Serra ES",
			Destination:    Destination{ListID: "901324566317"},
			AllowedRegions: []string{"ES"},
			AllowedCitiesByRegion: map[string][]string{
				"ES": {"Cariacica", "Serra", "Vila Velha", "Vitória"},
			},
		},
	}
}

// BuiltinRegistry builds the registry of shipped tenants.
func BuiltinRegistry() *Registry {
	reg, err := NewRegistry(Builtin()...)
	if err != nil {
		panic("tenant: builtin registry invalid: " + err.Error())
	}
	return reg
}
