package tenant

import (
	"fmt"
	"slices"
	"strings"
)

// Destination identifies the ClickUp list (and token) that receives a tenant's leads.
type Destination struct {
	ListID     string `json:"list_id" yaml:"list_id"`
	Credential string `json:"credential,omitempty" yaml:"credential"`
}

// Branding carries display-only footer overrides. The service passes it through untouched.
type Branding struct {
	Company     string `json:"company,omitempty" yaml:"company"`
	LegalName   string `json:"legal_name,omitempty" yaml:"legal_name"`
	Email       string `json:"email,omitempty" yaml:"email"`
	Phone       string `json:"phone,omitempty" yaml:"phone"`
	Copyright   string `json:"copyright,omitempty" yaml:"copyright"`
	HideContact bool   `json:"hide_contact,omitempty" yaml:"hide_contact"`
}

// IsZero reports whether no branding field is set.
func (b Branding) IsZero() bool {
	return b == Branding{}
}

// Config is the effective configuration of one tenant deployment.
//
// A nil AllowedRegions means every known region is served. A nil
// AllowedCitiesByRegion means cities come from the external city lookup.
type Config struct {
	Slug                  string              `json:"slug,omitempty" yaml:"slug"`
	DisplayName           string              `json:"display_name" yaml:"display_name"`
	Destination           Destination         `json:"destination" yaml:"destination"`
	AllowedRegions        []string            `json:"allowed_regions" yaml:"allowed_regions"`
	AllowedCitiesByRegion map[string][]string `json:"allowed_cities" yaml:"allowed_cities"`
	Branding              Branding            `json:"branding,omitempty" yaml:"branding"`
	AnalyticsPixelID      string              `json:"pixel_id,omitempty" yaml:"pixel_id"`
	TagManagerID          string              `json:"gtm_id,omitempty" yaml:"gtm_id"`
	Variant               string              `json:"variant,omitempty" yaml:"variant"`
	NotifyEmail           string              `json:"notify_email,omitempty" yaml:"notify_email"`
}

// Validate enforces the structural invariants of a tenant entry.
func (c Config) Validate() error {
	if c.AllowedRegions != nil && len(c.AllowedRegions) == 0 {
		return fmt.Errorf("%w: %q restricts regions to an empty list", ErrInvalidConfig, c.Slug)
	}
	if c.AllowedRegions == nil && c.AllowedCitiesByRegion != nil {
		return fmt.Errorf("%w: %q lists cities without restricting regions", ErrInvalidConfig, c.Slug)
	}
	for region := range c.AllowedCitiesByRegion {
		if !slices.Contains(c.AllowedRegions, region) {
			return fmt.Errorf("%w: %q lists cities for region %s outside its allowed regions", ErrInvalidConfig, c.Slug, region)
		}
	}
	for _, region := range c.AllowedRegions {
		if strings.TrimSpace(region) == "" {
			return fmt.Errorf("%w: %q has an empty region code", ErrInvalidConfig, c.Slug)
		}
	}
	return nil
}

// Unrestricted reports whether the tenant serves every region.
func (c Config) Unrestricted() bool {
	return c.AllowedRegions == nil
}

// RegionAllowed reports whether the tenant serves the given region code.
func (c Config) RegionAllowed(region string) bool {
	if c.AllowedRegions == nil {
		return true
	}
	return slices.Contains(c.AllowedRegions, region)
}

// CitiesFor returns the configured cities for a region, sorted. When lookup is
// true the caller should use the external city provider: the tenant has no
// city lists at all, or none (or an empty one) for this region.
func (c Config) CitiesFor(region string) (cities []string, lookup bool) {
	configured := c.AllowedCitiesByRegion[region]
	if len(configured) == 0 {
		return nil, true
	}
	return slices.Sorted(slices.Values(configured)), false
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (c Config) Clone() Config {
	out := c
	if c.AllowedRegions != nil {
		out.AllowedRegions = slices.Clone(c.AllowedRegions)
	}
	if c.AllowedCitiesByRegion != nil {
		out.AllowedCitiesByRegion = make(map[string][]string, len(c.AllowedCitiesByRegion))
		for region, cities := range c.AllowedCitiesByRegion {
			out.AllowedCitiesByRegion[region] = slices.Clone(cities)
		}
	}
	return out
}
