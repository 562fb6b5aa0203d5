package tenant

import "strings"

// indexDocument is the default-document name that never denotes a tenant.
const indexDocument = "index"

// SlugFromPath extracts the candidate tenant slug from a navigation path.
// It returns "" when the path carries no tenant: empty, a file name, or the
// default document.
func SlugFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	candidate, _, _ := strings.Cut(trimmed, "/")
	if candidate == "" || strings.Contains(candidate, ".") || candidate == indexDocument {
		return ""
	}
	return candidate
}

// Resolve produces the effective tenant configuration for a navigation path.
// Unknown slugs are a normal case and yield def with the slug unset. The
// function has no side effects and returns equal values for equal inputs.
func Resolve(path string, reg *Registry, def Config) Config {
	base := def.Clone()
	base.Slug = ""

	slug := SlugFromPath(path)
	if slug == "" {
		return base
	}
	matched, ok := reg.Lookup(slug)
	if !ok {
		return base
	}
	merged := Merge(base, matched)
	merged.Slug = slug
	return merged
}

// Merge overlays tenant onto base. Every top-level field the tenant sets
// replaces the base value, except Destination which merges field by field.
func Merge(base, tenant Config) Config {
	out := base.Clone()
	t := tenant.Clone()

	if t.DisplayName != "" {
		out.DisplayName = t.DisplayName
	}
	if t.Destination.ListID != "" {
		out.Destination.ListID = t.Destination.ListID
	}
	if t.Destination.Credential != "" {
		out.Destination.Credential = t.Destination.Credential
	}
	if t.AllowedRegions != nil {
		out.AllowedRegions = t.AllowedRegions
	}
	if t.AllowedCitiesByRegion != nil {
		out.AllowedCitiesByRegion = t.AllowedCitiesByRegion
	}
	if !t.Branding.IsZero() {
		out.Branding = t.Branding
	}
	if t.AnalyticsPixelID != "" {
		out.AnalyticsPixelID = t.AnalyticsPixelID
	}
	if t.TagManagerID != "" {
		out.TagManagerID = t.TagManagerID
	}
	if t.Variant != "" {
		out.Variant = t.Variant
	}
	if t.NotifyEmail != "" {
		out.NotifyEmail = t.NotifyEmail
	}
	return out
}
