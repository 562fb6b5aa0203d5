package tenant

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is an immutable slug → Config mapping.
type Registry struct {
	entries map[string]Config
}

// NewRegistry validates entries and builds a registry. The slug of each entry
// is its key; lookups are exact and case-sensitive.
func NewRegistry(entries ...Config) (*Registry, error) {
	reg := &Registry{entries: make(map[string]Config, len(entries))}
	for _, entry := range entries {
		if strings.TrimSpace(entry.Slug) == "" {
			return nil, ErrEmptySlug
		}
		if _, exists := reg.entries[entry.Slug]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSlug, entry.Slug)
		}
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		reg.entries[entry.Slug] = entry.Clone()
	}
	return reg, nil
}

// Lookup returns the entry registered under slug.
func (r *Registry) Lookup(slug string) (Config, bool) {
	if r == nil {
		return Config{}, false
	}
	cfg, ok := r.entries[slug]
	if !ok {
		return Config{}, false
	}
	return cfg.Clone(), true
}

// Slugs lists the registered slugs in sorted order.
func (r *Registry) Slugs() []string {
	if r == nil {
		return nil
	}
	slugs := make([]string, 0, len(r.entries))
	for slug := range r.entries {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Entries returns a copy of every entry, ordered by slug.
func (r *Registry) Entries() []Config {
	slugs := r.Slugs()
	out := make([]Config, 0, len(slugs))
	for _, slug := range slugs {
		out = append(out, r.entries[slug].Clone())
	}
	return out
}

// Len returns the number of registered tenants.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Destinations maps every known ClickUp list id to its server-side credential
// (empty when the tenant relies on the default token). The default config's
// list is included.
func (r *Registry) Destinations(def Config) map[string]string {
	out := map[string]string{}
	if def.Destination.ListID != "" {
		out[def.Destination.ListID] = def.Destination.Credential
	}
	if r == nil {
		return out
	}
	for _, cfg := range r.entries {
		if cfg.Destination.ListID == "" {
			continue
		}
		out[cfg.Destination.ListID] = cfg.Destination.Credential
	}
	return out
}
