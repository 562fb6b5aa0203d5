package geo

import (
	"context"
	"errors"

	"github.com/wolfman30/esc-funnel/internal/tenant"
	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// Source tells where a city list came from.
type Source string

const (
	SourceTenant Source = "tenant"
	SourceCache  Source = "cache"
	SourceLookup Source = "ibge"
)

// CityList is the answer for one region.
type CityList struct {
	Region string   `json:"region"`
	Cities []string `json:"cities"`
	Source Source   `json:"source"`
}

// Provider answers "which cities can be chosen in this region" for a tenant:
// the tenant's own list when configured, else the municipality lookup.
type Provider struct {
	lookup CityLookup
	cache  CityCache
	logger *logging.Logger
}

// NewProvider wires a provider. cache may be nil.
func NewProvider(lookup CityLookup, cache CityCache, logger *logging.Logger) *Provider {
	if lookup == nil {
		panic("geo: city lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Provider{lookup: lookup, cache: cache, logger: logger}
}

// Cities returns the selectable cities for region under cfg.
func (p *Provider) Cities(ctx context.Context, cfg tenant.Config, region string) (CityList, error) {
	if !IsRegion(region) {
		return CityList{}, ErrUnknownRegion
	}
	if !cfg.RegionAllowed(region) {
		return CityList{}, ErrRegionNotServed
	}
	if cities, lookup := cfg.CitiesFor(region); !lookup {
		return CityList{Region: region, Cities: cities, Source: SourceTenant}, nil
	}

	if p.cache != nil {
		cities, err := p.cache.Get(ctx, region)
		if err == nil {
			return CityList{Region: region, Cities: cities, Source: SourceCache}, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			p.logger.Warn("city cache read failed", "region", region, "error", err)
		}
	}

	cities, err := p.lookup.Municipalities(ctx, region)
	if err != nil {
		p.logger.Error("city lookup failed", "region", region, "error", err)
		if !errors.Is(err, ErrLookupFailed) {
			err = errors.Join(ErrLookupFailed, err)
		}
		return CityList{}, err
	}
	if p.cache != nil {
		if err := p.cache.Set(ctx, region, cities); err != nil {
			p.logger.Warn("city cache write failed", "region", region, "error", err)
		}
	}
	return CityList{Region: region, Cities: cities, Source: SourceLookup}, nil
}
