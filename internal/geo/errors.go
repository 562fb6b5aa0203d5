package geo

import "errors"

var (
	// ErrLookupFailed is returned when the municipality API cannot produce a list
	ErrLookupFailed = errors.New("geo: city lookup failed")

	// ErrUnknownRegion is returned for codes outside the 27 UFs
	ErrUnknownRegion = errors.New("geo: unknown region")

	// ErrRegionNotServed is returned when the tenant does not serve the region
	ErrRegionNotServed = errors.New("geo: region not served")

	// ErrCacheMiss is returned by caches when no list is stored
	ErrCacheMiss = errors.New("geo: cache miss")
)
