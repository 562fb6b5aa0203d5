package tenant

import "errors"

var (
	// ErrInvalidConfig is returned when a tenant entry breaks a structural invariant.
	ErrInvalidConfig = errors.New("tenant: invalid config")

	// ErrDuplicateSlug is returned when two registry entries share a slug.
	ErrDuplicateSlug = errors.New("tenant: duplicate slug")

	// ErrEmptySlug is returned when a registry entry has no slug.
	ErrEmptySlug = errors.New("tenant: empty slug")
)
