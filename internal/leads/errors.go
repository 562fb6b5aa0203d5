package leads

import "errors"

var (
	// ErrDraftNotFound is returned when no stored session exists for an id
	ErrDraftNotFound = errors.New("leads: draft not found")

	// ErrDraftCompleted is returned when a stored draft was already submitted
	ErrDraftCompleted = errors.New("leads: draft already completed")

	// ErrMissingSessionID is returned when a record has no id
	ErrMissingSessionID = errors.New("leads: session id is required")
)
