package clickup

import "errors"

var (
	// ErrMissingListID is returned when no destination list is given
	ErrMissingListID = errors.New("clickup: list id required")

	// ErrMissingToken is returned when neither the call nor the client has a token
	ErrMissingToken = errors.New("clickup: api token required")

	// ErrTransport wraps failures that produced no HTTP response
	ErrTransport = errors.New("clickup: transport error")
)
