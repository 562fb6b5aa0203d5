package funnel

import (
	"errors"

	"github.com/wolfman30/esc-funnel/internal/validation"
)

var (
	// ErrSessionClosed is returned for any action after confirmation or rejection
	ErrSessionClosed = errors.New("funnel: session closed")

	// ErrUnknownOption is returned when a choice or credit value is not offered
	ErrUnknownOption = errors.New("funnel: unknown option")

	// ErrWrongStep is returned when an action does not belong to the current step
	ErrWrongStep = errors.New("funnel: action not valid on current step")

	// ErrSubmissionFailed is returned when the lead sink did not accept the lead
	ErrSubmissionFailed = errors.New("funnel: submission failed")

	// ErrUnknownVariant is returned when a tenant names a variant that does not exist
	ErrUnknownVariant = errors.New("funnel: unknown variant")
)

// ValidationError reports the first failing contact field plus every result.
type ValidationError struct {
	Field   validation.FieldID
	Message string
	Results map[validation.FieldID]validation.Result
}

func (e *ValidationError) Error() string {
	return "funnel: invalid " + string(e.Field) + ": " + e.Message
}
