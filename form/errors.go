package form

import (
	"errors"
	"fmt"
)

var (
	ErrStepInvalid        = errors.New("current step has invalid fields")
	ErrNotOnConfirm       = errors.New("submission is only allowed from the confirm step")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrAlreadySubmitted   = errors.New("registration already submitted")
	ErrSubmissionFailed   = errors.New("submission failed")
	ErrClosed             = errors.New("form is closed")
)

// Banner texts shown on the confirm step when a submission fails without a
// service-provided message.
const (
	MessageTimedOut    = "Registration timed out. Please try again."
	MessageUnreachable = "Could not reach the registration service. Please try again."
)

// RejectedError is a failure reported by the submission service itself.
// Its Message is meant to be shown to the registrant verbatim.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("registration rejected: %s", e.Message)
	}
	return fmt.Sprintf("registration rejected (%d): %s", e.Status, e.Message)
}
