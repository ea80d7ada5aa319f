package dispatch

import (
	"errors"
	"fmt"
)

// FeedbackError is a user-caused failure whose Reason is shown to the user
// verbatim.
type FeedbackError struct {
	Reason string
	Err    error
}

// Error implements error.
func (e *FeedbackError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

// Unwrap returns the underlying error, if any.
func (e *FeedbackError) Unwrap() error { return e.Err }

// Feedbackf builds a FeedbackError.
func Feedbackf(format string, args ...any) error {
	return &FeedbackError{Reason: fmt.Sprintf(format, args...)}
}

// AsFeedback extracts a FeedbackError from err's chain.
func AsFeedback(err error) (*FeedbackError, bool) {
	var fe *FeedbackError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
