package remote

import "errors"

// Failure kinds. Every error returned by a client wraps exactly one of them.
var (
	// ErrValidation means required local input was missing. No request was sent.
	ErrValidation = errors.New("validation failed")
	// ErrTransport means the service never produced a usable response.
	ErrTransport = errors.New("transport failure")
	// ErrService means the service answered with a structured failure.
	ErrService = errors.New("service failure")
)

// Messages shown when the service gave no message of its own.
const (
	FallbackExecute    = "Failed to execute Python code"
	FallbackHint       = "Failed to generate hint"
	FallbackSubmit     = "Failed to submit MCQ answer"
	FallbackUnexpected = "An unexpected error occurred"
)

// Error is a classified remote failure. Message is safe to show to a user.
type Error struct {
	Kind    error
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the failure kind and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Message
	}
	return FallbackUnexpected
}

// NewValidationError reports missing local input. Nothing is sent.
func NewValidationError(op, message string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Message: message}
}
