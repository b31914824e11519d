package types

import "errors"

// Input validation failures shared by the confidence estimator and the
// synthesis engine. Both are always wrapped in an [*InputError].
var (
	// ErrEmptyTranscript is returned when a transcript has no speech after
	// trimming whitespace.
	ErrEmptyTranscript = errors.New("transcript is empty")

	// ErrTranscriptTooShort is returned when a transcript is below the
	// minimum length needed for synthesis.
	ErrTranscriptTooShort = errors.New("transcript is too short")
)

// InputError marks a request the caller must fix. It is never retried and
// maps to a bad-request status at the HTTP boundary.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return "invalid input: " + e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

// NewInputError wraps err in an [*InputError].
func NewInputError(err error) error { return &InputError{Err: err} }

// IsInputError reports whether err's chain contains an [*InputError].
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
